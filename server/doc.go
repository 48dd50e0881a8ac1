// Package server provides the diagnostics HTTP API for the component
// registry, backed by Gin with HTTP/2 h2c support.
//
// Endpoints:
//
//   - GET  /health                              liveness probe
//   - GET  /api/components                      list component snapshots
//   - GET  /api/components/:name                single component detail
//   - GET  /api/components/:name/dependents     loaded components that depend on it
//   - POST /api/components/:name/load           load on demand (force, timeout_ms)
//   - POST /api/components/:name/unload         unload if safe
//   - GET  /api/stats                           aggregate load statistics
//
// Built-in middleware (server/middleware): panic recovery, request-ID
// propagation, CORS, and request logging.
package server
