// Package errors defines the loader error taxonomy: structured AppError
// values with machine-readable codes, retryable detection, and HTTP status
// mapping for the diagnostics API.
package errors
