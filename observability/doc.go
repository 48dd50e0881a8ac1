// Package observability wires OpenTelemetry tracing and metrics into the
// component registry. InitTracer and InitMeter configure OTLP HTTP exporters;
// Collector subscribes to registry lifecycle events and records load counts,
// failures, and load durations.
package observability
