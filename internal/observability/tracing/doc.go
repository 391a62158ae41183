// Package tracing provides OpenTelemetry tracing integration for guarded
// outbound operations.
//
// The package exposes the application tracer and helpers for starting
// operation-scoped spans and recording classified errors on them. Exporter
// and provider setup is owned by the embedding process; this package only
// uses the global tracer provider.
package tracing
