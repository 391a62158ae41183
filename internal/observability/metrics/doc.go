// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - Error metrics by operation, kind, and severity
//   - Circuit breaker state and transition metrics
//   - Retry attempt metrics
//
// All metrics are automatically registered with the Prometheus default registry.
// Exposing them over HTTP is the responsibility of the process that embeds
// this layer.
//
// Example usage:
//
//	import "stock-maven/internal/observability/metrics"
//
//	func handleFailure(operation, kind, severity string) {
//	    metrics.RecordError(operation, kind, severity)
//	}
package metrics
