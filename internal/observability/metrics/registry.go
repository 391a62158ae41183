// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Error metrics track classified failures of guarded outbound operations
var (
	// ErrorsTotal counts classified errors by operation, kind, and severity
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_errors_total",
			Help: "Total number of classified errors",
		},
		[]string{"operation", "error_kind", "severity"},
	)

	// RecoveryAttemptsTotal counts recovery strategy executions by outcome
	RecoveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_recovery_attempts_total",
			Help: "Total number of recovery strategy executions",
		},
		[]string{"operation", "outcome"},
	)
)

// Circuit breaker metrics track per-dependency breaker behavior
var (
	// CircuitBreakerTransitionsTotal counts breaker state transitions
	CircuitBreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	// CircuitBreakerState reports the current breaker state
	// (0 = closed, 1 = open, 2 = half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"breaker"},
	)

	// CircuitBreakerRejectionsTotal counts calls rejected while a breaker is open
	CircuitBreakerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_rejections_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"breaker"},
	)
)

// Retry metrics track backoff behavior
var (
	// RetryAttemptsTotal counts retry loop outcomes
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry loop attempts by outcome",
		},
		[]string{"outcome"}, // outcome: success, retried, exhausted, aborted
	)
)

// RecordError records a classified error occurrence.
func RecordError(operation, errorKind, severity string) {
	ErrorsTotal.WithLabelValues(operation, errorKind, severity).Inc()
}

// RecordRecoveryAttempt records the outcome of a recovery strategy execution.
// Outcome should be either "success" or "failure".
func RecordRecoveryAttempt(operation string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	RecoveryAttemptsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordCircuitBreakerTransition records a breaker state transition and
// updates the state gauge.
func RecordCircuitBreakerTransition(breaker, from, to string, stateValue float64) {
	CircuitBreakerTransitionsTotal.WithLabelValues(breaker, from, to).Inc()
	CircuitBreakerState.WithLabelValues(breaker).Set(stateValue)
}

// RecordCircuitBreakerRejection records a call rejected by an open breaker.
func RecordCircuitBreakerRejection(breaker string) {
	CircuitBreakerRejectionsTotal.WithLabelValues(breaker).Inc()
}

// RecordRetryAttempt records a retry loop attempt outcome.
func RecordRetryAttempt(outcome string) {
	RetryAttemptsTotal.WithLabelValues(outcome).Inc()
}
