package resilience

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"stock-maven/internal/apperrors"
	"stock-maven/internal/observability/metrics"
	"stock-maven/internal/observability/tracing"
	"stock-maven/internal/resilience/circuitbreaker"
	"stock-maven/internal/resilience/errortracker"
	"stock-maven/internal/resilience/retry"
)

// Operation is an outbound call guarded by this package's wrappers.
type Operation func(ctx context.Context) (any, error)

// RecoveryFunc is a best-effort side channel run after a failure has been
// recorded, e.g. falling back to cached quotes or flattening a position.
// Its own failure is logged and counted but never masks the original error.
type RecoveryFunc func(ctx context.Context, opErr error) error

// WithCircuitBreaker guards the operation with the named breaker from the
// registry. The breaker is resolved once at wrap time; if one with the same
// name already exists, cfg is ignored and the existing breaker is shared.
func WithCircuitBreaker(reg *circuitbreaker.Registry, cfg circuitbreaker.Config, next Operation) Operation {
	cb := reg.GetOrCreate(cfg)
	return func(ctx context.Context) (any, error) {
		return cb.Execute(ctx, next)
	}
}

// WithRetry repeats the operation under the given policy.
func WithRetry(policy retry.Policy, next Operation) Operation {
	return func(ctx context.Context) (any, error) {
		return policy.Execute(ctx, next)
	}
}

// WithRateLimit gates the operation behind a client-side rate limiter,
// blocking until a token is available or the context is done. Use it to stay
// under a provider's request quota instead of burning retry attempts on
// rate-limit responses.
func WithRateLimit(limiter *rate.Limiter, next Operation) Operation {
	return func(ctx context.Context) (any, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return next(ctx)
	}
}

// Reporter bundles the collaborators of WithReporting.
type Reporter struct {
	// Tracker records and classifies failures. Required.
	Tracker *errortracker.Tracker

	// Logger receives the failure reports. Default: slog.Default
	Logger *slog.Logger

	// Fields is static call context included in every failure report,
	// e.g. the symbol or order id. Values are truncated for logging.
	Fields map[string]any
}

// WithReporting wraps the operation with terminal failure handling: every
// failure is recorded in the tracker, logged at the severity-mapped level
// with full context, counted in Prometheus, and recorded on the operation's
// trace span. If recovery is non-nil it runs as a best-effort side channel.
//
// This layer is observability only. The original error is always returned
// unchanged, whatever the recovery strategy does.
func WithReporting(r Reporter, operation string, recovery RecoveryFunc, next Operation) Operation {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context) (any, error) {
		ctx, span := tracing.StartOperationSpan(ctx, operation)
		defer span.End()

		result, err := next(ctx)
		if err == nil {
			return result, nil
		}

		kind := apperrors.KindOf(err)
		severity, count := r.Tracker.Record(operation, kind)

		attrs := []slog.Attr{
			slog.String("operation", operation),
			slog.String("error_kind", kind.String()),
			slog.String("error", truncate(err.Error())),
			slog.String("severity", severity.String()),
			slog.Int64("error_count", count),
		}
		for k, v := range r.Fields {
			attrs = append(attrs, slog.String(k, truncate(fmt.Sprint(v))))
		}
		logger.LogAttrs(ctx, severity.Level(), "operation failed", attrs...)

		metrics.RecordError(operation, kind.String(), severity.String())
		tracing.RecordError(ctx, err, kind.String(), severity.String())

		if recovery != nil {
			if recErr := recovery(ctx, err); recErr != nil {
				logger.Error("recovery strategy failed",
					slog.String("operation", operation),
					slog.String("recovery_error", truncate(recErr.Error())))
				metrics.RecordRecoveryAttempt(operation, false)
			} else {
				logger.Info("recovery strategy executed",
					slog.String("operation", operation))
				metrics.RecordRecoveryAttempt(operation, true)
			}
		}

		return result, err
	}
}

// maxFieldLen bounds logged context values so oversized payloads (prompts,
// order blobs) never flood the log pipeline.
const maxFieldLen = 200

func truncate(s string) string {
	if len(s) <= maxFieldLen {
		return s
	}
	return s[:maxFieldLen] + "..."
}
