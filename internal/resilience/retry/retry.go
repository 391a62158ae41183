// Package retry provides retry logic with bounded exponential backoff and jitter.
// It helps handle transient failures gracefully by automatically retrying failed operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"stock-maven/internal/apperrors"
	"stock-maven/internal/observability/metrics"
	"stock-maven/pkg/config"
)

// Policy holds the configuration for retry logic. A Policy is immutable once
// constructed and safe to share across callers.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// MinWait is the backoff before the first retry.
	MinWait time.Duration

	// MaxWait caps the backoff between retries, jitter included.
	MaxWait time.Duration

	// ExponentialBase is the growth factor of the backoff. Must be > 1.
	ExponentialBase float64

	// Jitter randomizes each wait by a uniform factor in [0.5, 1.0] to
	// avoid synchronized retry storms.
	Jitter bool

	// RetryableKinds scopes which error kinds are worth retrying.
	// The empty set retries every error kind.
	RetryableKinds apperrors.KindSet
}

// DefaultPolicy returns a default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		MinWait:         1 * time.Second,
		MaxWait:         10 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// DataFetchPolicy returns a policy for market data fetches.
func DataFetchPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		MinWait:         1 * time.Second,
		MaxWait:         10 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		RetryableKinds:  apperrors.NewKindSet(apperrors.KindDataFetch, apperrors.KindRateLimit),
	}
}

// APICallPolicy returns a policy for general provider API calls.
func APICallPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		MinWait:         500 * time.Millisecond,
		MaxWait:         5 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		RetryableKinds:  apperrors.NewKindSet(apperrors.KindRateLimit),
	}
}

// AnalysisPolicy returns a policy for AI analysis calls.
// Conservative attempt count due to inference cost.
func AnalysisPolicy() Policy {
	return Policy{
		MaxAttempts:     2,
		MinWait:         2 * time.Second,
		MaxWait:         8 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		RetryableKinds:  apperrors.NewKindSet(apperrors.KindAnalysis),
	}
}

// TradingPolicy returns the policy for order placement: a single attempt and
// no retries, since resubmitting a possibly executed order is unsafe.
func TradingPolicy() Policy {
	return Policy{
		MaxAttempts:     1,
		MinWait:         1 * time.Second,
		MaxWait:         1 * time.Second,
		ExponentialBase: 2.0,
	}
}

// Validate checks the policy invariants: at least one attempt, non-negative
// waits with MinWait <= MaxWait, and a growth factor above 1.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if err := config.ValidateNonNegativeDuration(p.MinWait); err != nil {
		return fmt.Errorf("invalid min wait: %w", err)
	}
	if err := config.ValidateDurationRange(p.MaxWait, p.MinWait, p.MaxWait); err != nil {
		return fmt.Errorf("invalid max wait: %w", err)
	}
	if p.ExponentialBase <= 1 {
		return fmt.Errorf("exponential base must be greater than 1, got %v", p.ExponentialBase)
	}
	return nil
}

// PolicyFromEnv returns the given policy with environment overrides applied:
//
//	RETRY_<NAME>_MAX_ATTEMPTS
//	RETRY_<NAME>_MIN_WAIT
//	RETRY_<NAME>_MAX_WAIT
//
// where <NAME> is the uppercased policy name.
func PolicyFromEnv(name string, base Policy) Policy {
	prefix := "RETRY_" + config.EnvKey(name)
	base.MaxAttempts = config.GetEnvInt(prefix+"_MAX_ATTEMPTS", base.MaxAttempts)
	base.MinWait = config.GetEnvDuration(prefix+"_MIN_WAIT", base.MinWait)
	base.MaxWait = config.GetEnvDuration(prefix+"_MAX_WAIT", base.MaxWait)
	return base
}

// Execute attempts the operation up to MaxAttempts times. The first attempt
// runs immediately; each retry waits min(MaxWait, MinWait*Base^(attempt-1)),
// randomized when Jitter is set. RateLimit errors carrying a retry-after hint
// raise the wait to that hint, still capped at MaxWait.
//
// Non-retryable errors return immediately. After the attempts are exhausted,
// the final error is returned unchanged so callers can still classify it.
// Cancellation during a backoff wait returns the context error; it counts as
// neither success nor failure.
func (p Policy) Execute(ctx context.Context, op func(context.Context) (any, error)) (any, error) {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			metrics.RecordRetryAttempt("success")
			return result, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			metrics.RecordRetryAttempt("aborted")
			return nil, err
		}

		if !p.RetryableKinds.Matches(apperrors.KindOf(err)) {
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.String("error_kind", apperrors.KindOf(err).String()),
				slog.Any("error", err))
			metrics.RecordRetryAttempt("aborted")
			return nil, err
		}

		// Don't wait after the last attempt
		if attempt == p.MaxAttempts {
			break
		}

		wait := p.wait(attempt, err)

		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.MaxAttempts),
			slog.Duration("wait", wait),
			slog.Any("error", err))
		metrics.RecordRetryAttempt("retried")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			metrics.RecordRetryAttempt("aborted")
			return nil, fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}

	metrics.RecordRetryAttempt("exhausted")
	return nil, lastErr
}

// wait computes the backoff before the retry following the given attempt.
func (p Policy) wait(attempt int, err error) time.Duration {
	backoff := float64(p.MinWait) * math.Pow(p.ExponentialBase, float64(attempt-1))
	if backoff > float64(p.MaxWait) {
		backoff = float64(p.MaxWait)
	}

	if p.Jitter {
		// #nosec G404 -- math/rand is acceptable for jitter calculation.
		// Cryptographic randomness is not required for retry backoff.
		backoff *= 0.5 + 0.5*rand.Float64()
	}

	wait := time.Duration(backoff)

	// Honor the upstream retry-after hint, still capped at MaxWait.
	var taxErr *apperrors.Error
	if errors.As(err, &taxErr) && taxErr.Kind == apperrors.KindRateLimit && taxErr.RetryAfter > 0 {
		if taxErr.RetryAfter > wait {
			wait = taxErr.RetryAfter
		}
		if wait > p.MaxWait {
			wait = p.MaxWait
		}
	}

	return wait
}
