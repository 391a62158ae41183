package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"

	"stock-maven/internal/apperrors"
	"stock-maven/internal/resilience/circuitbreaker"
	"stock-maven/internal/resilience/errortracker"
	"stock-maven/internal/resilience/retry"
)

func newReporter(buf *bytes.Buffer) Reporter {
	return Reporter{
		Tracker: errortracker.New(),
		Logger:  slog.New(slog.NewJSONHandler(buf, nil)),
	}
}

func TestWithReporting_Success(t *testing.T) {
	var buf bytes.Buffer
	op := WithReporting(newReporter(&buf), "fetch_stock_data", nil,
		func(context.Context) (any, error) { return "quote", nil })

	result, err := op(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "quote", result)
	assert.Empty(t, buf.String(), "success must not be reported")
}

func TestWithReporting_AlwaysReturnsOriginalError(t *testing.T) {
	testErr := apperrors.Trading("order rejected")

	tests := []struct {
		name     string
		recovery RecoveryFunc
	}{
		{name: "no recovery", recovery: nil},
		{name: "recovery succeeds", recovery: func(context.Context, error) error { return nil }},
		{name: "recovery fails", recovery: func(context.Context, error) error { return errors.New("fallback broken") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			op := WithReporting(newReporter(&buf), "place_order", tt.recovery,
				func(context.Context) (any, error) { return nil, testErr })

			_, err := op(context.Background())

			assert.Same(t, error(testErr), err, "the original error must come back unchanged")
		})
	}
}

func TestWithReporting_LogsFullContext(t *testing.T) {
	var buf bytes.Buffer
	r := newReporter(&buf)
	r.Fields = map[string]any{
		"symbol":  "AAPL",
		"payload": strings.Repeat("x", 500),
	}

	op := WithReporting(r, "fetch_stock_data", nil,
		func(context.Context) (any, error) { return nil, apperrors.DataFetch("quote unavailable") })
	_, err := op(context.Background())
	require.Error(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "operation failed", entry["msg"])
	assert.Equal(t, "WARN", entry["level"], "data fetch failure at count 1 reports at WARN")
	assert.Equal(t, "fetch_stock_data", entry["operation"])
	assert.Equal(t, "data_fetch", entry["error_kind"])
	assert.Equal(t, "warning", entry["severity"])
	assert.Equal(t, float64(1), entry["error_count"])
	assert.Equal(t, "AAPL", entry["symbol"])
	assert.Len(t, entry["payload"], maxFieldLen+3, "oversized field values are truncated")
}

func TestWithReporting_SeverityMapsToLogLevel(t *testing.T) {
	var buf bytes.Buffer
	op := WithReporting(newReporter(&buf), "place_order", nil,
		func(context.Context) (any, error) { return nil, apperrors.Trading("order rejected") })
	_, _ = op(context.Background())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"], "critical failures report at ERROR")
}

func TestWithReporting_RecoveryFailureIsLoggedNotPropagated(t *testing.T) {
	var buf bytes.Buffer
	testErr := apperrors.DataFetch("quote unavailable")

	op := WithReporting(newReporter(&buf), "fetch_stock_data",
		func(context.Context, error) error { return errors.New("cache miss") },
		func(context.Context) (any, error) { return nil, testErr })

	_, err := op(context.Background())

	assert.Same(t, error(testErr), err)
	assert.Contains(t, buf.String(), "recovery strategy failed")
	assert.Contains(t, buf.String(), "cache miss")
}

func TestWithReporting_RecordsSpanError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	var buf bytes.Buffer
	op := WithReporting(newReporter(&buf), "analyze_stock", nil,
		func(context.Context) (any, error) { return nil, apperrors.Analysis("model timeout") })
	_, _ = op(context.Background())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "analyze_stock", spans[0].Name())
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestWithRetry_ComposesWithReporting(t *testing.T) {
	var buf bytes.Buffer
	r := newReporter(&buf)

	attempts := 0
	op := WithRetry(retry.Policy{
		MaxAttempts:     3,
		MinWait:         time.Millisecond,
		MaxWait:         5 * time.Millisecond,
		ExponentialBase: 2.0,
	}, WithReporting(r, "fetch_stock_data", nil,
		func(context.Context) (any, error) {
			attempts++
			return nil, apperrors.DataFetch("quote unavailable")
		}))

	_, err := op(context.Background())

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	// Reporting sits inside the retry loop, so each attempt is recorded.
	assert.Equal(t, int64(3), r.Tracker.Count("fetch_stock_data", apperrors.KindDataFetch))
}

func TestWithCircuitBreaker_ShortCircuitsBeforeRetry(t *testing.T) {
	reg := circuitbreaker.NewRegistry()
	cfg := circuitbreaker.Config{
		Name:             "alpha_vantage",
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
	}

	attempts := 0
	op := WithCircuitBreaker(reg, cfg,
		WithRetry(retry.Policy{
			MaxAttempts:     3,
			MinWait:         time.Millisecond,
			MaxWait:         5 * time.Millisecond,
			ExponentialBase: 2.0,
		}, func(context.Context) (any, error) {
			attempts++
			return nil, apperrors.DataFetch("quote unavailable")
		}))

	// First call exhausts its retries and trips the breaker.
	_, err := op(context.Background())
	require.Error(t, err)
	require.Equal(t, 3, attempts)

	// With the gate outermost, an open breaker admits zero retry attempts.
	_, err = op(context.Background())
	assert.True(t, circuitbreaker.IsOpenError(err), "expected OpenError, got %v", err)
	assert.Equal(t, 3, attempts, "no attempt may run while the breaker is open")
}

func TestWithCircuitBreaker_SharesBreakerByName(t *testing.T) {
	reg := circuitbreaker.NewRegistry()
	cfg := circuitbreaker.Config{Name: "brokerage", FailureThreshold: 1, RecoveryTimeout: time.Minute}

	place := WithCircuitBreaker(reg, cfg,
		func(context.Context) (any, error) { return nil, apperrors.Trading("order rejected") })
	cancel := WithCircuitBreaker(reg, cfg,
		func(context.Context) (any, error) { return "cancelled", nil })

	_, _ = place(context.Background())

	// The trip on the order path also gates the cancel path.
	_, err := cancel(context.Background())
	assert.True(t, circuitbreaker.IsOpenError(err))
}

func TestWithRateLimit(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(10*time.Millisecond), 1)

	calls := 0
	op := WithRateLimit(limiter, func(context.Context) (any, error) {
		calls++
		return nil, nil
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := op(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond,
		"calls beyond the burst must wait for tokens")
}

func TestWithRateLimit_ContextCancelled(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	limiter.Allow() // drain the burst token

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	calls := 0
	op := WithRateLimit(limiter, func(context.Context) (any, error) {
		calls++
		return nil, nil
	})

	_, err := op(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, calls, "the operation must not run when no token arrives")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))

	long := strings.Repeat("a", maxFieldLen+50)
	got := truncate(long)
	assert.Len(t, got, maxFieldLen+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}
