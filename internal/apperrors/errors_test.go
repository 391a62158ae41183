package apperrors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindDataFetch, "data_fetch"},
		{KindAnalysis, "analysis"},
		{KindTrading, "trading"},
		{KindValidation, "validation"},
		{KindSecurity, "security"},
		{KindRateLimit, "rate_limit"},
		{KindConfiguration, "configuration"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(nil); got != KindUnknown {
		t.Errorf("KindOf(nil) = %v, want KindUnknown", got)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain error) = %v, want KindUnknown", got)
	}
	if got := KindOf(Trading("order rejected")); got != KindTrading {
		t.Errorf("KindOf(Trading) = %v, want KindTrading", got)
	}

	// Classification must survive wrapping.
	wrapped := fmt.Errorf("submit order: %w", DataFetch("quote unavailable"))
	if got := KindOf(wrapped); got != KindDataFetch {
		t.Errorf("KindOf(wrapped) = %v, want KindDataFetch", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindDataFetch, "fetch quote for AAPL", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if err.Error() != "data_fetch: fetch quote for AAPL: connection reset" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	err := RateLimit("quota exceeded", 30*time.Second)

	if err.Kind != KindRateLimit {
		t.Errorf("expected KindRateLimit, got %v", err.Kind)
	}
	if err.RetryAfter != 30*time.Second {
		t.Errorf("expected retry-after 30s, got %v", err.RetryAfter)
	}
}

func TestKindSetMatches(t *testing.T) {
	empty := NewKindSet()
	if !empty.Matches(KindTrading) || !empty.Matches(KindUnknown) {
		t.Error("empty set must match every kind")
	}

	s := NewKindSet(KindDataFetch, KindRateLimit)
	if !s.Matches(KindDataFetch) {
		t.Error("expected set to match KindDataFetch")
	}
	if s.Matches(KindTrading) {
		t.Error("expected set not to match KindTrading")
	}
	if s.Empty() {
		t.Error("expected non-empty set")
	}
}
