package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"stock-maven/internal/apperrors"
)

func TestRegistry_GetOrCreateIsIdempotent(t *testing.T) {
	reg := NewRegistry()

	first := reg.GetOrCreate(DefaultConfig("alpha_vantage"))
	second := reg.GetOrCreate(DefaultConfig("alpha_vantage"))

	if first != second {
		t.Error("expected the same breaker instance for the same name")
	}
}

func TestRegistry_FirstConfigurationWins(t *testing.T) {
	reg := NewRegistry()

	first := reg.GetOrCreate(Config{
		Name:             "brokerage",
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
	})

	// A later caller asking for a looser threshold gets the existing breaker;
	// its configuration is ignored, not merged.
	third := reg.GetOrCreate(Config{
		Name:             "brokerage",
		FailureThreshold: 50,
		RecoveryTimeout:  time.Hour,
	})
	if third != first {
		t.Fatal("expected the existing instance")
	}

	testErr := apperrors.Trading("order rejected")
	_, _ = third.Execute(context.Background(), failOp(testErr))
	_, _ = third.Execute(context.Background(), failOp(testErr))

	if third.State() != StateOpen {
		t.Error("expected the original threshold of 2 to still apply")
	}
}

func TestRegistry_DistinctNamesDistinctBreakers(t *testing.T) {
	reg := NewRegistry()

	av := reg.GetOrCreate(MarketDataConfig())
	br := reg.GetOrCreate(BrokerageConfig())

	if av == br {
		t.Error("expected distinct breakers for distinct dependencies")
	}
}

func TestRegistry_State(t *testing.T) {
	reg := NewRegistry()

	if _, ok := reg.State("missing"); ok {
		t.Error("expected ok=false for an unknown breaker")
	}

	cb := reg.GetOrCreate(Config{Name: "alpha_vantage", FailureThreshold: 1, RecoveryTimeout: time.Minute})
	_, _ = cb.Execute(context.Background(), failOp(apperrors.DataFetch("boom")))

	state, ok := reg.State("alpha_vantage")
	if !ok {
		t.Fatal("expected the breaker to exist")
	}
	if state != StateOpen {
		t.Errorf("expected state=open, got %v", state)
	}
}

func TestRegistry_Snapshots(t *testing.T) {
	reg := NewRegistry()
	reg.GetOrCreate(MarketDataConfig())
	cb := reg.GetOrCreate(Config{Name: "brokerage", FailureThreshold: 1, RecoveryTimeout: time.Minute})
	_, _ = cb.Execute(context.Background(), failOp(apperrors.Trading("order rejected")))

	snaps := reg.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps["alpha_vantage"].State != StateClosed {
		t.Errorf("expected alpha_vantage closed, got %v", snaps["alpha_vantage"].State)
	}
	if snaps["brokerage"].State != StateOpen {
		t.Errorf("expected brokerage open, got %v", snaps["brokerage"].State)
	}
	if snaps["brokerage"].FailureCount != 1 {
		t.Errorf("expected brokerage failure_count=1, got %d", snaps["brokerage"].FailureCount)
	}
}
