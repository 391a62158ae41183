// Package circuitbreaker provides per-dependency circuit breakers for external
// service calls. A breaker fast-fails calls to a dependency that keeps
// failing, instead of letting every caller wait on it.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stock-maven/internal/apperrors"
	"stock-maven/internal/observability/metrics"
	"stock-maven/pkg/config"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and calls are allowed.
	// This is the normal operating state.
	StateClosed State = iota

	// StateOpen indicates the circuit is open due to excessive failures.
	// While open, calls fail immediately with OpenError without invoking
	// the wrapped operation.
	StateOpen

	// StateHalfOpen indicates the circuit is testing recovery. Exactly one
	// probe call is admitted; concurrent callers fail fast with OpenError.
	StateHalfOpen
)

// String returns a string representation of the circuit state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// OpenError is returned when a call is rejected because the breaker is open
// or its single recovery probe is already in flight.
type OpenError struct {
	Name string
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

// IsOpenError reports whether the error is a breaker rejection.
func IsOpenError(err error) bool {
	var oe *OpenError
	return errors.As(err, &oe)
}

// Clock provides an abstraction for time operations to enable testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name identifies the guarded dependency, e.g. "alpha_vantage" or
	// "brokerage". It is also the registry key.
	Name string

	// FailureThreshold is the number of consecutive qualifying failures
	// required to open the circuit. Default: 5
	FailureThreshold int

	// RecoveryTimeout is the minimum time the circuit stays open before a
	// recovery probe is admitted. Default: 60 seconds
	RecoveryTimeout time.Duration

	// RetryableKinds scopes which error kinds the breaker reacts to.
	// The empty set means every error counts. Errors outside the set
	// propagate without mutating breaker state.
	RetryableKinds apperrors.KindSet

	// Clock provides time abstraction for testing. Default: SystemClock
	Clock Clock

	// Logger for state transition logs. Default: slog.Default
	Logger *slog.Logger

	// OnStateChange is an optional hook invoked after every state
	// transition, outside the breaker lock.
	OnStateChange func(name string, from, to State)
}

// Validate checks the configuration invariants: a named breaker, a threshold
// of at least 1, and a positive recovery timeout.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("circuit breaker name must not be empty")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if err := config.ValidatePositiveDuration(c.RecoveryTimeout); err != nil {
		return fmt.Errorf("invalid recovery timeout: %w", err)
	}
	return nil
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// MarketDataConfig returns configuration for the market data provider.
func MarketDataConfig() Config {
	return Config{
		Name:             "alpha_vantage",
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		RetryableKinds:   apperrors.NewKindSet(apperrors.KindDataFetch, apperrors.KindRateLimit),
	}
}

// AIAnalysisConfig returns configuration for the AI inference backend.
func AIAnalysisConfig() Config {
	return Config{
		Name:             "ai_analysis",
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
		RetryableKinds:   apperrors.NewKindSet(apperrors.KindAnalysis, apperrors.KindRateLimit),
	}
}

// BrokerageConfig returns configuration for the brokerage API.
// More conservative than the data providers: the circuit opens sooner and
// stays open longer, since failed order flow is expensive to hammer.
func BrokerageConfig() Config {
	return Config{
		Name:             "brokerage",
		FailureThreshold: 3,
		RecoveryTimeout:  120 * time.Second,
		RetryableKinds:   apperrors.NewKindSet(apperrors.KindTrading, apperrors.KindRateLimit),
	}
}

// DatabaseConfig returns configuration for the relational store.
func DatabaseConfig() Config {
	return Config{
		Name:             "database",
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
	}
}

// ConfigFromEnv builds a configuration for the named dependency, letting the
// environment override the defaults:
//
//	CB_<NAME>_FAILURE_THRESHOLD
//	CB_<NAME>_RECOVERY_TIMEOUT
//
// where <NAME> is the uppercased breaker name.
func ConfigFromEnv(name string) Config {
	cfg := DefaultConfig(name)
	prefix := "CB_" + config.EnvKey(name)
	cfg.FailureThreshold = config.GetEnvInt(prefix+"_FAILURE_THRESHOLD", cfg.FailureThreshold)
	cfg.RecoveryTimeout = config.GetEnvDuration(prefix+"_RECOVERY_TIMEOUT", cfg.RecoveryTimeout)
	return cfg
}

// CircuitBreaker guards calls to a single external dependency.
//
// State machine: CLOSED -> OPEN when FailureThreshold consecutive qualifying
// failures accumulate; OPEN -> HALF_OPEN once RecoveryTimeout has elapsed
// since the last failure, admitting exactly one probe; a successful probe
// closes the circuit, a failed probe reopens it. A failed probe never
// transitions HALF_OPEN to CLOSED.
type CircuitBreaker struct {
	name           string
	threshold      int
	recoveryWait   time.Duration
	retryableKinds apperrors.KindSet
	clock          Clock
	logger         *slog.Logger
	onStateChange  func(name string, from, to State)

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	probeInFlight   bool
}

// New creates a new circuit breaker with the given configuration.
//
// If cfg.FailureThreshold is not positive, it defaults to 5.
// If cfg.RecoveryTimeout is not positive, it defaults to 60 seconds.
// If cfg.Clock is nil, it defaults to SystemClock.
// If cfg.Logger is nil, it defaults to slog.Default.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = &SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &CircuitBreaker{
		name:           cfg.Name,
		threshold:      cfg.FailureThreshold,
		recoveryWait:   cfg.RecoveryTimeout,
		retryableKinds: cfg.RetryableKinds,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		onStateChange:  cfg.OnStateChange,
		state:          StateClosed,
	}
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs the given operation through the circuit breaker.
// If the circuit is open, it returns OpenError immediately without invoking
// the operation. Context cancellation of the operation counts as neither
// success nor failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) (any, error)) (any, error) {
	probe, err := cb.admit()
	if err != nil {
		metrics.RecordCircuitBreakerRejection(cb.name)
		return nil, err
	}

	result, opErr := op(ctx)
	cb.settle(probe, opErr)
	return result, opErr
}

// admit decides whether a call may proceed. It returns whether the admitted
// call is the half-open recovery probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if cb.clock.Now().Sub(cb.lastFailureTime) <= cb.recoveryWait {
			cb.mu.Unlock()
			return false, &OpenError{Name: cb.name}
		}
		transition := cb.transitionLocked(StateHalfOpen)
		cb.probeInFlight = true
		cb.mu.Unlock()
		transition()
		return true, nil

	case StateHalfOpen:
		if cb.probeInFlight {
			cb.mu.Unlock()
			return false, &OpenError{Name: cb.name}
		}
		cb.probeInFlight = true
		cb.mu.Unlock()
		return true, nil

	default:
		cb.mu.Unlock()
		return false, nil
	}
}

// settle records the outcome of an admitted call.
func (cb *CircuitBreaker) settle(probe bool, opErr error) {
	cb.mu.Lock()

	if probe {
		cb.probeInFlight = false
	}

	var transition func()
	switch {
	case opErr == nil:
		cb.failureCount = 0
		if cb.state != StateClosed {
			transition = cb.transitionLocked(StateClosed)
		}

	case errors.Is(opErr, context.Canceled) || errors.Is(opErr, context.DeadlineExceeded):
		// Abandoned calls count as neither success nor failure.

	case !cb.retryableKinds.Matches(apperrors.KindOf(opErr)):
		// The breaker does not react to this kind; no state change.

	default:
		cb.failureCount++
		cb.lastFailureTime = cb.clock.Now()
		if cb.state == StateHalfOpen {
			transition = cb.transitionLocked(StateOpen)
		} else if cb.state == StateClosed && cb.failureCount >= cb.threshold {
			transition = cb.transitionLocked(StateOpen)
		}
	}

	cb.mu.Unlock()
	if transition != nil {
		transition()
	}
}

// transitionLocked switches the state while holding the lock and returns the
// notification closure to run after the lock is released, so logging, metrics,
// and user hooks never execute under the breaker mutex.
func (cb *CircuitBreaker) transitionLocked(to State) func() {
	from := cb.state
	cb.state = to
	failures := cb.failureCount

	return func() {
		cb.logger.Warn("circuit breaker state changed",
			slog.String("circuit", cb.name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
			slog.Int("consecutive_failures", failures))

		metrics.RecordCircuitBreakerTransition(cb.name, from.String(), to.String(), float64(to))

		if cb.onStateChange != nil {
			cb.onStateChange(cb.name, from, to)
		}
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// Snapshot describes the current breaker state for diagnostics.
type Snapshot struct {
	Name            string
	State           State
	FailureCount    int
	LastFailureTime time.Time
}

// Snapshot returns the current breaker state for diagnostics endpoints.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		Name:            cb.name,
		State:           cb.state,
		FailureCount:    cb.failureCount,
		LastFailureTime: cb.lastFailureTime,
	}
}

// Reset forces the breaker back to the closed state.
// This is useful for tests and manual intervention.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failureCount = 0
	cb.lastFailureTime = time.Time{}
	cb.probeInFlight = false
}
