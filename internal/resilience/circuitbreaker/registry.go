package circuitbreaker

import "sync"

// Registry owns one circuit breaker per logical dependency, keyed by name.
// It is constructor-injected rather than a package-level global so tests can
// use isolated instances.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker)}
}

// GetOrCreate returns the breaker for cfg.Name, creating it on first use.
//
// The first call with a given name fixes that breaker's configuration for the
// process lifetime. Later calls with the same name return the existing
// instance and their configuration is ignored, not merged. This is deliberate:
// every caller guarding the same dependency must share one breaker, so the
// first configuration wins.
func (r *Registry) GetOrCreate(cfg Config) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[cfg.Name]; ok {
		return cb
	}
	cb := New(cfg)
	r.breakers[cfg.Name] = cb
	return cb
}

// Get returns the breaker for the given name, if it exists.
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[name]
	return cb, ok
}

// State returns the state of the named breaker. The boolean is false when no
// breaker with that name exists yet.
func (r *Registry) State(name string) (State, bool) {
	cb, ok := r.Get(name)
	if !ok {
		return StateClosed, false
	}
	return cb.State(), true
}

// Snapshots returns a point-in-time view of every registered breaker, keyed
// by name. Intended for health and diagnostics endpoints maintained by the
// embedding process.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.Unlock()

	// Per-breaker snapshots are taken outside the registry lock so a
	// snapshot of one dependency never serializes against another.
	out := make(map[string]Snapshot, len(breakers))
	for _, cb := range breakers {
		out[cb.Name()] = cb.Snapshot()
	}
	return out
}
