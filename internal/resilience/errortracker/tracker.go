// Package errortracker keeps a process-wide frequency and recency ledger of
// classified errors, keyed by (operation, error kind). The ledger drives the
// deterministic severity grading used for logging and metrics.
package errortracker

import (
	"sync"
	"time"

	"stock-maven/internal/apperrors"
)

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

// Key scopes frequency tracking to one operation and error kind.
type Key struct {
	Operation string
	Kind      apperrors.Kind
}

// Tracker is the error ledger. Counts grow monotonically for the process
// lifetime; entries are only removed by an explicit Prune call. A Tracker is
// safe for concurrent use and performs no I/O.
type Tracker struct {
	clock Clock

	mu       sync.Mutex
	counts   map[Key]int64
	lastSeen map[Key]time.Time
}

// New creates an empty tracker using the system clock.
func New() *Tracker {
	return NewWithClock(&SystemClock{})
}

// NewWithClock creates an empty tracker with the given clock.
// If clock is nil, the system clock is used.
func NewWithClock(clock Clock) *Tracker {
	if clock == nil {
		clock = &SystemClock{}
	}
	return &Tracker{
		clock:    clock,
		counts:   make(map[Key]int64),
		lastSeen: make(map[Key]time.Time),
	}
}

// Record registers one occurrence of the given error kind for the operation
// and returns the graded severity together with the cumulative count.
// The severity is a pure function of (kind, cumulative count); see
// ClassifySeverity.
func (t *Tracker) Record(operation string, kind apperrors.Kind) (Severity, int64) {
	count := t.bump(operation, kind)
	return ClassifySeverity(kind, count), count
}

// RecordWithSeverity registers one occurrence like Record but reports the
// caller-supplied severity instead of the classified one. Use this when the
// caller has context the classification table cannot see, e.g. a validation
// failure on the order path.
func (t *Tracker) RecordWithSeverity(operation string, kind apperrors.Kind, severity Severity) (Severity, int64) {
	return severity, t.bump(operation, kind)
}

func (t *Tracker) bump(operation string, kind apperrors.Kind) int64 {
	key := Key{Operation: operation, Kind: kind}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[key]++
	t.lastSeen[key] = t.clock.Now()
	return t.counts[key]
}

// Count returns the cumulative occurrence count for the given key.
func (t *Tracker) Count(operation string, kind apperrors.Kind) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[Key{Operation: operation, Kind: kind}]
}

// Summary aggregates the ledger over a trailing time window.
type Summary struct {
	// Total is the number of occurrences attributed to keys seen within
	// the window.
	Total int64

	// ByKind breaks Total down by error kind.
	ByKind map[apperrors.Kind]int64

	// BySeverity breaks Total down by the current severity grade of each
	// key.
	BySeverity map[Severity]int64
}

// Summary returns totals for every key last seen within the trailing window.
// It is read-only and never mutates the ledger.
func (t *Tracker) Summary(window time.Duration) Summary {
	cutoff := t.clock.Now().Add(-window)

	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		ByKind:     make(map[apperrors.Kind]int64),
		BySeverity: make(map[Severity]int64),
	}
	for key, seen := range t.lastSeen {
		if seen.Before(cutoff) {
			continue
		}
		count := t.counts[key]
		s.Total += count
		s.ByKind[key.Kind] += count
		s.BySeverity[ClassifySeverity(key.Kind, count)] += count
	}
	return s
}

// Prune removes every key that has been idle for longer than olderThan and
// returns the number of keys evicted. Pruning resets those keys' cumulative
// counts, so it trades classification memory for bounded growth; schedule it
// only if the process runs long enough to care.
func (t *Tracker) Prune(olderThan time.Duration) int {
	cutoff := t.clock.Now().Add(-olderThan)

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for key, seen := range t.lastSeen {
		if seen.Before(cutoff) {
			delete(t.counts, key)
			delete(t.lastSeen, key)
			evicted++
		}
	}
	return evicted
}
