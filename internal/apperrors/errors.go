// Package apperrors defines the closed error taxonomy shared by every outbound
// operation of the application. Errors are classified by Kind rather than by
// concrete type, so the resilience layer can make retry and circuit-breaking
// decisions without depending on the packages that produced them.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies a class of failure in the taxonomy.
type Kind int

const (
	// KindUnknown is the classification for errors outside the taxonomy.
	KindUnknown Kind = iota

	// KindDataFetch indicates that fetching market data failed.
	KindDataFetch

	// KindAnalysis indicates that stock analysis failed.
	KindAnalysis

	// KindTrading indicates that a trading operation failed.
	KindTrading

	// KindValidation indicates that input validation failed.
	KindValidation

	// KindSecurity indicates that a security-related operation failed.
	KindSecurity

	// KindRateLimit indicates that an API rate limit was exceeded.
	KindRateLimit

	// KindConfiguration indicates that configuration is invalid.
	KindConfiguration
)

// String returns the snake_case name of the kind, suitable for log fields and
// metric labels.
func (k Kind) String() string {
	switch k {
	case KindDataFetch:
		return "data_fetch"
	case KindAnalysis:
		return "analysis"
	case KindTrading:
		return "trading"
	case KindValidation:
		return "validation"
	case KindSecurity:
		return "security"
	case KindRateLimit:
		return "rate_limit"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is the single error type carrying a taxonomy kind.
// RetryAfter is only meaningful for KindRateLimit and reports how long the
// upstream service asked us to back off.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Details    map[string]any
	Err        error
}

// Error returns the formatted error message including the wrapped cause.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a taxonomy error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a taxonomy error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// DataFetch creates a KindDataFetch error.
func DataFetch(message string) *Error {
	return New(KindDataFetch, message)
}

// Analysis creates a KindAnalysis error.
func Analysis(message string) *Error {
	return New(KindAnalysis, message)
}

// Trading creates a KindTrading error.
func Trading(message string) *Error {
	return New(KindTrading, message)
}

// Validation creates a KindValidation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Security creates a KindSecurity error.
func Security(message string) *Error {
	return New(KindSecurity, message)
}

// RateLimit creates a KindRateLimit error. retryAfter is the backoff hint
// reported by the upstream service; zero means no hint was given.
func RateLimit(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimit, Message: message, RetryAfter: retryAfter}
}

// Configuration creates a KindConfiguration error.
func Configuration(message string) *Error {
	return New(KindConfiguration, message)
}

// KindOf classifies an error against the taxonomy. Errors that do not carry a
// taxonomy kind anywhere in their chain, including nil, classify as
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether the error classifies as the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// KindSet is an immutable set of error kinds used to scope retry and
// circuit-breaking decisions. The zero value is the empty set.
type KindSet struct {
	kinds map[Kind]struct{}
}

// NewKindSet builds a set from the given kinds.
func NewKindSet(kinds ...Kind) KindSet {
	s := KindSet{kinds: make(map[Kind]struct{}, len(kinds))}
	for _, k := range kinds {
		s.kinds[k] = struct{}{}
	}
	return s
}

// Empty reports whether the set contains no kinds.
func (s KindSet) Empty() bool {
	return len(s.kinds) == 0
}

// Matches reports whether the kind is covered by the set. The empty set
// matches every kind, so an unspecified set means "react to any error".
func (s KindSet) Matches(k Kind) bool {
	if s.Empty() {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

// Kinds returns the members of the set in unspecified order.
func (s KindSet) Kinds() []Kind {
	out := make([]Kind, 0, len(s.kinds))
	for k := range s.kinds {
		out = append(out, k)
	}
	return out
}
