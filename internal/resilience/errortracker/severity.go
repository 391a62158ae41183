package errortracker

import (
	"log/slog"

	"stock-maven/internal/apperrors"
)

// Severity grades a classified error occurrence.
type Severity int

const (
	// SeverityInfo marks a recoverable, low-impact failure.
	SeverityInfo Severity = iota

	// SeverityWarning marks a failure that needs attention if it persists.
	SeverityWarning

	// SeverityCritical marks a failure requiring immediate attention.
	SeverityCritical
)

// String returns the lowercase name of the severity, suitable for log fields
// and metric labels.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// Level maps the severity to the slog level at which the occurrence should be
// reported.
func (s Severity) Level() slog.Level {
	switch s {
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ClassifySeverity grades an error occurrence from its kind and the
// cumulative occurrence count of its (operation, kind) key. The result is a
// pure function of its inputs; first matching rule wins:
//
//  1. Trading and Security errors are always critical.
//  2. Any kind seen 10 or more times is critical.
//  3. RateLimit and DataFetch errors are warnings, critical from the 5th.
//  4. Analysis errors are informational, warnings from the 3rd.
//  5. Anything else is informational, a warning from the 5th.
func ClassifySeverity(kind apperrors.Kind, count int64) Severity {
	switch {
	case kind == apperrors.KindTrading || kind == apperrors.KindSecurity:
		return SeverityCritical

	case count >= 10:
		return SeverityCritical

	case kind == apperrors.KindRateLimit || kind == apperrors.KindDataFetch:
		if count < 5 {
			return SeverityWarning
		}
		return SeverityCritical

	case kind == apperrors.KindAnalysis:
		if count < 3 {
			return SeverityInfo
		}
		return SeverityWarning

	case count >= 5:
		return SeverityWarning

	default:
		return SeverityInfo
	}
}
