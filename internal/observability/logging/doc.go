// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON and text output formats
//   - Operation name propagation
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "stock-maven/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started", slog.String("version", "1.0"))
//	}
//
//	func fetchQuote(ctx context.Context) {
//	    logger := logging.WithOperation(logging.FromContext(ctx), "fetch_stock_data")
//	    logger.Info("fetching quote")
//	}
package logging
