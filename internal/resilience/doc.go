// Package resilience provides reliability and fault tolerance patterns for
// the application's outbound calls: circuit breaking, retry with exponential
// backoff, client-side rate limiting, and centralized error reporting.
//
// The package exposes independent higher-order wrappers that compose in any
// order. The canonical order puts the circuit gate outermost so an open
// breaker short-circuits before any retry attempt is made:
//
//	reg := circuitbreaker.NewRegistry()
//	tracker := errortracker.New()
//
//	fetch := resilience.WithCircuitBreaker(reg, circuitbreaker.MarketDataConfig(),
//	    resilience.WithRetry(retry.DataFetchPolicy(),
//	        resilience.WithReporting(resilience.Reporter{Tracker: tracker}, "fetch_stock_data", nil,
//	            func(ctx context.Context) (any, error) {
//	                return fetchQuote(ctx, symbol)
//	            })))
//
//	quote, err := fetch(ctx)
//
// Subpackages:
//   - circuitbreaker: per-dependency circuit breakers and their registry
//   - retry: retry policies with bounded exponential backoff and jitter
//   - errortracker: error frequency ledger and severity classification
package resilience
