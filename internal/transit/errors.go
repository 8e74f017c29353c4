package transit

import "errors"

// Error taxonomy for transit data providers. Callers branch with errors.Is:
// unavailable sources are retried on the next tick, rate limiting backs off
// beyond the normal refresh interval. Malformed individual records are never
// surfaced as errors; they are dropped at the parsing boundary.
var (
	// ErrSourceUnavailable means the provider could not be reached or
	// answered with a server error. Transient; retry next tick.
	ErrSourceUnavailable = errors.New("transit source unavailable")

	// ErrRateLimited means the provider is throttling us.
	ErrRateLimited = errors.New("transit source rate limited")
)
