// Package ratelimit provides client-side request pacing for upstream keys.
//
// The token bucket implementation wraps golang.org/x/time/rate for smooth
// traffic shaping without the boundary burst problem of fixed windows. It
// is used by the key pool to optionally cap each key's request rate below
// the upstream's enforced limit, trading a little throughput for fewer 429
// round trips.
package ratelimit

import "context"

// Limiter paces requests for a single key. Implementations must be safe
// for concurrent use.
type Limiter interface {
	// Allow reports whether a request may proceed now. Non-blocking; a
	// denied request is simply skipped, never queued.
	Allow(ctx context.Context) bool

	// SetLimit updates the requests-per-minute cap (0 = unlimited).
	SetLimit(rpm int)
}
