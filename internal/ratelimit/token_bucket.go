package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// TokenBucket implements Limiter using golang.org/x/time/rate.
//
// The bucket refills at rpm/60 tokens per second with burst equal to rpm,
// so a key can spend its full minute budget immediately and then refills
// gradually. A zero or negative rpm means unlimited.
type TokenBucket struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	rpm     int
}

// NewTokenBucket creates a token bucket limiter with the given
// requests-per-minute cap (0 = unlimited).
func NewTokenBucket(rpm int) *TokenBucket {
	return &TokenBucket{
		limiter: newRateLimiter(rpm),
		rpm:     rpm,
	}
}

func newRateLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
}

// Allow reports whether a request may proceed under the current cap.
func (b *TokenBucket) Allow(_ context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limiter.Allow()
}

// SetLimit replaces the cap. The bucket restarts full at the new rate.
func (b *TokenBucket) SetLimit(rpm int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limiter = newRateLimiter(rpm)
	b.rpm = rpm
}
