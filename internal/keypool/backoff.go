package keypool

import (
	"math"
	"time"
)

// Default backoff parameters used when the upstream supplies no
// Retry-After hint.
const (
	DefaultBackoffBase   = 1 * time.Second
	DefaultBackoffCap    = 60 * time.Second
	DefaultBackoffFactor = 2.0
)

// Backoff computes exponential cooldown durations for keys that were rate
// limited without an explicit Retry-After hint.
type Backoff struct {
	// Base is the cooldown after the first failure.
	Base time.Duration
	// Cap bounds the computed cooldown.
	Cap time.Duration
	// Factor is the growth multiplier per consecutive failure.
	Factor float64
}

// DefaultBackoff returns the default backoff schedule: 1s base, factor 2,
// capped at 60s.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   DefaultBackoffBase,
		Cap:    DefaultBackoffCap,
		Factor: DefaultBackoffFactor,
	}
}

// normalized fills zero fields with defaults so a partially configured
// schedule behaves sanely.
func (b Backoff) normalized() Backoff {
	if b.Base <= 0 {
		b.Base = DefaultBackoffBase
	}
	if b.Cap <= 0 {
		b.Cap = DefaultBackoffCap
	}
	if b.Factor < 1 {
		b.Factor = DefaultBackoffFactor
	}
	return b
}

// Duration returns the cooldown for the given consecutive failure count.
// The first failure (count 1) yields Base; each further failure multiplies
// by Factor, capped at Cap. Counts below 1 are treated as 1.
func (b Backoff) Duration(consecutiveFailures int) time.Duration {
	b = b.normalized()

	if consecutiveFailures < 1 {
		consecutiveFailures = 1
	}

	d := float64(b.Base) * math.Pow(b.Factor, float64(consecutiveFailures-1))
	if d >= float64(b.Cap) || math.IsInf(d, 1) {
		return b.Cap
	}
	return time.Duration(d)
}
