// Package health guards the upstream service with a circuit breaker.
//
// Rate limit responses and credential rejections are per-key conditions and
// are handled by the key pool; the breaker only counts failures that look
// service-wide (5xx, timeouts, transport errors). When the upstream itself
// is down, the breaker opens and requests fail fast instead of burning
// through every key on a dead backend.
package health

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrUpstreamUnavailable is returned by Allow while the circuit is open.
var ErrUpstreamUnavailable = errors.New("health: upstream circuit open")

// State re-exports the gobreaker state type.
type State = gobreaker.State

// Circuit breaker states.
const (
	StateClosed   = gobreaker.StateClosed
	StateOpen     = gobreaker.StateOpen
	StateHalfOpen = gobreaker.StateHalfOpen
)

// Breaker wraps sony/gobreaker's two-step breaker for the upstream service.
type Breaker struct {
	cb   *gobreaker.TwoStepCircuitBreaker[struct{}]
	name string
}

// NewBreaker creates a Breaker with the given configuration.
func NewBreaker(name string, cfg Config, logger *zerolog.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.GetHalfOpenProbes()), //nolint:gosec // getter clamps to positive
		Timeout:     cfg.GetOpenDuration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.GetFailureThreshold()) //nolint:gosec // getter clamps to positive
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger == nil {
				return
			}
			event := logger.Info()
			if to == gobreaker.StateOpen {
				event = logger.Warn()
			}
			event.
				Str("upstream", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("upstream circuit state change")
		},
		IsSuccessful: func(err error) bool {
			// A canceled client context says nothing about upstream health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &Breaker{
		cb:   gobreaker.NewTwoStepCircuitBreaker[struct{}](settings),
		name: name,
	}
}

// Allow checks whether an attempt may proceed. On success it returns a done
// callback that must be invoked with the attempt's outcome. Returns
// ErrUpstreamUnavailable while the circuit is open.
func (b *Breaker) Allow() (done func(err error), err error) {
	d, err := b.cb.Allow()
	if err != nil {
		return nil, ErrUpstreamUnavailable
	}
	return d, nil
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	return b.cb.State()
}

// Name returns the breaker's upstream name.
func (b *Breaker) Name() string {
	return b.name
}
