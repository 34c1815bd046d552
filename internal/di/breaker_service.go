package di

import (
	"github.com/samber/do/v2"

	"github.com/keymux/keymux/internal/health"
)

// BreakerService wraps the upstream circuit breaker for DI.
type BreakerService struct {
	Breaker *health.Breaker
}

// NewBreaker creates the circuit breaker guarding the upstream.
func NewBreaker(i do.Injector) (*BreakerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	breaker := health.NewBreaker("upstream", cfgSvc.Config.Upstream.Breaker, logSvc.Logger)
	return &BreakerService{Breaker: breaker}, nil
}
