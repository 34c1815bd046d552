package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/keymux/keymux/internal/upstream"
)

// DispatcherService wraps the upstream dispatcher for DI.
type DispatcherService struct {
	Dispatcher *upstream.Dispatcher
}

// NewDispatcher creates the retrying upstream dispatcher.
func NewDispatcher(i do.Injector) (*DispatcherService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	poolSvc := do.MustInvoke[*PoolService](i)
	breakerSvc := do.MustInvoke[*BreakerService](i)

	up := cfgSvc.Config.Upstream
	dispatcher, err := upstream.NewDispatcher(upstream.Config{
		BaseURL:        up.BaseURL,
		MaxAttempts:    up.MaxAttempts,
		AttemptTimeout: up.AttemptTimeout(),
	}, poolSvc.Pool, breakerSvc.Breaker)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	return &DispatcherService{Dispatcher: dispatcher}, nil
}
