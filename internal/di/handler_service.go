package di

import (
	"net/http"

	"github.com/samber/do/v2"

	"github.com/keymux/keymux/internal/auth"
	"github.com/keymux/keymux/internal/proxy"
)

// HandlerService wraps the assembled root HTTP handler for DI.
type HandlerService struct {
	Handler http.Handler
}

// NewHandler assembles the full request pipeline: operational routes plus
// the authenticated, body-limited forwarding catch-all, wrapped in request
// ID and access log middleware.
func NewHandler(i do.Injector) (*HandlerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)
	poolSvc := do.MustInvoke[*PoolService](i)
	breakerSvc := do.MustInvoke[*BreakerService](i)
	dispatcherSvc := do.MustInvoke[*DispatcherService](i)

	cfg := cfgSvc.Config

	gateway := proxy.Wrap(proxy.NewGateway(dispatcherSvc.Dispatcher),
		proxy.Authenticate(auth.NewGatewayChain(cfg.Server.GatewayKey)),
		proxy.ConcurrencyLimit(cfg.Server.MaxConcurrent),
		proxy.MaxBody(cfg.Server.MaxBodyBytes),
	)

	router := proxy.Wrap(proxy.NewRouter(gateway, poolSvc.Pool, breakerSvc.Breaker),
		proxy.RequestID(*logSvc.Logger),
		proxy.AccessLog(),
	)

	return &HandlerService{Handler: router}, nil
}
