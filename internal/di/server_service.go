package di

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/keymux/keymux/internal/proxy"
)

// ServerService wraps the HTTP server for DI.
type ServerService struct {
	Server *proxy.Server

	drainTimeout time.Duration
}

// NewServer creates the HTTP server around the assembled handler.
func NewServer(i do.Injector) (*ServerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)
	handlerSvc := do.MustInvoke[*HandlerService](i)

	serverCfg := cfgSvc.Config.Server
	server := proxy.NewServer(serverCfg, handlerSvc.Handler, *logSvc.Logger)

	return &ServerService{
		Server:       server,
		drainTimeout: serverCfg.ShutdownTimeout(),
	}, nil
}

// Shutdown implements do.ShutdownerWithError for graceful server shutdown.
func (s *ServerService) Shutdown() error {
	if s.Server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()
	return s.Server.Shutdown(ctx)
}
