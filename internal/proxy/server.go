package proxy

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/keymux/keymux/internal/config"
)

// Server owns the HTTP listener lifecycle.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
	addr       string
}

// NewServer builds the listener around the given root handler. With
// EnableH2C set, cleartext HTTP/2 is accepted for deployments behind a
// TLS-terminating load balancer.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger zerolog.Logger) *Server {
	if cfg.EnableH2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout(),
		},
		logger: logger,
		addr:   cfg.Addr(),
	}
}

// Start blocks serving requests until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("listening")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until the context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("draining connections")
	return s.httpServer.Shutdown(ctx)
}
