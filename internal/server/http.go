package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dmforge/dungeonmaster/internal/config"
)

// HTTPService adapts an http.Server to the lifecycle Service interface.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// NewHTTPService creates an HTTP service listening on cfg.Addr().
//
// Precondition: handler and logger must be non-nil.
func NewHTTPService(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *HTTPService {
	return &HTTPService{
		server: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
}

// Start runs the HTTP server, blocking until Stop is called or the listener
// fails.
func (s *HTTPService) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down, bounded by the shutdown timeout.
func (s *HTTPService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
}
