// Package api is the HTTP surface of a bridge instance.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledger-rail-bridge/internal/api/handler"
	"github.com/ledger-rail-bridge/internal/bridge/service"
	"github.com/ledger-rail-bridge/internal/config"
	"github.com/ledger-rail-bridge/internal/domain/shared"
	"github.com/ledger-rail-bridge/internal/metrics"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
	cfg        *config.Config
}

// NewServer wires the handlers of side into a configured HTTP server. A nil
// m disables the metrics endpoint.
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	side shared.Side,
	actionService service.ActionService,
	intentService service.IntentService,
	m *metrics.Metrics,
) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	routes := routes{
		side:          side,
		liveness:      fmt.Sprintf("%s is running on port %d!", cfg.Application.Name, cfg.Server.Port),
		entryHandler:  handler.NewEntryHandler(log, actionService),
		intentHandler: handler.NewIntentHandler(log, intentService),
		metrics:       m,
		metricsPath:   cfg.Metrics.Path,
	}
	setupRouter(log, httpRouter, routes)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
		cfg:        cfg,
	}
}

// Handler exposes the router for in-process tests
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop stops accepting requests and waits for in-flight ones up to the
// shutdown timeout. Pipelines already queued are drained by the worker pool.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
