package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/sheetalert/pkg/config"
	"github.com/wonny/sheetalert/pkg/logger"
)

// Server represents the HTTP API server
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	config     *config.Config
}

// New creates a new API server. onShutdown hooks run when Shutdown starts;
// hijacked websocket connections are not closed by net/http itself.
func New(cfg *config.Config, log *logger.Logger, router http.Handler, onShutdown ...func()) *Server {
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// /update_stocks runs a whole refresh pass inside the request
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	for _, fn := range onShutdown {
		srv.RegisterOnShutdown(fn)
	}

	return &Server{
		httpServer: srv,
		logger:     log,
		config:     cfg,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"port":     s.config.Port,
		"env":      s.config.Env,
		"base_url": s.config.BaseURL,
	}).Info("Starting API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
