package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/config"
)

// Server wraps the HTTP server with graceful shutdown
type Server struct {
	server  *http.Server
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewServer creates a new HTTP server around the handler
func NewServer(
	cfg config.ServerConfig,
	rateCfg config.RateLimitConfig,
	handler *Handler,
	metricsHandler http.Handler,
	logger *slog.Logger,
) *Server {
	limiter := NewRateLimiter(rateCfg.RequestsPerSecond, rateCfg.Burst, logger)
	router := NewRouter(handler, metricsHandler, limiter, logger)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		limiter: limiter,
		logger:  logger.With("component", "http_server"),
	}
}

// Start starts the HTTP server and blocks until it is shut down
func (s *Server) Start(ctx context.Context) error {
	s.limiter.StartCleanup(ctx, 5*time.Minute)

	s.logger.Info("starting http server", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Addr returns the server address
func (s *Server) Addr() string {
	return s.server.Addr
}
