package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/adapters/defipulse"
	httpAdapter "github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/adapters/http"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/adapters/postgres"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/clock"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/config"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/logging"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/ports"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/services"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.New(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting tvl price feed")

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build and start application
	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	// Start application components
	if err := app.Start(ctx); err != nil {
		logger.Error("failed to start application", "error", err)
		os.Exit(1)
	}

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, app, logger)
}

// Application holds all components
type Application struct {
	db         *postgres.DB // nil when the archive is disabled
	httpServer *httpAdapter.Server
	poller     *worker.Poller
	logger     *slog.Logger
}

func buildApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("building application")

	// 1. Infrastructure Layer - optional observation archive
	var db *postgres.DB
	var archive ports.ObservationRepository
	if cfg.Database.Enabled() {
		var err error
		db, err = postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}

		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}

		archive = postgres.NewObservationRepository(db)
	} else {
		logger.Info("observation archive disabled")
	}

	// 2. Infrastructure Layer - Market data client
	client, err := defipulse.NewClient(
		cfg.DefiPulse.APIKey,
		defipulse.WithBaseURL(cfg.DefiPulse.BaseURL),
		defipulse.WithTimeout(cfg.DefiPulse.Timeout),
		defipulse.WithLogger(logger),
	)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	// 3. Service Layer
	feed, err := services.NewPriceFeed(client, clock.System{}, services.PriceFeedConfig{
		Lookback:          int64(cfg.Feed.Lookback / time.Second),
		MinUpdateInterval: int64(cfg.Feed.MinUpdateInterval / time.Second),
		Decimals:          int32(cfg.Feed.Decimals),
	}, logger)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	metricsService := services.NewMetricsService(feed, archive, logger)
	metricsService.Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pollerService := services.NewPollerService(
		feed,
		archive,
		metricsService,
		cfg.Poller.ArchiveRetention,
		logger,
	)

	// 4. Transport Layer - HTTP Server
	handler := httpAdapter.NewHandler(feed, pollerService, metricsService, archive, logger)
	httpServer := httpAdapter.NewServer(
		cfg.Server,
		cfg.RateLimit,
		handler,
		metricsService.Handler(),
		logger,
	)

	// 5. Background Workers
	poller := worker.NewPoller(
		pollerService,
		cfg.Poller.Interval,
		logger,
	)

	logger.Info("application built successfully",
		"lookback", cfg.Feed.Lookback.String(),
		"min_update_interval", cfg.Feed.MinUpdateInterval.String(),
		"decimals", cfg.Feed.Decimals,
	)

	return &Application{
		db:         db,
		httpServer: httpServer,
		poller:     poller,
		logger:     logger,
	}, nil
}

func (a *Application) Start(ctx context.Context) error {
	a.logger.Info("starting application components")

	// Start poller in background
	go func() {
		if err := a.poller.Start(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("poller error", "error", err)
		}
	}()

	// Start HTTP server in background (will block until shutdown)
	go func() {
		if err := a.httpServer.Start(ctx); err != nil {
			a.logger.Error("http server error", "error", err)
		}
	}()

	a.logger.Info("application started",
		"http_addr", a.httpServer.Addr(),
	)

	return nil
}

func (a *Application) Shutdown() {
	a.logger.Info("shutting down application")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop poller first
	if err := a.poller.Stop(); err != nil {
		a.logger.Error("failed to stop poller", "error", err)
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown http server", "error", err)
	}

	closeDB(a.db)

	a.logger.Info("application shutdown complete")
}

func closeDB(db *postgres.DB) {
	if db != nil {
		db.Close()
	}
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, app *Application, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		app.Shutdown()
	case <-ctx.Done():
		app.Shutdown()
	}
}
