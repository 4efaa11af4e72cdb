package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/config"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/domain"
	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/pkg/retry"
)

// DB wraps the PostgreSQL connection pool backing the observation archive
type DB struct {
	Pool   *pgxpool.Pool
	config config.DatabaseConfig
	logger *slog.Logger
}

// NewDB creates a new PostgreSQL connection pool. Connection failures are
// retried with backoff up to cfg.ConnectRetries times.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger = logger.With("component", "postgres")

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse database URL: %v", domain.ErrInvalidConfig, err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.ConnectRetries
	retryCfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("database not reachable, retrying",
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	pool, err := retry.DoWithResult(ctx, retryCfg, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, retry.NewRetryableError(fmt.Errorf("failed to ping database: %w", err))
		}

		return pool, nil
	})
	if err != nil {
		return nil, errors.Join(domain.ErrDatabaseConnection, err)
	}

	logger.Info("database connection established",
		"max_conns", cfg.MaxOpenConns,
		"min_conns", cfg.MaxIdleConns,
	)

	return &DB{
		Pool:   pool,
		config: cfg,
		logger: logger,
	}, nil
}

// Migrate runs database migrations
func (db *DB) Migrate() error {
	db.logger.Info("running database migrations", "path", db.config.MigrationsPath)

	m, err := migrate.New(db.config.MigrationsPath, db.config.URL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	db.logger.Info("migrations completed",
		"version", version,
		"dirty", dirty,
	)

	return nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.logger.Info("closing database connection")
	db.Pool.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
