package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	DefiPulse DefiPulseConfig `yaml:"defipulse"`
	Feed      FeedConfig      `yaml:"feed"`
	Poller    PollerConfig    `yaml:"poller"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration for the observation archive.
// An empty URL disables the archive.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MigrationsPath  string        `yaml:"migrations_path"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectRetries  int           `yaml:"connect_retries"`
}

// Enabled reports whether the archive is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// DefiPulseConfig holds market data API configuration
type DefiPulseConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// FeedConfig holds price feed configuration
type FeedConfig struct {
	Lookback          time.Duration `yaml:"lookback"`
	MinUpdateInterval time.Duration `yaml:"min_update_interval"`
	Decimals          int           `yaml:"decimals"`
}

// PollerConfig holds price polling configuration
type PollerConfig struct {
	Interval         time.Duration `yaml:"interval"`
	ArchiveRetention time.Duration `yaml:"archive_retention"`
}

// RateLimitConfig holds HTTP API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			MigrationsPath:  "file://migrations",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnectRetries:  3,
		},
		DefiPulse: DefiPulseConfig{
			BaseURL: "https://data-api.defipulse.com",
			Timeout: 10 * time.Second,
		},
		Feed: FeedConfig{
			Lookback:          2 * time.Hour,
			MinUpdateInterval: time.Minute,
			Decimals:          18,
		},
		Poller: PollerConfig{
			Interval:         time.Minute,
			ArchiveRetention: 30 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the optional CONFIG_FILE yaml file, then
// applies environment variable overrides
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)

	c.Database.URL = getEnvString("DATABASE_URL", c.Database.URL)
	c.Database.MigrationsPath = getEnvString("DB_MIGRATIONS_PATH", c.Database.MigrationsPath)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.ConnMaxIdleTime = getEnvDuration("DB_CONN_MAX_IDLE_TIME", c.Database.ConnMaxIdleTime)
	c.Database.ConnectRetries = getEnvInt("DB_CONNECT_RETRIES", c.Database.ConnectRetries)

	c.DefiPulse.APIKey = getEnvString("DEFIPULSE_API_KEY", c.DefiPulse.APIKey)
	c.DefiPulse.BaseURL = getEnvString("DEFIPULSE_BASE_URL", c.DefiPulse.BaseURL)
	c.DefiPulse.Timeout = getEnvDuration("DEFIPULSE_TIMEOUT", c.DefiPulse.Timeout)

	c.Feed.Lookback = getEnvDuration("FEED_LOOKBACK", c.Feed.Lookback)
	c.Feed.MinUpdateInterval = getEnvDuration("FEED_MIN_UPDATE_INTERVAL", c.Feed.MinUpdateInterval)
	c.Feed.Decimals = getEnvInt("FEED_DECIMALS", c.Feed.Decimals)

	c.Poller.Interval = getEnvDuration("POLLER_INTERVAL", c.Poller.Interval)
	c.Poller.ArchiveRetention = getEnvDuration("POLLER_ARCHIVE_RETENTION", c.Poller.ArchiveRetention)

	c.RateLimit.RequestsPerSecond = getEnvFloat("RATE_LIMIT_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = getEnvInt("RATE_LIMIT_BURST", c.RateLimit.Burst)

	c.Logging.Level = getEnvString("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvString("LOG_FORMAT", c.Logging.Format)
}

// Validate ensures configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.DefiPulse.APIKey == "" {
		return fmt.Errorf("defipulse api key is required")
	}

	if c.Feed.Lookback < time.Second {
		return fmt.Errorf("feed lookback must be at least 1 second")
	}

	if c.Feed.MinUpdateInterval < 0 {
		return fmt.Errorf("feed min update interval must not be negative")
	}

	if c.Feed.Decimals < 6 || c.Feed.Decimals > 60 {
		return fmt.Errorf("feed decimals must be between 6 and 60, got %d", c.Feed.Decimals)
	}

	if c.Poller.Interval < time.Second {
		return fmt.Errorf("poller interval must be at least 1 second")
	}

	if c.Poller.Interval > 24*time.Hour {
		return fmt.Errorf("poller interval must be less than 24 hours")
	}

	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// Helper functions
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
