package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanjcampbell1/DefiPulseTVL-ALLPriceFeed/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DEFIPULSE_API_KEY", "key")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "key", cfg.DefiPulse.APIKey)
	assert.Equal(t, "https://data-api.defipulse.com", cfg.DefiPulse.BaseURL)
	assert.Equal(t, 18, cfg.Feed.Decimals)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DEFIPULSE_API_KEY", "key")
	t.Setenv("FEED_LOOKBACK", "500s")
	t.Setenv("FEED_MIN_UPDATE_INTERVAL", "60s")
	t.Setenv("FEED_DECIMALS", "8")
	t.Setenv("DATABASE_URL", "postgres://localhost/tvl")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 500*time.Second, cfg.Feed.Lookback)
	assert.Equal(t, 60*time.Second, cfg.Feed.MinUpdateInterval)
	assert.Equal(t, 8, cfg.Feed.Decimals)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 8080, cfg.Server.Port, "invalid values fall back")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
defipulse:
  api_key: from-file
feed:
  lookback: 10m
  min_update_interval: 30s
poller:
  interval: 15s
logging:
  level: debug
  format: text
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DEFIPULSE_API_KEY", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.DefiPulse.APIKey)
	assert.Equal(t, 10*time.Minute, cfg.Feed.Lookback)
	assert.Equal(t, 30*time.Second, cfg.Feed.MinUpdateInterval)
	assert.Equal(t, 15*time.Second, cfg.Poller.Interval)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "warn", cfg.Logging.Level, "env overrides file")
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset keys keep defaults")
}

func TestLoad_BadFile(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := config.Load()
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
		t.Setenv("CONFIG_FILE", path)
		_, err := config.Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg := config.Default()
		cfg.DefiPulse.APIKey = "key"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *config.Config) {}},
		{name: "missing api key", mutate: func(c *config.Config) { c.DefiPulse.APIKey = "" }, wantErr: true},
		{name: "bad port", mutate: func(c *config.Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "zero lookback", mutate: func(c *config.Config) { c.Feed.Lookback = 0 }, wantErr: true},
		{name: "negative min interval", mutate: func(c *config.Config) { c.Feed.MinUpdateInterval = -time.Second }, wantErr: true},
		{name: "zero min interval allowed", mutate: func(c *config.Config) { c.Feed.MinUpdateInterval = 0 }},
		{name: "decimals too small", mutate: func(c *config.Config) { c.Feed.Decimals = 2 }, wantErr: true},
		{name: "poller too fast", mutate: func(c *config.Config) { c.Poller.Interval = time.Millisecond }, wantErr: true},
		{name: "poller too slow", mutate: func(c *config.Config) { c.Poller.Interval = 48 * time.Hour }, wantErr: true},
		{name: "negative burst", mutate: func(c *config.Config) { c.RateLimit.Burst = -1 }, wantErr: true},
		{name: "bad log level", mutate: func(c *config.Config) { c.Logging.Level = "trace" }, wantErr: true},
		{name: "bad log format", mutate: func(c *config.Config) { c.Logging.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
