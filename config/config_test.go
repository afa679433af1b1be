package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsComplete(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "akamai", cfg.Catalog.Prefix)
	assert.Equal(t, 10, cfg.Executor.DefaultPageCap)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 10.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, 64, cfg.Pool.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
source:
  dir: /etc/akamai/schemas
  base_url: https://api.example.test
retry:
  max_retries: 5
  initial_delay: 250ms
rate_limit:
  requests_per_second: 25
circuit_breaker:
  failure_threshold: 7
cache:
  max_entries: 50
log:
  level: debug
  format: console
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()

	require.NoError(t, err)
	assert.Equal(t, "/etc/akamai/schemas", cfg.Source.Dir)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 25.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 7, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, 64, cfg.Pool.MaxConns)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()

	require.NoError(t, err)
	assert.Equal(t, Default().Retry.MaxRetries, cfg.Retry.MaxRetries)
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := writeConfigFile(t, "source: [not\n  a: mapping")

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
source:
  dir: /from/file
retry:
  max_retries: 5
`)
	t.Setenv("AKAMAI_OPS_SOURCE_DIR", "/from/env")
	t.Setenv("AKAMAI_OPS_RETRY_MAX_RETRIES", "9")
	t.Setenv("AKAMAI_OPS_RETRY_INITIAL_DELAY", "2s")
	t.Setenv("AKAMAI_OPS_RATE_LIMIT_REQUESTS_PER_SECOND", "3.5")
	t.Setenv("AKAMAI_OPS_CACHE_ENABLE_REDIS", "true")
	t.Setenv("AKAMAI_OPS_LOG_OUTPUT_PATHS", "stderr, /var/log/ops.log")

	cfg, err := NewLoader().WithConfigPath(path).Load()

	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Source.Dir, "env beats file")
	assert.Equal(t, 9, cfg.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 3.5, cfg.RateLimit.RequestsPerSecond)
	assert.True(t, cfg.Cache.EnableRedis)
	assert.Equal(t, []string{"stderr", "/var/log/ops.log"}, cfg.Log.OutputPaths)
}

func TestEnvCustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_SOURCE_DIR", "/custom")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()

	require.NoError(t, err)
	assert.Equal(t, "/custom", cfg.Source.Dir)
}

func TestEnvMalformedValueFails(t *testing.T) {
	t.Setenv("AKAMAI_OPS_RETRY_MAX_RETRIES", "many")

	_, err := NewLoader().Load()
	require.Error(t, err)
}

func TestValidatorRuns(t *testing.T) {
	_, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.Error(t, err, "defaults leave source.dir unset")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) { c.Source.Dir = "/schemas" },
		},
		{
			name:    "missing source dir",
			mutate:  func(c *Config) {},
			wantErr: "source.dir",
		},
		{
			name: "page cap over ceiling",
			mutate: func(c *Config) {
				c.Source.Dir = "/schemas"
				c.Executor.MaxPageCap = 500
			},
			wantErr: "max_page_cap",
		},
		{
			name: "negative rate",
			mutate: func(c *Config) {
				c.Source.Dir = "/schemas"
				c.RateLimit.RequestsPerSecond = -1
			},
			wantErr: "requests_per_second",
		},
		{
			name: "bad log format",
			mutate: func(c *Config) {
				c.Source.Dir = "/schemas"
				c.Log.Format = "xml"
			},
			wantErr: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestBuildLogger(t *testing.T) {
	tests := []struct {
		name   string
		config LogConfig
	}{
		{"json info", LogConfig{Level: "info", Format: "json", OutputPaths: []string{"stderr"}}},
		{"console debug with caller", LogConfig{Level: "debug", Format: "console", OutputPaths: []string{"stdout"}, EnableCaller: true}},
		{"empty falls back to production defaults", LogConfig{}},
		{"unknown level defaults to info", LogConfig{Level: "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := tt.config.BuildLogger()
			require.NotNil(t, logger)
			logger.Debug("probe")
			_ = logger.Sync()
		})
	}
}
