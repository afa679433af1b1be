// Package config loads the process configuration from defaults, an optional
// YAML file, and environment variable overrides, in that priority order.
package config

import (
	"fmt"
	"strings"

	"github.com/schwarztim/akamai-mcp-server-sub001/catalog"
	"github.com/schwarztim/akamai-mcp-server-sub001/circuitbreaker"
	"github.com/schwarztim/akamai-mcp-server-sub001/executor"
	"github.com/schwarztim/akamai-mcp-server-sub001/internal/cache"
	"github.com/schwarztim/akamai-mcp-server-sub001/ratelimit"
	"github.com/schwarztim/akamai-mcp-server-sub001/retry"
	"github.com/schwarztim/akamai-mcp-server-sub001/transport"
)

// Config is the complete configuration.
type Config struct {
	// Source locates the schema documents and the remote endpoint.
	Source SourceConfig `yaml:"source"`

	Catalog   catalog.Config        `yaml:"catalog"`
	Executor  executor.Config       `yaml:"executor"`
	Retry     retry.Policy          `yaml:"retry"`
	RateLimit ratelimit.Config      `yaml:"rate_limit"`
	Breaker   circuitbreaker.Config `yaml:"circuit_breaker"`
	Cache     cache.Config          `yaml:"cache"`
	Pool      transport.PoolConfig  `yaml:"pool"`
	Log       LogConfig             `yaml:"log"`
}

// SourceConfig locates inputs and the remote API.
type SourceConfig struct {
	// Dir is the schema document directory; missing is fatal at load time.
	Dir string `yaml:"dir"`
	// BaseURL roots the default HTTP adapter.
	BaseURL string `yaml:"base_url"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format: json or console.
	Format string `yaml:"format"`
	// OutputPaths for the log stream.
	OutputPaths []string `yaml:"output_paths"`
	// EnableCaller annotates entries with caller info.
	EnableCaller bool `yaml:"enable_caller"`
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Catalog:   *catalog.DefaultConfig(),
		Executor:  *executor.DefaultConfig(),
		Retry:     *retry.DefaultPolicy(),
		RateLimit: *ratelimit.DefaultConfig(),
		Breaker:   *circuitbreaker.DefaultConfig(),
		Cache:     *cache.DefaultConfig(),
		Pool:      *transport.DefaultPoolConfig(),
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stderr"},
		},
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.Source.Dir == "" {
		errs = append(errs, "source.dir must be set")
	}
	if c.Executor.MaxPageCap > 100 {
		errs = append(errs, "executor.max_page_cap may not exceed 100")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, "rate_limit.requests_per_second must not be negative")
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not json or console", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
