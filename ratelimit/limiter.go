// Package ratelimit paces outbound calls with a process-local token bucket.
// Admission control is independent of retry decisions and of the remote
// dependency's own limits.
package ratelimit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config configures the token bucket.
type Config struct {
	// RequestsPerSecond is the steady refill rate.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	// Burst is the bucket capacity.
	Burst int `yaml:"burst" json:"burst"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerSecond: 10,
		Burst:             20,
	}
}

// Limiter is a token-bucket admission gate. Acquire suspends the calling
// goroutine, never busy-waits, and imposes no ordering beyond the bucket's
// periodic refill.
type Limiter struct {
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewLimiter creates a limiter.
func NewLimiter(config *Config, logger *zap.Logger) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 10
	}
	if config.Burst <= 0 {
		config.Burst = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		logger:  logger.With(zap.String("component", "rate_limiter")),
	}
}

// Acquire blocks until a token is available, then consumes it. It returns
// early only when ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit acquire: %w", err)
	}
	return nil
}

// TryAcquire consumes a token without blocking, reporting whether one was
// available.
func (l *Limiter) TryAcquire() bool {
	return l.limiter.Allow()
}

// Tokens reports the tokens currently available.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}
