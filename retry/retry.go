// Package retry wraps single remote calls with a classified retry policy:
// throttling statuses, server-side errors and transport connectivity
// failures retry with exponential backoff plus jitter; everything else
// propagates immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/schwarztim/akamai-mcp-server-sub001/transport"
)

// Policy configures retry behaviour.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt
	// (0 means a single attempt).
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// InitialDelay is the first backoff delay.
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	// MaxDelay caps the backoff.
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
	// Multiplier grows the delay each attempt.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	// Jitter adds +/-25% randomization to each delay.
	Jitter bool `yaml:"jitter" json:"jitter"`
	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-" json:"-"`
}

// DefaultPolicy returns sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer executes functions under the policy.
type Retryer interface {
	// Do runs fn, retrying retryable failures per the policy.
	Do(ctx context.Context, fn func() error) error
	// DoWithResult runs fn and returns its result.
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

type backoffRetryer struct {
	policy *Policy
	logger *zap.Logger
}

// NewRetryer creates an exponential-backoff retryer.
func NewRetryer(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 500 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backoffRetryer{policy: policy, logger: logger}
}

func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error
	var result any

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.delay(attempt)
			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}

		if !Retryable(lastErr) {
			return nil, lastErr
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr),
	)
	return nil, lastErr
}

// delay computes the backoff for the given attempt (1-based), capped at
// MaxDelay, with optional +/-25% jitter against synchronized retry storms.
func (r *backoffRetryer) delay(attempt int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if d > float64(r.policy.MaxDelay) {
		d = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		jitter := d * 0.25
		d += (rand.Float64()*2 - 1) * jitter
	}
	if d < 0 {
		d = float64(r.policy.InitialDelay)
	}
	return time.Duration(d)
}

// Retryable classifies an error. Throttling statuses, server-side 5xx and
// transport connectivity failures are retryable; everything else, including
// client-side rejections, propagates immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var remote *transport.Error
	if errors.As(err, &remote) {
		switch {
		case remote.StatusCode == http.StatusTooManyRequests:
			return true
		case remote.StatusCode == http.StatusRequestTimeout:
			return true
		case remote.StatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}

	var connectivity *transport.ConnectivityError
	if errors.As(err, &connectivity) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
