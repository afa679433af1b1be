// Package circuitbreaker gates calls to a remote dependency behind a
// per-key state machine. Failures accumulate in a rolling window; once the
// threshold trips, calls are rejected outright until a cool-down elapses and
// probe calls prove the dependency healthy again.
package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schwarztim/akamai-mcp-server-sub001/transport"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// attempting it.
var ErrCircuitOpen = errors.New("circuit breaker open")

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config configures a breaker.
type Config struct {
	// FailureThreshold opens the breaker when this many failures land
	// inside the rolling window.
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`
	// WindowDuration bounds the rolling failure window.
	WindowDuration time.Duration `yaml:"window_duration" json:"window_duration"`
	// OpenTimeout is how long the breaker rejects calls before probing.
	OpenTimeout time.Duration `yaml:"open_timeout" json:"open_timeout"`
	// HalfOpenMaxCalls bounds concurrent probe calls while half-open.
	HalfOpenMaxCalls int `yaml:"half_open_max_calls" json:"half_open_max_calls"`
	// SuccessThreshold closes the breaker after this many consecutive
	// probe successes.
	SuccessThreshold int `yaml:"success_threshold" json:"success_threshold"`
	// OnStateChange is invoked after each transition.
	OnStateChange func(key string, from, to State) `yaml:"-" json:"-"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold: 5,
		WindowDuration:   60 * time.Second,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 3,
		SuccessThreshold: 2,
	}
}

// Stats is a snapshot of one breaker.
type Stats struct {
	Key            string    `json:"key"`
	State          string    `json:"state"`
	WindowFailures int       `json:"window_failures"`
	Successes      int64     `json:"successes"`
	Failures       int64     `json:"failures"`
	Rejected       int64     `json:"rejected"`
	Total          int64     `json:"total"`
	LastTransition time.Time `json:"last_transition,omitempty"`
	LastOpened     time.Time `json:"last_opened,omitempty"`
}

// Breaker is the per-key state machine. State transitions are driven only by
// call outcomes or an explicit Reset.
type Breaker struct {
	key    string
	config *Config
	logger *zap.Logger
	now    func() time.Time

	mu               sync.Mutex
	state            State
	failureTimes     []time.Time
	halfOpenInFlight int
	halfOpenSuccess  int
	openedAt         time.Time
	lastTransition   time.Time

	successes int64
	failures  int64
	rejected  int64
	total     int64
}

func newBreaker(key string, config *Config, logger *zap.Logger) *Breaker {
	return &Breaker{
		key:    key,
		config: config,
		logger: logger,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Call runs fn if the breaker admits it. While open it returns
// ErrCircuitOpen immediately and fn is never invoked. No lock is held while
// fn runs.
func (b *Breaker) Call(ctx context.Context, fn func() error) error {
	_, err := b.CallWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

// CallWithResult is Call returning fn's result.
func (b *Breaker) CallWithResult(_ context.Context, fn func() (any, error)) (any, error) {
	if err := b.beforeCall(); err != nil {
		return nil, err
	}

	result, err := fn()
	b.afterCall(err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.config.OpenTimeout {
			b.setState(StateHalfOpen)
			b.halfOpenInFlight = 1
			b.halfOpenSuccess = 0
			return nil
		}
		b.rejected++
		return ErrCircuitOpen

	case StateHalfOpen:
		if b.halfOpenInFlight >= b.config.HalfOpenMaxCalls {
			b.rejected++
			return ErrCircuitOpen
		}
		b.halfOpenInFlight++
		return nil
	}
	return nil
}

func (b *Breaker) afterCall(err error) {
	failure := countsAsFailure(err)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}

	if !failure {
		b.successes++
		b.onSuccess()
		return
	}
	b.failures++
	b.onFailure()
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case StateClosed:
		// Healthy; let the window age out on its own.

	case StateHalfOpen:
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.config.SuccessThreshold {
			b.logger.Info("circuit breaker recovered",
				zap.String("key", b.key),
				zap.Int("probe_successes", b.halfOpenSuccess),
			)
			b.failureTimes = nil
			b.halfOpenSuccess = 0
			b.setState(StateClosed)
		}
	}
}

func (b *Breaker) onFailure() {
	now := b.now()

	switch b.state {
	case StateClosed:
		b.failureTimes = append(b.failureTimes, now)
		b.pruneWindow(now)
		if len(b.failureTimes) >= b.config.FailureThreshold {
			b.logger.Warn("circuit breaker opened",
				zap.String("key", b.key),
				zap.Int("window_failures", len(b.failureTimes)),
				zap.Int("threshold", b.config.FailureThreshold),
			)
			b.openedAt = now
			b.setState(StateOpen)
		}

	case StateHalfOpen:
		b.logger.Warn("circuit breaker probe failed, reopening",
			zap.String("key", b.key),
		)
		b.openedAt = now
		b.halfOpenSuccess = 0
		b.setState(StateOpen)
	}
}

// pruneWindow drops failure timestamps older than the rolling window.
func (b *Breaker) pruneWindow(now time.Time) {
	cutoff := now.Add(-b.config.WindowDuration)
	kept := b.failureTimes[:0]
	for _, t := range b.failureTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failureTimes = kept
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed and clears its history.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	from := b.state
	b.failureTimes = nil
	b.halfOpenInFlight = 0
	b.halfOpenSuccess = 0
	if from != StateClosed {
		b.setState(StateClosed)
	}
	b.logger.Info("circuit breaker reset",
		zap.String("key", b.key),
		zap.String("from_state", from.String()),
	)
}

// Stats returns a snapshot.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Key:            b.key,
		State:          b.state.String(),
		WindowFailures: len(b.failureTimes),
		Successes:      b.successes,
		Failures:       b.failures,
		Rejected:       b.rejected,
		Total:          b.total,
		LastTransition: b.lastTransition,
		LastOpened:     b.openedAt,
	}
}

// setState transitions state; callers hold b.mu.
func (b *Breaker) setState(to State) {
	from := b.state
	b.state = to
	b.lastTransition = b.now()
	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(b.key, from, to)
	}
}

// countsAsFailure decides whether an outcome harms dependency health.
// Client-side rejections (4xx other than throttling) and caller-side
// cancellations say nothing about the dependency and do not accumulate in
// the window.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var remote *transport.Error
	if errors.As(err, &remote) {
		return remote.StatusCode == http.StatusTooManyRequests ||
			remote.StatusCode >= http.StatusInternalServerError
	}
	return true
}
