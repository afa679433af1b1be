package transport

import (
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// PoolConfig configures the connection pool.
type PoolConfig struct {
	// MaxConns bounds concurrent sockets per host.
	MaxConns int `yaml:"max_conns" json:"max_conns"`
	// MaxIdleConns bounds idle sockets kept for reuse.
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`
	// IdleTimeout recycles sockets idle longer than this.
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	// RequestTimeout bounds one round trip end to end.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// UtilizationWarn logs a warning when in-flight/max exceeds this ratio.
	UtilizationWarn float64 `yaml:"utilization_warn" json:"utilization_warn"`
}

// DefaultPoolConfig returns sensible defaults.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxConns:        64,
		MaxIdleConns:    16,
		IdleTimeout:     90 * time.Second,
		RequestTimeout:  30 * time.Second,
		UtilizationWarn: 0.8,
	}
}

// PoolStats is a read-only utilization snapshot. Socket accounting is owned
// by the net/http transport; the pool only observes in-flight request counts.
type PoolStats struct {
	InFlight    int64   `json:"in_flight"`
	MaxConns    int     `json:"max_conns"`
	Utilization float64 `json:"utilization"`
	Requests    int64   `json:"requests"`
}

// Pool owns one keep-alive HTTP transport with bounded concurrent and idle
// sockets, amortizing connection setup across calls.
type Pool struct {
	config    *PoolConfig
	transport *http.Transport
	client    *http.Client
	logger    *zap.Logger

	inFlight atomic.Int64
	requests atomic.Int64
}

// NewPool creates a connection pool.
func NewPool(config *PoolConfig, logger *zap.Logger) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if config.MaxConns <= 0 {
		config.MaxConns = 64
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 16
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 90 * time.Second
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.UtilizationWarn <= 0 || config.UtilizationWarn > 1 {
		config.UtilizationWarn = 0.8
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:     config.MaxConns,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConns,
		IdleConnTimeout:     config.IdleTimeout,
		DisableKeepAlives:   false,
	}

	p := &Pool{
		config:    config,
		transport: transport,
		logger:    logger.With(zap.String("component", "connection_pool")),
	}
	p.client = &http.Client{
		Transport: roundTripFunc(p.roundTrip),
		Timeout:   config.RequestTimeout,
	}
	return p
}

// Client returns the pooled HTTP client.
func (p *Pool) Client() *http.Client { return p.client }

// Stats returns the current utilization snapshot.
func (p *Pool) Stats() PoolStats {
	inFlight := p.inFlight.Load()
	return PoolStats{
		InFlight:    inFlight,
		MaxConns:    p.config.MaxConns,
		Utilization: float64(inFlight) / float64(p.config.MaxConns),
		Requests:    p.requests.Load(),
	}
}

// Prune recycles idle sockets immediately.
func (p *Pool) Prune() {
	p.transport.CloseIdleConnections()
	p.logger.Debug("idle connections pruned")
}

func (p *Pool) roundTrip(req *http.Request) (*http.Response, error) {
	inFlight := p.inFlight.Add(1)
	p.requests.Add(1)
	defer p.inFlight.Add(-1)

	if util := float64(inFlight) / float64(p.config.MaxConns); util >= p.config.UtilizationWarn {
		p.logger.Warn("connection pool utilization high",
			zap.Int64("in_flight", inFlight),
			zap.Int("max_conns", p.config.MaxConns),
			zap.Float64("utilization", util),
		)
	}
	return p.transport.RoundTrip(req)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
