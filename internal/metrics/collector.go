// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates Prometheus metrics for the operation core. Construct
// one per process with an explicit registerer; tests pass a fresh registry
// instead of resetting shared global state.
type Collector struct {
	executionsTotal    *prometheus.CounterVec
	executionDuration  *prometheus.HistogramVec
	retriesTotal       *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
	breakerRejected    *prometheus.CounterVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	pagesFetched       prometheus.Counter
	poolInFlight       prometheus.Gauge

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered against reg. A nil reg
// uses the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.executionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total operation executions by outcome",
		},
		[]string{"operation", "outcome"},
	)

	c.executionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Operation execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	c.retriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total retry attempts by operation",
		},
		[]string{"operation"},
	)

	c.breakerTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"key", "to"},
	)

	c.breakerRejected = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_rejected_total",
			Help:      "Calls rejected while a breaker was open",
		},
		[]string{"key"},
	)

	c.cacheHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "response_cache_hits_total",
		Help:      "Response cache hits",
	})

	c.cacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "response_cache_misses_total",
		Help:      "Response cache misses",
	})

	c.pagesFetched = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_fetched_total",
		Help:      "Result pages fetched during paginated executions",
	})

	c.poolInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connection_pool_in_flight",
		Help:      "Requests currently in flight through the connection pool",
	})

	return c
}

// RecordExecution records one finished execution.
func (c *Collector) RecordExecution(operation, outcome string, duration time.Duration) {
	c.executionsTotal.WithLabelValues(operation, outcome).Inc()
	c.executionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt.
func (c *Collector) RecordRetry(operation string) {
	c.retriesTotal.WithLabelValues(operation).Inc()
}

// RecordBreakerTransition records a breaker state change.
func (c *Collector) RecordBreakerTransition(key, to string) {
	c.breakerTransitions.WithLabelValues(key, to).Inc()
}

// RecordBreakerRejection records a call rejected by an open breaker.
func (c *Collector) RecordBreakerRejection(key string) {
	c.breakerRejected.WithLabelValues(key).Inc()
}

// RecordCacheHit records a response cache hit.
func (c *Collector) RecordCacheHit() { c.cacheHits.Inc() }

// RecordCacheMiss records a response cache miss.
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Inc() }

// RecordPage records one fetched result page.
func (c *Collector) RecordPage() { c.pagesFetched.Inc() }

// SetPoolInFlight publishes the pool's in-flight request count.
func (c *Collector) SetPoolInFlight(n int64) { c.poolInFlight.Set(float64(n)) }
