// Package executor turns an indexed operation plus caller-supplied
// parameters into a correctly shaped, authenticated, paginated,
// fault-tolerant remote call. Request assembly enforces a header allowlist
// and validates every required value before the transport adapter is ever
// invoked.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/schwarztim/akamai-mcp-server-sub001/catalog"
	"github.com/schwarztim/akamai-mcp-server-sub001/circuitbreaker"
	"github.com/schwarztim/akamai-mcp-server-sub001/internal/cache"
	"github.com/schwarztim/akamai-mcp-server-sub001/internal/metrics"
	"github.com/schwarztim/akamai-mcp-server-sub001/ratelimit"
	"github.com/schwarztim/akamai-mcp-server-sub001/retry"
	"github.com/schwarztim/akamai-mcp-server-sub001/transport"
)

// baseHeaderAllowlist is the fixed set of caller header names forwarded to
// the remote API. Everything else is dropped and logged, never silently
// forwarded. Config may extend the set but never shrink it.
var baseHeaderAllowlist = []string{
	"accept",
	"accept-encoding",
	"authorization",
	"content-type",
	"if-match",
	"if-none-match",
	"papi-use-prefixes",
	"user-agent",
}

// Config configures the executor.
type Config struct {
	// DefaultPageCap bounds pagination when the caller sets no cap.
	DefaultPageCap int `yaml:"default_page_cap" json:"default_page_cap"`
	// MaxPageCap is the hard ceiling any caller cap is clamped to.
	MaxPageCap int `yaml:"max_page_cap" json:"max_page_cap"`
	// CacheTTL applies to cacheable responses.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	// ExtraAllowedHeaders extends the header allowlist.
	ExtraAllowedHeaders []string `yaml:"extra_allowed_headers" json:"extra_allowed_headers"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultPageCap: 10,
		MaxPageCap:     100,
		CacheTTL:       5 * time.Minute,
	}
}

// Options carries the executor's collaborators. Adapter is mandatory; every
// reliability collaborator is optional and simply skipped when nil, so tests
// wire exactly what they exercise.
type Options struct {
	Adapter  transport.Adapter
	Limiter  *ratelimit.Limiter
	Breakers *circuitbreaker.Manager
	Retry    *retry.Policy
	Cache    *cache.Cache
	Metrics  *metrics.Collector
	// Pool is the connection pool behind the adapter, when the caller wants
	// its in-flight count published as a gauge.
	Pool *transport.Pool
}

// Executor executes indexed operations.
type Executor struct {
	config    *Config
	adapter   transport.Adapter
	limiter   *ratelimit.Limiter
	breakers  *circuitbreaker.Manager
	retryPol  *retry.Policy
	cache     *cache.Cache
	metrics   *metrics.Collector
	pool      *transport.Pool
	tracer    trace.Tracer
	allowlist map[string]bool
	logger    *zap.Logger
}

// New creates an executor.
func New(config *Config, opts Options, logger *zap.Logger) (*Executor, error) {
	if opts.Adapter == nil {
		return nil, errors.New("executor requires a transport adapter")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.DefaultPageCap <= 0 {
		config.DefaultPageCap = 10
	}
	if config.MaxPageCap <= 0 || config.MaxPageCap > 100 {
		config.MaxPageCap = 100
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowlist := make(map[string]bool, len(baseHeaderAllowlist)+len(config.ExtraAllowedHeaders))
	for _, h := range baseHeaderAllowlist {
		allowlist[h] = true
	}
	for _, h := range config.ExtraAllowedHeaders {
		allowlist[strings.ToLower(h)] = true
	}

	if opts.Metrics != nil && opts.Breakers != nil {
		opts.Breakers.OnStateChange(func(key string, _, to circuitbreaker.State) {
			opts.Metrics.RecordBreakerTransition(key, to.String())
		})
	}

	return &Executor{
		config:    config,
		adapter:   opts.Adapter,
		limiter:   opts.Limiter,
		breakers:  opts.Breakers,
		retryPol:  opts.Retry,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		pool:      opts.Pool,
		tracer:    otel.Tracer("executor"),
		allowlist: allowlist,
		logger:    logger.With(zap.String("component", "executor")),
	}, nil
}

// Execute runs one operation. It fails with a *ValidationError before any
// network call when a required value is missing or a path placeholder stays
// unresolved.
func (e *Executor) Execute(ctx context.Context, op *catalog.OperationEntry, req *Request) (*Result, error) {
	if req == nil {
		req = &Request{}
	}

	ctx, span := e.tracer.Start(ctx, "execute",
		trace.WithAttributes(
			attribute.String("operation", op.Name),
			attribute.String("http.method", op.Method),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := e.execute(ctx, op, req)

	outcome := "success"
	if err != nil {
		outcome = classifyOutcome(err)
		span.RecordError(err)
	}
	if e.metrics != nil {
		e.metrics.RecordExecution(op.Name, outcome, time.Since(start))
		if e.pool != nil {
			e.metrics.SetPoolInFlight(e.pool.Stats().InFlight)
		}
	}
	return result, err
}

func (e *Executor) execute(ctx context.Context, op *catalog.OperationEntry, req *Request) (*Result, error) {
	headers := e.buildHeaders(op, req)
	query := stringifyQuery(req.QueryParams)

	if err := e.validate(op, req, query, headers); err != nil {
		return nil, err
	}

	path, err := buildPath(op, req.PathParams)
	if err != nil {
		return nil, err
	}

	if req.Paginate && op.Paginatable {
		return e.paginate(ctx, op, path, query, headers, req)
	}

	cacheKey := ""
	if e.cacheable(op) {
		cacheKey = cache.Key(op.Name, canonicalParams(req, query))
		if entry, err := e.cache.Get(ctx, cacheKey); err == nil {
			if cached, ok := entry.Value.(*cachedResult); ok {
				if e.metrics != nil {
					e.metrics.RecordCacheHit()
				}
				return cached.result(), nil
			}
		}
		if e.metrics != nil {
			e.metrics.RecordCacheMiss()
		}
	}

	resp, err := e.call(ctx, op, path, req.Body, query, headers)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Status:        resp.StatusCode,
		Headers:       resp.Headers,
		Body:          resp.Body,
		CorrelationID: correlationID(resp.Headers),
		RateLimit:     parseRateLimitInfo(resp.Headers),
	}

	if cacheKey != "" && resp.StatusCode < http.StatusMultipleChoices {
		if err := e.cache.Set(ctx, cacheKey, newCachedResult(result), e.config.CacheTTL); err != nil {
			e.logger.Warn("response cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

// buildHeaders assembles the outgoing header set: auto-injected defaults
// first, caller headers merged on top through the allowlist. Rejected
// headers are dropped with a logged trace.
func (e *Executor) buildHeaders(op *catalog.OperationEntry, req *Request) http.Header {
	headers := http.Header{}
	headers.Set("Accept", "application/json")
	if op.RequestBody != nil || req.Body != nil {
		headers.Set("Content-Type", "application/json")
	}

	// Declared header parameters with schema defaults are injected so they
	// can satisfy their own required flag.
	for _, p := range op.ParametersIn(catalog.LocationHeader) {
		if p.Schema != nil && p.Schema.Default != nil {
			headers.Set(p.Name, fmt.Sprint(p.Schema.Default))
		}
	}

	for name, value := range req.Headers {
		if !e.headerAllowed(name) {
			e.logger.Warn("header rejected by allowlist",
				zap.String("header", name),
			)
			continue
		}
		headers.Set(name, value)
	}
	return headers
}

func (e *Executor) headerAllowed(name string) bool {
	lower := strings.ToLower(name)
	return e.allowlist[lower] || strings.HasPrefix(lower, "akamai-")
}

// validate checks every required descriptor against the values that will
// actually go on the wire: the stringified query (so an explicit nil never
// satisfies a requirement) and the merged header set (so auto-injected
// headers do).
func (e *Executor) validate(op *catalog.OperationEntry, req *Request, query url.Values, headers http.Header) error {
	for _, p := range op.Parameters {
		if !p.Required {
			continue
		}
		switch p.In {
		case catalog.LocationPath:
			if req.PathParams[p.Name] == "" {
				return missingParameter("path", p.Name)
			}
		case catalog.LocationQuery:
			if _, ok := query[p.Name]; !ok {
				return missingParameter("query", p.Name)
			}
		case catalog.LocationHeader:
			if headers.Get(p.Name) == "" {
				return missingParameter("header", p.Name)
			}
		}
	}
	return nil
}

// buildPath substitutes placeholders with percent-encoded values and
// prepends the document's base path. Any placeholder left after
// substitution is a validation failure.
func buildPath(op *catalog.OperationEntry, pathParams map[string]string) (string, error) {
	path := op.PathTemplate
	for name, value := range pathParams {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}

	if start := strings.IndexByte(path, '{'); start >= 0 {
		name := path[start+1:]
		if end := strings.IndexByte(name, '}'); end >= 0 {
			name = name[:end]
		}
		return "", missingPathPlaceholder(name)
	}

	if len(op.BasePath) > 0 {
		path = "/" + strings.Join(op.BasePath, "/") + path
	}
	return path, nil
}

// stringifyQuery renders caller query values as strings; slices join with
// commas, nil values are dropped.
func stringifyQuery(params map[string]any) url.Values {
	query := url.Values{}
	for name, value := range params {
		switch v := value.(type) {
		case nil:
		case string:
			query.Set(name, v)
		case []string:
			query.Set(name, strings.Join(v, ","))
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			query.Set(name, strings.Join(parts, ","))
		default:
			query.Set(name, fmt.Sprint(v))
		}
	}
	return query
}

// call drives one remote call through the reliability layer: circuit breaker
// outermost, retry inside it, with every attempt paced by the admission
// limiter. No lock is held across the network boundary.
func (e *Executor) call(ctx context.Context, op *catalog.OperationEntry, path string, body any, query url.Values, headers http.Header) (*transport.Response, error) {
	attempt := func() (any, error) {
		if e.limiter != nil {
			if err := e.limiter.Acquire(ctx); err != nil {
				return nil, err
			}
		}
		return e.dispatch(ctx, op, path, body, query, headers)
	}

	retried := func() (any, error) {
		pol := e.retryPol
		if pol == nil {
			return attempt()
		}
		p := *pol
		p.OnRetry = func(n int, err error, delay time.Duration) {
			if e.metrics != nil {
				e.metrics.RecordRetry(op.Name)
			}
			if pol.OnRetry != nil {
				pol.OnRetry(n, err, delay)
			}
		}
		return retry.NewRetryer(&p, e.logger).DoWithResult(ctx, attempt)
	}

	var raw any
	var err error
	if e.breakers != nil {
		raw, err = e.breakers.Get(op.Namespace).CallWithResult(ctx, retried)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) && e.metrics != nil {
			e.metrics.RecordBreakerRejection(op.Namespace)
		}
	} else {
		raw, err = retried()
	}
	if err != nil {
		return nil, err
	}
	return raw.(*transport.Response), nil
}

// dispatch maps the operation's HTTP method onto the adapter's four verbs.
// Unsupported methods fail fast.
func (e *Executor) dispatch(ctx context.Context, op *catalog.OperationEntry, path string, body any, query url.Values, headers http.Header) (*transport.Response, error) {
	switch op.Method {
	case http.MethodGet:
		return e.adapter.Retrieve(ctx, path, query, headers)
	case http.MethodPost:
		return e.adapter.Create(ctx, path, body, query, headers)
	case http.MethodPut, http.MethodPatch:
		return e.adapter.Replace(ctx, path, body, query, headers)
	case http.MethodDelete:
		return e.adapter.Remove(ctx, path, query, headers)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, op.Method)
	}
}

// cacheable limits memoization to read-style single calls.
func (e *Executor) cacheable(op *catalog.OperationEntry) bool {
	return e.cache != nil && op.Method == http.MethodGet
}

func canonicalParams(req *Request, query url.Values) map[string]string {
	params := make(map[string]string, len(req.PathParams)+len(query))
	for k, v := range req.PathParams {
		params["path:"+k] = v
	}
	for k := range query {
		params["query:"+k] = query.Get(k)
	}
	return params
}

// correlationID prefers an id echoed by the remote API; otherwise one is
// generated so every result stays traceable.
func correlationID(headers http.Header) string {
	for _, name := range []string{"X-Request-Id", "X-Correlation-Id", "X-Trace-Id"} {
		if v := headers.Get(name); v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func classifyOutcome(err error) string {
	var validation *ValidationError
	switch {
	case errors.As(err, &validation):
		return "validation_failure"
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return "circuit_open"
	default:
		var remote *transport.Error
		if errors.As(err, &remote) {
			return "remote_rejection"
		}
		return "transport_failure"
	}
}

// cachedResult keeps enough of a Result to rebuild a hit without sharing
// mutable state between callers.
type cachedResult struct {
	Status        int
	Headers       http.Header
	Body          any
	CorrelationID string
	RateLimit     *RateLimitInfo
}

func newCachedResult(r *Result) *cachedResult {
	return &cachedResult{
		Status:        r.Status,
		Headers:       r.Headers,
		Body:          r.Body,
		CorrelationID: r.CorrelationID,
		RateLimit:     r.RateLimit,
	}
}

func (c *cachedResult) result() *Result {
	return &Result{
		Status:        c.Status,
		Headers:       c.Headers,
		Body:          c.Body,
		CorrelationID: c.CorrelationID,
		RateLimit:     c.RateLimit,
		Cached:        true,
	}
}
