package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// HTTPAdapter is a plain, unsigned Adapter over a pooled HTTP client. The
// production deployment substitutes a signing adapter behind the same
// interface; this one serves tests and local development against unsecured
// endpoints.
type HTTPAdapter struct {
	baseURL string
	pool    *Pool
	logger  *zap.Logger
}

// NewHTTPAdapter creates an adapter rooted at baseURL.
func NewHTTPAdapter(baseURL string, pool *Pool, logger *zap.Logger) *HTTPAdapter {
	if pool == nil {
		pool = NewPool(nil, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		pool:    pool,
		logger:  logger.With(zap.String("component", "http_adapter")),
	}
}

func (a *HTTPAdapter) Retrieve(ctx context.Context, path string, query url.Values, headers http.Header) (*Response, error) {
	return a.do(ctx, http.MethodGet, path, nil, query, headers)
}

func (a *HTTPAdapter) Create(ctx context.Context, path string, body any, query url.Values, headers http.Header) (*Response, error) {
	return a.do(ctx, http.MethodPost, path, body, query, headers)
}

// Replace always issues a PUT; see Adapter.Replace for the merge-patch
// caveat a signing adapter must handle.
func (a *HTTPAdapter) Replace(ctx context.Context, path string, body any, query url.Values, headers http.Header) (*Response, error) {
	return a.do(ctx, http.MethodPut, path, body, query, headers)
}

func (a *HTTPAdapter) Remove(ctx context.Context, path string, query url.Values, headers http.Header) (*Response, error) {
	return a.do(ctx, http.MethodDelete, path, nil, query, headers)
}

func (a *HTTPAdapter) do(ctx context.Context, method, path string, body any, query url.Values, headers http.Header) (*Response, error) {
	endpoint := a.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.pool.Client().Do(req)
	if err != nil {
		return nil, &ConnectivityError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectivityError{Op: method + " " + path, Err: err}
	}

	parsed := parseBody(data)
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Body:       parsed,
			Headers:    resp.Header,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       parsed,
	}, nil
}

// parseBody decodes JSON bodies; anything else comes back as the raw string.
func parseBody(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err == nil {
		return parsed
	}
	return string(data)
}
