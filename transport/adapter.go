// Package transport defines the boundary between the executor and the
// mechanism that actually sends HTTP requests. The concrete signed transport
// is an external collaborator; this package carries the adapter interface,
// the typed failures it raises, a connection pool, and a plain unsigned
// adapter used as the default collaborator in tests and local development.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Response is the parsed outcome of one remote call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       any
}

// Adapter sends assembled requests to the remote API. Implementations own
// signing and socket management; the executor only composes requests and
// interprets responses.
type Adapter interface {
	// Retrieve performs a read (GET).
	Retrieve(ctx context.Context, path string, query url.Values, headers http.Header) (*Response, error)
	// Create performs a creation (POST).
	Create(ctx context.Context, path string, body any, query url.Values, headers http.Header) (*Response, error)
	// Replace performs a replacement-style write. The executor routes both
	// PUT and PATCH operations here; implementations that must preserve
	// merge-patch semantics should key the wire method off the Content-Type
	// header (application/merge-patch+json) rather than assume a full PUT.
	Replace(ctx context.Context, path string, body any, query url.Values, headers http.Header) (*Response, error)
	// Remove performs a deletion (DELETE).
	Remove(ctx context.Context, path string, query url.Values, headers http.Header) (*Response, error)
}

// Error is a remote rejection: the call completed and the API answered with
// an error status. It preserves the original status, body and headers so
// callers never see a downgraded generic failure.
type Error struct {
	StatusCode int
	Body       any
	Headers    http.Header
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote rejection: status %d", e.StatusCode)
}

// ConnectivityError wraps a transport-level failure (timeout, connection
// reset, DNS) where no HTTP status was obtained.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }
