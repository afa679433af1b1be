package executor

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnsupportedMethod is returned when an operation declares an HTTP method
// the transport adapter has no verb for.
var ErrUnsupportedMethod = errors.New("unsupported HTTP method")

// ValidationError reports a request that cannot be satisfied: a required
// value is missing or a path placeholder stayed unresolved. Validation
// failures are never retried and the transport adapter is never invoked.
type ValidationError struct {
	Field  string
	In     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s parameter %q %s", e.In, e.Field, e.Reason)
}

func missingParameter(in, name string) *ValidationError {
	return &ValidationError{Field: name, In: in, Reason: "is required"}
}

func missingPathPlaceholder(name string) *ValidationError {
	return &ValidationError{Field: name, In: "path", Reason: "placeholder unresolved"}
}

// Request carries the caller-supplied values for one execution.
type Request struct {
	PathParams  map[string]string `json:"path_params,omitempty"`
	QueryParams map[string]any    `json:"query_params,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        any               `json:"body,omitempty"`

	// Paginate asks for the multi-page loop; it only engages when the
	// operation is paginatable.
	Paginate bool `json:"paginate,omitempty"`
	// MaxPages overrides the default page cap, clamped to the hard ceiling.
	MaxPages int `json:"max_pages,omitempty"`
}

// PageInfo reports what the pagination loop fetched. TotalItems is the
// API-declared total when one was present; it is reported as-is, never
// reconciled against Items.
type PageInfo struct {
	Pages      int `json:"pages"`
	Items      int `json:"items"`
	TotalItems int `json:"total_items,omitempty"`
}

// RateLimitInfo is best-effort admission telemetry parsed from response
// headers. Absence of any field is not an error.
type RateLimitInfo struct {
	Limit     int       `json:"limit,omitempty"`
	Remaining int       `json:"remaining,omitempty"`
	Reset     time.Time `json:"reset,omitempty"`
}

// Result is the outcome of one execution.
type Result struct {
	Status        int            `json:"status"`
	Headers       http.Header    `json:"headers,omitempty"`
	Body          any            `json:"body,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Cached        bool           `json:"cached,omitempty"`
	Pagination    *PageInfo      `json:"pagination,omitempty"`
	RateLimit     *RateLimitInfo `json:"rate_limit,omitempty"`
}
