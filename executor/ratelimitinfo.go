package executor

import (
	"net/http"
	"strconv"
	"time"
)

// Header name candidates for admission-limit telemetry. Lookup through
// http.Header.Get is already case-insensitive.
var (
	limitHeaderNames     = []string{"X-RateLimit-Limit", "X-Rate-Limit-Limit", "RateLimit-Limit"}
	remainingHeaderNames = []string{"X-RateLimit-Remaining", "X-Rate-Limit-Remaining", "RateLimit-Remaining"}
	resetHeaderNames     = []string{"X-RateLimit-Reset", "X-Rate-Limit-Reset", "RateLimit-Reset"}
)

// parseRateLimitInfo extracts remote rate-limit telemetry from response
// headers, best effort. It returns nil when no recognized header is present;
// absence is not an error.
func parseRateLimitInfo(headers http.Header) *RateLimitInfo {
	info := &RateLimitInfo{}
	found := false

	if v, ok := firstIntHeader(headers, limitHeaderNames); ok {
		info.Limit = v
		found = true
	}
	if v, ok := firstIntHeader(headers, remainingHeaderNames); ok {
		info.Remaining = v
		found = true
	}
	if v, ok := firstIntHeader(headers, resetHeaderNames); ok {
		info.Reset = resetTime(v)
		found = true
	}

	if !found {
		return nil
	}
	return info
}

func firstIntHeader(headers http.Header, names []string) (int, bool) {
	for _, name := range names {
		raw := headers.Get(name)
		if raw == "" {
			continue
		}
		if v, err := strconv.Atoi(raw); err == nil {
			return v, true
		}
	}
	return 0, false
}

// resetTime interprets a reset value as either a Unix timestamp or a
// delta-seconds count, whichever reading is plausible.
func resetTime(v int) time.Time {
	const epochThreshold = 1_000_000_000
	if v >= epochThreshold {
		return time.Unix(int64(v), 0)
	}
	return time.Now().Add(time.Duration(v) * time.Second)
}
