package executor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"go.uber.org/zap"

	"github.com/schwarztim/akamai-mcp-server-sub001/catalog"
)

// Conventional field vocabularies for page interpretation. An API using an
// unlisted field name silently behaves as single-page; that limitation is
// deliberate and documented rather than guessed around.
var (
	itemFieldNames   = []string{"items", "results", "data", "records", "list"}
	moreFieldNames   = []string{"more", "hasMore", "has_more"}
	cursorFieldNames = []string{"next", "nextCursor", "next_cursor", "nextToken", "next_token", "nextPage", "next_page", "nextPageToken"}
	totalFieldNames  = []string{"totalItems", "total_items", "totalCount", "total_count", "total"}
)

// paginate drives the multi-page loop. Pages are fetched strictly
// sequentially: page N+1 is never requested before page N's continuation
// signal is known. A failing page aborts the whole loop and discards
// everything accumulated so far.
func (e *Executor) paginate(ctx context.Context, op *catalog.OperationEntry, path string, query url.Values, headers http.Header, req *Request) (*Result, error) {
	limit := e.pageCap(req.MaxPages)

	var items []any
	var last *Result
	cursor := ""
	pages := 0
	total := 0

	for pages < limit {
		q := cloneValues(query)
		if cursor != "" {
			q.Set(op.PaginationParam, cursor)
		}

		resp, err := e.call(ctx, op, path, req.Body, q, headers)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pages+1, err)
		}
		pages++
		if e.metrics != nil {
			e.metrics.RecordPage()
		}

		last = &Result{
			Status:        resp.StatusCode,
			Headers:       resp.Headers,
			CorrelationID: correlationID(resp.Headers),
			RateLimit:     parseRateLimitInfo(resp.Headers),
		}

		items = append(items, extractItems(resp.Body)...)
		if pages == 1 {
			total = extractTotal(resp.Body)
		}

		more, next := continuation(resp.Body)
		if !more {
			break
		}
		if next != "" {
			cursor = next
		}
	}

	e.logger.Debug("pagination complete",
		zap.String("operation", op.Name),
		zap.Int("pages", pages),
		zap.Int("items", len(items)),
	)

	last.Body = items
	last.Pagination = &PageInfo{
		Pages:      pages,
		Items:      len(items),
		TotalItems: total,
	}
	return last, nil
}

// pageCap clamps the caller's page cap to the hard ceiling.
func (e *Executor) pageCap(requested int) int {
	if requested <= 0 {
		return e.config.DefaultPageCap
	}
	if requested > e.config.MaxPageCap {
		return e.config.MaxPageCap
	}
	return requested
}

// extractItems pulls the item slice out of one page body: an array-valued
// body first, then the conventional field names, then the first array-valued
// field by sorted key order.
func extractItems(body any) []any {
	if arr, ok := body.([]any); ok {
		return arr
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return nil
	}

	for _, name := range itemFieldNames {
		if arr, ok := obj[name].([]any); ok {
			return arr
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if arr, ok := obj[k].([]any); ok {
			return arr
		}
	}
	return nil
}

// continuation reads the page's "fetch more" signal: a true boolean more
// field or a non-null next-cursor field. A bare boolean keeps the loop going
// with the previous cursor; the page cap bounds it either way.
func continuation(body any) (more bool, next string) {
	obj, ok := body.(map[string]any)
	if !ok {
		return false, ""
	}

	for _, name := range cursorFieldNames {
		if v, ok := obj[name]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				next = s
				break
			}
		}
	}

	for _, name := range moreFieldNames {
		if b, ok := obj[name].(bool); ok && b {
			more = true
			break
		}
	}
	if next != "" {
		more = true
	}
	return more, next
}

// extractTotal reads the API-declared total item count, when present.
func extractTotal(body any) int {
	obj, ok := body.(map[string]any)
	if !ok {
		return 0
	}
	for _, name := range totalFieldNames {
		switch v := obj[name].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for k, v := range values {
		out[k] = append([]string(nil), v...)
	}
	return out
}
