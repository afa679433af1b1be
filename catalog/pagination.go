package catalog

import "strings"

// paginationMarkers is the fixed vocabulary of query parameter name fragments
// that mark an operation as paginatable. Checked in order: cursor-style
// parameters win over offset- and page-style ones, so the executor merges the
// continuation value into the most specific parameter available.
var paginationMarkers = []string{"cursor", "offset", "page", "limit"}

// DetectPaginationParam returns the name of the query parameter that drives
// pagination for op, if any. Detection is a case-insensitive substring match
// against a fixed vocabulary; false negatives are accepted over false
// positives, so an API using an unlisted parameter name behaves as
// single-page. The function is pure and replaceable with a declarative
// override table without touching the executor.
func DetectPaginationParam(op *OperationEntry) (string, bool) {
	for _, marker := range paginationMarkers {
		for _, p := range op.Parameters {
			if p.In != LocationQuery {
				continue
			}
			if strings.Contains(strings.ToLower(p.Name), marker) {
				return p.Name, true
			}
		}
	}
	return "", false
}
