package catalog

import (
	"fmt"
	"strings"
)

// operationName generates the unique operation name. The form is
// prefix_namespace_identifier, where the identifier is the document's own
// operation id or, when absent, synthesized deterministically from method and
// path. The same source input always yields the same name.
func operationName(prefix, namespace, operationID, method, path string) string {
	ident := operationID
	if ident == "" {
		ident = fmt.Sprintf("%s_%s", strings.ToLower(method), sanitizePath(path))
	}
	return sanitizeName(prefix + "_" + namespace + "_" + ident)
}

// synthesizedName ignores the declared operation id. Used as the
// deterministic fallback when two declared ids collide.
func synthesizedName(prefix, namespace, method, path string) string {
	return operationName(prefix, namespace, "", method, path)
}

func sanitizePath(path string) string {
	path = strings.ReplaceAll(path, "/", "_")
	path = strings.ReplaceAll(path, "{", "")
	path = strings.ReplaceAll(path, "}", "")
	return strings.Trim(path, "_")
}

// sanitizeName lowercases and collapses anything outside [a-z0-9_] so names
// are safe as identifiers regardless of what the document declared.
func sanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
