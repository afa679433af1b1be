package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// circularRefKey marks a node substituted for a reference cycle. The resolver
// never recurses through a reference it is already expanding; it inlines this
// placeholder instead and logs the cycle.
const circularRefKey = "$circular"

// resolver loads raw schema documents and inlines their $ref constructs.
// Documents are parsed once and cached for the lifetime of a load pass, so
// cross-document references do not re-read files.
type resolver struct {
	baseDir string
	docs    map[string]map[string]any
	logger  *zap.Logger
}

func newResolver(baseDir string, logger *zap.Logger) *resolver {
	return &resolver{
		baseDir: baseDir,
		docs:    make(map[string]map[string]any),
		logger:  logger,
	}
}

// document parses the file at path into a raw generic structure. YAML is a
// superset of JSON here, so a single decoder covers both formats.
func (r *resolver) document(path string) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if doc, ok := r.docs[abs]; ok {
		return doc, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	r.docs[abs] = doc
	return doc, nil
}

// resolveDocument returns the document at path with every reference inlined.
func (r *resolver) resolveDocument(path string) (map[string]any, error) {
	doc, err := r.document(path)
	if err != nil {
		return nil, err
	}
	resolved := r.resolve(path, doc, map[string]bool{})
	out, ok := resolved.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document %s is not an object", path)
	}
	return out, nil
}

// resolve walks node and replaces $ref constructs with their targets. The
// visited set tracks the chain of references currently being expanded; a
// reference seen twice on the same chain is a cycle and gets the placeholder.
func (r *resolver) resolve(docPath string, node any, visited map[string]bool) any {
	switch n := node.(type) {
	case map[string]any:
		if ref, ok := n["$ref"].(string); ok {
			return r.resolveRef(docPath, ref, visited)
		}
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[k] = r.resolve(docPath, v, visited)
		}
		return out

	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = r.resolve(docPath, v, visited)
		}
		return out

	default:
		return node
	}
}

func (r *resolver) resolveRef(docPath, ref string, visited map[string]bool) any {
	targetPath, pointer, err := r.splitRef(docPath, ref)
	if err != nil {
		r.logger.Warn("unresolvable reference",
			zap.String("ref", ref),
			zap.String("document", docPath),
			zap.Error(err),
		)
		return map[string]any{circularRefKey: ref}
	}

	key := targetPath + "#" + pointer
	if visited[key] {
		r.logger.Warn("reference cycle broken",
			zap.String("ref", ref),
			zap.String("document", docPath),
		)
		return map[string]any{circularRefKey: ref}
	}

	doc, err := r.document(targetPath)
	if err != nil {
		r.logger.Warn("reference target unreadable",
			zap.String("ref", ref),
			zap.Error(err),
		)
		return map[string]any{circularRefKey: ref}
	}

	target, err := walkPointer(doc, pointer)
	if err != nil {
		r.logger.Warn("reference pointer not found",
			zap.String("ref", ref),
			zap.Error(err),
		)
		return map[string]any{circularRefKey: ref}
	}

	visited[key] = true
	resolved := r.resolve(targetPath, target, visited)
	delete(visited, key)
	return resolved
}

// splitRef separates the file and pointer parts of a reference and anchors
// external files against the referring document. External references must
// stay inside the source directory.
func (r *resolver) splitRef(docPath, ref string) (targetPath, pointer string, err error) {
	file, frag, _ := strings.Cut(ref, "#")
	if file == "" {
		targetPath = docPath
	} else {
		targetPath = filepath.Join(filepath.Dir(docPath), filepath.FromSlash(file))
		rel, relErr := filepath.Rel(r.baseDir, targetPath)
		if relErr != nil || strings.HasPrefix(rel, "..") {
			return "", "", fmt.Errorf("reference escapes source directory: %s", ref)
		}
	}
	targetPath, err = filepath.Abs(targetPath)
	if err != nil {
		return "", "", err
	}
	return targetPath, frag, nil
}

// walkPointer follows a JSON-pointer fragment ("/components/schemas/Thing")
// through a raw document.
func walkPointer(doc map[string]any, pointer string) (any, error) {
	if pointer == "" || pointer == "/" {
		return doc, nil
	}
	var node any = doc
	for _, seg := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		seg = strings.ReplaceAll(seg, "~1", "/")
		seg = strings.ReplaceAll(seg, "~0", "~")
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("pointer segment %q traverses a non-object", seg)
		}
		node, ok = obj[seg]
		if !ok {
			return nil, fmt.Errorf("pointer segment %q not found", seg)
		}
	}
	return node, nil
}
