package catalog

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Config configures the registry.
type Config struct {
	// Prefix is the leading segment of every generated operation name.
	Prefix string `yaml:"prefix" json:"prefix"`
	// DefaultSearchLimit caps Search results when the filter has no limit.
	DefaultSearchLimit int `yaml:"default_search_limit" json:"default_search_limit"`
	// MaxSearchLimit is the hard ceiling any caller-supplied limit is
	// clamped to.
	MaxSearchLimit int `yaml:"max_search_limit" json:"max_search_limit"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Prefix:             "akamai",
		DefaultSearchLimit: 50,
		MaxSearchLimit:     500,
	}
}

// Filter selects operations in Search. All set fields must match (logical
// AND); zero values do not filter.
type Filter struct {
	Namespace   string
	Method      string
	Query       string
	Paginatable *bool
	Limit       int
}

// Stats summarizes the loaded catalog.
type Stats struct {
	Operations       int            `json:"operations"`
	Namespaces       int            `json:"namespaces"`
	Documents        int            `json:"documents"`
	SkippedDocuments int            `json:"skipped_documents"`
	PerNamespace     map[string]int `json:"per_namespace"`
}

// Registry indexes operations extracted from a directory of API description
// documents. Construct with NewRegistry, call Load once, then query
// concurrently; Load rebuilds the full index and swaps it in atomically.
type Registry struct {
	config *Config
	logger *zap.Logger

	mu          sync.RWMutex
	entries     map[string]*OperationEntry
	order       []string
	byNamespace map[string][]string
	byMethod    map[string][]string
	stats       Stats
}

// NewRegistry creates an empty registry.
func NewRegistry(config *Config, logger *zap.Logger) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Prefix == "" {
		config.Prefix = "akamai"
	}
	if config.DefaultSearchLimit <= 0 {
		config.DefaultSearchLimit = 50
	}
	if config.MaxSearchLimit <= 0 {
		config.MaxSearchLimit = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		config:      config,
		logger:      logger.With(zap.String("component", "catalog")),
		entries:     make(map[string]*OperationEntry),
		byNamespace: make(map[string][]string),
		byMethod:    make(map[string][]string),
	}
}

// Load ingests every schema document under sourceDir. One grouping
// subdirectory per namespace; loose files at the top level use their file
// stem as namespace. A malformed document is logged and skipped and the load
// continues; a missing source directory is fatal. Loading the same source
// again rebuilds an identical index.
func (r *Registry) Load(sourceDir string) error {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("source directory unreadable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", sourceDir)
	}

	res := newResolver(sourceDir, r.logger)

	entries := make(map[string]*OperationEntry)
	var order []string
	stats := Stats{PerNamespace: make(map[string]int)}

	docs, err := listDocuments(sourceDir)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		resolved, err := res.resolveDocument(doc.path)
		if err != nil {
			stats.SkippedDocuments++
			r.logger.Warn("skipping malformed document",
				zap.String("document", doc.path),
				zap.Error(err),
			)
			continue
		}
		stats.Documents++

		for _, entry := range r.extractEntries(resolved, doc.namespace) {
			name := entry.Name
			if _, exists := entries[name]; exists {
				// Duplicate declared operation ids fall back to the
				// deterministic method+path form.
				name = synthesizedName(r.config.Prefix, entry.Namespace, entry.Method, entry.PathTemplate)
				if _, still := entries[name]; still {
					r.logger.Warn("duplicate operation dropped",
						zap.String("name", entry.Name),
						zap.String("document", doc.path),
					)
					continue
				}
				r.logger.Debug("operation name collision",
					zap.String("declared", entry.Name),
					zap.String("assigned", name),
				)
				entry.Name = name
			}
			entries[name] = entry
			order = append(order, name)
			stats.PerNamespace[entry.Namespace]++
		}
	}

	sort.Strings(order)
	stats.Operations = len(entries)
	stats.Namespaces = len(stats.PerNamespace)

	byNamespace := make(map[string][]string)
	byMethod := make(map[string][]string)
	for _, name := range order {
		e := entries[name]
		byNamespace[e.Namespace] = append(byNamespace[e.Namespace], name)
		byMethod[e.Method] = append(byMethod[e.Method], name)
	}

	r.mu.Lock()
	r.entries = entries
	r.order = order
	r.byNamespace = byNamespace
	r.byMethod = byMethod
	r.stats = stats
	r.mu.Unlock()

	r.logger.Info("catalog loaded",
		zap.String("source", sourceDir),
		zap.Int("operations", stats.Operations),
		zap.Int("documents", stats.Documents),
		zap.Int("skipped", stats.SkippedDocuments),
	)
	return nil
}

// Get returns the operation with the exact generated name.
func (r *Registry) Get(name string) (*OperationEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Search returns operations matching every set filter field, capped at the
// filter limit (clamped to the configured maximum).
func (r *Registry) Search(filter Filter) []*OperationEntry {
	limit := filter.Limit
	if limit <= 0 {
		limit = r.config.DefaultSearchLimit
	}
	if limit > r.config.MaxSearchLimit {
		limit = r.config.MaxSearchLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := r.order
	switch {
	case filter.Namespace != "":
		candidates = r.byNamespace[filter.Namespace]
	case filter.Method != "":
		candidates = r.byMethod[strings.ToUpper(filter.Method)]
	}

	query := strings.ToLower(filter.Query)
	var out []*OperationEntry
	for _, name := range candidates {
		e := r.entries[name]
		if filter.Namespace != "" && e.Namespace != filter.Namespace {
			continue
		}
		if filter.Method != "" && !strings.EqualFold(e.Method, filter.Method) {
			continue
		}
		if filter.Paginatable != nil && e.Paginatable != *filter.Paginatable {
			continue
		}
		if query != "" && !matchesQuery(e, query) {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Stats returns load counts for the current index.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	per := make(map[string]int, len(r.stats.PerNamespace))
	for k, v := range r.stats.PerNamespace {
		per[k] = v
	}
	s := r.stats
	s.PerNamespace = per
	return s
}

func matchesQuery(e *OperationEntry, query string) bool {
	return strings.Contains(strings.ToLower(e.Name), query) ||
		strings.Contains(strings.ToLower(e.Summary), query) ||
		strings.Contains(strings.ToLower(e.PathTemplate), query)
}

type documentRef struct {
	path      string
	namespace string
}

// listDocuments collects schema files: one namespace per subdirectory, file
// stem for loose top-level files. Order is deterministic.
func listDocuments(sourceDir string) ([]documentRef, error) {
	var docs []documentRef
	err := filepath.WalkDir(sourceDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		ns := filepath.Dir(rel)
		if ns == "." {
			ns = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		} else {
			ns = strings.Split(ns, string(filepath.Separator))[0]
		}
		docs = append(docs, documentRef{path: path, namespace: sanitizeName(ns)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source directory: %w", err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].path < docs[j].path })
	return docs, nil
}

var documentMethods = []string{"get", "post", "put", "delete", "patch", "head"}

// extractEntries emits one OperationEntry per declared path x method from a
// resolved document.
func (r *Registry) extractEntries(doc map[string]any, namespace string) []*OperationEntry {
	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		return nil
	}

	base := basePathSegments(doc)

	pathNames := make([]string, 0, len(paths))
	for p := range paths {
		pathNames = append(pathNames, p)
	}
	sort.Strings(pathNames)

	var entries []*OperationEntry
	for _, path := range pathNames {
		item, ok := paths[path].(map[string]any)
		if !ok {
			continue
		}
		shared := parseParameters(item["parameters"])

		for _, method := range documentMethods {
			opNode, ok := item[method].(map[string]any)
			if !ok {
				continue
			}

			entry, err := r.buildEntry(namespace, strings.ToUpper(method), path, base, opNode, shared)
			if err != nil {
				r.logger.Warn("skipping operation",
					zap.String("namespace", namespace),
					zap.String("method", method),
					zap.String("path", path),
					zap.Error(err),
				)
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries
}

func (r *Registry) buildEntry(namespace, method, path string, base []string, opNode map[string]any, shared []ParameterDescriptor) (*OperationEntry, error) {
	opID, _ := opNode["operationId"].(string)
	summary, _ := opNode["summary"].(string)
	if summary == "" {
		summary, _ = opNode["description"].(string)
	}

	params := append(append([]ParameterDescriptor{}, shared...), parseParameters(opNode["parameters"])...)

	// Every path placeholder needs a matching descriptor.
	for _, placeholder := range pathPlaceholders(path) {
		found := false
		for _, p := range params {
			if p.In == LocationPath && p.Name == placeholder {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("path placeholder {%s} has no parameter descriptor", placeholder)
		}
	}

	entry := &OperationEntry{
		Name:         operationName(r.config.Prefix, namespace, opID, method, path),
		Method:       method,
		PathTemplate: path,
		BasePath:     base,
		Parameters:   params,
		RequestBody:  requestBodySchema(opNode),
		Summary:      summary,
		Namespace:    namespace,
	}
	if param, ok := DetectPaginationParam(entry); ok {
		entry.Paginatable = true
		entry.PaginationParam = param
	}
	return entry, nil
}

func parseParameters(raw any) []ParameterDescriptor {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var params []ParameterDescriptor
	for _, item := range list {
		node, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := node["name"].(string)
		in, _ := node["in"].(string)
		loc := Location(strings.ToLower(in))
		if name == "" {
			continue
		}
		if loc != LocationPath && loc != LocationQuery && loc != LocationHeader {
			continue
		}
		required, _ := node["required"].(bool)
		desc, _ := node["description"].(string)
		params = append(params, ParameterDescriptor{
			Name:        name,
			In:          loc,
			Required:    required || loc == LocationPath,
			Description: desc,
			Schema:      schemaFromRaw(node["schema"]),
		})
	}
	return params
}

func requestBodySchema(opNode map[string]any) *Schema {
	body, ok := opNode["requestBody"].(map[string]any)
	if !ok {
		return nil
	}
	content, ok := body["content"].(map[string]any)
	if !ok {
		return nil
	}
	for _, mediaType := range []string{"application/json", "application/merge-patch+json"} {
		if mt, ok := content[mediaType].(map[string]any); ok {
			if s := schemaFromRaw(mt["schema"]); s != nil {
				return s
			}
		}
	}
	// Fall back to the first media type with a schema.
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if mt, ok := content[k].(map[string]any); ok {
			if s := schemaFromRaw(mt["schema"]); s != nil {
				return s
			}
		}
	}
	return nil
}

// basePathSegments extracts base path segments from swagger basePath or the
// first server URL.
func basePathSegments(doc map[string]any) []string {
	if bp, ok := doc["basePath"].(string); ok && bp != "" && bp != "/" {
		return splitSegments(bp)
	}
	servers, ok := doc["servers"].([]any)
	if !ok || len(servers) == 0 {
		return nil
	}
	first, ok := servers[0].(map[string]any)
	if !ok {
		return nil
	}
	raw, _ := first["url"].(string)
	if raw == "" {
		return nil
	}
	if u, err := url.Parse(raw); err == nil && u.Path != "" && u.Path != "/" {
		return splitSegments(u.Path)
	}
	return nil
}

func splitSegments(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// pathPlaceholders returns the {param} names in declaration order.
func pathPlaceholders(path string) []string {
	var out []string
	for {
		start := strings.IndexByte(path, '{')
		if start < 0 {
			return out
		}
		end := strings.IndexByte(path[start:], '}')
		if end < 0 {
			return out
		}
		out = append(out, path[start+1:start+end])
		path = path[start+end+1:]
	}
}
