package catalog

// Location identifies where a parameter is carried on the wire.
type Location string

const (
	LocationPath   Location = "path"
	LocationQuery  Location = "query"
	LocationHeader Location = "header"
)

// ParameterDescriptor describes one declared operation parameter.
type ParameterDescriptor struct {
	Name        string   `json:"name"`
	In          Location `json:"in"`
	Required    bool     `json:"required"`
	Description string   `json:"description,omitempty"`
	Schema      *Schema  `json:"schema,omitempty"`
}

// OperationEntry is one indexed (method, path) operation. Entries are built
// once per load pass and never mutated afterwards; callers must treat them as
// read-only.
type OperationEntry struct {
	// Name is the unique generated name, reproducible from the same source
	// across reloads.
	Name string `json:"name"`

	Method       string                `json:"method"`
	PathTemplate string                `json:"path"`
	BasePath     []string              `json:"base_path,omitempty"`
	Parameters   []ParameterDescriptor `json:"parameters,omitempty"`
	RequestBody  *Schema               `json:"request_body,omitempty"`
	Summary      string                `json:"summary,omitempty"`
	Namespace    string                `json:"namespace"`

	// Paginatable is set when a query parameter name matches the pagination
	// vocabulary; PaginationParam names the matched parameter.
	Paginatable     bool   `json:"paginatable"`
	PaginationParam string `json:"pagination_param,omitempty"`
}

// Parameter returns the descriptor for (name, in), or nil.
func (e *OperationEntry) Parameter(name string, in Location) *ParameterDescriptor {
	for i := range e.Parameters {
		if e.Parameters[i].Name == name && e.Parameters[i].In == in {
			return &e.Parameters[i]
		}
	}
	return nil
}

// ParametersIn returns all descriptors for one location, in declared order.
func (e *OperationEntry) ParametersIn(in Location) []ParameterDescriptor {
	var out []ParameterDescriptor
	for _, p := range e.Parameters {
		if p.In == in {
			out = append(out, p)
		}
	}
	return out
}
