package catalog

import "strings"

// SchemaKind tags the variant of a value schema.
type SchemaKind string

const (
	KindString  SchemaKind = "string"
	KindNumber  SchemaKind = "number"
	KindBoolean SchemaKind = "boolean"
	KindObject  SchemaKind = "object"
	KindArray   SchemaKind = "array"
	KindUnion   SchemaKind = "union"
)

// Schema is a tagged-variant value schema built once at load time from the
// resolved document. It covers reference resolution, type extraction and
// required-ness; anything dialect-specific beyond that is intentionally
// dropped.
type Schema struct {
	Kind        SchemaKind         `json:"kind"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Variants    []*Schema          `json:"variants,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
	Default     any                `json:"default,omitempty"`
}

// schemaFromRaw converts one resolved schema node into its tagged variant.
// It is a pure recursive walk with no special-casing per API; unknown or
// missing types default to string, which keeps callers able to stringify
// any value they are handed.
func schemaFromRaw(raw any) *Schema {
	node, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	s := &Schema{}
	if d, ok := node["description"].(string); ok {
		s.Description = d
	}
	if def, ok := node["default"]; ok {
		s.Default = def
	}
	if enum, ok := node["enum"].([]any); ok {
		s.Enum = enum
	}

	if variants := unionVariants(node); len(variants) > 0 {
		s.Kind = KindUnion
		s.Variants = variants
		return s
	}

	typ, _ := node["type"].(string)
	switch strings.ToLower(typ) {
	case "number", "integer":
		s.Kind = KindNumber
	case "boolean":
		s.Kind = KindBoolean
	case "array":
		s.Kind = KindArray
		if items := schemaFromRaw(node["items"]); items != nil {
			s.Items = items
		}
	case "object":
		s.Kind = KindObject
		s.Properties = propertiesFromRaw(node)
		s.Required = requiredFromRaw(node)
	case "string":
		s.Kind = KindString
	default:
		// Untyped nodes with properties are objects in practice.
		if props := propertiesFromRaw(node); props != nil {
			s.Kind = KindObject
			s.Properties = props
			s.Required = requiredFromRaw(node)
		} else {
			s.Kind = KindString
		}
	}
	return s
}

func unionVariants(node map[string]any) []*Schema {
	for _, key := range []string{"oneOf", "anyOf"} {
		raw, ok := node[key].([]any)
		if !ok {
			continue
		}
		var variants []*Schema
		for _, v := range raw {
			if s := schemaFromRaw(v); s != nil {
				variants = append(variants, s)
			}
		}
		if len(variants) > 0 {
			return variants
		}
	}
	return nil
}

func propertiesFromRaw(node map[string]any) map[string]*Schema {
	raw, ok := node["properties"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	props := make(map[string]*Schema, len(raw))
	for name, v := range raw {
		if s := schemaFromRaw(v); s != nil {
			props[name] = s
		}
	}
	return props
}

func requiredFromRaw(node map[string]any) []string {
	raw, ok := node["required"].([]any)
	if !ok {
		return nil
	}
	var required []string
	for _, v := range raw {
		if name, ok := v.(string); ok {
			required = append(required, name)
		}
	}
	return required
}
