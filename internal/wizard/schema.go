package wizard

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FieldRule is the validation rule attached to one dot-path of a step's input.
type FieldRule struct {
	Required     bool   `yaml:"required" json:"required"`
	MinLength    int    `yaml:"minLength" json:"minLength"`
	IsArray      bool   `yaml:"isArray" json:"isArray"`
	Label        string `yaml:"label" json:"label"`
	ErrorMessage string `yaml:"errorMessage" json:"errorMessage,omitempty"`
}

// FieldMapping binds a rule to a dot-path such as
// "targetAudience.idealCustomerProfile.problem".
type FieldMapping struct {
	Path string    `json:"path"`
	Rule FieldRule `json:"rule"`
}

// FieldSchema is an ordered field-mapping rule set. Order is the order in
// which field errors are produced.
type FieldSchema []FieldMapping

// UnmarshalYAML decodes a YAML mapping of path -> rule, keeping document order.
func (s *FieldSchema) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("field schema must be a mapping, got line %d", node.Line)
	}

	out := make(FieldSchema, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if seen[key] {
			return fmt.Errorf("duplicate field path %q at line %d", key, node.Content[i].Line)
		}
		seen[key] = true

		var rule FieldRule
		if err := node.Content[i+1].Decode(&rule); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		out = append(out, FieldMapping{Path: key, Rule: rule})
	}
	*s = out
	return nil
}

// Paths lists the schema's dot-paths in order.
func (s FieldSchema) Paths() []string {
	paths := make([]string, len(s))
	for i, m := range s {
		paths[i] = m.Path
	}
	return paths
}

// CheckShape reports the schema paths that do not resolve against shape,
// the step's expected (possibly empty) input.
func CheckShape(schema FieldSchema, shape map[string]any) []string {
	var unresolved []string
	for _, m := range schema {
		if _, ok := Lookup(shape, m.Path); !ok {
			unresolved = append(unresolved, m.Path)
		}
	}
	return unresolved
}
