package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewRegistry(t *testing.T) {
	t.Run("valid registry", func(t *testing.T) {
		def := testDefinition(t)
		reg := def.Registry

		assert.Equal(t, "test", reg.Kind())
		assert.Equal(t, 4, reg.Len())
		i, ok := reg.IndexOf("profile")
		assert.True(t, ok)
		assert.Equal(t, 1, i)
		assert.Equal(t, 2, reg.ReviewIndex())
		assert.Equal(t, 3, reg.ConclusionIndex())

		schema, ok := reg.SchemaFor("profile")
		assert.True(t, ok)
		assert.Equal(t, []string{"name", "tags"}, schema.Paths())

		schema, ok = reg.SchemaFor("intro")
		assert.True(t, ok)
		assert.Nil(t, schema)

		_, ok = reg.SchemaFor("missing")
		assert.False(t, ok)
	})

	t.Run("steps copy is detached", func(t *testing.T) {
		reg := testDefinition(t).Registry
		steps := reg.Steps()
		steps[0].Title = "changed"
		assert.Equal(t, "Introduction", reg.At(0).Title)
	})

	tests := []struct {
		name  string
		kind  string
		steps []StepDescriptor
		err   string
	}{
		{name: "empty kind", kind: "", steps: nil, err: "kind is required"},
		{name: "too few steps", kind: "k", steps: []StepDescriptor{{ID: StepConclusion}}, err: "at least"},
		{
			name:  "duplicate id",
			kind:  "k",
			steps: []StepDescriptor{{ID: "a"}, {ID: "a"}, {ID: StepReview}, {ID: StepConclusion}},
			err:   "duplicate step id",
		},
		{
			name:  "terminal steps out of place",
			kind:  "k",
			steps: []StepDescriptor{{ID: StepReview}, {ID: "a"}, {ID: StepConclusion}},
			err:   "last two steps",
		},
		{
			name:  "blank id",
			kind:  "k",
			steps: []StepDescriptor{{ID: " "}, {ID: StepReview}, {ID: StepConclusion}},
			err:   "has no id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.kind, tt.steps)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestFieldSchema_UnmarshalYAML(t *testing.T) {
	doc := `
zeta:
  required: true
  minLength: 3
  label: Zeta
alpha.beta:
  isArray: true
  required: true
  errorMessage: Add at least one
`
	var schema FieldSchema
	require.NoError(t, yaml.Unmarshal([]byte(doc), &schema))

	assert.Equal(t, []string{"zeta", "alpha.beta"}, schema.Paths(), "document order must be kept")
	assert.Equal(t, FieldRule{Required: true, MinLength: 3, Label: "Zeta"}, schema[0].Rule)
	assert.True(t, schema[1].Rule.IsArray)
	assert.Equal(t, "Add at least one", schema[1].Rule.ErrorMessage)

	var dup FieldSchema
	err := yaml.Unmarshal([]byte("a: {}\na: {}\n"), &dup)
	assert.Error(t, err)
}

func TestCheckShape(t *testing.T) {
	schema := FieldSchema{
		{Path: "overview.name"},
		{Path: "overview.missing"},
		{Path: "tags"},
	}
	shape := map[string]any{
		"overview": map[string]any{"name": ""},
		"tags":     []any{},
	}
	assert.Equal(t, []string{"overview.missing"}, CheckShape(schema, shape))
}
