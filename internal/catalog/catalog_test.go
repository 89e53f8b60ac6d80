package catalog

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

func TestLoad_BuiltinWizards(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{BusinessPlan, ImplementationPlan, ToolPlan}, c.Kinds())

	for _, w := range c.Wizards() {
		t.Run(w.Kind, func(t *testing.T) {
			reg := w.Definition.Registry
			assert.Equal(t, wizard.StepReview, reg.At(reg.ReviewIndex()).ID)
			assert.Equal(t, wizard.StepConclusion, reg.At(reg.ConclusionIndex()).ID)
			assert.NotNil(t, w.Definition.Prompt)

			for _, step := range reg.Steps() {
				if step.Terminal() {
					assert.Empty(t, step.Schema, "terminal steps carry no schema")
					continue
				}
				assert.Empty(t, wizard.CheckShape(step.Schema, w.Shapes[step.ID]))
			}
		})
	}
}

func TestLoad_BusinessPlanNestedPath(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	w, ok := c.Get(BusinessPlan)
	require.True(t, ok)

	schema, ok := w.Definition.Registry.SchemaFor("targetAudience")
	require.True(t, ok)
	assert.Contains(t, schema.Paths(), "idealCustomerProfile.problem")

	_, ok = c.Get("unknown")
	assert.False(t, ok)
}

func TestParse_RejectsUnresolvedPath(t *testing.T) {
	raw := []byte(`
kind: broken
steps:
  - id: intro
    title: Intro
    shape:
      overview:
        name: ""
    schema:
      overview.nmae:
        required: true
  - id: review
    title: Review
  - id: conclusion
    title: Conclusion
`)
	_, err := Parse(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"overview.nmae"`)
}

func TestParse_SchemaWithoutShape(t *testing.T) {
	raw := []byte(`
kind: broken
steps:
  - id: intro
    schema:
      name: {required: true}
  - id: review
  - id: conclusion
`)
	_, err := Parse(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no shape")
}

func TestLoadFS(t *testing.T) {
	valid := `
kind: %s
steps:
  - id: intro
  - id: review
  - id: conclusion
`
	t.Run("duplicate kind", func(t *testing.T) {
		fsys := fstest.MapFS{
			"w/a.yaml": {Data: []byte(strings.ReplaceAll(valid, "%s", "same"))},
			"w/b.yaml": {Data: []byte(strings.ReplaceAll(valid, "%s", "same"))},
		}
		_, err := LoadFS(fsys, "w")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "defined twice")
	})

	t.Run("empty directory", func(t *testing.T) {
		fsys := fstest.MapFS{"w/readme.txt": {Data: []byte("nothing")}}
		_, err := LoadFS(fsys, "w")
		assert.Error(t, err)
	})

	t.Run("title defaults to kind", func(t *testing.T) {
		fsys := fstest.MapFS{"w/a.yaml": {Data: []byte(strings.ReplaceAll(valid, "%s", "plain"))}}
		c, err := LoadFS(fsys, "w")
		require.NoError(t, err)
		w, ok := c.Get("plain")
		require.True(t, ok)
		assert.Equal(t, "plain", w.Title)
	})
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	w, _ := c.Get(ToolPlan)

	composite := wizard.Composite{
		{StepID: "intro", Title: "Introduction", UserInput: map[string]any{}},
		{StepID: "currentProcess", Title: "Current Process", UserInput: map[string]any{
			"workflow":   "Invoices are typed by hand into the ledger",
			"painPoints": []any{"slow close", "typos"},
		}},
	}

	first, err := w.Definition.Prompt.BuildPrompt(composite)
	require.NoError(t, err)
	second, err := w.Definition.Prompt.BuildPrompt(composite)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "You are an operations and automation consultant."))
	assert.Contains(t, first, "## Current Process\n{\n  \"painPoints\": [")
	assert.True(t, strings.HasSuffix(first, "Return only the Markdown document."))
	assert.Less(t, strings.Index(first, "## Introduction"), strings.Index(first, "## Current Process"))
}
