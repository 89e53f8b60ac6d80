// Package catalog holds the concrete wizards. Each wizard is pure data: an
// ordered step list with field schemas, the expected input shape of every
// step, and the prompt text wrapped around the composite at submission.
package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

//go:embed wizards/*.yaml
var builtin embed.FS

// Kinds shipped with the service.
const (
	BusinessPlan       = "business-plan"
	ImplementationPlan = "implementation-plan"
	ToolPlan           = "tool-plan"
)

// File is the on-disk form of one wizard.
type File struct {
	Kind   string     `yaml:"kind"`
	Title  string     `yaml:"title"`
	Prompt PromptText `yaml:"prompt"`
	Steps  []StepFile `yaml:"steps"`
}

// PromptText is the fixed text around the rendered composite.
type PromptText struct {
	Preamble string `yaml:"preamble"`
	Closing  string `yaml:"closing"`
}

// StepFile is one step of a wizard file.
type StepFile struct {
	ID     string             `yaml:"id"`
	Title  string             `yaml:"title"`
	Shape  map[string]any     `yaml:"shape"`
	Schema wizard.FieldSchema `yaml:"schema"`
}

// Wizard is a loaded catalog entry.
type Wizard struct {
	Kind       string
	Title      string
	Definition *wizard.Definition
	Shapes     map[string]map[string]any
}

// Catalog is the set of wizards available to the service, keyed by kind.
type Catalog struct {
	byKind map[string]*Wizard
	kinds  []string
}

// Load parses the embedded wizard files.
func Load() (*Catalog, error) {
	return LoadFS(builtin, "wizards")
}

// LoadFS parses every *.yaml file under dir.
func LoadFS(fsys fs.FS, dir string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read wizard directory: %w", err)
	}

	c := &Catalog{byKind: make(map[string]*Wizard)}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		w, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if _, dup := c.byKind[w.Kind]; dup {
			return nil, fmt.Errorf("%s: wizard kind %q defined twice", e.Name(), w.Kind)
		}
		c.byKind[w.Kind] = w
		c.kinds = append(c.kinds, w.Kind)
	}
	if len(c.kinds) == 0 {
		return nil, fmt.Errorf("no wizards found in %s", dir)
	}
	sort.Strings(c.kinds)
	return c, nil
}

// Parse decodes and checks a single wizard file.
func Parse(raw []byte) (*Wizard, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode wizard: %w", err)
	}
	if problems := Lint(&f); len(problems) > 0 {
		return nil, fmt.Errorf("wizard %q: %s", f.Kind, strings.Join(problems, "; "))
	}

	steps := make([]wizard.StepDescriptor, len(f.Steps))
	shapes := make(map[string]map[string]any, len(f.Steps))
	for i, s := range f.Steps {
		steps[i] = wizard.StepDescriptor{ID: s.ID, Title: s.Title, Schema: s.Schema}
		shapes[s.ID] = s.Shape
	}
	reg, err := wizard.NewRegistry(f.Kind, steps)
	if err != nil {
		return nil, err
	}

	prompt, err := newPromptTemplate(f.Prompt)
	if err != nil {
		return nil, fmt.Errorf("wizard %q: %w", f.Kind, err)
	}

	title := f.Title
	if title == "" {
		title = f.Kind
	}
	return &Wizard{
		Kind:       f.Kind,
		Title:      title,
		Definition: &wizard.Definition{Registry: reg, Prompt: prompt},
		Shapes:     shapes,
	}, nil
}

// Lint reports every schema path that does not resolve against its step's
// declared shape, plus steps whose schema is present without a shape.
func Lint(f *File) []string {
	var problems []string
	for _, s := range f.Steps {
		if len(s.Schema) == 0 {
			continue
		}
		if s.Shape == nil {
			problems = append(problems, fmt.Sprintf("step %s has a schema but no shape", s.ID))
			continue
		}
		for _, p := range wizard.CheckShape(s.Schema, s.Shape) {
			problems = append(problems, fmt.Sprintf("step %s: path %q does not resolve against its shape", s.ID, p))
		}
	}
	return problems
}

// Get returns the wizard of the given kind.
func (c *Catalog) Get(kind string) (*Wizard, bool) {
	w, ok := c.byKind[kind]
	return w, ok
}

// Kinds lists every wizard kind in sorted order.
func (c *Catalog) Kinds() []string {
	return append([]string(nil), c.kinds...)
}

// Wizards lists every wizard in kind order.
func (c *Catalog) Wizards() []*Wizard {
	out := make([]*Wizard, len(c.kinds))
	for i, k := range c.kinds {
		out[i] = c.byKind[k]
	}
	return out
}

const promptLayout = `{{.Preamble}}
{{range .Sections}}
## {{.Title}}
{{.Answers}}
{{end}}
{{.Closing}}`

type promptTemplate struct {
	text PromptText
	tmpl *template.Template
}

type promptSection struct {
	Title   string
	Answers string
}

func newPromptTemplate(text PromptText) (*promptTemplate, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(promptLayout)
	if err != nil {
		return nil, fmt.Errorf("parse prompt layout: %w", err)
	}
	return &promptTemplate{text: text, tmpl: tmpl}, nil
}

// BuildPrompt renders every step's answers as indented JSON under its title.
// Map keys are sorted by encoding/json, so equal composites give equal prompts.
func (p *promptTemplate) BuildPrompt(c wizard.Composite) (string, error) {
	sections := make([]promptSection, 0, len(c))
	for _, e := range c {
		answers, err := json.MarshalIndent(e.UserInput, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode %s answers: %w", e.StepID, err)
		}
		sections = append(sections, promptSection{Title: e.Title, Answers: string(answers)})
	}

	var buf bytes.Buffer
	err := p.tmpl.Execute(&buf, struct {
		Preamble string
		Closing  string
		Sections []promptSection
	}{
		Preamble: strings.TrimSpace(p.text.Preamble),
		Closing:  strings.TrimSpace(p.text.Closing),
		Sections: sections,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
