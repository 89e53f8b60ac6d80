package wizard

import (
	"fmt"
	"strings"
)

// Terminal step ids. Every registry ends with review followed by conclusion.
const (
	StepReview     = "review"
	StepConclusion = "conclusion"
)

// StepDescriptor is the static definition of one wizard step.
type StepDescriptor struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Order  int         `json:"order"`
	Schema FieldSchema `json:"schema,omitempty"`
}

// Terminal reports whether the step bypasses the standard validate-and-save path.
func (d StepDescriptor) Terminal() bool {
	return d.ID == StepReview || d.ID == StepConclusion
}

// Registry is the immutable, ordered step list of one wizard kind.
type Registry struct {
	kind  string
	steps []StepDescriptor
	index map[string]int
}

// NewRegistry validates and freezes a step list. Step order is the slice order;
// each descriptor's Order is overwritten with its position.
func NewRegistry(kind string, steps []StepDescriptor) (*Registry, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil, fmt.Errorf("wizard kind is required")
	}
	if len(steps) < 2 {
		return nil, fmt.Errorf("wizard %s: at least the review and conclusion steps are required", kind)
	}

	r := &Registry{
		kind:  kind,
		steps: make([]StepDescriptor, len(steps)),
		index: make(map[string]int, len(steps)),
	}
	for i, s := range steps {
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("wizard %s: step %d has no id", kind, i)
		}
		if _, dup := r.index[s.ID]; dup {
			return nil, fmt.Errorf("wizard %s: duplicate step id %q", kind, s.ID)
		}
		s.Order = i
		s.Schema = append(FieldSchema(nil), s.Schema...)
		r.steps[i] = s
		r.index[s.ID] = i
	}

	n := len(r.steps)
	if r.steps[n-2].ID != StepReview || r.steps[n-1].ID != StepConclusion {
		return nil, fmt.Errorf("wizard %s: last two steps must be %q and %q", kind, StepReview, StepConclusion)
	}
	return r, nil
}

// Kind is the wizard type this registry describes.
func (r *Registry) Kind() string { return r.kind }

// Len is the number of steps.
func (r *Registry) Len() int { return len(r.steps) }

// Steps returns a copy of the ordered step list.
func (r *Registry) Steps() []StepDescriptor {
	out := make([]StepDescriptor, len(r.steps))
	copy(out, r.steps)
	return out
}

// At returns the step at index i. It panics when i is out of range.
func (r *Registry) At(i int) StepDescriptor { return r.steps[i] }

// IndexOf returns the position of stepID.
func (r *Registry) IndexOf(stepID string) (int, bool) {
	i, ok := r.index[stepID]
	return i, ok
}

// SchemaFor returns the schema of stepID; a step without one yields nil.
func (r *Registry) SchemaFor(stepID string) (FieldSchema, bool) {
	i, ok := r.index[stepID]
	if !ok {
		return nil, false
	}
	return r.steps[i].Schema, true
}

// ReviewIndex is the position of the review step.
func (r *Registry) ReviewIndex() int { return len(r.steps) - 2 }

// ConclusionIndex is the position of the conclusion step.
func (r *Registry) ConclusionIndex() int { return len(r.steps) - 1 }
