package wizard

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CompositeEntry is one step's contribution to the composite object.
type CompositeEntry struct {
	StepID    string
	Title     string
	UserInput map[string]any
}

// Composite is the ordered collection of every non-terminal step's user input,
// keyed by step id in registry order.
type Composite []CompositeEntry

// Aggregate collects the user input of every non-terminal step. Steps without
// a record contribute an empty object.
func Aggregate(reg *Registry, records map[string]StepRecord) Composite {
	out := make(Composite, 0, reg.Len())
	for _, step := range reg.steps {
		if step.Terminal() {
			continue
		}
		input := CloneTree(records[step.ID].UserInput)
		if input == nil {
			input = map[string]any{}
		}
		out = append(out, CompositeEntry{StepID: step.ID, Title: step.Title, UserInput: input})
	}
	return out
}

// Map returns the composite as a plain object keyed by step id.
func (c Composite) Map() map[string]any {
	out := make(map[string]any, len(c))
	for _, e := range c {
		out[e.StepID] = CloneTree(e.UserInput)
	}
	return out
}

// MarshalJSON encodes the composite as an object whose keys keep step order.
func (c Composite) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.StepID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.UserInput)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", e.StepID, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PromptBuilder turns a composite into the generation payload. Implementations
// must be pure and deterministic.
type PromptBuilder interface {
	BuildPrompt(c Composite) (string, error)
}

// PromptBuilderFunc adapts a function to PromptBuilder.
type PromptBuilderFunc func(c Composite) (string, error)

func (f PromptBuilderFunc) BuildPrompt(c Composite) (string, error) { return f(c) }

// MergeReview builds the terminal review record: the composite as user input,
// and an aiOutput object holding each prior step's own aiOutput plus the
// generation result under the review key.
func MergeReview(c Composite, records map[string]StepRecord, generated string) (StepRecord, error) {
	outputs := make(map[string]string, len(c)+1)
	for _, e := range c {
		if out := records[e.StepID].AIOutput; out != "" {
			outputs[e.StepID] = out
		}
	}
	outputs[StepReview] = generated

	encoded, err := json.Marshal(outputs)
	if err != nil {
		return StepRecord{}, fmt.Errorf("encode review output: %w", err)
	}
	return StepRecord{
		StepID:    StepReview,
		UserInput: c.Map(),
		AIOutput:  string(encoded),
	}, nil
}
