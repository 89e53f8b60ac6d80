package wizard

import "encoding/json"

// StepRecord is the persisted unit, one per (user, step).
type StepRecord struct {
	StepID    string         `json:"stepId"`
	UserInput map[string]any `json:"userInput"`
	AIOutput  string         `json:"aiOutput"`
}

// Clone deep-copies the record.
func (r StepRecord) Clone() StepRecord {
	return StepRecord{
		StepID:    r.StepID,
		UserInput: CloneTree(r.UserInput),
		AIOutput:  r.AIOutput,
	}
}

// ReviewOutput decodes the review key of a merged review record's aiOutput.
func (r StepRecord) ReviewOutput() (string, bool) {
	if r.AIOutput == "" {
		return "", false
	}
	var outputs map[string]string
	if err := json.Unmarshal([]byte(r.AIOutput), &outputs); err != nil {
		return "", false
	}
	review, ok := outputs[StepReview]
	return review, ok
}
