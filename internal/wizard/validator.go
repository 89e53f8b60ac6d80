package wizard

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationResult is derived on demand and never persisted. After collapse
// Errors holds zero or one message.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Validate checks input against schema and collapses any failure into one
// message naming stepTitle. A nil schema is always valid.
func Validate(schema FieldSchema, stepTitle string, input map[string]any) ValidationResult {
	if len(FieldErrors(schema, input)) == 0 {
		return ValidationResult{IsValid: true, Errors: []string{}}
	}
	return ValidationResult{
		IsValid: false,
		Errors:  []string{collapsedMessage(stepTitle)},
	}
}

// ValidateStep validates a step's input against the step's own schema.
func ValidateStep(step StepDescriptor, input map[string]any) ValidationResult {
	return Validate(step.Schema, step.Title, input)
}

// FieldErrors returns the per-field messages in schema order. Callers outside
// the engine only ever see the collapsed form produced by Validate.
func FieldErrors(schema FieldSchema, input map[string]any) []string {
	var errs []string
	for _, m := range schema {
		value, present := Lookup(input, m.Path)
		if present && value == nil {
			present = false
		}
		if !checkField(m.Rule, value, present) {
			errs = append(errs, fieldMessage(m))
		}
	}
	return errs
}

func checkField(rule FieldRule, value any, present bool) bool {
	if !rule.Required && isBlank(value, present) {
		return true
	}
	if rule.IsArray {
		return checkArray(rule.MinLength, value, present)
	}
	if !present {
		return false
	}
	s, ok := value.(string)
	if !ok {
		return true
	}
	trimmed := strings.TrimSpace(s)
	return trimmed != "" && utf8.RuneCountInString(trimmed) >= rule.MinLength
}

func checkArray(minLength int, value any, present bool) bool {
	if !present {
		return false
	}
	items, ok := stringItems(value)
	if !ok || len(items) == 0 {
		return false
	}
	for _, item := range items {
		if utf8.RuneCountInString(strings.TrimSpace(item)) < minLength {
			return false
		}
	}
	return true
}

// stringItems accepts both decoded JSON arrays and native string slices.
// Any non-string element makes the whole value invalid.
func stringItems(value any) ([]string, bool) {
	switch t := value.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func isBlank(value any, present bool) bool {
	if !present {
		return true
	}
	switch t := value.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func fieldMessage(m FieldMapping) string {
	if m.Rule.ErrorMessage != "" {
		return m.Rule.ErrorMessage
	}
	label := m.Rule.Label
	if label == "" {
		label = m.Path
	}
	if m.Rule.IsArray {
		if m.Rule.MinLength > 0 {
			return fmt.Sprintf("%s needs at least one entry, each at least %d characters long", label, m.Rule.MinLength)
		}
		return fmt.Sprintf("%s needs at least one entry", label)
	}
	if m.Rule.MinLength > 0 {
		return fmt.Sprintf("%s must be at least %d characters long", label, m.Rule.MinLength)
	}
	return fmt.Sprintf("%s is required", label)
}

func collapsedMessage(stepTitle string) string {
	return fmt.Sprintf("Please complete all required fields in %s correctly", stepTitle)
}
