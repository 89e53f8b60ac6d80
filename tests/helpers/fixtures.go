package helpers

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/catalog"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

// TestUser represents a test user fixture
type TestUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewTestUser returns a user with a unique email.
func NewTestUser() TestUser {
	return TestUser{
		Name:     "Test User",
		Email:    fmt.Sprintf("test-%s@example.com", uuid.NewString()[:8]),
		Password: "test-password-123",
	}
}

// ToolPlanAnswers are valid answers for every data step of the tool plan,
// keyed by step id and then by field path.
var ToolPlanAnswers = map[string]map[string]any{
	"currentProcess": {
		"workflow":     "Orders arrive by email and are retyped into the ERP every morning.",
		"painPoints":   []any{"Manual data entry", "Late invoices"},
		"hoursPerWeek": "12",
	},
	"toolInventory": {
		"currentTools":   []any{"Gmail", "Sheets"},
		"budget.monthly": "300",
	},
	"automationGoals": {
		"tasksToAutomate": []any{"Order intake from email"},
		"integrations":    []any{"ERP"},
		"constraints":     "No new vendors this quarter",
	},
}

// StepRecord builds a record for a data step from a flat path map.
func StepRecord(stepID string, answers map[string]any) wizard.StepRecord {
	var input map[string]any
	for path, v := range answers {
		input = wizard.SetPath(input, path, v)
	}
	return wizard.StepRecord{StepID: stepID, UserInput: input}
}

// ToolPlan loads the builtin tool plan wizard.
func ToolPlan() (*catalog.Wizard, error) {
	c, err := catalog.Load()
	if err != nil {
		return nil, err
	}
	w, ok := c.Get(catalog.ToolPlan)
	if !ok {
		return nil, fmt.Errorf("builtin catalog has no %s wizard", catalog.ToolPlan)
	}
	return w, nil
}
