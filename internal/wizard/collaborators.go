package wizard

import (
	"context"
	"time"
)

// RecordStore is the persistence client as seen by the engine, bound to one
// wizard kind.
type RecordStore interface {
	Load(ctx context.Context, userID string) ([]StepRecord, error)
	SaveWithRetry(ctx context.Context, userID, stepID string, record StepRecord) error
}

// GenerationResult mirrors the external generation contract.
type GenerationResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Generator is the external text-generation collaborator. A returned error and
// a result with Success false are treated the same way.
type Generator interface {
	Generate(ctx context.Context, payload string) (GenerationResult, error)
}

// ProgressSidecar is the advisory, best-effort resume record of one
// (user, wizard) pair. Implementations swallow their own failures.
type ProgressSidecar interface {
	LastActiveSection(ctx context.Context) (int, bool)
	MarkSectionComplete(ctx context.Context, index int)
	UpdateLastActiveSection(ctx context.Context, index int)
	MarkWizardComplete(ctx context.Context)
}

// Instrumentation receives engine outcomes for metrics.
type Instrumentation interface {
	StepAdvanced(ctx context.Context, kind, stepID string)
	SubmissionFinished(ctx context.Context, kind string, err error, elapsed time.Duration)
}

// Definition is everything a concrete wizard supplies: data, never logic.
type Definition struct {
	Registry *Registry
	Prompt   PromptBuilder
}

type nopSidecar struct{}

func (nopSidecar) LastActiveSection(context.Context) (int, bool) { return 0, false }
func (nopSidecar) MarkSectionComplete(context.Context, int)      {}
func (nopSidecar) UpdateLastActiveSection(context.Context, int)  {}
func (nopSidecar) MarkWizardComplete(context.Context)            {}

type nopInstrumentation struct{}

func (nopInstrumentation) StepAdvanced(context.Context, string, string)                     {}
func (nopInstrumentation) SubmissionFinished(context.Context, string, error, time.Duration) {}
