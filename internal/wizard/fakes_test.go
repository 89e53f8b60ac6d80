package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeStore is an upsert-by-key store whose first failures saves fail.
type fakeStore struct {
	mu       sync.Mutex
	order    []string
	records  map[string]StepRecord
	failures int
	attempts int
	maxTries int
	loadErr  error
	block    chan struct{}
	entered  chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]StepRecord), maxTries: 3}
}

func (f *fakeStore) Load(ctx context.Context, userID string) ([]StepRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make([]StepRecord, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.records[id].Clone())
	}
	return out, nil
}

// SaveWithRetry mimics the persistence client: up to maxTries attempts.
func (f *fakeStore) SaveWithRetry(ctx context.Context, userID, stepID string, record StepRecord) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for try := 0; try < f.maxTries; try++ {
		f.attempts++
		if f.failures > 0 {
			f.failures--
			continue
		}
		if _, ok := f.records[stepID]; !ok {
			f.order = append(f.order, stepID)
		}
		f.records[stepID] = record.Clone()
		return nil
	}
	return errors.New("store unavailable")
}

func (f *fakeStore) get(stepID string) (StepRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[stepID]
	return rec, ok
}

func (f *fakeStore) put(rec StepRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[rec.StepID]; !ok {
		f.order = append(f.order, rec.StepID)
	}
	f.records[rec.StepID] = rec.Clone()
}

type fakeGenerator struct {
	mu       sync.Mutex
	result   GenerationResult
	err      error
	payloads []string
}

func (g *fakeGenerator) Generate(ctx context.Context, payload string) (GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payloads = append(g.payloads, payload)
	return g.result, g.err
}

type fakeSidecar struct {
	mu        sync.Mutex
	last      int
	hasLast   bool
	completed map[int]bool
	complete  bool
}

func (f *fakeSidecar) LastActiveSection(context.Context) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.hasLast
}

func (f *fakeSidecar) MarkSectionComplete(_ context.Context, index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed == nil {
		f.completed = make(map[int]bool)
	}
	f.completed[index] = true
}

func (f *fakeSidecar) UpdateLastActiveSection(_ context.Context, index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last, f.hasLast = index, true
}

func (f *fakeSidecar) MarkWizardComplete(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = true
}

// testDefinition is a four-step wizard: intro, profile, review, conclusion.
func testDefinition(t *testing.T) *Definition {
	t.Helper()
	reg, err := NewRegistry("test", []StepDescriptor{
		{ID: "intro", Title: "Introduction"},
		{ID: "profile", Title: "Business Profile", Schema: FieldSchema{
			{Path: "name", Rule: FieldRule{Required: true, MinLength: 3, Label: "Name"}},
			{Path: "tags", Rule: FieldRule{Required: true, IsArray: true, MinLength: 2, Label: "Tags"}},
		}},
		{ID: StepReview, Title: "Review"},
		{ID: StepConclusion, Title: "Conclusion"},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return &Definition{
		Registry: reg,
		Prompt: PromptBuilderFunc(func(c Composite) (string, error) {
			b, err := c.MarshalJSON()
			return "PLAN:" + string(b), err
		}),
	}
}

func validProfile() map[string]any {
	return map[string]any{"name": "Acme", "tags": []any{"b2b", "saas"}}
}
