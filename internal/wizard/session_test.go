package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestSession(t *testing.T, store *fakeStore, gen *fakeGenerator, sidecar *fakeSidecar) *Session {
	t.Helper()
	opts := Options{Store: store, Generator: gen}
	if sidecar != nil {
		opts.Sidecar = sidecar
	}
	return NewSession(testDefinition(t), "user-1", opts)
}

func dispatch(t *testing.T, s *Session, cmd Command) Snapshot {
	t.Helper()
	snap, err := s.Dispatch(context.Background(), cmd)
	require.NoError(t, err)
	return snap
}

func fillProfile(t *testing.T, s *Session) {
	t.Helper()
	dispatch(t, s, Edit{StepID: "profile", Path: "name", Value: "Acme"})
	dispatch(t, s, Edit{StepID: "profile", Path: "tags", Value: []any{"b2b", "saas"}})
}

func TestSession_AdvanceValidatesAndPersists(t *testing.T) {
	store := newFakeStore()
	sidecar := &fakeSidecar{}
	s := newTestSession(t, store, &fakeGenerator{}, sidecar)

	snap := dispatch(t, s, Advance{})
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.True(t, snap.Completed(0))

	dispatch(t, s, Edit{StepID: "profile", Path: "name", Value: "Al"})
	snap, err := s.Dispatch(context.Background(), Advance{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "Please complete all required fields in Business Profile correctly", UserMessage(err))
	assert.Equal(t, 1, snap.CurrentIndex)
	_, saved := store.get("profile")
	assert.False(t, saved, "invalid input must never reach the store")

	fillProfile(t, s)
	snap = dispatch(t, s, Advance{})
	assert.Equal(t, 2, snap.CurrentIndex)
	assert.Equal(t, StepReview, snap.CurrentStepID)

	rec, ok := store.get("profile")
	require.True(t, ok)
	assert.Equal(t, "Acme", rec.UserInput["name"])
	assert.True(t, sidecar.completed[1])
	assert.Equal(t, 2, sidecar.last)
}

func TestSession_SaveSucceedsOnThirdAttempt(t *testing.T) {
	store := newFakeStore()
	store.failures = 2
	s := newTestSession(t, store, &fakeGenerator{}, nil)

	snap, err := s.Dispatch(context.Background(), Advance{})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Equal(t, 3, store.attempts)
}

func TestSession_SaveExhaustsRetries(t *testing.T) {
	store := newFakeStore()
	store.failures = 3
	sidecar := &fakeSidecar{}
	s := newTestSession(t, store, &fakeGenerator{}, sidecar)

	snap, err := s.Dispatch(context.Background(), Advance{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.Equal(t, MsgPersistenceFailed, UserMessage(err))
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.False(t, snap.Completed(0))
	assert.False(t, snap.IsProcessing)
	assert.Empty(t, sidecar.completed)

	// The user retries once the store recovers.
	snap = dispatch(t, s, Advance{})
	assert.Equal(t, 1, snap.CurrentIndex)
}

func TestSession_BackAndGoTo(t *testing.T) {
	s := newTestSession(t, newFakeStore(), &fakeGenerator{}, nil)

	_, err := s.Dispatch(context.Background(), GoTo{Index: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNavigation))

	_, err = s.Dispatch(context.Background(), Back{})
	require.Error(t, err)

	dispatch(t, s, Advance{})
	snap := dispatch(t, s, Back{})
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.True(t, snap.Completed(0))

	snap = dispatch(t, s, GoTo{Index: 1})
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Contains(t, snap.Records, "profile", "visited steps always have a record")
}

func TestSession_Submit(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{result: GenerationResult{Success: true, Output: "# The Plan"}}
	sidecar := &fakeSidecar{}
	s := newTestSession(t, store, gen, sidecar)

	dispatch(t, s, Advance{})
	fillProfile(t, s)
	dispatch(t, s, Advance{})

	// Give the profile step an AI output of its own so the merge carries it.
	profile, _ := store.get("profile")
	profile.AIOutput = "profile insight"
	s.mu.Lock()
	s.saved["profile"] = profile
	s.mu.Unlock()

	snap := dispatch(t, s, Submit{})
	assert.Equal(t, StepConclusion, snap.CurrentStepID)
	assert.True(t, snap.ReviewComplete())

	require.Len(t, gen.payloads, 1)
	assert.Equal(t, `PLAN:{"intro":{},"profile":{"name":"Acme","tags":["b2b","saas"]}}`, gen.payloads[0])

	review, ok := store.get(StepReview)
	require.True(t, ok)
	wantInput := map[string]any{
		"intro":   map[string]any{},
		"profile": map[string]any{"name": "Acme", "tags": []any{"b2b", "saas"}},
	}
	if diff := cmp.Diff(wantInput, review.UserInput); diff != "" {
		t.Fatalf("review input mismatch (-want +got):\n%s", diff)
	}
	var outputs map[string]string
	require.NoError(t, json.Unmarshal([]byte(review.AIOutput), &outputs))
	assert.Equal(t, map[string]string{"profile": "profile insight", StepReview: "# The Plan"}, outputs)

	assert.True(t, sidecar.complete)
	assert.Equal(t, 3, sidecar.last)
}

func TestSession_AdvanceOnReviewSubmits(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{result: GenerationResult{Success: true, Output: "plan"}}
	s := newTestSession(t, store, gen, nil)

	dispatch(t, s, Advance{})
	fillProfile(t, s)
	dispatch(t, s, Advance{})
	snap := dispatch(t, s, Advance{})

	assert.Equal(t, StepConclusion, snap.CurrentStepID)
	assert.Len(t, gen.payloads, 1)

	_, err := s.Dispatch(context.Background(), Advance{})
	assert.True(t, errors.Is(err, ErrNavigation))
}

func TestSession_SubmitGenerationFailureLeavesStoreUnchanged(t *testing.T) {
	store := newFakeStore()
	prior := StepRecord{StepID: StepReview, UserInput: map[string]any{"draft": "v1"}, AIOutput: `{"review":"old plan"}`}
	gen := &fakeGenerator{result: GenerationResult{Success: false, Error: "quota exceeded"}}
	s := newTestSession(t, store, gen, nil)

	dispatch(t, s, Advance{})
	fillProfile(t, s)
	dispatch(t, s, Advance{})
	store.put(prior)
	before, _ := json.Marshal(prior)

	snapBefore := s.Snapshot()
	snap, err := s.Dispatch(context.Background(), Submit{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGeneration))
	assert.Equal(t, MsgGenerationFailed, UserMessage(err))

	after, ok := store.get(StepReview)
	require.True(t, ok)
	afterBytes, _ := json.Marshal(after)
	assert.Equal(t, string(before), string(afterBytes))
	if diff := cmp.Diff(snapBefore, snap); diff != "" {
		t.Fatalf("session state changed (-before +after):\n%s", diff)
	}

	gen.err = errors.New("connection reset")
	gen.result = GenerationResult{}
	_, err = s.Dispatch(context.Background(), Submit{})
	assert.True(t, errors.Is(err, ErrGeneration))
}

func TestSession_SubmitRequiresReviewStep(t *testing.T) {
	s := newTestSession(t, newFakeStore(), &fakeGenerator{}, nil)
	_, err := s.Dispatch(context.Background(), Submit{})
	assert.True(t, errors.Is(err, ErrNavigation))
}

func TestSession_RejectsWhileProcessing(t *testing.T) {
	store := newFakeStore()
	store.block = make(chan struct{})
	store.entered = make(chan struct{}, 1)
	s := newTestSession(t, store, &fakeGenerator{}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.Dispatch(context.Background(), Advance{})
		done <- err
	}()

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("advance never reached the store")
	}

	during := s.Snapshot()
	assert.True(t, during.IsProcessing)

	for _, cmd := range []Command{Advance{}, Back{}, GoTo{Index: 0}, Submit{}, Edit{StepID: "intro", Path: "x", Value: 1}} {
		snap, err := s.Dispatch(context.Background(), cmd)
		assert.True(t, errors.Is(err, ErrBusy), "%T", cmd)
		assert.Equal(t, during, snap, "%T must not mutate state", cmd)
	}
	assert.True(t, errors.Is(s.Resume(context.Background()), ErrBusy))

	close(store.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, s.Snapshot().CurrentIndex)
	assert.False(t, s.Snapshot().IsProcessing)
}

func TestSession_RequiresIdentityForMutations(t *testing.T) {
	store := newFakeStore()
	s := NewSession(testDefinition(t), "", Options{Store: store, Generator: &fakeGenerator{}})

	require.NoError(t, s.Resume(context.Background()))

	_, err := s.Dispatch(context.Background(), Advance{})
	assert.True(t, errors.Is(err, ErrIdentity))
	assert.Equal(t, MsgSignIn, UserMessage(err))

	_, err = s.Dispatch(context.Background(), Edit{StepID: "intro", Path: "a", Value: "b"})
	assert.True(t, errors.Is(err, ErrIdentity))

	_, err = s.Dispatch(context.Background(), GoTo{Index: 0})
	assert.NoError(t, err, "browsing stays available")
	assert.Zero(t, store.attempts)
}

func TestSession_Resume(t *testing.T) {
	store := newFakeStore()
	store.put(StepRecord{StepID: "intro", UserInput: map[string]any{}})
	store.put(StepRecord{StepID: "profile", UserInput: validProfile()})
	store.put(StepRecord{StepID: "retired-step", UserInput: map[string]any{}})

	t.Run("hint is used when reachable", func(t *testing.T) {
		s := newTestSession(t, store, &fakeGenerator{}, &fakeSidecar{last: 2, hasLast: true})
		require.NoError(t, s.Resume(context.Background()))

		snap := s.Snapshot()
		assert.Equal(t, 2, snap.CurrentIndex)
		assert.True(t, snap.Completed(0))
		assert.True(t, snap.Completed(1))
		assert.NotContains(t, snap.Records, "retired-step")
	})

	t.Run("hint past the data is clamped", func(t *testing.T) {
		s := newTestSession(t, store, &fakeGenerator{}, &fakeSidecar{last: 3, hasLast: true})
		require.NoError(t, s.Resume(context.Background()))
		assert.Equal(t, 2, s.Snapshot().CurrentIndex)
	})

	t.Run("completion is recomputed, not trusted", func(t *testing.T) {
		broken := newFakeStore()
		broken.put(StepRecord{StepID: "intro", UserInput: map[string]any{}})
		broken.put(StepRecord{StepID: "profile", UserInput: map[string]any{"name": "Al"}})

		s := newTestSession(t, broken, &fakeGenerator{}, &fakeSidecar{last: 2, hasLast: true})
		require.NoError(t, s.Resume(context.Background()))

		snap := s.Snapshot()
		assert.Equal(t, 1, snap.CurrentIndex)
		assert.False(t, snap.Completed(1))
		assert.Equal(t, "Al", snap.Records["profile"].UserInput["name"])
	})

	t.Run("no sidecar starts at zero", func(t *testing.T) {
		s := newTestSession(t, store, &fakeGenerator{}, nil)
		require.NoError(t, s.Resume(context.Background()))
		assert.Equal(t, 0, s.Snapshot().CurrentIndex)
	})

	t.Run("load failure", func(t *testing.T) {
		failing := newFakeStore()
		failing.loadErr = errors.New("connection refused")
		s := newTestSession(t, failing, &fakeGenerator{}, nil)

		err := s.Resume(context.Background())
		assert.True(t, errors.Is(err, ErrPersistence))
		assert.False(t, s.Snapshot().IsProcessing)
	})
}

func TestSession_SubmitRejectsIncompleteSteps(t *testing.T) {
	store := newFakeStore()
	store.put(StepRecord{StepID: "intro", UserInput: map[string]any{}})
	store.put(StepRecord{StepID: "profile", UserInput: map[string]any{"name": "Al"}})
	store.put(StepRecord{StepID: StepReview, UserInput: map[string]any{}, AIOutput: `{"review":"old"}`})

	gen := &fakeGenerator{result: GenerationResult{Success: true, Output: "new"}}
	s := newTestSession(t, store, gen, &fakeSidecar{last: 2, hasLast: true})
	require.NoError(t, s.Resume(context.Background()))
	require.Equal(t, 2, s.Snapshot().CurrentIndex)

	_, err := s.Dispatch(context.Background(), Submit{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "Please complete all required fields in Business Profile correctly", UserMessage(err))
	assert.Empty(t, gen.payloads)
}

func TestSession_SubmitUsesSavedInputs(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{result: GenerationResult{Success: true, Output: "plan"}}
	s := newTestSession(t, store, gen, nil)

	dispatch(t, s, Advance{})
	fillProfile(t, s)
	dispatch(t, s, Advance{})

	// Reopen the finished profile and blank a required field without saving.
	dispatch(t, s, GoTo{Index: 1})
	dispatch(t, s, Edit{StepID: "profile", Path: "name", Value: ""})
	snap := dispatch(t, s, GoTo{Index: 2})
	assert.Equal(t, "", snap.Records["profile"].UserInput["name"])

	snap = dispatch(t, s, Submit{})
	assert.Equal(t, StepConclusion, snap.CurrentStepID)

	require.Len(t, gen.payloads, 1)
	assert.Equal(t, `PLAN:{"intro":{},"profile":{"name":"Acme","tags":["b2b","saas"]}}`, gen.payloads[0])

	stored, ok := store.get("profile")
	require.True(t, ok)
	assert.Equal(t, "Acme", stored.UserInput["name"])

	review, ok := store.get(StepReview)
	require.True(t, ok)
	profile, ok := review.UserInput["profile"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Acme", profile["name"], "the plan matches what the store holds")
}

func TestSession_SubmitNamesFirstIncompleteStep(t *testing.T) {
	store := newFakeStore()
	store.put(StepRecord{StepID: "profile", UserInput: validProfile()})
	store.put(StepRecord{StepID: StepReview, UserInput: map[string]any{}})

	gen := &fakeGenerator{result: GenerationResult{Success: true, Output: "new"}}
	s := newTestSession(t, store, gen, &fakeSidecar{last: 2, hasLast: true})
	require.NoError(t, s.Resume(context.Background()))
	require.Equal(t, 2, s.Snapshot().CurrentIndex)
	require.False(t, s.Snapshot().Completed(0), "the intro was never saved")

	_, err := s.Dispatch(context.Background(), Submit{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, collapsedMessage(s.def.Registry.At(0).Title), UserMessage(err))
	assert.Empty(t, gen.payloads)
}

func TestSession_EditRejectsLockedSteps(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store, &fakeGenerator{}, nil)

	snap, err := s.Dispatch(context.Background(), Edit{StepID: "profile", Path: "name", Value: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNavigation))
	assert.Equal(t, "Please complete "+s.def.Registry.At(0).Title+" first.", UserMessage(err))
	assert.NotContains(t, snap.Records, "profile")
	assert.Equal(t, StatusLocked, snap.Steps[1].Status)

	_, err = s.Dispatch(context.Background(), Edit{StepID: StepReview, Path: "x", Value: 1})
	assert.True(t, errors.Is(err, ErrNavigation))

	// Once reachable, the same edit is accepted.
	dispatch(t, s, Advance{})
	snap = dispatch(t, s, Edit{StepID: "profile", Path: "name", Value: "x"})
	assert.Equal(t, "x", snap.Records["profile"].UserInput["name"])
	assert.Equal(t, 1, store.attempts, "edits are never persisted on their own")
}
