package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

// flakyStore fails the first n upserts with err, or a connection reset.
type flakyStore struct {
	*MemoryStore
	mu       sync.Mutex
	failures int
	calls    int
	err      error
}

func (f *flakyStore) Upsert(ctx context.Context, userID, wizardKind string, rec wizard.StepRecord) error {
	f.mu.Lock()
	f.calls++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		if f.err != nil {
			return f.err
		}
		return errors.New("connection reset")
	}
	return f.MemoryStore.Upsert(ctx, userID, wizardKind, rec)
}

type attempt struct {
	n   int
	err bool
}

type recordingObserver struct {
	attempts []attempt
}

func (r *recordingObserver) SaveAttempted(_ context.Context, _ string, n int, err error) {
	r.attempts = append(r.attempts, attempt{n: n, err: err != nil})
}

func TestMemoryStore_OrderAndPartitioning(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Upsert(ctx, "u1", "business-plan", wizard.StepRecord{StepID: "intro"}))
	require.NoError(t, store.Upsert(ctx, "u1", "business-plan", wizard.StepRecord{StepID: "review", AIOutput: "a"}))
	require.NoError(t, store.Upsert(ctx, "u1", "tool-plan", wizard.StepRecord{StepID: "review", AIOutput: "b"}))
	require.NoError(t, store.Upsert(ctx, "u1", "business-plan", wizard.StepRecord{StepID: "intro", UserInput: map[string]any{"x": "y"}}))

	got, err := store.Get(ctx, "u1", "business-plan")
	require.NoError(t, err)
	want := []wizard.StepRecord{
		{StepID: "intro", UserInput: map[string]any{"x": "y"}},
		{StepID: "review", AIOutput: "a"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}

	other, err := store.Get(ctx, "u1", "tool-plan")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "b", other[0].AIOutput)

	none, err := store.Get(ctx, "u2", "business-plan")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = store.Get(ctx, "", "business-plan")
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	input := map[string]any{"name": "Acme"}
	require.NoError(t, store.Upsert(ctx, "u1", "w", wizard.StepRecord{StepID: "s", UserInput: input}))

	input["name"] = "changed"
	got, err := store.Get(ctx, "u1", "w")
	require.NoError(t, err)
	got[0].UserInput["name"] = "also changed"

	again, err := store.Get(ctx, "u1", "w")
	require.NoError(t, err)
	assert.Equal(t, "Acme", again[0].UserInput["name"])
}

func TestClient_SaveWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantErr   bool
		wantCalls int
	}{
		{name: "first attempt", failures: 0, wantCalls: 1},
		{name: "succeeds on third attempt", failures: 2, wantCalls: 3},
		{name: "exhausts attempts", failures: 3, wantErr: true, wantCalls: 3},
		{name: "never more than the bound", failures: 10, wantErr: true, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &flakyStore{MemoryStore: NewMemoryStore(), failures: tt.failures}
			obs := &recordingObserver{}
			client := NewClient(store, "business-plan", ClientConfig{Backoff: time.Millisecond, Observer: obs})

			err := client.SaveWithRetry(context.Background(), "u1", "intro", wizard.StepRecord{
				UserInput: map[string]any{"a": "b"},
			})

			assert.Equal(t, tt.wantCalls, store.calls)
			assert.Len(t, obs.attempts, tt.wantCalls)
			records, loadErr := client.Load(context.Background(), "u1")
			require.NoError(t, loadErr)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "connection reset")
				assert.Empty(t, records)
				return
			}
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "intro", records[0].StepID, "step id comes from the key")
		})
	}
}

func TestClient_SaveWithRetryStopsOnCancel(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 5}
	client := NewClient(store, "w", ClientConfig{Backoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.SaveWithRetry(ctx, "u1", "intro", wizard.StepRecord{})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cancelled")
	case <-time.After(2 * time.Second):
		t.Fatal("SaveWithRetry did not return after cancellation")
	}
	assert.Equal(t, 1, store.calls)
}

func TestClient_NoIdentityIsNotRetried(t *testing.T) {
	store := NewMemoryStore()
	obs := &recordingObserver{}
	client := NewClient(store, "w", ClientConfig{Observer: obs})

	err := client.SaveWithRetry(context.Background(), "", "intro", wizard.StepRecord{})
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.Len(t, obs.attempts, 1)
}

func TestClient_PermanentErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{name: "invalid record", err: fmt.Errorf("%w: bad json", ErrInvalidRecord), wantCalls: 1},
		{name: "data exception", err: &pgconn.PgError{Code: "22P02"}, wantCalls: 1},
		{name: "constraint violation", err: fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23502"}), wantCalls: 1},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, wantCalls: 3},
		{name: "connection failure", err: &pgconn.PgError{Code: "08006"}, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 10, err: tt.err}
			client := NewClient(store, "w", ClientConfig{Backoff: time.Millisecond})

			err := client.SaveWithRetry(context.Background(), "u1", "intro", wizard.StepRecord{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantCalls, store.calls)
		})
	}
}

func TestClient_UnencodableInputFailsOnce(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore()}
	obs := &recordingObserver{}
	client := NewClient(store, "w", ClientConfig{Backoff: time.Millisecond, Observer: obs})

	err := client.SaveWithRetry(context.Background(), "u1", "intro", wizard.StepRecord{
		UserInput: map[string]any{"bad": make(chan int)},
	})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Equal(t, 1, store.calls)
	assert.Len(t, obs.attempts, 1)

	records, loadErr := client.Load(context.Background(), "u1")
	require.NoError(t, loadErr)
	assert.Empty(t, records)
}

func TestClient_SaveAndLoad(t *testing.T) {
	profile := wizard.StepRecord{UserInput: map[string]any{"name": "Acme", "tags": []any{"b2b", "saas"}}}
	review := wizard.StepRecord{UserInput: map[string]any{"profile": map[string]any{"name": "Acme"}}, AIOutput: "plan"}

	type save struct {
		stepID string
		rec    wizard.StepRecord
	}
	tests := []struct {
		name  string
		saves []save
		want  []wizard.StepRecord
	}{
		{
			name:  "same record twice leaves one copy",
			saves: []save{{"profile", profile}, {"profile", profile}},
			want:  []wizard.StepRecord{{StepID: "profile", UserInput: profile.UserInput}},
		},
		{
			name:  "distinct steps load back in save order",
			saves: []save{{"intro", wizard.StepRecord{}}, {"profile", profile}, {"review", review}},
			want: []wizard.StepRecord{
				{StepID: "intro"},
				{StepID: "profile", UserInput: profile.UserInput},
				{StepID: "review", UserInput: review.UserInput, AIOutput: "plan"},
			},
		},
		{
			name: "resave keeps first position",
			saves: []save{
				{"intro", wizard.StepRecord{}},
				{"profile", profile},
				{"intro", wizard.StepRecord{UserInput: map[string]any{"seen": true}}},
			},
			want: []wizard.StepRecord{
				{StepID: "intro", UserInput: map[string]any{"seen": true}},
				{StepID: "profile", UserInput: profile.UserInput},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			client := NewClient(NewMemoryStore(), "business-plan", ClientConfig{})
			for _, s := range tt.saves {
				require.NoError(t, client.SaveWithRetry(ctx, "u1", s.stepID, s.rec))
			}

			got, err := client.Load(ctx, "u1")
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected records (-want +got):\n%s", diff)
			}

			// Saving what was loaded changes nothing.
			for _, rec := range got {
				require.NoError(t, client.SaveWithRetry(ctx, "u1", rec.StepID, rec))
			}
			again, err := client.Load(ctx, "u1")
			require.NoError(t, err)
			if diff := cmp.Diff(got, again); diff != "" {
				t.Fatalf("resave changed the store (-first +second):\n%s", diff)
			}
		})
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(NewMemoryStore(), "w", ClientConfig{MaxAttempts: -1, Backoff: -time.Second})
	assert.Equal(t, DefaultMaxAttempts, client.maxAttempts)
	assert.Equal(t, time.Duration(0), client.backoff)
	assert.Equal(t, "w", client.Wizard())
}
