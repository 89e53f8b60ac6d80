// Package persistence is the remote keyed store of step records. Records are
// keyed (user, wizard kind, step id); a Client binds one wizard kind and
// presents the (user, step) contract the engine works against.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

// ErrNoIdentity is returned for operations attempted without a user id.
var ErrNoIdentity = errors.New("persistence: user id is required")

// ErrInvalidRecord marks a record the store can never accept as written.
// Saves failing with it are not retried.
var ErrInvalidRecord = errors.New("persistence: invalid step record")

// Store is the remote keyed store.
type Store interface {
	// Get returns every record of (userID, wizard) in first-write order.
	Get(ctx context.Context, userID, wizard string) ([]wizard.StepRecord, error)
	// Upsert replaces the record of (userID, wizard, rec.StepID).
	Upsert(ctx context.Context, userID, wizard string, rec wizard.StepRecord) error
}

type memoryKey struct {
	user, wizard string
}

// MemoryStore is an in-process Store used by tests and local runs without a
// database.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[memoryKey][]wizard.StepRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[memoryKey][]wizard.StepRecord)}
}

func (m *MemoryStore) Get(ctx context.Context, userID, wizardKind string) ([]wizard.StepRecord, error) {
	if userID == "" {
		return nil, ErrNoIdentity
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.records[memoryKey{userID, wizardKind}]
	out := make([]wizard.StepRecord, len(stored))
	for i, rec := range stored {
		out[i] = rec.Clone()
	}
	return out, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, userID, wizardKind string, rec wizard.StepRecord) error {
	if userID == "" {
		return ErrNoIdentity
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Same acceptance rule as the Postgres column.
	if _, err := json.Marshal(rec.UserInput); err != nil {
		return fmt.Errorf("%w: failed to encode user input: %v", ErrInvalidRecord, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey{userID, wizardKind}
	for i, existing := range m.records[key] {
		if existing.StepID == rec.StepID {
			m.records[key][i] = rec.Clone()
			return nil
		}
	}
	m.records[key] = append(m.records[key], rec.Clone())
	return nil
}
