// Package sidecar keeps the advisory progress record of each (user, wizard):
// where the user last was, which sections they finished, which artifacts they
// exported. It is never a source of truth; the step record store is. The two
// can disagree after a failed write on either side, and readers clamp.
package sidecar

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Key identifies one progress record.
type Key struct {
	UserID string
	Wizard string
}

// Progress is the stored record.
type Progress struct {
	LastActiveSection   *int  `json:"lastActiveSection,omitempty"`
	CompletedSections   []int `json:"completedSections"`
	DownloadedArtifacts []int `json:"downloadedArtifacts"`
	IsComplete          bool  `json:"isComplete"`
}

// Store persists progress records. Load reports false when none exists.
type Store interface {
	Load(ctx context.Context, key Key) (Progress, bool, error)
	Save(ctx context.Context, key Key, p Progress) error
}

// Sidecar serializes read-modify-write cycles over a Store and hands out
// per-session trackers.
type Sidecar struct {
	store  Store
	logger *zap.Logger
	mu     sync.Mutex
}

// New wraps store. Failures are logged at warn and never returned.
func New(store Store, logger *zap.Logger) *Sidecar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sidecar{store: store, logger: logger}
}

// For binds a tracker to one user and wizard.
func (s *Sidecar) For(userID, wizard string) *Tracker {
	return &Tracker{sc: s, key: Key{UserID: userID, Wizard: wizard}}
}

func (s *Sidecar) load(ctx context.Context, key Key) (Progress, bool) {
	p, ok, err := s.store.Load(ctx, key)
	if err != nil {
		s.warn("load", key, err)
		return Progress{}, false
	}
	return p, ok
}

func (s *Sidecar) update(ctx context.Context, key Key, op string, fn func(p *Progress)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, _, err := s.store.Load(ctx, key)
	if err != nil {
		s.warn(op, key, err)
		return
	}
	fn(&p)
	if err := s.store.Save(ctx, key, p); err != nil {
		s.warn(op, key, err)
	}
}

func (s *Sidecar) warn(op string, key Key, err error) {
	s.logger.Warn("progress sidecar operation failed",
		zap.String("op", op),
		zap.String("user_id", key.UserID),
		zap.String("wizard", key.Wizard),
		zap.Error(err))
}

// Tracker is the sidecar of one session. Every method is best-effort.
type Tracker struct {
	sc  *Sidecar
	key Key
}

// Progress returns the current record, or false when none is readable.
func (t *Tracker) Progress(ctx context.Context) (Progress, bool) {
	return t.sc.load(ctx, t.key)
}

func (t *Tracker) LastActiveSection(ctx context.Context) (int, bool) {
	p, ok := t.sc.load(ctx, t.key)
	if !ok || p.LastActiveSection == nil {
		return 0, false
	}
	return *p.LastActiveSection, true
}

func (t *Tracker) MarkSectionComplete(ctx context.Context, index int) {
	t.sc.update(ctx, t.key, "mark_section_complete", func(p *Progress) {
		p.CompletedSections = addIndex(p.CompletedSections, index)
	})
}

func (t *Tracker) UpdateLastActiveSection(ctx context.Context, index int) {
	t.sc.update(ctx, t.key, "update_last_active_section", func(p *Progress) {
		p.LastActiveSection = &index
	})
}

func (t *Tracker) MarkWizardComplete(ctx context.Context) {
	t.sc.update(ctx, t.key, "mark_wizard_complete", func(p *Progress) {
		p.IsComplete = true
	})
}

// MarkArtifactDownloaded records that section index was exported.
func (t *Tracker) MarkArtifactDownloaded(ctx context.Context, index int) {
	t.sc.update(ctx, t.key, "mark_artifact_downloaded", func(p *Progress) {
		p.DownloadedArtifacts = addIndex(p.DownloadedArtifacts, index)
	})
}

// addIndex inserts i into the sorted set s.
func addIndex(s []int, i int) []int {
	pos, found := slices.BinarySearch(s, i)
	if found {
		return s
	}
	return slices.Insert(s, pos, i)
}

// MemoryStore keeps progress in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[Key]Progress
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[Key]Progress)}
}

func (m *MemoryStore) Load(_ context.Context, key Key) (Progress, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.data[key]
	return clone(p), ok, nil
}

func (m *MemoryStore) Save(_ context.Context, key Key, p Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = clone(p)
	return nil
}

func clone(p Progress) Progress {
	out := Progress{
		CompletedSections:   slices.Clone(p.CompletedSections),
		DownloadedArtifacts: slices.Clone(p.DownloadedArtifacts),
		IsComplete:          p.IsComplete,
	}
	if p.LastActiveSection != nil {
		v := *p.LastActiveSection
		out.LastActiveSection = &v
	}
	return out
}
