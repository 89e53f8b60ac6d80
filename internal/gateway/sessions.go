package gateway

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/catalog"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/persistence"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/sidecar"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

// ErrUnknownWizard is returned for kinds missing from the catalog.
var ErrUnknownWizard = errors.New("unknown wizard")

// SessionConfig wires every session the manager creates.
type SessionConfig struct {
	Catalog         *catalog.Catalog
	Store           persistence.Store
	Generator       wizard.Generator
	Sidecar         *sidecar.Sidecar
	Instrumentation wizard.Instrumentation
	SaveObserver    persistence.AttemptObserver
	Save            persistence.ClientConfig
	CacheSize       int
	Logger          *zap.Logger
}

type sessionKey struct {
	userID string
	kind   string
}

// SessionManager keeps live sessions in an LRU cache. A session missing from
// the cache is rebuilt from the store once, however many requests ask for it
// concurrently.
type SessionManager struct {
	cfg     SessionConfig
	clients map[string]*persistence.Client
	cache   *lru.Cache[sessionKey, *wizard.Session]
	group   singleflight.Group
	logger  *zap.Logger
}

// NewSessionManager creates a manager with one persistence client per wizard.
func NewSessionManager(cfg SessionConfig) (*SessionManager, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	cache, err := lru.New[sessionKey, *wizard.Session](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}

	save := cfg.Save
	save.Observer = cfg.SaveObserver
	save.Logger = cfg.Logger
	clients := make(map[string]*persistence.Client)
	for _, kind := range cfg.Catalog.Kinds() {
		clients[kind] = persistence.NewClient(cfg.Store, kind, save)
	}

	return &SessionManager{
		cfg:     cfg,
		clients: clients,
		cache:   cache,
		logger:  cfg.Logger,
	}, nil
}

// Get returns the live session of userID in the wizard of the given kind,
// resuming it from the store on first access.
func (m *SessionManager) Get(ctx context.Context, userID, kind string) (*wizard.Session, *catalog.Wizard, error) {
	w, ok := m.cfg.Catalog.Get(kind)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownWizard, kind)
	}
	key := sessionKey{userID: userID, kind: kind}
	if s, ok := m.cache.Get(key); ok {
		return s, w, nil
	}

	v, err, shared := m.group.Do(userID+"\x00"+kind, func() (interface{}, error) {
		if s, ok := m.cache.Get(key); ok {
			return s, nil
		}
		opts := wizard.Options{
			Store:           m.clients[kind],
			Generator:       m.cfg.Generator,
			Instrumentation: m.cfg.Instrumentation,
			Logger:          m.logger,
		}
		if t := m.Tracker(userID, kind); t != nil {
			opts.Sidecar = t
		}
		s := wizard.NewSession(w.Definition, userID, opts)
		if err := s.Resume(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		m.cache.Add(key, s)
		return s, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if shared {
		m.logger.Debug("session resume shared", zap.String("wizard", kind), zap.String("user_id", userID))
	}
	return v.(*wizard.Session), w, nil
}

// Tracker is the progress sidecar of one user in one wizard. It is nil when
// the manager runs without a sidecar.
func (m *SessionManager) Tracker(userID, kind string) *sidecar.Tracker {
	if m.cfg.Sidecar == nil {
		return nil
	}
	return m.cfg.Sidecar.For(userID, kind)
}

// Catalog is the set of wizards the manager serves.
func (m *SessionManager) Catalog() *catalog.Catalog { return m.cfg.Catalog }

// Len is the number of cached sessions.
func (m *SessionManager) Len() int { return m.cache.Len() }
