package gateway

import (
	"sync"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

const subscriberBuffer = 8

type hubKey struct {
	userID string
	kind   string
}

// Hub fans snapshots out to the streams watching one user's wizard.
type Hub struct {
	mu   sync.Mutex
	subs map[hubKey]map[chan wizard.Snapshot]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[hubKey]map[chan wizard.Snapshot]struct{})}
}

// Subscribe registers a stream. The returned cancel func must be called once
// the stream ends; it closes the channel.
func (h *Hub) Subscribe(userID, kind string) (<-chan wizard.Snapshot, func()) {
	key := hubKey{userID: userID, kind: kind}
	ch := make(chan wizard.Snapshot, subscriberBuffer)

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[chan wizard.Snapshot]struct{})
	}
	h.subs[key][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[key], ch)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
			close(ch)
		})
	}
}

// Publish delivers snap to every subscriber of its user and wizard. Slow
// subscribers have their oldest pending snapshot dropped.
func (h *Hub) Publish(snap wizard.Snapshot) {
	key := hubKey{userID: snap.UserID, kind: snap.Wizard}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[key] {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Subscribers counts the streams of one user's wizard.
func (h *Hub) Subscribers(userID, kind string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[hubKey{userID: userID, kind: kind}])
}
