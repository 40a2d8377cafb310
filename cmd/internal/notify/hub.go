package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Hub fans events out to every live session of an identity.
//
// Publish never blocks: a full or closing client queue drops the event.
// Notifications are best effort; the records they announce are always
// readable through the REST endpoints.
type Hub struct {
	log *slog.Logger
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]map[string]*Client // identity -> session -> client
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]map[string]*Client),
	}
}

// Join registers client under its identity.
func (h *Hub) Join(client *Client) {
	if h == nil || client == nil || client.SessionID == "" || client.IdentityID == "" {
		return
	}

	h.mu.Lock()
	bySession := h.sessions[client.IdentityID]
	if bySession == nil {
		bySession = make(map[string]*Client)
		h.sessions[client.IdentityID] = bySession
	}
	bySession[client.SessionID] = client
	h.mu.Unlock()

	h.log.Info("notify.session.join", "identity_id", client.IdentityID, "session_id", client.SessionID)
}

// Leave removes the session, then signals its shutdown.
func (h *Hub) Leave(client *Client) {
	if h == nil || client == nil {
		return
	}

	h.mu.Lock()
	if bySession := h.sessions[client.IdentityID]; bySession != nil {
		delete(bySession, client.SessionID)
		if len(bySession) == 0 {
			delete(h.sessions, client.IdentityID)
		}
	}
	h.mu.Unlock()

	client.Close()
	h.log.Info("notify.session.leave", "identity_id", client.IdentityID, "session_id", client.SessionID)
}

// Publish delivers ev to identityID's sessions and returns how many accepted it.
func (h *Hub) Publish(identityID string, ev Event) int {
	if h == nil || identityID == "" {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, c := range h.sessions[identityID] {
		select {
		case <-c.Done():
			continue
		default:
		}

		select {
		case c.Send <- ev:
			delivered++
		default:
			h.log.Warn("notify.drop.backpressure", "identity_id", identityID, "session_id", c.SessionID, "type", ev.Type)
		}
	}
	return delivered
}

// Notify builds an event of type typ and publishes it. Encoding failures are
// logged and dropped.
func (h *Hub) Notify(identityID, typ string, data any) {
	if h == nil {
		return
	}
	ev, err := NewEvent(typ, data, h.now())
	if err != nil {
		h.log.Error("notify.event.fail", "err", err, "type", typ)
		return
	}
	h.Publish(identityID, ev)
}

// Sessions returns the number of live sessions for identityID.
func (h *Hub) Sessions(identityID string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[identityID])
}

// CloseAll ends every live session and returns how many there were. Their
// gateways see the closed client and hang up with a going-away status.
func (h *Hub) CloseAll() int {
	if h == nil {
		return 0
	}

	h.mu.Lock()
	var all []*Client
	for _, bySession := range h.sessions {
		for _, c := range bySession {
			all = append(all, c)
		}
	}
	h.sessions = make(map[string]map[string]*Client)
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	return len(all)
}
