// Package signaling carries interview events to connected clients. The Hub
// fans events out per session; a Runner drives one client connection.
package signaling

import (
	"log"
	"sync"

	"github.com/ent0n29/intervue/internal/observability"
	"github.com/ent0n29/intervue/internal/protocol"
)

const defaultSubscriptionBuffer = 32

// Hub is an in-process, per-session broadcast. Publishing never blocks: a
// subscriber that falls behind loses events, and its presence poller
// recovers the one that matters.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]map[*Subscription]struct{}
	buffer  int
	metrics *observability.Metrics
}

type Subscription struct {
	C <-chan protocol.ServerMessage

	ch        chan protocol.ServerMessage
	hub       *Hub
	sessionID string
	once      sync.Once
}

func NewHub(buffer int, metrics *observability.Metrics) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	return &Hub{
		subs:    make(map[string]map[*Subscription]struct{}),
		buffer:  buffer,
		metrics: metrics,
	}
}

func (h *Hub) Subscribe(sessionID string) *Subscription {
	ch := make(chan protocol.ServerMessage, h.buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h, sessionID: sessionID}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[s.sessionID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.sessionID)
			}
		}
		close(s.ch)
	})
}

func (h *Hub) Publish(sessionID string, msg protocol.ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[sessionID] {
		select {
		case sub.ch <- msg:
		default:
			h.metrics.ObserveWSMessage("dropped", string(msg.MessageType()))
			log.Printf("signaling subscriber for session %s is full, dropping %s", sessionID, msg.MessageType())
		}
	}
}

// Subscribers reports how many connections follow sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}
