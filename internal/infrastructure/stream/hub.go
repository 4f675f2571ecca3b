package stream

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/taskapp/taskstream/internal/api/metrics"
	"github.com/taskapp/taskstream/internal/core/domain"
)

const (
	subscriberBuffer = 64
	maxRecentEvents  = 100
)

// Hub is the per-instance registry of live push subscriptions. Each
// connected client holds one Subscription keyed by username; Send fans a
// notification out to every subscription belonging to its recipient.
//
// The hub also keeps a bounded ring of recent events per user so a client
// reconnecting with a Last-Event-ID can replay what it missed.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	recent map[string][]*domain.Notification
	log    zerolog.Logger
}

// Subscription is one client's view onto the hub. Events arrives buffered;
// a subscriber that falls subscriberBuffer events behind starts losing
// events (and will catch up via the client's wholesale refetch).
type Subscription struct {
	username string
	events   chan *domain.Notification
	hub      *Hub
	once     sync.Once
}

// Events returns the channel notifications are delivered on. The channel is
// closed when the subscription is cancelled.
func (s *Subscription) Events() <-chan *domain.Notification {
	return s.events
}

// Cancel removes the subscription from the hub and closes Events. Safe to
// call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.events)
	})
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string][]*Subscription),
		recent: make(map[string][]*domain.Notification),
		log:    log,
	}
}

// Subscribe registers a new subscription for username. When lastEventID
// identifies an event still held in the recent ring, every later event for
// that user is queued onto the subscription before it goes live.
func (h *Hub) Subscribe(username, lastEventID string) *Subscription {
	sub := &Subscription{
		username: username,
		events:   make(chan *domain.Notification, subscriberBuffer),
		hub:      h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if lastEventID != "" {
		for _, n := range h.missedSinceLocked(username, lastEventID) {
			select {
			case sub.events <- n:
			default:
			}
		}
	}

	h.subs[username] = append(h.subs[username], sub)
	metrics.StreamConnections.Inc()

	h.log.Debug().Str("username", username).Int("connections", len(h.subs[username])).Msg("push subscription registered")
	return sub
}

// Send delivers n to every subscription held by its recipient and records
// it in the recent ring. Slow subscribers lose the event rather than block
// the sender.
func (h *Hub) Send(n *domain.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ring := append(h.recent[n.Username], n)
	if len(ring) > maxRecentEvents {
		ring = ring[len(ring)-maxRecentEvents:]
	}
	h.recent[n.Username] = ring

	for _, sub := range h.subs[n.Username] {
		select {
		case sub.events <- n:
			metrics.NotificationsDeliveredTotal.WithLabelValues(n.Type).Inc()
		default:
			metrics.NotificationsDroppedTotal.Inc()
			h.log.Warn().Str("username", n.Username).Str("event_id", n.ID).Msg("subscriber buffer full, event dropped")
		}
	}
}

// ActiveConnections returns the number of open subscriptions on this instance.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.subs {
		total += len(subs)
	}
	return total
}

// missedSinceLocked returns the events recorded for username after the one
// with lastEventID. An unknown ID yields nothing; the client refetches
// wholesale on its first notification anyway.
func (h *Hub) missedSinceLocked(username, lastEventID string) []*domain.Notification {
	ring := h.recent[username]
	for i, n := range ring {
		if n.ID == lastEventID {
			return ring[i+1:]
		}
	}
	return nil
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[sub.username]
	for i, s := range subs {
		if s == sub {
			h.subs[sub.username] = append(subs[:i], subs[i+1:]...)
			metrics.StreamConnections.Dec()
			break
		}
	}
	if len(h.subs[sub.username]) == 0 {
		delete(h.subs, sub.username)
	}
}
