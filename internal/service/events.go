package service

import (
	"sync"
	"time"
)

const (
	EventRegistered       = "registered"
	EventReferralCredited = "referral_credited"
)

// Event is one registration-flow occurrence published to the admin
// live feed.
type Event struct {
	Type       string    `json:"type"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username"`
	ReferrerID *int64    `json:"referrer_id,omitempty"`
	At         time.Time `json:"at"`
}

// Hub fans registration events out to subscribers. Publish never
// blocks; a subscriber that cannot keep up loses events.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[int]chan Event),
	}
}

func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	ch := make(chan Event, 16)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
