package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHub_PublishAndSubscribe(t *testing.T) {
	hub := NewHub()

	first, cancelFirst := hub.Subscribe()
	second, cancelSecond := hub.Subscribe()
	defer cancelSecond()

	event := Event{Type: EventRegistered, TelegramID: 100, Username: "alice", At: time.Now()}
	hub.Publish(event)

	assert.Equal(t, event, <-first)
	assert.Equal(t, event, <-second)

	cancelFirst()
	_, open := <-first
	assert.False(t, open, "cancelled subscription must be closed")

	// Publishing after a cancel must not panic or block.
	hub.Publish(event)
	assert.Equal(t, event, <-second)
}

func TestHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := NewHub()

	events, cancel := hub.Subscribe()
	defer cancel()

	// Overflow the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Publish(Event{Type: EventRegistered, TelegramID: int64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The buffered prefix is still delivered in order.
	first := <-events
	assert.Equal(t, int64(0), first.TelegramID)
}
