package broadcast

import "sync"

// subscriberBuffer bounds how many undelivered events a slow viewer may
// accumulate before further events are dropped for it.
const subscriberBuffer = 16

// Hub is the in-process half of the broadcaster. Each connected viewer
// (an SSE stream handler) subscribes and receives every published event
// on its own buffered channel. Publishing never blocks: when a
// subscriber's buffer is full the event is dropped for that subscriber,
// which then catches up through its next availability pull.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewHub returns an empty hub ready for subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new viewer and returns its event channel along
// with a cancel function. The cancel function must be called exactly once
// when the viewer disconnects; it closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to every current subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default: // subscriber too slow, drop
		}
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
