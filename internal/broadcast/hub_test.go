package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFanOut(t *testing.T) {
	h := NewHub()

	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelA()
	defer cancelB()
	require.Equal(t, 2, h.Len())

	ev := Event{Type: TableReserved, TableID: 5, BookingTime: time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)}
	h.Publish(ev)

	assert.Equal(t, ev, <-a)
	assert.Equal(t, ev, <-b)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe()
	cancel()
	assert.Equal(t, 0, h.Len())

	// channel is closed after cancel
	_, open := <-ch
	assert.False(t, open)

	// cancel is safe to call twice
	cancel()

	// publishing to an empty hub is a no-op
	h.Publish(Event{Type: TableReleased, TableID: 1})
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe()
	defer cancel()

	// Fill the buffer and keep publishing; Publish must drop rather than block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			h.Publish(Event{Type: TableReserved, TableID: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	// The subscriber still sees the buffered prefix in order.
	first := <-ch
	assert.Equal(t, uint64(0), first.TableID)
}

func TestTee(t *testing.T) {
	var got []Event
	sink := PublisherFunc(func(ev Event) { got = append(got, ev) })

	tee := Tee{sink, sink}
	tee.Publish(Event{Type: TableReleased, TableID: 7})

	assert.Len(t, got, 2)
	assert.Equal(t, uint64(7), got[0].TableID)
}
