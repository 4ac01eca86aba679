// Package broadcast defines the table-event fan-out used to keep every
// connected viewer's table map current. The reservation engine only knows
// the Publisher interface; concrete sinks (the in-process hub serving SSE
// clients and the AMQP exchange bridging server instances) are wired in at
// startup.
package broadcast

import "time"

// Event types mirror the names the web client listens for.
const (
	TableReserved = "tableReserved" // a hold was placed on a table
	TableReleased = "tableReleased" // a hold was cancelled or a booking freed the table
)

// Event announces a change to one table's timeline. The payload carries
// enough identity for clients to self-filter; no per-table routing happens
// at the transport level.
type Event struct {
	Type        string    `json:"type"`
	TableID     uint64    `json:"table_id"`
	BookingTime time.Time `json:"booking_time"`
}

// Publisher delivers events to currently connected viewers. Delivery is
// fire-and-forget and at-most-once: implementations must never block the
// reservation flow and a lost event must not affect the mutation that
// produced it.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ev Event)

// Publish calls f(ev).
func (f PublisherFunc) Publish(ev Event) { f(ev) }

// Tee fans one event out to several publishers in order.
type Tee []Publisher

// Publish forwards ev to every sink.
func (t Tee) Publish(ev Event) {
	for _, p := range t {
		p.Publish(ev)
	}
}
