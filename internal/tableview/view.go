// Package tableview is the client-side half of the synchronization story:
// a per-viewer table map kept current from the broadcast stream and from
// periodic availability pulls. The web frontend implements the same logic
// in the browser; this package backs Go clients and the tests that pin
// down the reconciliation rules.
package tableview

import (
	"sync"
	"time"

	"github.com/Anchinlu/restaurant-reservation/internal/broadcast"
	"github.com/Anchinlu/restaurant-reservation/internal/timeslot"
)

// Table states as the viewer sees them.
const (
	StateFree     = "free"
	StateReserved = "reserved"
	StateBooked   = "booked"
)

// View reconciles a local tableID -> state map against broadcast events.
// An event only mutates the map when its seating window overlaps the
// window the viewer is currently looking at; events about other time
// slots are ignored so they cannot corrupt the visible state.
type View struct {
	mu     sync.Mutex
	policy timeslot.Policy
	start  time.Time // seating start the viewer browses
	states map[uint64]string

	holdID     uint64 // the viewer's own hold, zero when none
	holdExpiry time.Time
}

// New creates a view for the seating starting at start.
func New(policy timeslot.Policy, start time.Time) *View {
	return &View{
		policy: policy,
		start:  start.UTC(),
		states: make(map[uint64]string),
	}
}

// SetWindow moves the viewed seating start. The map contents become
// stale and callers should follow up with a Resync.
func (v *View) SetWindow(start time.Time) {
	v.mu.Lock()
	v.start = start.UTC()
	v.mu.Unlock()
}

// Apply folds one broadcast event into the map. It returns true when the
// event was relevant to the viewed window and changed the map.
func (v *View) Apply(ev broadcast.Event) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.policy.Conflicts(v.start, ev.BookingTime) {
		return false
	}
	switch ev.Type {
	case broadcast.TableReserved:
		// never downgrade a booked table on a reserve event
		if v.states[ev.TableID] == StateBooked {
			return false
		}
		v.states[ev.TableID] = StateReserved
	case broadcast.TableReleased:
		delete(v.states, ev.TableID)
	default:
		return false
	}
	return true
}

// Resync replaces the map from a fresh availability pull. Used on
// initial load and after a reconnect.
func (v *View) Resync(availability map[uint64]string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.states = make(map[uint64]string, len(availability))
	for id, st := range availability {
		v.states[id] = st
	}
}

// State reports the viewer-visible state of one table.
func (v *View) State(tableID uint64) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if st, ok := v.states[tableID]; ok {
		return st
	}
	return StateFree
}

// Snapshot copies the current non-free table states.
func (v *View) Snapshot() map[uint64]string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[uint64]string, len(v.states))
	for id, st := range v.states {
		out[id] = st
	}
	return out
}

// TrackHold records the viewer's own reservation so HoldLapsed can warn
// before a doomed Confirm attempt.
func (v *View) TrackHold(reservationID uint64, expiresAt time.Time) {
	v.mu.Lock()
	v.holdID = reservationID
	v.holdExpiry = expiresAt.UTC()
	v.mu.Unlock()
}

// ClearHold forgets the tracked hold after a confirm or cancel.
func (v *View) ClearHold() {
	v.mu.Lock()
	v.holdID = 0
	v.holdExpiry = time.Time{}
	v.mu.Unlock()
}

// HoldLapsed reports whether the tracked hold has expired at now. A
// lapsed hold means the next Confirm will fail and the viewer must start
// over from Hold.
func (v *View) HoldLapsed(now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.holdID != 0 && !v.holdExpiry.After(now)
}

// Hold returns the tracked reservation id, zero when none.
func (v *View) Hold() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.holdID
}
