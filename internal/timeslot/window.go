// Package timeslot is the single source of truth for occupancy-window
// arithmetic. Every conflict check, availability query and client-side
// reconciliation derives its interval from here so that slot duration and
// turnover buffer cannot drift between call sites.
package timeslot

import "time"

// Policy fixes the seating slot length and the cleanup buffer applied on
// both sides of a window when testing overlap. The buffer guarantees
// turnover time between consecutive seatings at the same table.
type Policy struct {
	SlotDuration  time.Duration // length of one seating, e.g. 1h
	CleanupBuffer time.Duration // turnover margin, e.g. 15m
}

// DefaultPolicy mirrors the production configuration: one-hour seatings
// with a fifteen-minute turnover buffer.
var DefaultPolicy = Policy{
	SlotDuration:  time.Hour,
	CleanupBuffer: 15 * time.Minute,
}

// Window is a half-open interval [Start, End). All instants are UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// At derives the occupancy window for a seating that begins at start:
// [start, start+SlotDuration).
func (p Policy) At(start time.Time) Window {
	s := start.UTC()
	return Window{Start: s, End: s.Add(p.SlotDuration)}
}

// Buffered expands w by the cleanup buffer on both sides. Overlap tests
// between seatings must always run on buffered windows.
func (p Policy) Buffered(w Window) Window {
	return Window{
		Start: w.Start.Add(-p.CleanupBuffer),
		End:   w.End.Add(p.CleanupBuffer),
	}
}

// Overlaps reports whether the half-open intervals w and other intersect:
// s1 < e2 && e1 > s2. Touching endpoints do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && w.End.After(other.Start)
}

// Conflicts reports whether two seatings starting at a and b would collide
// under the policy, i.e. whether their buffer-expanded windows overlap.
func (p Policy) Conflicts(a, b time.Time) bool {
	return p.Buffered(p.At(a)).Overlaps(p.Buffered(p.At(b)))
}
