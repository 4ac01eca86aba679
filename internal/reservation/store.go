package reservation

import (
	"context"
	"time"

	"github.com/Anchinlu/restaurant-reservation/internal/model"
	"github.com/Anchinlu/restaurant-reservation/internal/timeslot"
)

// Table availability states reported to clients. A table missing from the
// availability map is free.
const (
	StateBooked   = "booked"   // a pending or confirmed booking overlaps
	StateReserved = "reserved" // only an unexpired hold overlaps
)

// Store is the availability store the engine runs against. The production
// implementation lives in internal/repository and is backed by MySQL;
// tests substitute an in-memory fake. The handle is passed in explicitly
// so the engine never touches a global connection.
type Store interface {
	// Begin opens a transaction. Every mutating engine operation runs
	// inside exactly one transaction.
	Begin(ctx context.Context) (Tx, error)

	// PurgeExpired physically deletes reserved rows whose hold expiry
	// precedes now. Idempotent and safe to call concurrently.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)

	// Availability reports, for every table of the branch with at least
	// one overlapping row, "booked" or "reserved". The window must
	// already be buffer-expanded; stored rows are buffer-expanded by the
	// implementation before the overlap test.
	Availability(ctx context.Context, branchID uint64, win timeslot.Window, now time.Time) (map[uint64]string, error)

	// CurrentHold returns the owner's unexpired hold, or nil when none
	// exists. Used for client rehydration after a reload.
	CurrentHold(ctx context.Context, ownerID uint64, now time.Time) (*model.Booking, error)
}

// Tx exposes the row-level operations the state machine composes. The
// conflict check and the subsequent insert must share one transaction;
// HasConflict locks matching rows so a concurrent claimant blocks until
// this transaction finishes.
type Tx interface {
	// CountActiveHolds counts the owner's unexpired reserved rows across
	// all branches.
	CountActiveHolds(ctx context.Context, ownerID uint64, now time.Time) (int, error)

	// ActiveTable fetches the table when it exists, is active and belongs
	// to the branch; otherwise it returns nil.
	ActiveTable(ctx context.Context, tableID, branchID uint64) (*model.Table, error)

	// HasConflict reports whether any non-cancelled row on the table
	// occupies a window overlapping win (already buffer-expanded).
	// Expired holds never count. Matching rows are locked FOR UPDATE.
	HasConflict(ctx context.Context, tableID uint64, win timeslot.Window, now time.Time) (bool, error)

	// InsertHold inserts a new reserved row and returns its id.
	InsertHold(ctx context.Context, b *model.Booking) (uint64, error)

	// BookingForUpdate fetches a booking by id with a row lock, or nil
	// when absent.
	BookingForUpdate(ctx context.Context, id uint64) (*model.Booking, error)

	// MarkPending promotes a hold: status becomes pending, the expiry is
	// cleared and guest metadata is attached.
	MarkPending(ctx context.Context, id uint64, guestCount uint32, note string) error

	// InsertItems bulk-inserts the pre-ordered line items of a booking.
	InsertItems(ctx context.Context, bookingID uint64, items []model.BookingItem) error

	// HeldBooking fetches the reserved row by id and owner, or nil when
	// no such hold exists.
	HeldBooking(ctx context.Context, id, ownerID uint64) (*model.Booking, error)

	// DeleteBooking removes the row outright.
	DeleteBooking(ctx context.Context, id uint64) error

	// UpdateStatus overwrites the status unconditionally and reports
	// whether a row was affected.
	UpdateStatus(ctx context.Context, id uint64, status string) (bool, error)

	Commit() error
	Rollback() error
}
