package reservation

import (
	"context"
	"time"

	"github.com/Anchinlu/restaurant-reservation/internal/broadcast"
	"github.com/Anchinlu/restaurant-reservation/internal/model"
	"github.com/Anchinlu/restaurant-reservation/internal/timeslot"
)

// Defaults mirror the production policy: five-minute decision window and
// at most three concurrent holds per owner.
const (
	DefaultHoldTTL  = 5 * time.Minute
	DefaultMaxHolds = 3
)

// Config tunes the engine. Zero values fall back to the defaults above
// and to timeslot.DefaultPolicy.
type Config struct {
	Policy   timeslot.Policy
	HoldTTL  time.Duration
	MaxHolds int
}

// Engine drives the hold → confirm → cancel/expire lifecycle. It depends
// only on the Store and Publisher abstractions; both are injected. The
// clock is a field so tests can advance time.
type Engine struct {
	store    Store
	pub      broadcast.Publisher
	policy   timeslot.Policy
	holdTTL  time.Duration
	maxHolds int
	now      func() time.Time
}

// New builds an engine. pub may be nil, in which case events are dropped.
func New(store Store, pub broadcast.Publisher, cfg Config) *Engine {
	if cfg.Policy.SlotDuration <= 0 {
		cfg.Policy = timeslot.DefaultPolicy
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultHoldTTL
	}
	if cfg.MaxHolds <= 0 {
		cfg.MaxHolds = DefaultMaxHolds
	}
	return &Engine{
		store:    store,
		pub:      pub,
		policy:   cfg.Policy,
		holdTTL:  cfg.HoldTTL,
		maxHolds: cfg.MaxHolds,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the window policy the engine operates under. Handlers
// use it to derive view windows for client synchronization.
func (e *Engine) Policy() timeslot.Policy { return e.policy }

// HoldResult is returned to the caller of Hold. The caller must confirm
// or re-hold before ExpiresAt or the slot is lost.
type HoldResult struct {
	ReservationID uint64
	TableNumber   uint32
	ExpiresAt     time.Time
}

// Hold places a temporary claim on a table for the seating starting at
// start. The spam guard, the table lookup, the conflict check and the
// insert all run inside one transaction; the conflict check locks
// overlapping rows so a concurrent claimant serializes behind this call
// and then observes the inserted hold.
func (e *Engine) Hold(ctx context.Context, ownerID, branchID, tableID uint64, start time.Time) (*HoldResult, error) {
	if ownerID == 0 || branchID == 0 || tableID == 0 || start.IsZero() {
		return nil, ErrMissingFields
	}
	now := e.now()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	held, err := tx.CountActiveHolds(ctx, ownerID, now)
	if err != nil {
		return nil, err
	}
	if held >= e.maxHolds {
		return nil, ErrTooManyHolds
	}

	tbl, err := tx.ActiveTable(ctx, tableID, branchID)
	if err != nil {
		return nil, err
	}
	if tbl == nil {
		return nil, ErrTableNotFound
	}

	win := e.policy.Buffered(e.policy.At(start))
	conflict, err := tx.HasConflict(ctx, tableID, win, now)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrConflict
	}

	expiry := now.Add(e.holdTTL)
	b := &model.Booking{
		UserID:        ownerID,
		BranchID:      branchID,
		TableID:       tableID,
		TableNumber:   tbl.TableNumber,
		BookingTime:   start.UTC(),
		Status:        model.StatusReserved,
		ReservedUntil: &expiry,
	}
	id, err := tx.InsertHold(ctx, b)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	e.publish(broadcast.Event{Type: broadcast.TableReserved, TableID: tableID, BookingTime: b.BookingTime})
	return &HoldResult{ReservationID: id, TableNumber: tbl.TableNumber, ExpiresAt: expiry}, nil
}

// Confirm promotes the owner's unexpired hold to a pending booking,
// attaching guest metadata and pre-ordered items. The status change and
// the item insert commit together; if the item insert fails the hold is
// left untouched.
func (e *Engine) Confirm(ctx context.Context, reservationID, ownerID uint64, guestCount uint32, note string, items []model.BookingItem) error {
	if reservationID == 0 || ownerID == 0 {
		return ErrMissingFields
	}
	now := e.now()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := tx.BookingForUpdate(ctx, reservationID)
	if err != nil {
		return err
	}
	if b == nil {
		return ErrNotFound
	}
	if b.UserID != ownerID {
		return ErrForbidden
	}
	if !b.HoldActive(now) {
		return ErrHoldExpired
	}

	if err := tx.MarkPending(ctx, reservationID, guestCount, note); err != nil {
		return err
	}
	if len(items) > 0 {
		if err := tx.InsertItems(ctx, reservationID, items); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Cancel releases the owner's hold and announces the freed slot. Only
// reserved rows can be cancelled by their owner; anything else reports
// ErrNotFound so the endpoint does not leak foreign reservations.
func (e *Engine) Cancel(ctx context.Context, reservationID, ownerID uint64) error {
	if reservationID == 0 || ownerID == 0 {
		return ErrMissingFields
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := tx.HeldBooking(ctx, reservationID, ownerID)
	if err != nil {
		return err
	}
	if b == nil {
		return ErrNotFound
	}
	if err := tx.DeleteBooking(ctx, reservationID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	e.publish(broadcast.Event{Type: broadcast.TableReleased, TableID: b.TableID, BookingTime: b.BookingTime})
	return nil
}

// AdminUpdateStatus is the staff override: an unconditional status
// overwrite with no ownership check. The owner sees the new state on
// their next read.
func (e *Engine) AdminUpdateStatus(ctx context.Context, reservationID uint64, status string) error {
	if reservationID == 0 {
		return ErrMissingFields
	}
	if !model.ValidStatus(status) {
		return ErrInvalidStatus
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ok, err := tx.UpdateStatus(ctx, reservationID, status)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Availability sweeps expired holds and then reports the state of every
// occupied table of the branch for the seating starting at start. Tables
// absent from the map are free.
func (e *Engine) Availability(ctx context.Context, branchID uint64, start time.Time) (map[uint64]string, error) {
	if branchID == 0 {
		return nil, ErrMissingFields
	}
	now := e.now()
	if start.IsZero() {
		start = now
	}
	if _, err := e.store.PurgeExpired(ctx, now); err != nil {
		return nil, err
	}
	win := e.policy.Buffered(e.policy.At(start))
	return e.store.Availability(ctx, branchID, win, now)
}

// CurrentHold returns the owner's live hold for rehydration, or nil.
func (e *Engine) CurrentHold(ctx context.Context, ownerID uint64) (*model.Booking, error) {
	if ownerID == 0 {
		return nil, ErrMissingFields
	}
	return e.store.CurrentHold(ctx, ownerID, e.now())
}

// Sweep physically deletes expired holds. It backs the housekeeping
// ticker; correctness never depends on it because every conflict check
// filters on the expiry column.
func (e *Engine) Sweep(ctx context.Context) (int64, error) {
	return e.store.PurgeExpired(ctx, e.now())
}

func (e *Engine) publish(ev broadcast.Event) {
	if e.pub != nil {
		e.pub.Publish(ev)
	}
}
