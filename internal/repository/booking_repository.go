package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Anchinlu/restaurant-reservation/internal/model"
	"github.com/Anchinlu/restaurant-reservation/internal/reservation"
	"github.com/Anchinlu/restaurant-reservation/internal/timeslot"
)

// BookingRepo is the MySQL-backed availability store. It implements
// reservation.Store; the engine drives all mutations through transactions
// opened here. All timestamps are stored and compared in UTC — the DSN
// pins the session to UTC, and "now" always arrives as a parameter so the
// engine's clock is the only clock.
type BookingRepo struct {
	db     *sql.DB
	policy timeslot.Policy
}

// NewBookingRepo returns a BookingRepo bound to the given pool and window
// policy. The policy must match the engine's so the SQL interval
// arithmetic and the in-process arithmetic agree.
func NewBookingRepo(db *sql.DB, policy timeslot.Policy) *BookingRepo {
	return &BookingRepo{db: db, policy: policy}
}

// DB exposes the underlying pool for handlers that need read-only joins.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// Begin opens a transaction for one engine operation.
func (r *BookingRepo) Begin(ctx context.Context) (reservation.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &bookingTx{tx: tx, policy: r.policy}, nil
}

// PurgeExpired physically removes lapsed holds. The conflict and
// availability queries filter on reserved_until anyway, so this is pure
// housekeeping and safe to run concurrently.
func (r *BookingRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM bookings WHERE status = 'reserved' AND reserved_until < ?`,
		now.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Availability returns the state of every occupied table of the branch
// whose buffer-expanded window overlaps win (itself already expanded).
// A pending/confirmed row wins over a hold on the same table.
func (r *BookingRepo) Availability(ctx context.Context, branchID uint64, win timeslot.Window, now time.Time) (map[uint64]string, error) {
	const q = `
        SELECT table_id, status FROM bookings
        WHERE branch_id = ?
          AND status IN ('pending', 'confirmed', 'reserved')
          AND (status != 'reserved' OR reserved_until > ?)
          AND DATE_SUB(booking_time, INTERVAL ? SECOND) < ?
          AND DATE_ADD(booking_time, INTERVAL ? SECOND) > ?`
	buffer, span := r.intervals()
	rows, err := r.db.QueryContext(ctx, q,
		branchID, now.UTC(),
		buffer, win.End, span, win.Start,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64]string)
	for rows.Next() {
		var tableID uint64
		var status string
		if err := rows.Scan(&tableID, &status); err != nil {
			return nil, err
		}
		if status == model.StatusPending || status == model.StatusConfirmed {
			out[tableID] = reservation.StateBooked
		} else if out[tableID] != reservation.StateBooked {
			out[tableID] = reservation.StateReserved
		}
	}
	return out, rows.Err()
}

// CurrentHold fetches the owner's unexpired hold for rehydration.
func (r *BookingRepo) CurrentHold(ctx context.Context, ownerID uint64, now time.Time) (*model.Booking, error) {
	const q = selectBooking + ` WHERE user_id = ? AND status = 'reserved' AND reserved_until > ? LIMIT 1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, ownerID, now.UTC()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// intervals returns the buffer and buffer+slot lengths in whole seconds
// for the SQL interval arithmetic.
func (r *BookingRepo) intervals() (int64, int64) {
	buffer := int64(r.policy.CleanupBuffer / time.Second)
	return buffer, int64((r.policy.CleanupBuffer + r.policy.SlotDuration) / time.Second)
}

const selectBooking = `
    SELECT id, user_id, branch_id, table_id, table_number, booking_time,
           COALESCE(guest_count, 0), COALESCE(note, ''), status, reserved_until, created_at
    FROM bookings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var until sql.NullTime
	if err := row.Scan(
		&b.ID, &b.UserID, &b.BranchID, &b.TableID, &b.TableNumber, &b.BookingTime,
		&b.GuestCount, &b.Note, &b.Status, &until, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	if until.Valid {
		u := until.Time
		b.ReservedUntil = &u
	}
	return &b, nil
}

// bookingTx implements reservation.Tx over one *sql.Tx.
type bookingTx struct {
	tx      *sql.Tx
	policy  timeslot.Policy
	lockKey string // advisory lock held for the claimed table, empty when none
}

func (t *bookingTx) Commit() error {
	t.releaseLock()
	return t.tx.Commit()
}

func (t *bookingTx) Rollback() error {
	t.releaseLock()
	return t.tx.Rollback()
}

// releaseLock frees the table-scoped advisory lock. Safe to release
// before COMMIT: the inserted row's own lock keeps any waiter blocked
// until this transaction finishes.
func (t *bookingTx) releaseLock() {
	if t.lockKey == "" {
		return
	}
	_, _ = t.tx.Exec(`SELECT RELEASE_LOCK(?)`, t.lockKey)
	t.lockKey = ""
}

// CountActiveHolds counts the owner's unexpired holds across all branches
// for the anti-spam guard.
func (t *bookingTx) CountActiveHolds(ctx context.Context, ownerID uint64, now time.Time) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE user_id = ? AND status = 'reserved' AND reserved_until > ?`,
		ownerID, now.UTC(),
	).Scan(&n)
	return n, err
}

// ActiveTable fetches the table when it is active and belongs to the
// branch; nil otherwise.
func (t *bookingTx) ActiveTable(ctx context.Context, tableID, branchID uint64) (*model.Table, error) {
	var tbl model.Table
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, branch_id, table_number, capacity, is_active, created_at
         FROM tables WHERE id = ? AND branch_id = ? AND is_active = TRUE`,
		tableID, branchID,
	).Scan(&tbl.ID, &tbl.BranchID, &tbl.TableNumber, &tbl.Capacity, &tbl.IsActive, &tbl.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tbl, nil
}

// HasConflict runs the check-then-act guard. A table-scoped advisory
// lock serializes claimants even when no row exists yet to lock, and
// FOR UPDATE locks every matching row, so a concurrent claimant of an
// overlapping window blocks until this transaction finishes and then
// observes its insert.
func (t *bookingTx) HasConflict(ctx context.Context, tableID uint64, win timeslot.Window, now time.Time) (bool, error) {
	key := fmt.Sprintf("bookings.table.%d", tableID)
	var got sql.NullInt64
	if err := t.tx.QueryRowContext(ctx, `SELECT GET_LOCK(?, 5)`, key).Scan(&got); err != nil {
		return false, err
	}
	if !got.Valid || got.Int64 != 1 {
		return false, errors.New("timed out waiting for table lock")
	}
	t.lockKey = key

	const q = `
        SELECT id FROM bookings
        WHERE table_id = ?
          AND status != 'cancelled'
          AND (
                status IN ('pending', 'confirmed')
                OR (status = 'reserved' AND reserved_until > ?)
          )
          AND DATE_SUB(booking_time, INTERVAL ? SECOND) < ?
          AND DATE_ADD(booking_time, INTERVAL ? SECOND) > ?
        LIMIT 1
        FOR UPDATE`
	buffer := int64(t.policy.CleanupBuffer / time.Second)
	span := int64((t.policy.CleanupBuffer + t.policy.SlotDuration) / time.Second)

	var id uint64
	err := t.tx.QueryRowContext(ctx, q,
		tableID, now.UTC(),
		buffer, win.End, span, win.Start,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertHold inserts the reserved row and returns its id.
func (t *bookingTx) InsertHold(ctx context.Context, b *model.Booking) (uint64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, branch_id, table_id, table_number, booking_time, status, reserved_until)
         VALUES (?, ?, ?, ?, ?, 'reserved', ?)`,
		b.UserID, b.BranchID, b.TableID, b.TableNumber, b.BookingTime.UTC(), b.ReservedUntil.UTC(),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// BookingForUpdate fetches the row with a lock, or nil when absent.
func (t *bookingTx) BookingForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRowContext(ctx, selectBooking+` WHERE id = ? FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// MarkPending promotes the hold and clears its expiry.
func (t *bookingTx) MarkPending(ctx context.Context, id uint64, guestCount uint32, note string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'pending', reserved_until = NULL, guest_count = ?, note = ? WHERE id = ?`,
		guestCount, note, id,
	)
	return err
}

// InsertItems bulk-inserts the booking's line items in one statement.
func (t *bookingTx) InsertItems(ctx context.Context, bookingID uint64, items []model.BookingItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO booking_items (booking_id, product_id, quantity, price) VALUES `
	args := make([]interface{}, 0, len(items)*4)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, bookingID, it.ProductID, it.Quantity, it.UnitPrice)
	}
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

// HeldBooking fetches the reserved row by id and owner, or nil.
func (t *bookingTx) HeldBooking(ctx context.Context, id, ownerID uint64) (*model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRowContext(ctx,
		selectBooking+` WHERE id = ? AND user_id = ? AND status = 'reserved'`, id, ownerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// DeleteBooking removes the row; booking_items cascade via FK.
func (t *bookingTx) DeleteBooking(ctx context.Context, id uint64) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	return err
}

// UpdateStatus is the staff override: unconditional overwrite, reporting
// whether the row exists.
func (t *bookingTx) UpdateStatus(ctx context.Context, id uint64, status string) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, reserved_until = IF(? = 'reserved', reserved_until, NULL) WHERE id = ?`,
		status, status, id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	// RowsAffected is zero both for a missing row and for a no-op update;
	// distinguish with an existence probe.
	var id2 uint64
	err = t.tx.QueryRowContext(ctx, `SELECT id FROM bookings WHERE id = ?`, id).Scan(&id2)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
