package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Anchinlu/restaurant-reservation/internal/model"
)

// nullTime scans a nullable DATETIME into a *time.Time.
type nullTime struct{ p **time.Time }

func (n *nullTime) Scan(v any) error {
	var t sql.NullTime
	if err := t.Scan(v); err != nil {
		return err
	}
	if t.Valid {
		tt := t.Time
		*n.p = &tt
	} else {
		*n.p = nil
	}
	return nil
}

// BookingDetail is a booking joined with the customer-facing context
// needed by history and staff listings.
type BookingDetail struct {
	model.Booking
	BranchName    string              // branches.name
	BranchAddress string              // branches.address
	CustomerName  string              // users.full_name, staff listing only
	CustomerPhone string              // users.phone, staff listing only
	Items         []model.BookingItem // attached line items
}

// AdminFilter narrows the staff listing. Upcoming selects bookings from
// now onward that are not yet resolved; Date selects one calendar day.
// Upcoming wins when both are set.
type AdminFilter struct {
	Upcoming bool
	Date     string // "2006-01-02"
}

// ListByOwner returns the owner's bookings, newest seating first, each
// with its line items and branch info attached.
func (r *BookingRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]BookingDetail, error) {
	const q = `
        SELECT b.id, b.user_id, b.branch_id, b.table_id, b.table_number, b.booking_time,
               COALESCE(b.guest_count, 0), COALESCE(b.note, ''), b.status, b.reserved_until, b.created_at,
               br.name, br.address
        FROM bookings b
        JOIN branches br ON b.branch_id = br.id
        WHERE b.user_id = ?
        ORDER BY b.booking_time DESC`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	details, err := collectDetails(rows, false)
	if err != nil {
		return nil, err
	}
	return r.attachItems(ctx, details)
}

// ListAll returns bookings for staff, filtered and sorted by seating time
// ascending so the day's schedule reads top to bottom.
func (r *BookingRepo) ListAll(ctx context.Context, f AdminFilter, now time.Time) ([]BookingDetail, error) {
	q := `
        SELECT b.id, b.user_id, b.branch_id, b.table_id, b.table_number, b.booking_time,
               COALESCE(b.guest_count, 0), COALESCE(b.note, ''), b.status, b.reserved_until, b.created_at,
               COALESCE(br.name, ''), COALESCE(br.address, ''),
               COALESCE(u.full_name, ''), COALESCE(u.phone, '')
        FROM bookings b
        LEFT JOIN branches br ON b.branch_id = br.id
        LEFT JOIN users u ON b.user_id = u.id
        WHERE 1=1`
	args := []interface{}{}
	if f.Upcoming {
		q += ` AND b.booking_time >= ? AND b.status IN ('pending', 'confirmed')`
		args = append(args, now.UTC())
	} else if f.Date != "" {
		q += ` AND DATE(b.booking_time) = ?`
		args = append(args, f.Date)
	}
	q += ` ORDER BY b.booking_time ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	details, err := collectDetails(rows, true)
	if err != nil {
		return nil, err
	}
	return r.attachItems(ctx, details)
}

// collectDetails drains a listing result set. withCustomer selects the
// wider staff projection.
func collectDetails(rows *sql.Rows, withCustomer bool) ([]BookingDetail, error) {
	defer rows.Close()
	var out []BookingDetail
	for rows.Next() {
		var d BookingDetail
		dest := []any{
			&d.ID, &d.UserID, &d.BranchID, &d.TableID, &d.TableNumber, &d.BookingTime,
			&d.GuestCount, &d.Note, &d.Status, &nullTime{&d.ReservedUntil}, &d.CreatedAt,
			&d.BranchName, &d.BranchAddress,
		}
		if withCustomer {
			dest = append(dest, &d.CustomerName, &d.CustomerPhone)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// attachItems loads line items for each detail, one query per booking.
// Listings are small (one user's history, one day's schedule) so the
// per-row query keeps the SQL simple.
func (r *BookingRepo) attachItems(ctx context.Context, details []BookingDetail) ([]BookingDetail, error) {
	const q = `SELECT id, booking_id, product_id, quantity, price FROM booking_items WHERE booking_id = ?`
	for i := range details {
		rows, err := r.db.QueryContext(ctx, q, details[i].ID)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var it model.BookingItem
			if err := rows.Scan(&it.ID, &it.BookingID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
				rows.Close()
				return nil, err
			}
			details[i].Items = append(details[i].Items, it)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return details, nil
}
