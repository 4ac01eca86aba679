package model

import "time"

// Booking statuses as stored in the bookings.status enum. A single
// lifecycle covers both the temporary hold and the confirmed booking:
// rows are born as StatusReserved, promoted to StatusPending on
// confirmation and moved onward by staff.
const (
	StatusReserved  = "reserved"  // temporary hold, expires at ReservedUntil
	StatusPending   = "pending"   // confirmed by the customer, awaiting the branch
	StatusConfirmed = "confirmed" // accepted by staff
	StatusCompleted = "completed" // seating finished
	StatusCancelled = "cancelled" // cancelled by customer or staff
)

// ValidStatus reports whether s is one of the known booking statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusReserved, StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Booking is the central record of the reservation subsystem, one row in
// the `bookings` table. A row with status "reserved" is a short-lived
// hold: ReservedUntil is set and the row is treated as absent once that
// instant passes. Confirmation clears ReservedUntil and attaches guest
// metadata and pre-ordered items.
//
// Fields:
//
//	ID            – primary key identifier.
//	UserID        – owner who created the hold.
//	BranchID      – branch the table belongs to.
//	TableID       – physical table being claimed.
//	TableNumber   – display number of the table, denormalized at hold time.
//	BookingTime   – requested occupancy start instant (UTC).
//	GuestCount    – party size, set at confirm time.
//	Note          – free-form customer note, set at confirm time.
//	Status        – lifecycle status, see constants above.
//	ReservedUntil – hold expiry; non-nil iff Status is "reserved".
//	CreatedAt     – creation timestamp.
type Booking struct {
	ID            uint64     // bookings.id
	UserID        uint64     // bookings.user_id
	BranchID      uint64     // bookings.branch_id
	TableID       uint64     // bookings.table_id
	TableNumber   uint32     // bookings.table_number
	BookingTime   time.Time  // bookings.booking_time
	GuestCount    uint32     // bookings.guest_count
	Note          string     // bookings.note
	Status        string     // bookings.status
	ReservedUntil *time.Time // bookings.reserved_until (nullable)
	CreatedAt     time.Time  // bookings.created_at
}

// HoldActive reports whether the booking is an unexpired hold at the
// given instant.
func (b *Booking) HoldActive(now time.Time) bool {
	return b.Status == StatusReserved && b.ReservedUntil != nil && b.ReservedUntil.After(now)
}

// BookingItem is one pre-ordered line item attached to a booking at
// confirm time, a row in `booking_items`. Products themselves live in a
// separate catalog service; only the identifier and the unit price at
// order time are kept here.
//
// Fields:
//
//	ID        – primary key identifier.
//	BookingID – booking the item belongs to.
//	ProductID – catalog product identifier.
//	Quantity  – number of units ordered.
//	UnitPrice – price per unit at order time, in minor currency units.
type BookingItem struct {
	ID        uint64 // booking_items.id
	BookingID uint64 // booking_items.booking_id
	ProductID uint64 // booking_items.product_id
	Quantity  uint32 // booking_items.quantity
	UnitPrice int64  // booking_items.price
}
