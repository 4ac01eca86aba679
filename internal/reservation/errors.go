// Package reservation implements the table-hold state machine: a row is
// born as a short-lived hold, promoted to a pending booking by its owner,
// or released by cancellation or expiry. All mutating operations run in a
// single store transaction; events are emitted only after commit.
package reservation

import "errors"

// Sentinel errors returned by the engine. Handlers translate these into
// HTTP statuses; anything not in this list is a server-side failure that
// has already been rolled back.
var (
	// ErrMissingFields signals absent or zero-valued required input.
	ErrMissingFields = errors.New("missing required fields")

	// ErrTableNotFound means the table does not exist, is inactive, or
	// belongs to a different branch.
	ErrTableNotFound = errors.New("table not found")

	// ErrTooManyHolds is the anti-spam guard: the owner already has the
	// maximum number of unexpired holds.
	ErrTooManyHolds = errors.New("too many active holds")

	// ErrConflict means another booking occupies an overlapping window on
	// the same table. Never retried server-side.
	ErrConflict = errors.New("table already taken for that time")

	// ErrHoldExpired means the hold lapsed before Confirm; the owner must
	// start over with a fresh hold.
	ErrHoldExpired = errors.New("hold expired")

	// ErrForbidden means the caller does not own the reservation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means no matching reservation row exists.
	ErrNotFound = errors.New("reservation not found")

	// ErrInvalidStatus rejects an unknown status value on the staff
	// override endpoint.
	ErrInvalidStatus = errors.New("invalid status")
)
