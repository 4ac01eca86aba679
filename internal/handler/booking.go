package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Anchinlu/restaurant-reservation/internal/model"
	"github.com/Anchinlu/restaurant-reservation/internal/repository"
	"github.com/Anchinlu/restaurant-reservation/internal/reservation"
)

// BookingHandler exposes the customer-facing reservation flow: placing a
// temporary hold on a table, confirming it into a pending booking,
// releasing it and listing the caller's bookings.  All methods assume JWT
// authentication has already run; they return 401 when the user ID cannot
// be extracted from the context.  Conflict detection and state changes
// live in the reservation engine, the handler only translates errors to
// HTTP.
type BookingHandler struct {
	Engine      *reservation.Engine     // hold/confirm/cancel state machine
	BookingRepo *repository.BookingRepo // read-side listing queries
}

// NewBookingHandler constructs a BookingHandler.  Both dependencies must
// be non-nil.
func NewBookingHandler(engine *reservation.Engine, bookingRepo *repository.BookingRepo) *BookingHandler {
	if engine == nil || bookingRepo == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Engine: engine, BookingRepo: bookingRepo}
}

// Hold handles POST /v1/reservations/hold.  The body must carry a branch
// ID, a table ID and a booking time.  On success it returns 201 with the
// reservation ID, the table number and the hold expiry.  A table already
// taken for an overlapping window yields 409, too many live holds yields
// 429.
func (h *BookingHandler) Hold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	b, err := decodeBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	branchID := b.uint("branchId", "branch_id")
	tableID := b.uint("tableId", "table_id")
	bookingTime, ok := b.timeField("bookingTime", "booking_time", "time")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bookingTime is required"})
	}
	res, err := h.Engine.Hold(c.Request().Context(), userID, branchID, tableID, bookingTime)
	if err != nil {
		switch {
		case errors.Is(err, reservation.ErrMissingFields):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "branchId, tableId and bookingTime are required"})
		case errors.Is(err, reservation.ErrTableNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "table not found"})
		case errors.Is(err, reservation.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "table is not available for the selected time"})
		case errors.Is(err, reservation.ErrTooManyHolds):
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many pending holds"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reserve table"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id": res.ReservationID,
		"table_number":   res.TableNumber,
		"expires_at":     res.ExpiresAt.Format(time.RFC3339),
	})
}

// Confirm handles POST /v1/reservations/confirm.  It upgrades a live hold
// owned by the caller into a pending booking, optionally attaching guest
// count, a note and pre-ordered items.  Returns 200 with the booking ID,
// 404 when the hold does not exist, 403 when it belongs to someone else
// and 410 when it has already expired.
func (h *BookingHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	b, err := decodeBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	reservationID := b.uint("reservationId", "reservation_id")
	if reservationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservationId is required"})
	}
	reqItems, ok := b.items("items")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid items"})
	}
	items := make([]model.BookingItem, 0, len(reqItems))
	for _, it := range reqItems {
		if it.ProductID == 0 || it.Quantity == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "items require a product id and a positive quantity"})
		}
		items = append(items, model.BookingItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	guestCount := uint32(b.uint("guestCount", "guest_count"))
	err = h.Engine.Confirm(c.Request().Context(), reservationID, userID, guestCount, b.str("note"), items)
	if err != nil {
		switch {
		case errors.Is(err, reservation.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, reservation.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, reservation.ErrHoldExpired):
			return c.JSON(http.StatusGone, echo.Map{"error": "hold expired, please reserve again"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to confirm reservation"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id": reservationID,
		"status":     model.StatusPending,
	})
}

// Cancel handles DELETE /v1/reservations/hold/:id.  It releases a live
// hold owned by the caller and frees the table immediately.  Returns 204
// on success, 404 when no matching hold exists and 403 when the hold
// belongs to another user.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || reservationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.Engine.Cancel(c.Request().Context(), reservationID, userID); err != nil {
		switch {
		case errors.Is(err, reservation.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, reservation.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel reservation"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Current handles GET /v1/reservations/current.  It returns the caller's
// live hold, if any, so a reloaded client can resume its countdown.
// Responds 200 with the hold or 404 when none is active.
func (h *BookingHandler) Current(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	hold, err := h.Engine.CurrentHold(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load current hold"})
	}
	if hold == nil || hold.ReservedUntil == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no active hold"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation_id": hold.ID,
		"branch_id":      hold.BranchID,
		"table_id":       hold.TableID,
		"table_number":   hold.TableNumber,
		"booking_time":   hold.BookingTime.Format(time.RFC3339),
		"expires_at":     hold.ReservedUntil.Format(time.RFC3339),
	})
}

// MyBookings handles GET /v1/reservations/my.  It lists the caller's
// bookings newest first, including branch info and pre-ordered items.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.BookingRepo.ListByOwner(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": details})
}
