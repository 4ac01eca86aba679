package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Anchinlu/restaurant-reservation/internal/repository"
	"github.com/Anchinlu/restaurant-reservation/internal/reservation"
)

// AdminHandler exposes the staff surface: listing all bookings with
// customer details and forcing a booking through its status lifecycle.
// Role checks happen in middleware; these handlers trust the caller is
// an admin.
type AdminHandler struct {
	Engine      *reservation.Engine     // status transitions
	BookingRepo *repository.BookingRepo // listing queries
}

// NewAdminHandler constructs an AdminHandler.  Both dependencies must be
// non-nil.
func NewAdminHandler(engine *reservation.Engine, bookingRepo *repository.BookingRepo) *AdminHandler {
	if engine == nil || bookingRepo == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Engine: engine, BookingRepo: bookingRepo}
}

// ListBookings handles GET /v1/admin/bookings.  Optional query
// parameters: upcoming=true restricts to future bookings, date=YYYY-MM-DD
// restricts to a single day.  Results include customer name and phone.
func (h *AdminHandler) ListBookings(c echo.Context) error {
	filter := repository.AdminFilter{
		Upcoming: c.QueryParam("upcoming") == "true",
	}
	if raw := c.QueryParam("date"); raw != "" {
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		filter.Date = raw
	}
	details, err := h.BookingRepo.ListAll(c.Request().Context(), filter, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": details})
}

// UpdateStatus handles PUT /v1/admin/bookings/:id/status.  The body must
// carry a "status" field with one of the known lifecycle values.  Admins
// may move a booking to any state regardless of ownership.  Moving a
// booking out of its held state clears the expiry timer.
func (h *AdminHandler) UpdateStatus(c echo.Context) error {
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := decodeBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	status := b.str("status")
	if err := h.Engine.AdminUpdateStatus(c.Request().Context(), bookingID, status); err != nil {
		switch {
		case errors.Is(err, reservation.ErrInvalidStatus):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
		case errors.Is(err, reservation.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update status"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id": bookingID,
		"status":     status,
	})
}
