package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Anchinlu/restaurant-reservation/internal/repository"
	"github.com/Anchinlu/restaurant-reservation/internal/reservation"
	"github.com/Anchinlu/restaurant-reservation/internal/tableview"
)

// BrowseHandler serves the public read side: branch and table catalogs
// plus the availability snapshot clients render their floor plan from.
type BrowseHandler struct {
	Engine    *reservation.Engine   // availability snapshots
	TableRepo *repository.TableRepo // branch and table catalog
}

// NewBrowseHandler constructs a BrowseHandler.  Both dependencies must
// be non-nil.
func NewBrowseHandler(engine *reservation.Engine, tableRepo *repository.TableRepo) *BrowseHandler {
	if engine == nil || tableRepo == nil {
		panic("nil dependency passed to NewBrowseHandler")
	}
	return &BrowseHandler{Engine: engine, TableRepo: tableRepo}
}

// tableState is one row of the availability snapshot.
type tableState struct {
	TableID     uint64 `json:"table_id"`
	TableNumber uint32 `json:"table_number"`
	Capacity    uint32 `json:"capacity"`
	State       string `json:"state"` // free | reserved | booked
}

// Availability handles GET /v1/availability.  Query parameters:
// branch_id (required) and time (optional RFC 3339, defaults to now).
// Expired holds are purged before the snapshot is taken, so a hold past
// its expiry never shows as reserved.  Tables without an overlapping
// booking are reported as free.
func (h *BrowseHandler) Availability(c echo.Context) error {
	branchID, err := strconv.ParseUint(c.QueryParam("branch_id"), 10, 64)
	if err != nil || branchID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "branch_id is required"})
	}
	at := time.Now().UTC()
	if raw := c.QueryParam("time"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "time must be RFC 3339"})
		}
	}
	ctx := c.Request().Context()
	tables, err := h.TableRepo.ListByBranch(ctx, branchID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tables"})
	}
	states, err := h.Engine.Availability(ctx, branchID, at)
	if err != nil {
		if errors.Is(err, reservation.ErrMissingFields) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "branch_id is required"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load availability"})
	}
	out := make([]tableState, 0, len(tables))
	for _, t := range tables {
		state, ok := states[t.ID]
		if !ok {
			state = tableview.StateFree
		}
		out = append(out, tableState{
			TableID:     t.ID,
			TableNumber: t.TableNumber,
			Capacity:    t.Capacity,
			State:       state,
		})
	}
	win := h.Engine.Policy().At(at)
	return c.JSON(http.StatusOK, echo.Map{
		"branch_id":  branchID,
		"slot_start": win.Start.Format(time.RFC3339),
		"slot_end":   win.End.Format(time.RFC3339),
		"tables":     out,
	})
}

// ListBranches handles GET /v1/branches.
func (h *BrowseHandler) ListBranches(c echo.Context) error {
	branches, err := h.TableRepo.ListBranches(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load branches"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": branches})
}

// ListTables handles GET /v1/branches/:id/tables.
func (h *BrowseHandler) ListTables(c echo.Context) error {
	branchID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || branchID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid branch id"})
	}
	tables, err := h.TableRepo.ListByBranch(c.Request().Context(), branchID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load tables"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": tables})
}
