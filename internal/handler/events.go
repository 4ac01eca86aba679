package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Anchinlu/restaurant-reservation/internal/broadcast"
)

// keepAliveInterval is how often a comment line is written to an idle
// stream so proxies do not drop the connection.
const keepAliveInterval = 25 * time.Second

// EventsHandler streams table state changes to browsers over
// server-sent events.  Each connected client gets its own subscription
// on the hub; a client that stops reading is dropped by the hub rather
// than blocking publishers.
type EventsHandler struct {
	Hub *broadcast.Hub
}

// NewEventsHandler constructs an EventsHandler.  The hub must be non-nil.
func NewEventsHandler(hub *broadcast.Hub) *EventsHandler {
	if hub == nil {
		panic("nil hub passed to NewEventsHandler")
	}
	return &EventsHandler{Hub: hub}
}

// Stream handles GET /v1/events.  It holds the connection open and
// writes one SSE message per table event until the client disconnects.
func (h *EventsHandler) Stream(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	events, cancel := h.Hub.Subscribe()
	defer cancel()

	// initial comment so the client knows the stream is live
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, open := <-events:
			if !open {
				return nil
			}
			if err := writeEvent(w, ev); err != nil {
				return nil
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

// writeEvent serialises one event in SSE wire format.
func writeEvent(w *echo.Response, ev broadcast.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}
