package handler

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// The web clients historically sent a mix of camelCase and snake_case
// bodies. The tolerance lives entirely here at the boundary; handlers
// hand the engine one canonical shape.

// body is a loosely decoded JSON object supporting alias lookups.
type body map[string]json.RawMessage

// decodeBody reads the request body into a body map.
func decodeBody(c echo.Context) (body, error) {
	var b body
	if err := json.NewDecoder(c.Request().Body).Decode(&b); err != nil {
		return nil, err
	}
	return b, nil
}

// raw returns the first present alias.
func (b body) raw(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := b[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// uint reads an unsigned integer that may arrive as a JSON number or a
// numeric string. Returns zero when absent or malformed.
func (b body) uint(keys ...string) uint64 {
	v, ok := b.raw(keys...)
	if !ok {
		return 0
	}
	var n uint64
	if err := json.Unmarshal(v, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// str reads a string field, empty when absent.
func (b body) str(keys ...string) string {
	v, ok := b.raw(keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

// timeField reads a timestamp. Accepted layouts cover RFC 3339, the
// MySQL datetime format and the HTML datetime-local input.
func (b body) timeField(keys ...string) (time.Time, bool) {
	s := strings.TrimSpace(b.str(keys...))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// itemRequest is one pre-ordered line item as sent by the client.
type itemRequest struct {
	ID        uint64 `json:"id"` // legacy alias for product_id
	ProductID uint64 `json:"product_id"`
	Quantity  uint32 `json:"quantity"`
	Price     int64  `json:"price"` // legacy alias for unit_price
	UnitPrice int64  `json:"unit_price"`
}

// items reads the line-item array, tolerating both field spellings.
func (b body) items(keys ...string) ([]itemRequest, bool) {
	v, ok := b.raw(keys...)
	if !ok {
		return nil, true // absent is fine, items are optional
	}
	var reqs []itemRequest
	if err := json.Unmarshal(v, &reqs); err != nil {
		return nil, false
	}
	for i := range reqs {
		if reqs[i].ProductID == 0 {
			reqs[i].ProductID = reqs[i].ID
		}
		if reqs[i].UnitPrice == 0 {
			reqs[i].UnitPrice = reqs[i].Price
		}
	}
	return reqs, true
}
