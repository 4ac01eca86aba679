package handler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseBody(t *testing.T, raw string) body {
	t.Helper()
	var b body
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	return b
}

func TestBodyUint(t *testing.T) {
	b := parseBody(t, `{"tableId": 7, "branch_id": "12", "bad": "x"}`)

	assert.Equal(t, uint64(7), b.uint("tableId", "table_id"))
	assert.Equal(t, uint64(12), b.uint("branchId", "branch_id"))
	assert.Zero(t, b.uint("bad"))
	assert.Zero(t, b.uint("missing"))
}

func TestBodyTimeField(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Time
		ok   bool
	}{
		{"rfc3339", `{"bookingTime":"2026-09-01T19:00:00Z"}`, time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC), true},
		{"rfc3339 offset", `{"bookingTime":"2026-09-01T21:00:00+02:00"}`, time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC), true},
		{"mysql datetime", `{"bookingTime":"2026-09-01 19:00:00"}`, time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC), true},
		{"datetime-local", `{"bookingTime":"2026-09-01T19:00"}`, time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC), true},
		{"snake alias", `{"booking_time":"2026-09-01T19:00:00Z"}`, time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC), true},
		{"garbage", `{"bookingTime":"next tuesday"}`, time.Time{}, false},
		{"absent", `{}`, time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseBody(t, tc.raw).timeField("bookingTime", "booking_time")
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.True(t, got.Equal(tc.want), "got %v want %v", got, tc.want)
			}
		})
	}
}

func TestBodyItems(t *testing.T) {
	b := parseBody(t, `{"items":[{"id":3,"quantity":2,"price":450},{"product_id":9,"quantity":1,"unit_price":900}]}`)

	items, ok := b.items("items")
	require.True(t, ok)
	require.Len(t, items, 2)

	// legacy aliases fold into the canonical fields
	assert.Equal(t, uint64(3), items[0].ProductID)
	assert.Equal(t, int64(450), items[0].UnitPrice)
	assert.Equal(t, uint64(9), items[1].ProductID)
	assert.Equal(t, int64(900), items[1].UnitPrice)

	_, ok = parseBody(t, `{"items":"nope"}`).items("items")
	assert.False(t, ok)

	items, ok = parseBody(t, `{}`).items("items")
	assert.True(t, ok)
	assert.Empty(t, items)
}
