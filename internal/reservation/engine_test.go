package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anchinlu/restaurant-reservation/internal/broadcast"
	"github.com/Anchinlu/restaurant-reservation/internal/model"
	"github.com/Anchinlu/restaurant-reservation/internal/timeslot"
)

// memStore is an in-memory Store. A transaction holds the store mutex
// from Begin until Commit or Rollback, which models the serialization the
// MySQL row locks provide: concurrent claimants of the same table line up
// and the second one observes the first one's committed hold.
type memStore struct {
	mu       sync.Mutex
	policy   timeslot.Policy
	nextID   uint64
	bookings map[uint64]*model.Booking
	items    map[uint64][]model.BookingItem
	tables   map[uint64]*model.Table

	failItems bool // force InsertItems to fail, for atomicity tests
}

func newMemStore(policy timeslot.Policy, tables ...*model.Table) *memStore {
	s := &memStore{
		policy:   policy,
		bookings: make(map[uint64]*model.Booking),
		items:    make(map[uint64][]model.BookingItem),
		tables:   make(map[uint64]*model.Table),
	}
	for _, t := range tables {
		s.tables[t.ID] = t
	}
	return s
}

func (s *memStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	return &memTx{s: s}, nil
}

func (s *memStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, b := range s.bookings {
		if b.Status == model.StatusReserved && b.ReservedUntil != nil && !b.ReservedUntil.After(now) {
			delete(s.bookings, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) Availability(ctx context.Context, branchID uint64, win timeslot.Window, now time.Time) (map[uint64]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]string)
	for _, b := range s.bookings {
		if b.BranchID != branchID || b.Status == model.StatusCancelled {
			continue
		}
		if b.Status == model.StatusReserved && !b.HoldActive(now) {
			continue
		}
		if !s.policy.Buffered(s.policy.At(b.BookingTime)).Overlaps(win) {
			continue
		}
		if b.Status == model.StatusPending || b.Status == model.StatusConfirmed {
			out[b.TableID] = StateBooked
		} else if out[b.TableID] != StateBooked {
			out[b.TableID] = StateReserved
		}
	}
	return out, nil
}

func (s *memStore) CurrentHold(ctx context.Context, ownerID uint64, now time.Time) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.UserID == ownerID && b.HoldActive(now) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

// memTx buffers writes and applies them on Commit, so a rollback simply
// discards them.
type memTx struct {
	s       *memStore
	pending []func()
	done    bool
}

func (t *memTx) finish() {
	if !t.done {
		t.done = true
		t.s.mu.Unlock()
	}
}

func (t *memTx) Commit() error {
	for _, f := range t.pending {
		f()
	}
	t.finish()
	return nil
}

func (t *memTx) Rollback() error {
	t.finish()
	return nil
}

func (t *memTx) CountActiveHolds(ctx context.Context, ownerID uint64, now time.Time) (int, error) {
	n := 0
	for _, b := range t.s.bookings {
		if b.UserID == ownerID && b.HoldActive(now) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) ActiveTable(ctx context.Context, tableID, branchID uint64) (*model.Table, error) {
	tbl, ok := t.s.tables[tableID]
	if !ok || !tbl.IsActive || tbl.BranchID != branchID {
		return nil, nil
	}
	cp := *tbl
	return &cp, nil
}

func (t *memTx) HasConflict(ctx context.Context, tableID uint64, win timeslot.Window, now time.Time) (bool, error) {
	for _, b := range t.s.bookings {
		if b.TableID != tableID || b.Status == model.StatusCancelled {
			continue
		}
		if b.Status == model.StatusReserved && !b.HoldActive(now) {
			continue
		}
		if t.s.policy.Buffered(t.s.policy.At(b.BookingTime)).Overlaps(win) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertHold(ctx context.Context, b *model.Booking) (uint64, error) {
	t.s.nextID++
	id := t.s.nextID
	cp := *b
	cp.ID = id
	t.pending = append(t.pending, func() { t.s.bookings[id] = &cp })
	return id, nil
}

func (t *memTx) BookingForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
	b, ok := t.s.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (t *memTx) MarkPending(ctx context.Context, id uint64, guestCount uint32, note string) error {
	t.pending = append(t.pending, func() {
		if b, ok := t.s.bookings[id]; ok {
			b.Status = model.StatusPending
			b.ReservedUntil = nil
			b.GuestCount = guestCount
			b.Note = note
		}
	})
	return nil
}

func (t *memTx) InsertItems(ctx context.Context, bookingID uint64, items []model.BookingItem) error {
	if t.s.failItems {
		return errors.New("item insert failed")
	}
	t.pending = append(t.pending, func() {
		t.s.items[bookingID] = append(t.s.items[bookingID], items...)
	})
	return nil
}

func (t *memTx) HeldBooking(ctx context.Context, id, ownerID uint64) (*model.Booking, error) {
	b, ok := t.s.bookings[id]
	if !ok || b.UserID != ownerID || b.Status != model.StatusReserved {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (t *memTx) DeleteBooking(ctx context.Context, id uint64) error {
	t.pending = append(t.pending, func() { delete(t.s.bookings, id) })
	return nil
}

func (t *memTx) UpdateStatus(ctx context.Context, id uint64, status string) (bool, error) {
	if _, ok := t.s.bookings[id]; !ok {
		return false, nil
	}
	t.pending = append(t.pending, func() {
		if b, ok := t.s.bookings[id]; ok {
			b.Status = status
			if status != model.StatusReserved {
				b.ReservedUntil = nil
			}
		}
	})
	return true, nil
}

// --- test fixtures ---

var testStart = time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)

func table(id, branch uint64, number uint32) *model.Table {
	return &model.Table{ID: id, BranchID: branch, TableNumber: number, Capacity: 4, IsActive: true}
}

type recorder struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (r *recorder) Publish(ev broadcast.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []broadcast.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast.Event(nil), r.events...)
}

// newTestEngine returns an engine over a fresh store with one branch and
// tables 5 and 6, plus a controllable clock.
func newTestEngine(t *testing.T) (*Engine, *memStore, *recorder, *time.Time) {
	t.Helper()
	policy := timeslot.Policy{SlotDuration: time.Hour, CleanupBuffer: 15 * time.Minute}
	store := newMemStore(policy, table(5, 1, 5), table(6, 1, 6))
	rec := &recorder{}
	eng := New(store, rec, Config{Policy: policy})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	eng.now = func() time.Time { return *clock }
	return eng, store, rec, clock
}

func TestHold(t *testing.T) {
	eng, store, rec, clock := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)
	assert.Equal(t, clock.Add(DefaultHoldTTL), res.ExpiresAt)
	assert.Equal(t, uint32(5), res.TableNumber)

	b := store.bookings[res.ReservationID]
	require.NotNil(t, b)
	assert.Equal(t, model.StatusReserved, b.Status)
	require.NotNil(t, b.ReservedUntil)
	assert.Equal(t, res.ExpiresAt, *b.ReservedUntil)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, broadcast.TableReserved, events[0].Type)
	assert.Equal(t, uint64(5), events[0].TableID)
	assert.Equal(t, testStart, events[0].BookingTime)
}

func TestHoldMissingFields(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	_, err := eng.Hold(context.Background(), 0, 1, 5, testStart)
	assert.ErrorIs(t, err, ErrMissingFields)
	_, err = eng.Hold(context.Background(), 10, 1, 5, time.Time{})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestHoldUnknownTable(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Hold(ctx, 10, 1, 99, testStart)
	assert.ErrorIs(t, err, ErrTableNotFound)

	// wrong branch
	_, err = eng.Hold(ctx, 10, 2, 5, testStart)
	assert.ErrorIs(t, err, ErrTableNotFound)

	// inactive table
	store.tables[5].IsActive = false
	_, err = eng.Hold(ctx, 10, 1, 5, testStart)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestHoldConflict(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)

	// overlapping window on the same table, different owner
	_, err = eng.Hold(ctx, 11, 1, 5, testStart.Add(30*time.Minute))
	assert.ErrorIs(t, err, ErrConflict)

	// same window on another table is fine
	_, err = eng.Hold(ctx, 11, 1, 6, testStart)
	assert.NoError(t, err)

	// far enough in time on the same table is fine
	_, err = eng.Hold(ctx, 12, 1, 5, testStart.Add(3*time.Hour))
	assert.NoError(t, err)
}

func TestConcurrentHoldsSingleWinner(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = eng.Hold(ctx, uint64(100+i), 1, 5, testStart)
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent hold must win")
	assert.Equal(t, n-1, conflicts)
}

func TestHoldSpamLimit(t *testing.T) {
	eng, _, _, clock := newTestEngine(t)
	ctx := context.Background()

	// three holds on distinct slots fill the limit
	var first *HoldResult
	for i := 0; i < DefaultMaxHolds; i++ {
		res, err := eng.Hold(ctx, 10, 1, 5, testStart.Add(time.Duration(i)*3*time.Hour))
		require.NoError(t, err)
		if first == nil {
			first = res
		}
	}

	_, err := eng.Hold(ctx, 10, 1, 6, testStart)
	assert.ErrorIs(t, err, ErrTooManyHolds)

	// cancelling one frees exactly one slot
	require.NoError(t, eng.Cancel(ctx, first.ReservationID, 10))
	_, err = eng.Hold(ctx, 10, 1, 6, testStart)
	assert.NoError(t, err)
	_, err = eng.Hold(ctx, 10, 1, 6, testStart.Add(3*time.Hour))
	assert.ErrorIs(t, err, ErrTooManyHolds)

	// expired holds stop counting against the limit
	*clock = clock.Add(DefaultHoldTTL + time.Minute)
	_, err = eng.Hold(ctx, 10, 1, 6, testStart.Add(6*time.Hour))
	assert.NoError(t, err)
}

func TestHoldAfterExpiry(t *testing.T) {
	eng, _, _, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)

	// while the hold lives, the window is blocked
	_, err = eng.Hold(ctx, 11, 1, 5, testStart)
	require.ErrorIs(t, err, ErrConflict)

	// once the hold expires the same window opens up again
	*clock = clock.Add(DefaultHoldTTL + time.Second)
	_, err = eng.Hold(ctx, 11, 1, 5, testStart)
	assert.NoError(t, err)
}

func TestConfirm(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)

	items := []model.BookingItem{
		{ProductID: 1, Quantity: 2, UnitPrice: 4500},
		{ProductID: 7, Quantity: 1, UnitPrice: 12000},
	}
	require.NoError(t, eng.Confirm(ctx, res.ReservationID, 10, 4, "window seat please", items))

	b := store.bookings[res.ReservationID]
	require.NotNil(t, b)
	assert.Equal(t, model.StatusPending, b.Status)
	assert.Nil(t, b.ReservedUntil)
	assert.Equal(t, uint32(4), b.GuestCount)
	assert.Equal(t, "window seat please", b.Note)
	assert.Len(t, store.items[res.ReservationID], 2)
}

func TestConfirmErrors(t *testing.T) {
	eng, _, _, clock := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)

	// unknown id
	assert.ErrorIs(t, eng.Confirm(ctx, 9999, 10, 2, "", nil), ErrNotFound)

	// someone else's hold
	assert.ErrorIs(t, eng.Confirm(ctx, res.ReservationID, 11, 2, "", nil), ErrForbidden)

	// lapsed hold
	*clock = clock.Add(DefaultHoldTTL + time.Second)
	assert.ErrorIs(t, eng.Confirm(ctx, res.ReservationID, 10, 2, "", nil), ErrHoldExpired)
}

func TestConfirmAtomicity(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)

	store.failItems = true
	err = eng.Confirm(ctx, res.ReservationID, 10, 2, "", []model.BookingItem{{ProductID: 1, Quantity: 1, UnitPrice: 100}})
	require.Error(t, err)

	// the status change must have rolled back with the failed item insert
	b := store.bookings[res.ReservationID]
	require.NotNil(t, b)
	assert.Equal(t, model.StatusReserved, b.Status)
	assert.NotNil(t, b.ReservedUntil)
	assert.Empty(t, store.items[res.ReservationID])
}

func TestCancel(t *testing.T) {
	eng, store, rec, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)

	require.NoError(t, eng.Cancel(ctx, res.ReservationID, 10))
	assert.NotContains(t, store.bookings, res.ReservationID)

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, broadcast.TableReleased, events[1].Type)
	assert.Equal(t, uint64(5), events[1].TableID)
	assert.Equal(t, testStart, events[1].BookingTime)

	// a second cancel finds nothing
	assert.ErrorIs(t, eng.Cancel(ctx, res.ReservationID, 10), ErrNotFound)
}

func TestCancelErrors(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)

	// wrong owner looks like a missing reservation
	assert.ErrorIs(t, eng.Cancel(ctx, res.ReservationID, 11), ErrNotFound)

	// confirmed bookings are no longer cancellable through this path
	require.NoError(t, eng.Confirm(ctx, res.ReservationID, 10, 2, "", nil))
	assert.ErrorIs(t, eng.Cancel(ctx, res.ReservationID, 10), ErrNotFound)
}

func TestAdminUpdateStatus(t *testing.T) {
	eng, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)
	require.NoError(t, eng.Confirm(ctx, res.ReservationID, 10, 2, "", nil))

	// no ownership check on the staff override
	require.NoError(t, eng.AdminUpdateStatus(ctx, res.ReservationID, model.StatusConfirmed))
	assert.Equal(t, model.StatusConfirmed, store.bookings[res.ReservationID].Status)

	assert.ErrorIs(t, eng.AdminUpdateStatus(ctx, res.ReservationID, "seated"), ErrInvalidStatus)
	assert.ErrorIs(t, eng.AdminUpdateStatus(ctx, 9999, model.StatusCancelled), ErrNotFound)
}

func TestAvailability(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	// table 5 confirmed booking, table 6 only held
	res5, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)
	require.NoError(t, eng.Confirm(ctx, res5.ReservationID, 10, 2, "", nil))
	_, err = eng.Hold(ctx, 11, 1, 6, testStart)
	require.NoError(t, err)

	avail, err := eng.Availability(ctx, 1, testStart)
	require.NoError(t, err)
	assert.Equal(t, StateBooked, avail[5])
	assert.Equal(t, StateReserved, avail[6])

	// an overlapping later view still sees the bookings
	avail, err = eng.Availability(ctx, 1, testStart.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StateBooked, avail[5])

	// a view far past the buffered window sees free tables
	avail, err = eng.Availability(ctx, 1, testStart.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, avail)
}

func TestAvailabilitySweepsExpiredHolds(t *testing.T) {
	eng, store, _, clock := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)

	*clock = clock.Add(DefaultHoldTTL + time.Second)
	avail, err := eng.Availability(ctx, 1, testStart)
	require.NoError(t, err)
	assert.Empty(t, avail)

	// the expired row was physically removed, not just filtered
	assert.NotContains(t, store.bookings, res.ReservationID)
}

func TestSweepIdempotent(t *testing.T) {
	eng, _, _, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)
	_, err = eng.Hold(ctx, 11, 1, 6, testStart)
	require.NoError(t, err)

	*clock = clock.Add(DefaultHoldTTL + time.Second)
	n, err := eng.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = eng.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCurrentHold(t *testing.T) {
	eng, _, _, clock := newTestEngine(t)
	ctx := context.Background()

	b, err := eng.CurrentHold(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, b)

	res, err := eng.Hold(ctx, 10, 1, 5, testStart)
	require.NoError(t, err)

	b, err = eng.CurrentHold(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, res.ReservationID, b.ID)
	assert.Equal(t, uint64(5), b.TableID)

	// an expired hold no longer rehydrates
	*clock = clock.Add(DefaultHoldTTL + time.Second)
	b, err = eng.CurrentHold(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, b)
}

// The walkthrough from the product team: A holds table 5 at 19:00, B is
// rejected for 19:30, A cancels, B retries and wins.
func TestHoldCancelRetryScenario(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	resA, err := eng.Hold(ctx, 1, 1, 5, testStart)
	require.NoError(t, err)

	_, err = eng.Hold(ctx, 2, 1, 5, testStart.Add(30*time.Minute))
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, eng.Cancel(ctx, resA.ReservationID, 1))

	resB, err := eng.Hold(ctx, 2, 1, 5, testStart.Add(30*time.Minute))
	require.NoError(t, err)
	assert.NotZero(t, resB.ReservationID)
}
