package repository

// Integration tests against a real MySQL instance. They are skipped
// unless TEST_DB_DSN points at a database with the schema from
// schema.sql applied, e.g.
//
//	TEST_DB_DSN='root@tcp(localhost:3306)/restaurant_test?parseTime=true&loc=UTC'

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anchinlu/restaurant-reservation/internal/model"
	"github.com/Anchinlu/restaurant-reservation/internal/reservation"
	"github.com/Anchinlu/restaurant-reservation/internal/timeslot"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")
	if dsn := os.Getenv("TEST_DB_DSN"); dsn != "" {
		db, err := sql.Open("mysql", dsn)
		if err == nil && db.Ping() == nil {
			testDB = db
		}
	}
	os.Exit(m.Run())
}

// fixture creates a branch, a table and n users, and registers cleanup
// that removes them along with any bookings they created.
func fixture(t *testing.T, users int) (branchID, tableID uint64, userIDs []uint64) {
	t.Helper()
	if testDB == nil {
		t.Skip("TEST_DB_DSN not set, skipping MySQL integration test")
	}
	ctx := context.Background()

	res, err := testDB.ExecContext(ctx,
		`INSERT INTO branches (name, address, phone) VALUES (?, '', '')`,
		fmt.Sprintf("it-%s-%d", t.Name(), time.Now().UnixNano()))
	require.NoError(t, err)
	bid, _ := res.LastInsertId()
	branchID = uint64(bid)

	res, err = testDB.ExecContext(ctx,
		`INSERT INTO tables (branch_id, table_number, capacity) VALUES (?, 1, 4)`, branchID)
	require.NoError(t, err)
	tid, _ := res.LastInsertId()
	tableID = uint64(tid)

	for i := 0; i < users; i++ {
		res, err = testDB.ExecContext(ctx,
			`INSERT INTO users (full_name, email, phone, password_hash, role) VALUES ('it', ?, '', '', 'CUSTOMER')`,
			fmt.Sprintf("it-%s-%d-%d@test", t.Name(), time.Now().UnixNano(), i))
		require.NoError(t, err)
		uid, _ := res.LastInsertId()
		userIDs = append(userIDs, uint64(uid))
	}

	t.Cleanup(func() {
		for _, uid := range userIDs {
			_, _ = testDB.ExecContext(ctx, `DELETE FROM bookings WHERE user_id = ?`, uid)
			_, _ = testDB.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, uid)
		}
		_, _ = testDB.ExecContext(ctx, `DELETE FROM tables WHERE id = ?`, tableID)
		_, _ = testDB.ExecContext(ctx, `DELETE FROM branches WHERE id = ?`, branchID)
	})
	return branchID, tableID, userIDs
}

func TestConcurrentHoldsAgainstMySQL(t *testing.T) {
	branchID, tableID, users := fixture(t, 8)

	repo := NewBookingRepo(testDB, timeslot.DefaultPolicy)
	eng := reservation.New(repo, nil, reservation.Config{})
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)

	var wg sync.WaitGroup
	results := make([]error, len(users))
	for i, uid := range users {
		wg.Add(1)
		go func(i int, uid uint64) {
			defer wg.Done()
			_, results[i] = eng.Hold(context.Background(), uid, branchID, tableID, start)
		}(i, uid)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, reservation.ErrConflict)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent hold may win")
}

func TestExpiredHoldFreesWindowAgainstMySQL(t *testing.T) {
	branchID, tableID, users := fixture(t, 2)
	ctx := context.Background()

	repo := NewBookingRepo(testDB, timeslot.DefaultPolicy)
	eng := reservation.New(repo, nil, reservation.Config{})
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)

	res, err := eng.Hold(ctx, users[0], branchID, tableID, start)
	require.NoError(t, err)

	_, err = eng.Hold(ctx, users[1], branchID, tableID, start)
	require.ErrorIs(t, err, reservation.ErrConflict)

	// force the hold into the past instead of waiting out the TTL
	_, err = testDB.ExecContext(ctx,
		`UPDATE bookings SET reserved_until = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Minute), res.ReservationID)
	require.NoError(t, err)

	_, err = eng.Hold(ctx, users[1], branchID, tableID, start)
	assert.NoError(t, err, "expired hold must not block the window")
}

func TestPurgeExpiredIdempotentAgainstMySQL(t *testing.T) {
	branchID, tableID, users := fixture(t, 1)
	ctx := context.Background()

	repo := NewBookingRepo(testDB, timeslot.DefaultPolicy)
	eng := reservation.New(repo, nil, reservation.Config{})
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)

	res, err := eng.Hold(ctx, users[0], branchID, tableID, start)
	require.NoError(t, err)

	_, err = testDB.ExecContext(ctx,
		`UPDATE bookings SET reserved_until = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Minute), res.ReservationID)
	require.NoError(t, err)

	n, err := repo.PurgeExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	// second purge finds nothing left for this fixture's booking
	var count int
	require.NoError(t, testDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE id = ?`, res.ReservationID).Scan(&count))
	assert.Zero(t, count)

	_, err = repo.PurgeExpired(ctx, time.Now().UTC())
	assert.NoError(t, err)
}

func TestConfirmAtomicityAgainstMySQL(t *testing.T) {
	branchID, tableID, users := fixture(t, 1)
	ctx := context.Background()

	repo := NewBookingRepo(testDB, timeslot.DefaultPolicy)
	eng := reservation.New(repo, nil, reservation.Config{})
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)

	res, err := eng.Hold(ctx, users[0], branchID, tableID, start)
	require.NoError(t, err)

	// quantity 0 violates the booking_items CHECK constraint, so the
	// bulk insert fails and the status flip must roll back with it
	err = eng.Confirm(ctx, res.ReservationID, users[0], 2, "",
		[]model.BookingItem{{ProductID: 1, Quantity: 0, UnitPrice: 100}})
	require.Error(t, err)
	require.False(t, errors.Is(err, reservation.ErrHoldExpired))

	var status string
	require.NoError(t, testDB.QueryRowContext(ctx,
		`SELECT status FROM bookings WHERE id = ?`, res.ReservationID).Scan(&status))
	assert.Equal(t, model.StatusReserved, status)
}
