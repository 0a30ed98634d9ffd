package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/voyage-admin-api/internal/models"
)

func newPostgresStoreMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
	}
	return NewPostgresStore(sqlxDB), mock, cleanup
}

var bookingRowColumns = []string{"id", "resource_id", "client_id", "kind", "status", "start_at", "end_at", "metadata", "idempotency_key", "txn_id", "rescheduled_from", "cancelled_at", "created_at", "updated_at"}

func ts(hour int) time.Time {
	return time.Date(2025, 3, 10, hour, 0, 0, 0, time.UTC)
}

func TestPostgresStoreInsertBooking(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	client := "client-1"
	booking := &models.Booking{
		ID:         "b1",
		ResourceID: "agency",
		ClientID:   &client,
		Kind:       "appointment",
		Status:     models.BookingConfirmed,
		Start:      ts(10),
		End:        ts(11),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings (id, resource_id, client_id")).
		WithArgs("b1", "agency", &client, "appointment", models.BookingConfirmed, ts(10), ts(11), sqlmock.AnyArg(), nil, nil, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.InsertBooking(context.Background(), booking))
	assert.False(t, booking.CreatedAt.IsZero())
	assert.NotNil(t, booking.Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreInsertBookingAssignsID(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).WillReturnResult(sqlmock.NewResult(1, 1))

	booking := &models.Booking{ResourceID: "agency", Status: models.BookingConfirmed, Start: ts(10), End: ts(11)}
	require.NoError(t, store.InsertBooking(context.Background(), booking))
	assert.NotEmpty(t, booking.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreInsertBookingMapsExclusionViolation(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnError(&pq.Error{Code: "23P01", Message: "conflicting key value violates exclusion constraint"})

	err := store.InsertBooking(context.Background(), &models.Booking{ID: "b2", ResourceID: "agency", Status: models.BookingConfirmed, Start: ts(10), End: ts(11)})
	assert.ErrorIs(t, err, ErrOverlap)
}

func TestPostgresStoreListBookingsBuildsOverlapQuery(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	window := models.Interval{Start: ts(10), End: ts(12)}
	query := "SELECT " + bookingColumns + " FROM bookings WHERE 1=1 AND resource_id = $1 AND status = ANY($2) AND start_at < $3 AND end_at > $4 AND NOT (id = ANY($5)) ORDER BY start_at ASC, id ASC"

	rows := sqlmock.NewRows(bookingRowColumns).
		AddRow("b1", "agency", nil, "appointment", "confirmed", ts(10), ts(11), []byte(`{"pax":2}`), nil, nil, nil, nil, ts(8), ts(8))

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("agency", sqlmock.AnyArg(), ts(12), ts(10), sqlmock.AnyArg()).
		WillReturnRows(rows)

	bookings, err := store.ListBookings(context.Background(), models.BookingFilter{
		ResourceID: "agency",
		Status:     []models.BookingStatus{models.BookingConfirmed},
		Window:     &window,
		ExcludeIDs: []string{"b9"},
	})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.BookingConfirmed, bookings[0].Status)
	assert.Nil(t, bookings[0].ClientID)
	assert.EqualValues(t, 2, bookings[0].Metadata["pax"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetBookingNotFound(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = $1")).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := store.GetBooking(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreFindBookingByIdempotencyKeyMissing(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE resource_id = $1 AND idempotency_key = $2")).
		WithArgs("agency", "key-1").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns))

	booking, err := store.FindBookingByIdempotencyKey(context.Background(), "agency", "key-1")
	require.NoError(t, err)
	assert.Nil(t, booking)
}

func TestPostgresStoreUpdateBookingMissingRow(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateBooking(context.Background(), &models.Booking{ID: "gone", Status: models.BookingCancelled})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreConnectionFailureIsUnavailable(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM blocked_slots")).
		WillReturnError(&pq.Error{Code: "08006", Message: "connection failure"})

	err := store.DeleteBlockedSlot(context.Background(), "slot-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPostgresStoreAtomicallyCommits(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtextextended($1, 0))")).
		WithArgs("agency").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blocked_slots")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Atomically(context.Background(), "agency", func(ctx context.Context) error {
		assert.NotNil(t, txFromContext(ctx))
		return store.InsertBlockedSlot(ctx, &models.BlockedSlot{ResourceID: "agency", Start: ts(9), End: ts(10), Active: true})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAtomicallyRollsBackOnError(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).WithArgs("agency").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("insert failed")
	err := store.Atomically(context.Background(), "agency", func(ctx context.Context) error {
		if err := store.UpdateBooking(ctx, &models.Booking{ID: "b1", Status: models.BookingCancelled}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAtomicallyRollsBackOnPanic(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).WithArgs("agency").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "mapping bug", func() {
		_ = store.Atomically(context.Background(), "agency", func(context.Context) error {
			panic("mapping bug")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreListBlockedSlotsActiveOnly(t *testing.T) {
	store, mock, cleanup := newPostgresStoreMock(t)
	defer cleanup()

	day := "2025-03-10"
	rows := sqlmock.NewRows([]string{"id", "resource_id", "start_at", "end_at", "all_day", "day", "reason", "active", "created_by", "created_at", "updated_at"}).
		AddRow("s1", "agency", ts(0), ts(0).Add(24*time.Hour), true, day, "Holiday", true, nil, ts(0), ts(0))

	mock.ExpectQuery(regexp.QuoteMeta("FROM blocked_slots WHERE 1=1 AND resource_id = $1 AND active = TRUE ORDER BY start_at ASC, id ASC")).
		WithArgs("agency").
		WillReturnRows(rows)

	slots, err := store.ListBlockedSlots(context.Background(), models.BlockedSlotFilter{ResourceID: "agency", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].AllDay)
	require.NotNil(t, slots[0].Day)
	assert.Equal(t, day, *slots[0].Day)
	assert.NoError(t, mock.ExpectationsWereMet())
}
