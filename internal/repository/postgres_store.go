package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/voyage-admin-api/internal/models"
)

// BackendSupabase names the Postgres-backed store.
const BackendSupabase = "supabase"

const bookingColumns = `id, resource_id, client_id, kind, status, start_at, end_at, metadata, idempotency_key, txn_id, rescheduled_from, cancelled_at, created_at, updated_at`

const blockedSlotColumns = `id, resource_id, start_at, end_at, all_day, to_char(day, 'YYYY-MM-DD') AS day, reason, active, created_by, created_at, updated_at`

// PostgresStore implements IntervalStore on the Supabase Postgres database.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore constructs a Postgres-backed interval store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Backend identifies the store.
func (s *PostgresStore) Backend() string {
	return BackendSupabase
}

func (s *PostgresStore) exec(ctx context.Context) dbExecutor {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// Atomically runs fn in a transaction holding a transaction-scoped advisory lock on the resource.
func (s *PostgresStore) Atomically(ctx context.Context, resourceID string, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.db, func(txCtx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(txCtx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, resourceID); err != nil {
			return classifyPostgres("lock calendar", err)
		}
		return fn(txCtx)
	})
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return classifyPostgres("ping", s.db.PingContext(ctx))
}

// ListBookings returns bookings matching filter ordered by start then id.
func (s *PostgresStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.ResourceID != "" {
		where = append(where, fmt.Sprintf("resource_id = $%d", len(args)+1))
		args = append(args, filter.ResourceID)
	}
	if filter.ClientID != "" {
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)+1))
		args = append(args, filter.ClientID)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			statuses[i] = string(st)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	if filter.Window != nil {
		where = append(where, fmt.Sprintf("start_at < $%d AND end_at > $%d", len(args)+1, len(args)+2))
		args = append(args, filter.Window.End.UTC(), filter.Window.Start.UTC())
	}
	if len(filter.ExcludeIDs) > 0 {
		where = append(where, fmt.Sprintf("NOT (id = ANY($%d))", len(args)+1))
		args = append(args, pq.Array(filter.ExcludeIDs))
	}

	query := fmt.Sprintf("SELECT %s FROM bookings WHERE %s ORDER BY start_at ASC, id ASC", bookingColumns, strings.Join(where, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var bookings []*models.Booking
	if err := s.exec(ctx).SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, classifyPostgres("list bookings", err)
	}
	return bookings, nil
}

// GetBooking loads a booking by id.
func (s *PostgresStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE id = $1", bookingColumns)
	var booking models.Booking
	if err := s.exec(ctx).GetContext(ctx, &booking, query, id); err != nil {
		return nil, classifyPostgres("get booking", err)
	}
	return &booking, nil
}

// FindBookingByIdempotencyKey returns the booking admitted under key, or nil when none exists.
func (s *PostgresStore) FindBookingByIdempotencyKey(ctx context.Context, resourceID, key string) (*models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE resource_id = $1 AND idempotency_key = $2", bookingColumns)
	var booking models.Booking
	if err := s.exec(ctx).GetContext(ctx, &booking, query, resourceID, key); err != nil {
		classified := classifyPostgres("find booking by idempotency key", err)
		if isNotFound(classified) {
			return nil, nil
		}
		return nil, classified
	}
	return &booking, nil
}

// InsertBooking stores a new booking, assigning an id and timestamps when missing.
func (s *PostgresStore) InsertBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now
	if booking.Metadata == nil {
		booking.Metadata = models.Metadata{}
	}

	const query = `INSERT INTO bookings (id, resource_id, client_id, kind, status, start_at, end_at, metadata, idempotency_key, txn_id, rescheduled_from, cancelled_at, created_at, updated_at)
VALUES (:id, :resource_id, :client_id, :kind, :status, :start_at, :end_at, :metadata, :idempotency_key, :txn_id, :rescheduled_from, :cancelled_at, :created_at, :updated_at)`
	if _, err := s.exec(ctx).NamedExecContext(ctx, query, booking); err != nil {
		return classifyPostgres("insert booking", err)
	}
	return nil
}

// UpdateBooking writes every mutable column of booking.
func (s *PostgresStore) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	booking.UpdatedAt = time.Now().UTC()
	const query = `UPDATE bookings SET client_id = :client_id, kind = :kind, status = :status, start_at = :start_at, end_at = :end_at, metadata = :metadata, txn_id = :txn_id, rescheduled_from = :rescheduled_from, cancelled_at = :cancelled_at, updated_at = :updated_at WHERE id = :id`
	res, err := s.exec(ctx).NamedExecContext(ctx, query, booking)
	if err != nil {
		return classifyPostgres("update booking", err)
	}
	return requireAffected("update booking", res)
}

// DeleteBooking removes a booking permanently.
func (s *PostgresStore) DeleteBooking(ctx context.Context, id string) error {
	res, err := s.exec(ctx).ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return classifyPostgres("delete booking", err)
	}
	return requireAffected("delete booking", res)
}

// ListBlockedSlots returns slots matching filter ordered by start then id.
func (s *PostgresStore) ListBlockedSlots(ctx context.Context, filter models.BlockedSlotFilter) ([]*models.BlockedSlot, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.ResourceID != "" {
		where = append(where, fmt.Sprintf("resource_id = $%d", len(args)+1))
		args = append(args, filter.ResourceID)
	}
	if filter.ActiveOnly {
		where = append(where, "active = TRUE")
	}
	if filter.Window != nil {
		where = append(where, fmt.Sprintf("start_at < $%d AND end_at > $%d", len(args)+1, len(args)+2))
		args = append(args, filter.Window.End.UTC(), filter.Window.Start.UTC())
	}

	query := fmt.Sprintf("SELECT %s FROM blocked_slots WHERE %s ORDER BY start_at ASC, id ASC", blockedSlotColumns, strings.Join(where, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var slots []*models.BlockedSlot
	if err := s.exec(ctx).SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, classifyPostgres("list blocked slots", err)
	}
	return slots, nil
}

// GetBlockedSlot loads a blocked slot by id.
func (s *PostgresStore) GetBlockedSlot(ctx context.Context, id string) (*models.BlockedSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM blocked_slots WHERE id = $1", blockedSlotColumns)
	var slot models.BlockedSlot
	if err := s.exec(ctx).GetContext(ctx, &slot, query, id); err != nil {
		return nil, classifyPostgres("get blocked slot", err)
	}
	return &slot, nil
}

// InsertBlockedSlot stores a new blocked slot.
func (s *PostgresStore) InsertBlockedSlot(ctx context.Context, slot *models.BlockedSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO blocked_slots (id, resource_id, start_at, end_at, all_day, day, reason, active, created_by, created_at, updated_at)
VALUES (:id, :resource_id, :start_at, :end_at, :all_day, :day, :reason, :active, :created_by, :created_at, :updated_at)`
	if _, err := s.exec(ctx).NamedExecContext(ctx, query, slot); err != nil {
		return classifyPostgres("insert blocked slot", err)
	}
	return nil
}

// UpdateBlockedSlot writes the mutable columns of slot.
func (s *PostgresStore) UpdateBlockedSlot(ctx context.Context, slot *models.BlockedSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE blocked_slots SET start_at = :start_at, end_at = :end_at, all_day = :all_day, day = :day, reason = :reason, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := s.exec(ctx).NamedExecContext(ctx, query, slot)
	if err != nil {
		return classifyPostgres("update blocked slot", err)
	}
	return requireAffected("update blocked slot", res)
}

// DeleteBlockedSlot removes a blocked slot.
func (s *PostgresStore) DeleteBlockedSlot(ctx context.Context, id string) error {
	res, err := s.exec(ctx).ExecContext(ctx, `DELETE FROM blocked_slots WHERE id = $1`, id)
	if err != nil {
		return classifyPostgres("delete blocked slot", err)
	}
	return requireAffected("delete blocked slot", res)
}
