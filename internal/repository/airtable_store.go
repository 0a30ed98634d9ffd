package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	"github.com/noah-isme/voyage-admin-api/pkg/airtable"
	"github.com/noah-isme/voyage-admin-api/pkg/lock"
)

// BackendAirtable names the Airtable-backed store.
const BackendAirtable = "airtable"

const defaultUndoTimeout = 10 * time.Second

type airtableClient interface {
	List(ctx context.Context, table string, opts airtable.ListOptions) ([]airtable.Record, error)
	Create(ctx context.Context, table string, fields map[string]interface{}) (*airtable.Record, error)
	Update(ctx context.Context, table, recordID string, fields map[string]interface{}) (*airtable.Record, error)
	Delete(ctx context.Context, table, recordID string) error
	Ping(ctx context.Context, table string) error
}

// AirtableTables names the tables backing the store.
type AirtableTables struct {
	Bookings     string
	BlockedSlots string
}

// AirtableStore implements IntervalStore on an Airtable base. Airtable has no transactions, so
// Atomically serialises writers with a per-resource lock and undoes applied writes on failure.
type AirtableStore struct {
	client airtableClient
	tables AirtableTables
	locker lock.Locker
	logger *zap.Logger

	undoTimeout time.Duration
}

// NewAirtableStore constructs an Airtable-backed interval store.
func NewAirtableStore(client airtableClient, tables AirtableTables, locker lock.Locker, logger *zap.Logger) *AirtableStore {
	if tables.Bookings == "" {
		tables.Bookings = "Bookings"
	}
	if tables.BlockedSlots == "" {
		tables.BlockedSlots = "Blocked Slots"
	}
	if locker == nil {
		locker = lock.NewLocalLocker(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AirtableStore{client: client, tables: tables, locker: locker, logger: logger, undoTimeout: defaultUndoTimeout}
}

// WithUndoTimeout bounds how long compensation and lock release may run after a scope fails.
// The lock lease must outlive the scope plus this bound.
func (s *AirtableStore) WithUndoTimeout(d time.Duration) *AirtableStore {
	if d > 0 {
		s.undoTimeout = d
	}
	return s
}

// Backend identifies the store.
func (s *AirtableStore) Backend() string {
	return BackendAirtable
}

// Ping checks the bookings table is reachable.
func (s *AirtableStore) Ping(ctx context.Context) error {
	return classifyAirtable("ping", s.client.Ping(ctx, s.tables.Bookings))
}

type journalKey struct{}

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

// journal records compensations for writes made inside an Atomically scope.
type journal struct {
	held  map[string]lock.Release
	steps []undoStep
}

func journalFromContext(ctx context.Context) *journal {
	j, _ := ctx.Value(journalKey{}).(*journal)
	return j
}

func (j *journal) record(name string, fn func(ctx context.Context) error) {
	if j == nil {
		return
	}
	j.steps = append(j.steps, undoStep{name: name, fn: fn})
}

func (j *journal) rollback(ctx context.Context) error {
	var errs []error
	for i := len(j.steps) - 1; i >= 0; i-- {
		if err := j.steps[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("undo %s: %w", j.steps[i].name, err))
		}
	}
	j.steps = nil
	return errors.Join(errs...)
}

// Atomically holds the resource lock while fn runs and compensates fn's writes if it fails.
func (s *AirtableStore) Atomically(ctx context.Context, resourceID string, fn func(ctx context.Context) error) error {
	if j := journalFromContext(ctx); j != nil {
		if _, ok := j.held[resourceID]; ok {
			return fn(ctx)
		}
		release, err := s.acquire(ctx, resourceID)
		if err != nil {
			return err
		}
		j.held[resourceID] = release
		return fn(ctx)
	}

	release, err := s.acquire(ctx, resourceID)
	if err != nil {
		return err
	}
	j := &journal{held: map[string]lock.Release{resourceID: release}}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.undoTimeout)
		defer cancel()
		for key, rel := range j.held {
			if err := rel(relCtx); err != nil {
				s.logger.Warn("release calendar lock", zap.String("resource_id", key), zap.Error(err))
			}
		}
	}()

	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		undoCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.undoTimeout)
		defer cancel()
		if undoErr := j.rollback(undoCtx); undoErr != nil {
			s.logger.Error("airtable compensation failed", zap.String("resource_id", resourceID), zap.Error(undoErr))
			return errors.Join(err, undoErr)
		}
		return err
	}
	return nil
}

func (s *AirtableStore) acquire(ctx context.Context, resourceID string) (lock.Release, error) {
	release, err := s.locker.Acquire(ctx, "calendar:"+resourceID)
	if err != nil {
		return nil, fmt.Errorf("lock calendar %s: %w: %w", resourceID, ErrUnavailable, err)
	}
	return release, nil
}

// ListBookings pushes the filter down as a formula and re-applies it to the returned rows.
func (s *AirtableStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	clauses := []string{}
	if filter.ResourceID != "" {
		clauses = append(clauses, airtable.Eq(atResource, filter.ResourceID))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			statuses[i] = airtable.Eq(atStatus, string(st))
		}
		clauses = append(clauses, airtable.Or(statuses...))
	}
	if filter.Window != nil {
		clauses = append(clauses, airtable.Overlaps(atStart, atEnd, filter.Window.Start, filter.Window.End))
	}

	records, err := s.client.List(ctx, s.tables.Bookings, airtable.ListOptions{
		Formula: airtable.And(clauses...),
		Sort:    []airtable.Sort{{Field: atStart}},
	})
	if err != nil {
		return nil, classifyAirtable("list bookings", err)
	}

	bookings := make([]*models.Booking, 0, len(records))
	for _, rec := range records {
		b, err := bookingFromRecord(rec)
		if err != nil {
			s.logger.Warn("skip malformed booking record", zap.String("record_id", rec.ID), zap.Error(err))
			continue
		}
		if filter.Includes(b) {
			bookings = append(bookings, b)
		}
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		if !bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].Start.Before(bookings[j].Start)
		}
		return bookings[i].ID < bookings[j].ID
	})
	if filter.Limit > 0 && len(bookings) > filter.Limit {
		bookings = bookings[:filter.Limit]
	}
	return bookings, nil
}

// GetBooking loads a booking by its domain id.
func (s *AirtableStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	_, booking, err := s.findBooking(ctx, airtable.Eq(atBookingID, id), func(b *models.Booking) bool { return b.ID == id })
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

// FindBookingByIdempotencyKey returns the booking admitted under key, or nil when none exists.
func (s *AirtableStore) FindBookingByIdempotencyKey(ctx context.Context, resourceID, key string) (*models.Booking, error) {
	formula := airtable.And(airtable.Eq(atResource, resourceID), airtable.Eq(atIdempotencyKey, key))
	_, booking, err := s.findBooking(ctx, formula, func(b *models.Booking) bool {
		return b.ResourceID == resourceID && b.IdempotencyKey != nil && *b.IdempotencyKey == key
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find booking by idempotency key: %w", err)
	}
	return booking, nil
}

// InsertBooking creates a booking row. Ids must be unique, so a caller-supplied id is checked first.
func (s *AirtableStore) InsertBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	} else if _, _, err := s.findBooking(ctx, airtable.Eq(atBookingID, booking.ID), func(b *models.Booking) bool { return b.ID == booking.ID }); err == nil {
		return fmt.Errorf("insert booking: %w", ErrDuplicate)
	} else if !isNotFound(err) {
		return fmt.Errorf("insert booking: %w", err)
	}

	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	fields, err := bookingToFields(booking)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	rec, err := s.client.Create(ctx, s.tables.Bookings, fields)
	if err != nil {
		return classifyAirtable("insert booking", err)
	}
	journalFromContext(ctx).record("insert booking "+booking.ID, func(ctx context.Context) error {
		return s.client.Delete(ctx, s.tables.Bookings, rec.ID)
	})
	return nil
}

// UpdateBooking rewrites every mapped field of booking.
func (s *AirtableStore) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	rec, previous, err := s.findBooking(ctx, airtable.Eq(atBookingID, booking.ID), func(b *models.Booking) bool { return b.ID == booking.ID })
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	booking.UpdatedAt = time.Now().UTC()

	fields, err := bookingToFields(booking)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	restore, err := bookingToFields(previous)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if _, err := s.client.Update(ctx, s.tables.Bookings, rec.ID, fields); err != nil {
		return classifyAirtable("update booking", err)
	}
	journalFromContext(ctx).record("update booking "+booking.ID, func(ctx context.Context) error {
		_, err := s.client.Update(ctx, s.tables.Bookings, rec.ID, restore)
		return err
	})
	return nil
}

// DeleteBooking removes a booking row.
func (s *AirtableStore) DeleteBooking(ctx context.Context, id string) error {
	rec, _, err := s.findBooking(ctx, airtable.Eq(atBookingID, id), func(b *models.Booking) bool { return b.ID == id })
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if err := s.client.Delete(ctx, s.tables.Bookings, rec.ID); err != nil {
		return classifyAirtable("delete booking", err)
	}
	journalFromContext(ctx).record("delete booking "+id, func(ctx context.Context) error {
		_, err := s.client.Create(ctx, s.tables.Bookings, rec.Fields)
		return err
	})
	return nil
}

// ListBlockedSlots pushes the filter down as a formula and re-applies it to the returned rows.
func (s *AirtableStore) ListBlockedSlots(ctx context.Context, filter models.BlockedSlotFilter) ([]*models.BlockedSlot, error) {
	clauses := []string{}
	if filter.ResourceID != "" {
		clauses = append(clauses, airtable.Eq(atResource, filter.ResourceID))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, airtable.Field(atActive))
	}
	if filter.Window != nil {
		clauses = append(clauses, airtable.Overlaps(atStart, atEnd, filter.Window.Start, filter.Window.End))
	}

	records, err := s.client.List(ctx, s.tables.BlockedSlots, airtable.ListOptions{
		Formula: airtable.And(clauses...),
		Sort:    []airtable.Sort{{Field: atStart}},
	})
	if err != nil {
		return nil, classifyAirtable("list blocked slots", err)
	}

	slots := make([]*models.BlockedSlot, 0, len(records))
	for _, rec := range records {
		slot, err := blockedSlotFromRecord(rec)
		if err != nil {
			s.logger.Warn("skip malformed blocked slot record", zap.String("record_id", rec.ID), zap.Error(err))
			continue
		}
		if filter.Includes(slot) {
			slots = append(slots, slot)
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].Start.Equal(slots[j].Start) {
			return slots[i].Start.Before(slots[j].Start)
		}
		return slots[i].ID < slots[j].ID
	})
	if filter.Limit > 0 && len(slots) > filter.Limit {
		slots = slots[:filter.Limit]
	}
	return slots, nil
}

// GetBlockedSlot loads a blocked slot by its domain id.
func (s *AirtableStore) GetBlockedSlot(ctx context.Context, id string) (*models.BlockedSlot, error) {
	_, slot, err := s.findBlockedSlot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get blocked slot: %w", err)
	}
	return slot, nil
}

// InsertBlockedSlot creates a blocked slot row.
func (s *AirtableStore) InsertBlockedSlot(ctx context.Context, slot *models.BlockedSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	rec, err := s.client.Create(ctx, s.tables.BlockedSlots, blockedSlotToFields(slot))
	if err != nil {
		return classifyAirtable("insert blocked slot", err)
	}
	journalFromContext(ctx).record("insert blocked slot "+slot.ID, func(ctx context.Context) error {
		return s.client.Delete(ctx, s.tables.BlockedSlots, rec.ID)
	})
	return nil
}

// UpdateBlockedSlot rewrites every mapped field of slot.
func (s *AirtableStore) UpdateBlockedSlot(ctx context.Context, slot *models.BlockedSlot) error {
	rec, previous, err := s.findBlockedSlot(ctx, slot.ID)
	if err != nil {
		return fmt.Errorf("update blocked slot: %w", err)
	}
	slot.UpdatedAt = time.Now().UTC()
	restore := blockedSlotToFields(previous)
	if _, err := s.client.Update(ctx, s.tables.BlockedSlots, rec.ID, blockedSlotToFields(slot)); err != nil {
		return classifyAirtable("update blocked slot", err)
	}
	journalFromContext(ctx).record("update blocked slot "+slot.ID, func(ctx context.Context) error {
		_, err := s.client.Update(ctx, s.tables.BlockedSlots, rec.ID, restore)
		return err
	})
	return nil
}

// DeleteBlockedSlot removes a blocked slot row.
func (s *AirtableStore) DeleteBlockedSlot(ctx context.Context, id string) error {
	rec, _, err := s.findBlockedSlot(ctx, id)
	if err != nil {
		return fmt.Errorf("delete blocked slot: %w", err)
	}
	if err := s.client.Delete(ctx, s.tables.BlockedSlots, rec.ID); err != nil {
		return classifyAirtable("delete blocked slot", err)
	}
	journalFromContext(ctx).record("delete blocked slot "+id, func(ctx context.Context) error {
		_, err := s.client.Create(ctx, s.tables.BlockedSlots, rec.Fields)
		return err
	})
	return nil
}

func (s *AirtableStore) findBooking(ctx context.Context, formula string, match func(*models.Booking) bool) (*airtable.Record, *models.Booking, error) {
	records, err := s.client.List(ctx, s.tables.Bookings, airtable.ListOptions{Formula: formula})
	if err != nil {
		return nil, nil, classifyAirtable("find booking", err)
	}
	for i := range records {
		b, err := bookingFromRecord(records[i])
		if err != nil {
			continue
		}
		if match(b) {
			return &records[i], b, nil
		}
	}
	return nil, nil, ErrNotFound
}

func (s *AirtableStore) findBlockedSlot(ctx context.Context, id string) (*airtable.Record, *models.BlockedSlot, error) {
	records, err := s.client.List(ctx, s.tables.BlockedSlots, airtable.ListOptions{Formula: airtable.Eq(atSlotID, id)})
	if err != nil {
		return nil, nil, classifyAirtable("find blocked slot", err)
	}
	for i := range records {
		slot, err := blockedSlotFromRecord(records[i])
		if err != nil {
			continue
		}
		if slot.ID == id {
			return &records[i], slot, nil
		}
	}
	return nil, nil, ErrNotFound
}

func classifyAirtable(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case airtable.IsNotFound(err):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case airtable.IsTransient(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
