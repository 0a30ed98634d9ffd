package repository

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/voyage-admin-api/internal/models"
)

// StoreObserver receives timing for every store call.
type StoreObserver interface {
	ObserveStoreOperation(backend, operation string, duration time.Duration, err error)
}

// InstrumentedStore decorates an IntervalStore with per-operation timing.
type InstrumentedStore struct {
	next     IntervalStore
	observer StoreObserver
}

// NewInstrumentedStore wraps next. A nil observer returns next unchanged.
func NewInstrumentedStore(next IntervalStore, observer StoreObserver) IntervalStore {
	if observer == nil {
		return next
	}
	return &InstrumentedStore{next: next, observer: observer}
}

// observe reports the call. Lookups of missing records are expected and not counted as failures.
func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.observer.ObserveStoreOperation(s.next.Backend(), op, time.Since(start), err)
}

func (s *InstrumentedStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	start := time.Now()
	bookings, err := s.next.ListBookings(ctx, filter)
	s.observe("list_bookings", start, err)
	return bookings, err
}

func (s *InstrumentedStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	start := time.Now()
	booking, err := s.next.GetBooking(ctx, id)
	s.observe("get_booking", start, err)
	return booking, err
}

func (s *InstrumentedStore) FindBookingByIdempotencyKey(ctx context.Context, resourceID, key string) (*models.Booking, error) {
	start := time.Now()
	booking, err := s.next.FindBookingByIdempotencyKey(ctx, resourceID, key)
	s.observe("find_idempotent_booking", start, err)
	return booking, err
}

func (s *InstrumentedStore) InsertBooking(ctx context.Context, booking *models.Booking) error {
	start := time.Now()
	err := s.next.InsertBooking(ctx, booking)
	s.observe("insert_booking", start, err)
	return err
}

func (s *InstrumentedStore) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	start := time.Now()
	err := s.next.UpdateBooking(ctx, booking)
	s.observe("update_booking", start, err)
	return err
}

func (s *InstrumentedStore) DeleteBooking(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.DeleteBooking(ctx, id)
	s.observe("delete_booking", start, err)
	return err
}

func (s *InstrumentedStore) ListBlockedSlots(ctx context.Context, filter models.BlockedSlotFilter) ([]*models.BlockedSlot, error) {
	start := time.Now()
	slots, err := s.next.ListBlockedSlots(ctx, filter)
	s.observe("list_blocked_slots", start, err)
	return slots, err
}

func (s *InstrumentedStore) GetBlockedSlot(ctx context.Context, id string) (*models.BlockedSlot, error) {
	start := time.Now()
	slot, err := s.next.GetBlockedSlot(ctx, id)
	s.observe("get_blocked_slot", start, err)
	return slot, err
}

func (s *InstrumentedStore) InsertBlockedSlot(ctx context.Context, slot *models.BlockedSlot) error {
	start := time.Now()
	err := s.next.InsertBlockedSlot(ctx, slot)
	s.observe("insert_blocked_slot", start, err)
	return err
}

func (s *InstrumentedStore) UpdateBlockedSlot(ctx context.Context, slot *models.BlockedSlot) error {
	start := time.Now()
	err := s.next.UpdateBlockedSlot(ctx, slot)
	s.observe("update_blocked_slot", start, err)
	return err
}

func (s *InstrumentedStore) DeleteBlockedSlot(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.DeleteBlockedSlot(ctx, id)
	s.observe("delete_blocked_slot", start, err)
	return err
}

// Atomically times the whole scope, including lock wait.
func (s *InstrumentedStore) Atomically(ctx context.Context, resourceID string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := s.next.Atomically(ctx, resourceID, fn)
	s.observe("atomically", start, err)
	return err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.next.Ping(ctx)
	s.observe("ping", start, err)
	return err
}

func (s *InstrumentedStore) Backend() string {
	return s.next.Backend()
}
