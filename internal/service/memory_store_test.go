package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	"github.com/noah-isme/voyage-admin-api/internal/repository"
)

type scopeKey struct{}

// memoryStore is an IntervalStore that serialises Atomically scopes and restores a snapshot when fn fails.
type memoryStore struct {
	scope sync.Mutex
	mu    sync.Mutex

	bookings map[string]models.Booking
	slots    map[string]models.BlockedSlot

	calls          int
	insertErr      error
	listErr        error
	overlapOnAdmit bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{bookings: map[string]models.Booking{}, slots: map[string]models.BlockedSlot{}}
}

func (m *memoryStore) Backend() string { return "memory" }

func (m *memoryStore) Ping(context.Context) error { return m.listErr }

func (m *memoryStore) Atomically(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	if ctx.Value(scopeKey{}) != nil {
		return fn(ctx)
	}
	m.scope.Lock()
	defer m.scope.Unlock()

	m.mu.Lock()
	bookings := make(map[string]models.Booking, len(m.bookings))
	for k, v := range m.bookings {
		bookings[k] = v
	}
	slots := make(map[string]models.BlockedSlot, len(m.slots))
	for k, v := range m.slots {
		slots[k] = v
	}
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, scopeKey{}, true)); err != nil {
		m.mu.Lock()
		m.bookings, m.slots = bookings, slots
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryStore) ListBookings(_ context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*models.Booking{}
	for _, b := range m.bookings {
		b := b
		if filter.Includes(&b) {
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (m *memoryStore) FindBookingByIdempotencyKey(_ context.Context, resourceID, key string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, b := range m.bookings {
		if b.ResourceID == resourceID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			b := b
			return &b, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) InsertBooking(_ context.Context, booking *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.insertErr != nil {
		return m.insertErr
	}
	if m.overlapOnAdmit {
		return repository.ErrOverlap
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if _, exists := m.bookings[booking.ID]; exists {
		return repository.ErrDuplicate
	}
	m.bookings[booking.ID] = *booking
	return nil
}

func (m *memoryStore) UpdateBooking(_ context.Context, booking *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if _, ok := m.bookings[booking.ID]; !ok {
		return repository.ErrNotFound
	}
	m.bookings[booking.ID] = *booking
	return nil
}

func (m *memoryStore) DeleteBooking(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if _, ok := m.bookings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.bookings, id)
	return nil
}

func (m *memoryStore) ListBlockedSlots(_ context.Context, filter models.BlockedSlotFilter) ([]*models.BlockedSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*models.BlockedSlot{}
	for _, s := range m.slots {
		s := s
		if filter.Includes(&s) {
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *memoryStore) GetBlockedSlot(_ context.Context, id string) (*models.BlockedSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	s, ok := m.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *memoryStore) InsertBlockedSlot(_ context.Context, slot *models.BlockedSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	m.slots[slot.ID] = *slot
	return nil
}

func (m *memoryStore) UpdateBlockedSlot(_ context.Context, slot *models.BlockedSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if _, ok := m.slots[slot.ID]; !ok {
		return repository.ErrNotFound
	}
	m.slots[slot.ID] = *slot
	return nil
}

func (m *memoryStore) DeleteBlockedSlot(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if _, ok := m.slots[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.slots, id)
	return nil
}

func (m *memoryStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memoryStore) confirmedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bookings {
		if b.IsConfirmed() {
			n++
		}
	}
	return n
}

var _ repository.IntervalStore = (*memoryStore)(nil)
