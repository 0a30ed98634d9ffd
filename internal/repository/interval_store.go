package repository

import (
	"context"
	"errors"

	"github.com/noah-isme/voyage-admin-api/internal/models"
)

// Store errors shared by every IntervalStore backend.
var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("record already exists")
	ErrOverlap     = errors.New("interval overlaps a confirmed booking")
	ErrUnavailable = errors.New("store unavailable")
)

// IntervalStore persists bookings and blocked slots for resource calendars.
//
// Atomically runs fn with a context that every other store call must receive. All calls made
// through that context are serialised against other Atomically scopes on the same resource and
// either all take effect or none do.
type IntervalStore interface {
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	FindBookingByIdempotencyKey(ctx context.Context, resourceID, key string) (*models.Booking, error)
	InsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	DeleteBooking(ctx context.Context, id string) error

	ListBlockedSlots(ctx context.Context, filter models.BlockedSlotFilter) ([]*models.BlockedSlot, error)
	GetBlockedSlot(ctx context.Context, id string) (*models.BlockedSlot, error)
	InsertBlockedSlot(ctx context.Context, slot *models.BlockedSlot) error
	UpdateBlockedSlot(ctx context.Context, slot *models.BlockedSlot) error
	DeleteBlockedSlot(ctx context.Context, id string) error

	Atomically(ctx context.Context, resourceID string, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
	Backend() string
}
