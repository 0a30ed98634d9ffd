package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Valid reports whether the status is a known value.
func (s BookingStatus) Valid() bool {
	return s == BookingConfirmed || s == BookingCancelled
}

// DefaultBookingKind is used when a request does not tag the booking.
const DefaultBookingKind = "appointment"

// Metadata is an opaque JSON object carried alongside a booking.
type Metadata map[string]interface{}

// Value implements driver.Valuer for jsonb columns.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for jsonb columns.
func (m *Metadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*m = Metadata{}
		return nil
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	*m = out
	return nil
}

// Booking is an admitted interval on a resource calendar.
type Booking struct {
	ID              string        `db:"id" json:"id"`
	ResourceID      string        `db:"resource_id" json:"resource_id"`
	ClientID        *string       `db:"client_id" json:"client_id,omitempty"`
	Kind            string        `db:"kind" json:"kind"`
	Status          BookingStatus `db:"status" json:"status"`
	Start           time.Time     `db:"start_at" json:"start"`
	End             time.Time     `db:"end_at" json:"end"`
	Metadata        Metadata      `db:"metadata" json:"metadata,omitempty"`
	IdempotencyKey  *string       `db:"idempotency_key" json:"-"`
	TxnID           *string       `db:"txn_id" json:"txn_id,omitempty"`
	RescheduledFrom *string       `db:"rescheduled_from" json:"rescheduled_from,omitempty"`
	CancelledAt     *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// Interval returns the booking's time range.
func (b *Booking) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// IsConfirmed reports whether the booking still holds its interval.
func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingConfirmed
}

// BookingFilter narrows booking listings. Zero values mean "any".
type BookingFilter struct {
	ResourceID string
	Status     []BookingStatus
	Window     *Interval
	ExcludeIDs []string
	ClientID   string
	Limit      int
}

// Includes reports whether a booking matches the filter. Stores that cannot push a predicate
// down use it to re-filter rows in memory.
func (f BookingFilter) Includes(b *Booking) bool {
	if f.ResourceID != "" && b.ResourceID != f.ResourceID {
		return false
	}
	if f.ClientID != "" && (b.ClientID == nil || *b.ClientID != f.ClientID) {
		return false
	}
	if len(f.Status) > 0 {
		matched := false
		for _, s := range f.Status {
			if b.Status == s {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, id := range f.ExcludeIDs {
		if b.ID == id {
			return false
		}
	}
	if f.Window != nil && !f.Window.Overlaps(b.Interval()) {
		return false
	}
	return true
}
