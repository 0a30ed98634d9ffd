package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	"github.com/noah-isme/voyage-admin-api/pkg/airtable"
)

// Bookings table fields.
const (
	atBookingID       = "Booking ID"
	atResource        = "Resource"
	atClientID        = "Client ID"
	atKind            = "Kind"
	atStatus          = "Status"
	atStart           = "Start"
	atEnd             = "End"
	atMetadata        = "Metadata"
	atIdempotencyKey  = "Idempotency Key"
	atTxnID           = "Txn ID"
	atRescheduledFrom = "Rescheduled From"
	atCancelledAt     = "Cancelled At"
	atCreatedAt       = "Created At"
	atUpdatedAt       = "Updated At"
)

// Blocked slots table fields.
const (
	atSlotID    = "Slot ID"
	atAllDay    = "All Day"
	atDay       = "Day"
	atReason    = "Reason"
	atActive    = "Active"
	atCreatedBy = "Created By"
)

func bookingToFields(b *models.Booking) (map[string]interface{}, error) {
	metadata := "{}"
	if len(b.Metadata) > 0 {
		raw, err := json.Marshal(b.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(raw)
	}
	return map[string]interface{}{
		atBookingID:       b.ID,
		atResource:        b.ResourceID,
		atClientID:        optionalString(b.ClientID),
		atKind:            b.Kind,
		atStatus:          string(b.Status),
		atStart:           formatTime(b.Start),
		atEnd:             formatTime(b.End),
		atMetadata:        metadata,
		atIdempotencyKey:  optionalString(b.IdempotencyKey),
		atTxnID:           optionalString(b.TxnID),
		atRescheduledFrom: optionalString(b.RescheduledFrom),
		atCancelledAt:     optionalTime(b.CancelledAt),
		atCreatedAt:       formatTime(b.CreatedAt),
		atUpdatedAt:       formatTime(b.UpdatedAt),
	}, nil
}

func bookingFromRecord(rec airtable.Record) (*models.Booking, error) {
	f := rec.Fields
	b := &models.Booking{
		ID:              stringField(f, atBookingID),
		ResourceID:      stringField(f, atResource),
		ClientID:        optionalStringField(f, atClientID),
		Kind:            stringField(f, atKind),
		Status:          models.BookingStatus(stringField(f, atStatus)),
		IdempotencyKey:  optionalStringField(f, atIdempotencyKey),
		TxnID:           optionalStringField(f, atTxnID),
		RescheduledFrom: optionalStringField(f, atRescheduledFrom),
		Metadata:        models.Metadata{},
	}
	if b.ID == "" {
		return nil, fmt.Errorf("record %s has no %q", rec.ID, atBookingID)
	}
	if b.Kind == "" {
		b.Kind = models.DefaultBookingKind
	}

	var err error
	if b.Start, err = timeField(f, atStart); err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if b.End, err = timeField(f, atEnd); err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if b.CancelledAt, err = optionalTimeField(f, atCancelledAt); err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	b.CreatedAt = timeFieldOr(f, atCreatedAt, rec.CreatedTime)
	b.UpdatedAt = timeFieldOr(f, atUpdatedAt, rec.CreatedTime)

	if raw := stringField(f, atMetadata); raw != "" {
		if err := b.Metadata.Scan(raw); err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
	}
	return b, nil
}

func blockedSlotToFields(s *models.BlockedSlot) map[string]interface{} {
	return map[string]interface{}{
		atSlotID:    s.ID,
		atResource:  s.ResourceID,
		atStart:     formatTime(s.Start),
		atEnd:       formatTime(s.End),
		atAllDay:    s.AllDay,
		atDay:       optionalString(s.Day),
		atReason:    s.Reason,
		atActive:    s.Active,
		atCreatedBy: optionalString(s.CreatedBy),
		atCreatedAt: formatTime(s.CreatedAt),
		atUpdatedAt: formatTime(s.UpdatedAt),
	}
}

func blockedSlotFromRecord(rec airtable.Record) (*models.BlockedSlot, error) {
	f := rec.Fields
	s := &models.BlockedSlot{
		ID:         stringField(f, atSlotID),
		ResourceID: stringField(f, atResource),
		AllDay:     boolField(f, atAllDay),
		Day:        optionalStringField(f, atDay),
		Reason:     stringField(f, atReason),
		Active:     boolField(f, atActive),
		CreatedBy:  optionalStringField(f, atCreatedBy),
	}
	if s.ID == "" {
		return nil, fmt.Errorf("record %s has no %q", rec.ID, atSlotID)
	}

	var err error
	if s.Start, err = timeField(f, atStart); err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if s.End, err = timeField(f, atEnd); err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	s.CreatedAt = timeFieldOr(f, atCreatedAt, rec.CreatedTime)
	s.UpdatedAt = timeFieldOr(f, atUpdatedAt, rec.CreatedTime)
	return s, nil
}

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func optionalTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func optionalString(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func stringField(fields map[string]interface{}, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func optionalStringField(fields map[string]interface{}, name string) *string {
	v := stringField(fields, name)
	if v == "" {
		return nil
	}
	return &v
}

func boolField(fields map[string]interface{}, name string) bool {
	v, _ := fields[name].(bool)
	return v
}

func timeField(fields map[string]interface{}, name string) (time.Time, error) {
	raw := stringField(fields, name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing %q", name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", name, err)
	}
	return t.UTC(), nil
}

func optionalTimeField(fields map[string]interface{}, name string) (*time.Time, error) {
	if stringField(fields, name) == "" {
		return nil, nil
	}
	t, err := timeField(fields, name)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func timeFieldOr(fields map[string]interface{}, name, fallback string) time.Time {
	if t, err := timeField(fields, name); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, fallback); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
