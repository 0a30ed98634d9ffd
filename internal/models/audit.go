package models

import (
	"encoding/json"
	"time"
)

// AuditAction constants represent calendar mutations recorded in the activity trail.
const (
	AuditActionBookingAdmit      = "BOOKING_ADMIT"
	AuditActionBookingCancel     = "BOOKING_CANCEL"
	AuditActionBookingReschedule = "BOOKING_RESCHEDULE"
	AuditActionBookingUpdate     = "BOOKING_UPDATE"
	AuditActionBookingDelete     = "BOOKING_DELETE"
	AuditActionBlockCreate       = "BLOCKED_SLOT_CREATE"
	AuditActionBlockUpdate       = "BLOCKED_SLOT_UPDATE"
	AuditActionBlockDelete       = "BLOCKED_SLOT_DELETE"
)

// Audit resources.
const (
	AuditResourceBooking     = "booking"
	AuditResourceBlockedSlot = "blocked_slot"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	ActorID    *string         `db:"actor_id" json:"actor_id,omitempty"`
	ActorRole  string          `db:"actor_role" json:"actor_role,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	CalendarID string          `db:"calendar_id" json:"calendar_id"`
	TxnID      *string         `db:"txn_id" json:"txn_id,omitempty"`
	OldValues  json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues  json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// AuditFilter narrows the activity feed.
type AuditFilter struct {
	CalendarID string
	ResourceID string
	Limit      int
}
