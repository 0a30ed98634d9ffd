package models

import (
	"sort"
	"time"
)

// ConflictType distinguishes the source collection of a conflict.
type ConflictType string

const (
	ConflictBooking     ConflictType = "booking"
	ConflictBlockedSlot ConflictType = "blocked_slot"
)

// ConflictRecord describes an existing entry overlapping a proposed interval.
type ConflictRecord struct {
	Type       ConflictType  `json:"type"`
	ID         string        `json:"id"`
	ResourceID string        `json:"resource_id"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Status     BookingStatus `json:"status,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	AllDay     bool          `json:"all_day,omitempty"`
}

// BookingConflict converts a booking into a conflict record.
func BookingConflict(b *Booking) ConflictRecord {
	return ConflictRecord{
		Type:       ConflictBooking,
		ID:         b.ID,
		ResourceID: b.ResourceID,
		Start:      b.Start,
		End:        b.End,
		Status:     b.Status,
	}
}

// BlockedSlotConflict converts a blocked slot into a conflict record.
func BlockedSlotConflict(s *BlockedSlot) ConflictRecord {
	return ConflictRecord{
		Type:       ConflictBlockedSlot,
		ID:         s.ID,
		ResourceID: s.ResourceID,
		Start:      s.Start,
		End:        s.End,
		Reason:     s.Reason,
		AllDay:     s.AllDay,
	}
}

// SortConflicts orders conflicts by start, then id.
func SortConflicts(conflicts []ConflictRecord) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		if !conflicts[i].Start.Equal(conflicts[j].Start) {
			return conflicts[i].Start.Before(conflicts[j].Start)
		}
		return conflicts[i].ID < conflicts[j].ID
	})
}

// ConflictError is returned when a proposed interval collides with existing entries.
type ConflictError struct {
	ResourceID string           `json:"resource_id"`
	Proposed   Interval         `json:"proposed"`
	Conflicts  []ConflictRecord `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "requested interval conflicts with existing entries"
}
