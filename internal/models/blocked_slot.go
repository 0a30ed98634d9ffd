package models

import "time"

// DateLayout is the wire and storage format of calendar days.
const DateLayout = "2006-01-02"

// BlockedSlot marks agency-side unavailability on a resource calendar.
// All-day slots keep the day they cover and carry its materialised bounds in Start/End.
type BlockedSlot struct {
	ID         string    `db:"id" json:"id"`
	ResourceID string    `db:"resource_id" json:"resource_id"`
	Start      time.Time `db:"start_at" json:"start"`
	End        time.Time `db:"end_at" json:"end"`
	AllDay     bool      `db:"all_day" json:"all_day"`
	Day        *string   `db:"day" json:"day,omitempty"`
	Reason     string    `db:"reason" json:"reason"`
	Active     bool      `db:"active" json:"active"`
	CreatedBy  *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Interval returns the slot's time range.
func (s *BlockedSlot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// BlockedSlotFilter narrows blocked slot listings.
type BlockedSlotFilter struct {
	ResourceID string
	ActiveOnly bool
	Window     *Interval
	Limit      int
}

// Includes reports whether a slot matches the filter.
func (f BlockedSlotFilter) Includes(s *BlockedSlot) bool {
	if f.ResourceID != "" && s.ResourceID != f.ResourceID {
		return false
	}
	if f.ActiveOnly && !s.Active {
		return false
	}
	if f.Window != nil && !f.Window.Overlaps(s.Interval()) {
		return false
	}
	return true
}

// DayBounds returns [00:00, next 00:00) of day in loc, expressed in UTC.
func DayBounds(day time.Time, loc *time.Location) Interval {
	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Interval{Start: start.UTC(), End: start.AddDate(0, 0, 1).UTC()}
}
