package models

// CalendarView is the calendar rendering payload for a window on one resource.
type CalendarView struct {
	ResourceID   string         `json:"resource_id"`
	Window       Interval       `json:"window"`
	Bookings     []*Booking     `json:"bookings"`
	BlockedSlots []*BlockedSlot `json:"blocked_slots"`
}

// AvailabilityView is the calendar payload for callers without staff access. Entries carry
// timing, status and slot reasons only, never client references or metadata.
type AvailabilityView struct {
	ResourceID   string           `json:"resource_id"`
	Window       Interval         `json:"window"`
	Bookings     []ConflictRecord `json:"bookings"`
	BlockedSlots []ConflictRecord `json:"blocked_slots"`
}

// Availability projects the view for anonymous callers.
func (v *CalendarView) Availability() *AvailabilityView {
	out := &AvailabilityView{
		ResourceID:   v.ResourceID,
		Window:       v.Window,
		Bookings:     make([]ConflictRecord, 0, len(v.Bookings)),
		BlockedSlots: make([]ConflictRecord, 0, len(v.BlockedSlots)),
	}
	for _, b := range v.Bookings {
		out.Bookings = append(out.Bookings, BookingConflict(b))
	}
	for _, s := range v.BlockedSlots {
		out.BlockedSlots = append(out.BlockedSlots, BlockedSlotConflict(s))
	}
	return out
}
