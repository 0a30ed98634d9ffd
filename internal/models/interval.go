package models

import (
	"errors"
	"time"
)

// ErrInvalidRange is returned when an interval does not satisfy start < end.
var ErrInvalidRange = errors.New("interval start must be before end")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Precision is the resolution every stored bound is kept at. Airtable date fields hold whole seconds.
const Precision = time.Second

// NewInterval builds a UTC interval truncated to Precision and validates it.
func NewInterval(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start.UTC().Truncate(Precision), End: end.UTC().Truncate(Precision)}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate checks both bounds are set and ordered.
func (i Interval) Validate() error {
	if i.Start.IsZero() || i.End.IsZero() || !i.Start.Before(i.End) {
		return ErrInvalidRange
	}
	return nil
}

// Overlaps reports whether two half-open intervals intersect. Touching endpoints do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Contains reports whether t falls inside [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Equal compares bounds by instant.
func (i Interval) Equal(other Interval) bool {
	return i.Start.Equal(other.Start) && i.End.Equal(other.End)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// UTC returns the interval with both bounds converted to UTC.
func (i Interval) UTC() Interval {
	return Interval{Start: i.Start.UTC(), End: i.End.UTC()}
}
