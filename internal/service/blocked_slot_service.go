package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	"github.com/noah-isme/voyage-admin-api/internal/repository"
	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
)

const (
	maxBlockedDays  = 366
	maxBlockedSlots = 500
	timeOfDayLayout = "15:04"
)

// BlockSlotRequest accepts one of three forms: all_day with date (and optional end_date),
// explicit intervals, or date with times expanded by the calendar slot duration.
type BlockSlotRequest struct {
	ResourceID string            `json:"resource_id" validate:"omitempty,max=128"`
	AllDay     bool              `json:"all_day"`
	Date       string            `json:"date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string            `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Intervals  []models.Interval `json:"intervals"`
	Times      []string          `json:"times" validate:"omitempty,dive,datetime=15:04"`
	Reason     string            `json:"reason" validate:"max=500"`
}

// BlockedSlotQuery filters the blocked slot listing.
type BlockedSlotQuery struct {
	ResourceID      string
	Start           *time.Time
	End             *time.Time
	IncludeInactive bool
}

// AddBlockedSlot stores one row per discrete sub-interval. Existing bookings are never checked:
// staff may block time that is already booked, and later admissions see the block as a conflict.
func (s *AdmissionService) AddBlockedSlot(ctx context.Context, req BlockSlotRequest) ([]*models.BlockedSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blocked slot payload")
	}
	resourceID := s.resource(req.ResourceID)
	slots, err := s.expandBlock(req)
	if err != nil {
		return nil, err
	}

	var createdBy *string
	if actor, ok := models.ActorFrom(ctx); ok && actor.ID != "" {
		id := actor.ID
		createdBy = &id
	}
	reason := strings.TrimSpace(req.Reason)
	for _, slot := range slots {
		slot.ResourceID = resourceID
		slot.Reason = reason
		slot.Active = true
		slot.CreatedBy = createdBy
	}

	err = s.store.Atomically(ctx, resourceID, func(ctx context.Context) error {
		for _, slot := range slots {
			if err := s.store.InsertBlockedSlot(ctx, slot); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, translateStoreErr(err, "failed to create blocked slots")
	}
	for _, slot := range slots {
		s.audit.Record(ctx, blockedSlotEvent(models.AuditActionBlockCreate, nil, slot))
	}
	return slots, nil
}

// RemoveBlockedSlot deletes one blocked slot.
func (s *AdmissionService) RemoveBlockedSlot(ctx context.Context, id string) error {
	current, err := s.loadBlockedSlot(ctx, id)
	if err != nil {
		return err
	}
	err = s.store.Atomically(ctx, current.ResourceID, func(ctx context.Context) error {
		return s.store.DeleteBlockedSlot(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "blocked slot not found")
		}
		return translateStoreErr(err, "failed to delete blocked slot")
	}
	s.audit.Record(ctx, blockedSlotEvent(models.AuditActionBlockDelete, current, nil))
	return nil
}

// SetBlockedSlotActive toggles whether a slot takes part in conflict checks.
func (s *AdmissionService) SetBlockedSlotActive(ctx context.Context, id string, active bool) (*models.BlockedSlot, error) {
	current, err := s.loadBlockedSlot(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Active == active {
		return current, nil
	}

	before := *current
	err = s.store.Atomically(ctx, current.ResourceID, func(ctx context.Context) error {
		current.Active = active
		return s.store.UpdateBlockedSlot(ctx, current)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "blocked slot not found")
		}
		return nil, translateStoreErr(err, "failed to update blocked slot")
	}
	s.audit.Record(ctx, blockedSlotEvent(models.AuditActionBlockUpdate, &before, current))
	return current, nil
}

// ListBlockedSlots returns slots for a resource, optionally bounded by a window.
func (s *AdmissionService) ListBlockedSlots(ctx context.Context, query BlockedSlotQuery) ([]*models.BlockedSlot, error) {
	filter := models.BlockedSlotFilter{ResourceID: s.resource(query.ResourceID), ActiveOnly: !query.IncludeInactive}
	if query.Start != nil || query.End != nil {
		window, err := s.window(query.Start, query.End)
		if err != nil {
			return nil, translateStoreErr(err, "")
		}
		filter.Window = &window
	}
	slots, err := s.store.ListBlockedSlots(ctx, filter)
	if err != nil {
		return nil, translateStoreErr(err, "failed to list blocked slots")
	}
	if slots == nil {
		slots = []*models.BlockedSlot{}
	}
	return slots, nil
}

func (s *AdmissionService) expandBlock(req BlockSlotRequest) ([]*models.BlockedSlot, error) {
	switch {
	case req.AllDay:
		return s.expandDays(req.Date, req.EndDate)
	case len(req.Intervals) > 0:
		if len(req.Intervals) > maxBlockedSlots {
			return nil, appErrors.Clone(appErrors.ErrValidation, "too many intervals in one request")
		}
		slots := make([]*models.BlockedSlot, 0, len(req.Intervals))
		for _, iv := range req.Intervals {
			interval, err := models.NewInterval(iv.Start, iv.End)
			if err != nil {
				return nil, appErrors.ErrInvalidRange
			}
			slots = append(slots, &models.BlockedSlot{Start: interval.Start, End: interval.End})
		}
		return slots, nil
	case req.Date != "" && len(req.Times) > 0:
		return s.expandTimes(req.Date, req.Times)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "provide all_day with date, intervals, or date with times")
	}
}

func (s *AdmissionService) expandDays(from, to string) ([]*models.BlockedSlot, error) {
	if from == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required for all-day blocks")
	}
	first, err := time.ParseInLocation(models.DateLayout, from, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	last := first
	if to != "" {
		if last, err = time.ParseInLocation(models.DateLayout, to, s.cfg.Location); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD")
		}
	}
	if last.Before(first) {
		return nil, appErrors.Clone(appErrors.ErrInvalidRange, "end_date must not be before date")
	}

	var slots []*models.BlockedSlot
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if len(slots) == maxBlockedDays {
			return nil, appErrors.Clone(appErrors.ErrValidation, "all-day blocks are limited to one year per request")
		}
		bounds := models.DayBounds(day, s.cfg.Location)
		label := day.Format(models.DateLayout)
		slots = append(slots, &models.BlockedSlot{Start: bounds.Start, End: bounds.End, AllDay: true, Day: &label})
	}
	return slots, nil
}

func (s *AdmissionService) expandTimes(date string, times []string) ([]*models.BlockedSlot, error) {
	if len(times) > maxBlockedSlots {
		return nil, appErrors.Clone(appErrors.ErrValidation, "too many times in one request")
	}
	day, err := time.ParseInLocation(models.DateLayout, date, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	seen := make(map[string]struct{}, len(times))
	slots := make([]*models.BlockedSlot, 0, len(times))
	for _, raw := range times {
		raw = strings.TrimSpace(raw)
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		clock, err := time.Parse(timeOfDayLayout, raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "times must be HH:MM")
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, s.cfg.Location)
		slots = append(slots, &models.BlockedSlot{Start: start.UTC(), End: start.Add(s.cfg.SlotDuration).UTC()})
	}
	return slots, nil
}

func (s *AdmissionService) loadBlockedSlot(ctx context.Context, id string) (*models.BlockedSlot, error) {
	slot, err := s.store.GetBlockedSlot(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "blocked slot not found")
		}
		return nil, translateStoreErr(err, "failed to load blocked slot")
	}
	return slot, nil
}

func blockedSlotEvent(action string, before, after *models.BlockedSlot) AuditEvent {
	event := AuditEvent{Action: action, Resource: models.AuditResourceBlockedSlot}
	ref := after
	if ref == nil {
		ref = before
	}
	if ref != nil {
		event.ResourceID = ref.ID
		event.CalendarID = ref.ResourceID
	}
	if before != nil {
		event.Before = before
	}
	if after != nil {
		event.After = after
	}
	return event
}
