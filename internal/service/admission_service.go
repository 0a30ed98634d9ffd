package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	"github.com/noah-isme/voyage-admin-api/internal/repository"
	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
)

// Operation labels used for metrics and logs.
const (
	opAdmit      = "admit"
	opCancel     = "cancel"
	opReschedule = "reschedule"
)

type auditRecorder interface {
	Record(ctx context.Context, event AuditEvent)
}

type admissionObserver interface {
	ObserveAdmission(operation, outcome string, conflicts int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveAdmission(string, string, int) {}
func (noopMetrics) ObserveAuditDelivery(string, error)   {}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEvent) {}

var errIdempotencyMismatch = appErrors.Clone(appErrors.ErrConflict, "idempotency key was already used for a different interval")

// AdmissionConfig carries calendar defaults.
type AdmissionConfig struct {
	DefaultResource string
	Location        *time.Location
	SlotDuration    time.Duration
	Now             func() time.Time
}

// AdmissionService is the interval admission gate: it admits, cancels and reschedules bookings
// and manages blocked slots while keeping confirmed entries on a resource non-overlapping.
type AdmissionService struct {
	store     repository.IntervalStore
	audit     auditRecorder
	metrics   admissionObserver
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AdmissionConfig
}

// NewAdmissionService constructs the gate.
func NewAdmissionService(store repository.IntervalStore, audit auditRecorder, metrics admissionObserver, validate *validator.Validate, logger *zap.Logger, cfg AdmissionConfig) *AdmissionService {
	if audit == nil {
		audit = noopAudit{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultResource == "" {
		cfg.DefaultResource = "agency"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = 30 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AdmissionService{store: store, audit: audit, metrics: metrics, validator: validate, logger: logger, cfg: cfg}
}

// AdmitRequest describes a booking proposal.
type AdmitRequest struct {
	ID             string          `json:"id" validate:"omitempty,max=64"`
	ResourceID     string          `json:"resource_id" validate:"omitempty,max=128"`
	ClientID       *string         `json:"client_id" validate:"omitempty,max=128"`
	Kind           string          `json:"kind" validate:"omitempty,max=64"`
	Start          time.Time       `json:"start"`
	End            time.Time       `json:"end"`
	Metadata       models.Metadata `json:"metadata"`
	IdempotencyKey string          `json:"-" validate:"omitempty,max=255"`
}

// AdmitResult is the admitted booking. Replayed is set when an idempotency key matched an earlier admission.
type AdmitResult struct {
	Booking  *models.Booking
	Replayed bool
}

// RescheduleRequest moves a booking to a new interval.
type RescheduleRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// UpdateBookingRequest is a partial update. A changed start or end reschedules the booking.
type UpdateBookingRequest struct {
	Start    *time.Time      `json:"start"`
	End      *time.Time      `json:"end"`
	Status   *string         `json:"status" validate:"omitempty,oneof=confirmed cancelled"`
	ClientID *string         `json:"client_id" validate:"omitempty,max=128"`
	Kind     *string         `json:"kind" validate:"omitempty,min=1,max=64"`
	Metadata models.Metadata `json:"metadata"`
}

// CalendarQuery selects the rendering window for a resource.
type CalendarQuery struct {
	ResourceID string
	Start      *time.Time
	End        *time.Time
	Status     []string
}

// CheckConflicts lists confirmed bookings and active blocked slots overlapping proposed.
func (s *AdmissionService) CheckConflicts(ctx context.Context, resourceID string, proposed models.Interval) ([]models.ConflictRecord, error) {
	interval, err := models.NewInterval(proposed.Start, proposed.End)
	if err != nil {
		return nil, translateStoreErr(err, "")
	}
	conflicts, err := s.findConflicts(ctx, s.resource(resourceID), interval, nil)
	if err != nil {
		return nil, translateStoreErr(err, "failed to check conflicts")
	}
	return conflicts, nil
}

// Admit stores a confirmed booking when its interval is free, inside one per-resource atomic scope.
func (s *AdmissionService) Admit(ctx context.Context, req AdmitRequest) (*AdmitResult, error) {
	proposed, err := models.NewInterval(req.Start, req.End)
	if err != nil {
		return nil, s.fail(opAdmit, err)
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, s.fail(opAdmit, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload"))
	}

	resourceID := s.resource(req.ResourceID)
	txnID := uuid.NewString()
	booking := &models.Booking{
		ID:         strings.TrimSpace(req.ID),
		ResourceID: resourceID,
		ClientID:   req.ClientID,
		Kind:       req.Kind,
		Status:     models.BookingConfirmed,
		Start:      proposed.Start,
		End:        proposed.End,
		Metadata:   req.Metadata,
		TxnID:      &txnID,
	}
	if booking.Kind == "" {
		booking.Kind = models.DefaultBookingKind
	}
	if booking.Metadata == nil {
		booking.Metadata = models.Metadata{}
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		booking.IdempotencyKey = &key
	}

	result := &AdmitResult{Booking: booking}
	err = s.store.Atomically(ctx, resourceID, func(ctx context.Context) error {
		if booking.IdempotencyKey != nil {
			existing, err := s.store.FindBookingByIdempotencyKey(ctx, resourceID, *booking.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				if !existing.Interval().Equal(proposed) {
					return errIdempotencyMismatch
				}
				result = &AdmitResult{Booking: existing, Replayed: true}
				return nil
			}
		}
		conflicts, err := s.findConflicts(ctx, resourceID, proposed, nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &models.ConflictError{ResourceID: resourceID, Proposed: proposed, Conflicts: conflicts}
		}
		return s.store.InsertBooking(ctx, booking)
	})
	if err != nil {
		return nil, s.fail(opAdmit, s.overlapToConflict(ctx, err, resourceID, proposed, nil))
	}

	if result.Replayed {
		s.metrics.ObserveAdmission(opAdmit, OutcomeReplayed, 0)
		return result, nil
	}
	s.metrics.ObserveAdmission(opAdmit, OutcomeAdmitted, 0)
	s.audit.Record(ctx, bookingEvent(models.AuditActionBookingAdmit, nil, booking))
	s.logger.Info("booking admitted",
		zap.String("booking_id", booking.ID),
		zap.String("resource_id", resourceID),
		zap.Time("start", booking.Start),
		zap.Time("end", booking.End),
	)
	return result, nil
}

// Cancel marks a booking cancelled. Cancelling twice returns the cancelled booking unchanged.
func (s *AdmissionService) Cancel(ctx context.Context, id string) (*models.Booking, error) {
	current, err := s.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsConfirmed() {
		return current, nil
	}

	var events []AuditEvent
	var cancelled *models.Booking
	err = s.store.Atomically(ctx, current.ResourceID, func(ctx context.Context) error {
		cancelled, events, err = s.cancelWithin(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.fail(opCancel, err)
	}
	s.emit(ctx, events)
	return cancelled, nil
}

// Reschedule moves a confirmed booking: the old row is cancelled and a new confirmed row is inserted
// under one transaction id. The booking's own interval is ignored when checking for conflicts.
func (s *AdmissionService) Reschedule(ctx context.Context, id string, req RescheduleRequest) (*models.Booking, error) {
	proposed, err := models.NewInterval(req.Start, req.End)
	if err != nil {
		return nil, s.fail(opReschedule, err)
	}
	current, err := s.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	var events []AuditEvent
	var moved *models.Booking
	err = s.store.Atomically(ctx, current.ResourceID, func(ctx context.Context) error {
		moved, events, err = s.rescheduleWithin(ctx, id, proposed, bookingPatch{})
		return err
	})
	if err != nil {
		return nil, s.fail(opReschedule, s.overlapToConflict(ctx, err, current.ResourceID, proposed, []string{id}))
	}
	s.emit(ctx, events)
	return moved, nil
}

// UpdateBooking applies a partial update. Time changes always go through the reschedule path and are
// re-checked; status=cancelled cancels; remaining fields are patched in place.
func (s *AdmissionService) UpdateBooking(ctx context.Context, id string, req UpdateBookingRequest) (*models.Booking, error) {
	patch := bookingPatch{ClientID: req.ClientID, Kind: req.Kind, Metadata: req.Metadata}
	cancel := req.Status != nil && models.BookingStatus(*req.Status) == models.BookingCancelled
	reconfirm := req.Status != nil && models.BookingStatus(*req.Status) == models.BookingConfirmed
	timeChange := req.Start != nil || req.End != nil

	op := opCancel
	if timeChange {
		op = opReschedule
	}
	invalid := func(err error) error {
		if timeChange || cancel {
			return s.fail(op, err)
		}
		return err
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking update"))
	}
	if cancel && timeChange {
		return nil, invalid(appErrors.Clone(appErrors.ErrValidation, "a booking cannot be cancelled and rescheduled in the same request"))
	}
	current, err := s.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if reconfirm && !current.IsConfirmed() {
		return nil, invalid(appErrors.Clone(appErrors.ErrValidation, "cancelled bookings cannot be reconfirmed"))
	}

	var proposed models.Interval
	if timeChange {
		start, end := current.Start, current.End
		if req.Start != nil {
			start = *req.Start
		}
		if req.End != nil {
			end = *req.End
		}
		if proposed, err = models.NewInterval(start, end); err != nil {
			return nil, s.fail(op, err)
		}
	}

	var events []AuditEvent
	var updated *models.Booking
	err = s.store.Atomically(ctx, current.ResourceID, func(ctx context.Context) error {
		switch {
		case timeChange:
			updated, events, err = s.rescheduleWithin(ctx, id, proposed, patch)
			return err
		case cancel:
			var patchEvents []AuditEvent
			if !patch.empty() {
				if _, patchEvents, err = s.patchWithin(ctx, id, patch); err != nil {
					return err
				}
			}
			updated, events, err = s.cancelWithin(ctx, id)
			events = append(patchEvents, events...)
			return err
		default:
			updated, events, err = s.patchWithin(ctx, id, patch)
			return err
		}
	})
	if err != nil {
		if timeChange {
			err = s.overlapToConflict(ctx, err, current.ResourceID, proposed, []string{id})
		}
		if timeChange || cancel {
			return nil, s.fail(op, err)
		}
		return nil, translateStoreErr(err, "failed to update booking")
	}
	s.emit(ctx, events)
	return updated, nil
}

// DeleteBooking removes a booking row entirely.
func (s *AdmissionService) DeleteBooking(ctx context.Context, id string) error {
	current, err := s.loadBooking(ctx, id)
	if err != nil {
		return err
	}
	err = s.store.Atomically(ctx, current.ResourceID, func(ctx context.Context) error {
		return s.store.DeleteBooking(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return translateStoreErr(err, "failed to delete booking")
	}
	s.audit.Record(ctx, bookingEvent(models.AuditActionBookingDelete, current, nil))
	return nil
}

// GetBooking fetches a booking by id.
func (s *AdmissionService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.loadBooking(ctx, id)
}

// ListCalendar returns bookings and active blocked slots overlapping the window. Without bounds the
// window is the seven days starting today in the calendar timezone.
func (s *AdmissionService) ListCalendar(ctx context.Context, query CalendarQuery) (*models.CalendarView, error) {
	window, err := s.window(query.Start, query.End)
	if err != nil {
		return nil, translateStoreErr(err, "")
	}
	resourceID := s.resource(query.ResourceID)

	filter := models.BookingFilter{ResourceID: resourceID, Window: &window}
	for _, raw := range query.Status {
		status := models.BookingStatus(strings.ToLower(strings.TrimSpace(raw)))
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be confirmed or cancelled")
		}
		filter.Status = append(filter.Status, status)
	}

	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, translateStoreErr(err, "failed to list bookings")
	}
	slots, err := s.store.ListBlockedSlots(ctx, models.BlockedSlotFilter{ResourceID: resourceID, ActiveOnly: true, Window: &window})
	if err != nil {
		return nil, translateStoreErr(err, "failed to list blocked slots")
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	if slots == nil {
		slots = []*models.BlockedSlot{}
	}
	return &models.CalendarView{ResourceID: resourceID, Window: window, Bookings: bookings, BlockedSlots: slots}, nil
}

func (s *AdmissionService) cancelWithin(ctx context.Context, id string) (*models.Booking, []AuditEvent, error) {
	current, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !current.IsConfirmed() {
		return current, nil, nil
	}
	before := *current
	now := s.cfg.Now().UTC()
	txnID := uuid.NewString()
	current.Status = models.BookingCancelled
	current.CancelledAt = &now
	current.TxnID = &txnID
	if err := s.store.UpdateBooking(ctx, current); err != nil {
		return nil, nil, err
	}
	return current, []AuditEvent{bookingEvent(models.AuditActionBookingCancel, &before, current)}, nil
}

func (s *AdmissionService) rescheduleWithin(ctx context.Context, id string, proposed models.Interval, patch bookingPatch) (*models.Booking, []AuditEvent, error) {
	current, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !current.IsConfirmed() {
		return nil, nil, appErrors.ErrBookingCancelled
	}
	if current.Interval().Equal(proposed) {
		if patch.empty() {
			return current, nil, nil
		}
		return s.patchWithin(ctx, id, patch)
	}

	conflicts, err := s.findConflicts(ctx, current.ResourceID, proposed, []string{current.ID})
	if err != nil {
		return nil, nil, err
	}
	if len(conflicts) > 0 {
		return nil, nil, &models.ConflictError{ResourceID: current.ResourceID, Proposed: proposed, Conflicts: conflicts}
	}

	before := *current
	txnID := uuid.NewString()
	now := s.cfg.Now().UTC()
	current.Status = models.BookingCancelled
	current.CancelledAt = &now
	current.TxnID = &txnID
	if err := s.store.UpdateBooking(ctx, current); err != nil {
		return nil, nil, err
	}

	oldID := current.ID
	next := &models.Booking{
		ResourceID:      current.ResourceID,
		ClientID:        current.ClientID,
		Kind:            current.Kind,
		Status:          models.BookingConfirmed,
		Start:           proposed.Start,
		End:             proposed.End,
		Metadata:        current.Metadata,
		TxnID:           &txnID,
		RescheduledFrom: &oldID,
	}
	patch.apply(next)
	if err := s.store.InsertBooking(ctx, next); err != nil {
		return nil, nil, err
	}
	return next, []AuditEvent{bookingEvent(models.AuditActionBookingReschedule, &before, next)}, nil
}

func (s *AdmissionService) patchWithin(ctx context.Context, id string, patch bookingPatch) (*models.Booking, []AuditEvent, error) {
	current, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if patch.empty() {
		return current, nil, nil
	}
	before := *current
	patch.apply(current)
	if err := s.store.UpdateBooking(ctx, current); err != nil {
		return nil, nil, err
	}
	return current, []AuditEvent{bookingEvent(models.AuditActionBookingUpdate, &before, current)}, nil
}

// findConflicts must run inside the resource's atomic scope when its result guards a write.
func (s *AdmissionService) findConflicts(ctx context.Context, resourceID string, proposed models.Interval, exclude []string) ([]models.ConflictRecord, error) {
	bookingFilter := models.BookingFilter{
		ResourceID: resourceID,
		Status:     []models.BookingStatus{models.BookingConfirmed},
		Window:     &proposed,
		ExcludeIDs: exclude,
	}
	bookings, err := s.store.ListBookings(ctx, bookingFilter)
	if err != nil {
		return nil, err
	}
	slotFilter := models.BlockedSlotFilter{ResourceID: resourceID, ActiveOnly: true, Window: &proposed}
	slots, err := s.store.ListBlockedSlots(ctx, slotFilter)
	if err != nil {
		return nil, err
	}

	conflicts := make([]models.ConflictRecord, 0, len(bookings)+len(slots))
	for _, b := range bookings {
		if bookingFilter.Includes(b) {
			conflicts = append(conflicts, models.BookingConflict(b))
		}
	}
	for _, slot := range slots {
		if slotFilter.Includes(slot) {
			conflicts = append(conflicts, models.BlockedSlotConflict(slot))
		}
	}
	models.SortConflicts(conflicts)
	return conflicts, nil
}

// overlapToConflict turns a lost race against the store's exclusion constraint into a regular rejection.
func (s *AdmissionService) overlapToConflict(ctx context.Context, err error, resourceID string, proposed models.Interval, exclude []string) error {
	if !errors.Is(err, repository.ErrOverlap) {
		return err
	}
	conflicts, lookupErr := s.findConflicts(ctx, resourceID, proposed, exclude)
	if lookupErr != nil {
		s.logger.Warn("re-reading conflicts after overlap violation", zap.String("resource_id", resourceID), zap.Error(lookupErr))
	}
	return &models.ConflictError{ResourceID: resourceID, Proposed: proposed, Conflicts: conflicts}
}

func (s *AdmissionService) loadBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, translateStoreErr(err, "failed to load booking")
	}
	return booking, nil
}

// fail counts the outcome of a gated operation and translates the error.
func (s *AdmissionService) fail(op string, err error) error {
	var conflict *models.ConflictError
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &conflict):
		s.metrics.ObserveAdmission(op, OutcomeRejected, len(conflict.Conflicts))
		s.logger.Info("booking rejected", zap.String("operation", op), zap.String("resource_id", conflict.ResourceID), zap.Int("conflicts", len(conflict.Conflicts)))
	case errors.Is(err, models.ErrInvalidRange), errors.Is(err, repository.ErrDuplicate), errors.Is(err, repository.ErrNotFound):
		s.metrics.ObserveAdmission(op, OutcomeInvalid, 0)
	case errors.As(err, &appErr) && appErr.Status < 500:
		s.metrics.ObserveAdmission(op, OutcomeInvalid, 0)
	default:
		s.metrics.ObserveAdmission(op, OutcomeError, 0)
		s.logger.Error("booking operation failed", zap.String("operation", op), zap.Error(err))
	}
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}
	return translateStoreErr(err, "booking operation failed")
}

func (s *AdmissionService) emit(ctx context.Context, events []AuditEvent) {
	for _, event := range events {
		switch event.Action {
		case models.AuditActionBookingCancel:
			s.metrics.ObserveAdmission(opCancel, OutcomeCancelled, 0)
		case models.AuditActionBookingReschedule:
			s.metrics.ObserveAdmission(opReschedule, OutcomeAdmitted, 0)
		}
		s.audit.Record(ctx, event)
	}
}

func (s *AdmissionService) resource(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.cfg.DefaultResource
}

func (s *AdmissionService) window(start, end *time.Time) (models.Interval, error) {
	if start == nil && end == nil {
		today := models.DayBounds(s.cfg.Now(), s.cfg.Location)
		return models.Interval{Start: today.Start, End: today.Start.AddDate(0, 0, 7)}, nil
	}
	if start == nil || end == nil {
		return models.Interval{}, appErrors.Clone(appErrors.ErrValidation, "start and end must be provided together")
	}
	return models.NewInterval(*start, *end)
}

type bookingPatch struct {
	ClientID *string
	Kind     *string
	Metadata models.Metadata
}

func (p bookingPatch) empty() bool {
	return p.ClientID == nil && p.Kind == nil && p.Metadata == nil
}

func (p bookingPatch) apply(b *models.Booking) {
	if p.ClientID != nil {
		if *p.ClientID == "" {
			b.ClientID = nil
		} else {
			client := *p.ClientID
			b.ClientID = &client
		}
	}
	if p.Kind != nil {
		b.Kind = *p.Kind
	}
	if p.Metadata != nil {
		b.Metadata = p.Metadata
	}
}

func bookingEvent(action string, before, after *models.Booking) AuditEvent {
	event := AuditEvent{Action: action, Resource: models.AuditResourceBooking}
	ref := after
	if ref == nil {
		ref = before
	}
	if ref != nil {
		event.ResourceID = ref.ID
		event.CalendarID = ref.ResourceID
		event.TxnID = ref.TxnID
	}
	if before != nil {
		event.Before = before
	}
	if after != nil {
		event.After = after
	}
	return event
}

// translateStoreErr maps gate and store errors onto the API error set.
func translateStoreErr(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	var conflict *models.ConflictError
	if errors.As(err, &conflict) {
		return appErrors.WithDetails(appErrors.ErrRejected, conflict)
	}
	switch {
	case errors.Is(err, models.ErrInvalidRange):
		return appErrors.ErrInvalidRange
	case errors.Is(err, repository.ErrNotFound):
		return appErrors.ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.ErrDuplicateID
	case errors.Is(err, repository.ErrOverlap):
		return appErrors.ErrRejected
	case errors.Is(err, repository.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, appErrors.ErrStoreUnavailable.Message)
	}
	if message == "" {
		message = appErrors.ErrInternal.Message
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
