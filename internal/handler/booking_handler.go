package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	"github.com/noah-isme/voyage-admin-api/internal/service"
	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
	"github.com/noah-isme/voyage-admin-api/pkg/response"
)

// IdempotencyKeyHeader carries the client's retry key on POST /bookings.
const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayHeader         = "Idempotent-Replay"
)

type bookingService interface {
	CheckConflicts(ctx context.Context, resourceID string, proposed models.Interval) ([]models.ConflictRecord, error)
	Admit(ctx context.Context, req service.AdmitRequest) (*service.AdmitResult, error)
	Cancel(ctx context.Context, id string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, id string, req service.UpdateBookingRequest) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListCalendar(ctx context.Context, query service.CalendarQuery) (*models.CalendarView, error)
}

type exportService interface {
	Export(ctx context.Context, req service.ExportRequest) (*service.ExportFile, error)
}

// BookingHandler exposes the booking calendar and the admission gate.
type BookingHandler struct {
	bookings bookingService
	exports  exportService
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(bookings bookingService, exports exportService) *BookingHandler {
	return &BookingHandler{bookings: bookings, exports: exports}
}

// List godoc
// @Summary List bookings and blocked slots in a calendar window
// @Description Staff receive full rows. Other callers receive an availability projection without client data.
// @Tags Bookings
// @Produce json
// @Param resource query string false "Resource (calendar) ID"
// @Param start query string false "Window start (RFC3339)"
// @Param end query string false "Window end (RFC3339)"
// @Param status query string false "Comma separated booking statuses"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	start, end, err := parseWindowQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.bookings.ListCalendar(c.Request.Context(), service.CalendarQuery{
		ResourceID: resourceQuery(c),
		Start:      start,
		End:        end,
		Status:     splitList(c.Query("status")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"bookings":      len(view.Bookings),
		"blocked_slots": len(view.BlockedSlots),
	}
	if !isStaff(c) {
		response.JSON(c, http.StatusOK, view.Availability(), meta)
		return
	}
	response.JSON(c, http.StatusOK, view, meta)
}

// Conflicts godoc
// @Summary Check a proposed interval against the calendar
// @Tags Bookings
// @Produce json
// @Param resource query string false "Resource (calendar) ID"
// @Param start query string true "Proposed start (RFC3339)"
// @Param end query string true "Proposed end (RFC3339)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /bookings/conflicts [get]
func (h *BookingHandler) Conflicts(c *gin.Context) {
	start, end, err := parseWindowQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if start == nil || end == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start and end are required"))
		return
	}
	conflicts, err := h.bookings.CheckConflicts(c.Request.Context(), resourceQuery(c), models.Interval{Start: *start, End: *end})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"available": len(conflicts) == 0,
		"conflicts": conflicts,
	}, nil)
}

// Create godoc
// @Summary Admit a booking
// @Description Admits the booking when the interval is free. Retries carrying the same Idempotency-Key replay the first result.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client retry key"
// @Param payload body service.AdmitRequest true "Booking"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope "Replayed admission"
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.AdmitRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	req.IdempotencyKey = strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))

	result, err := h.bookings.Admit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Location", strings.TrimSuffix(c.Request.URL.Path, "/")+"/"+result.Booking.ID)
	if result.Replayed {
		c.Header(ReplayHeader, "true")
		response.JSON(c, http.StatusOK, result.Booking, nil)
		return
	}
	response.Created(c, result.Booking)
}

// Get godoc
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.bookings.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Update godoc
// @Summary Update a booking
// @Description Changing start or end reschedules the booking into a new record; status cancelled cancels it; other fields are patched in place.
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param payload body service.UpdateBookingRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id} [put]
func (h *BookingHandler) Update(c *gin.Context) {
	var req service.UpdateBookingRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	booking, err := h.bookings.UpdateBooking(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Delete godoc
// @Summary Cancel or delete a booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param hard query bool false "Remove the record instead of cancelling it"
// @Success 200 {object} response.Envelope
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Delete(c *gin.Context) {
	hard := false
	if raw := c.Query("hard"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "hard must be a boolean"))
			return
		}
		hard = parsed
	}

	if hard {
		if err := h.bookings.DeleteBooking(c.Request.Context(), c.Param("id")); err != nil {
			response.Error(c, err)
			return
		}
		response.NoContent(c)
		return
	}

	booking, err := h.bookings.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Export godoc
// @Summary Export a calendar window
// @Tags Bookings
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param resource query string false "Resource (calendar) ID"
// @Param start query string false "Window start (RFC3339)"
// @Param end query string false "Window end (RFC3339)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /bookings/export [get]
func (h *BookingHandler) Export(c *gin.Context) {
	start, end, err := parseWindowQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.Export(c.Request.Context(), service.ExportRequest{
		ResourceID: resourceQuery(c),
		Start:      start,
		End:        end,
		Format:     c.DefaultQuery("format", "csv"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
