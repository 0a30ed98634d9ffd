package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	"github.com/noah-isme/voyage-admin-api/internal/service"
	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
	"github.com/noah-isme/voyage-admin-api/pkg/response"
)

type blockedSlotService interface {
	AddBlockedSlot(ctx context.Context, req service.BlockSlotRequest) ([]*models.BlockedSlot, error)
	RemoveBlockedSlot(ctx context.Context, id string) error
	SetBlockedSlotActive(ctx context.Context, id string, active bool) (*models.BlockedSlot, error)
	ListBlockedSlots(ctx context.Context, query service.BlockedSlotQuery) ([]*models.BlockedSlot, error)
}

// BlockedSlotHandler manages staff-defined unavailability.
type BlockedSlotHandler struct {
	service blockedSlotService
}

// NewBlockedSlotHandler constructs the handler.
func NewBlockedSlotHandler(service blockedSlotService) *BlockedSlotHandler {
	return &BlockedSlotHandler{service: service}
}

type toggleBlockedSlotRequest struct {
	Active *bool `json:"active"`
}

// List godoc
// @Summary List blocked slots
// @Tags BlockedSlots
// @Produce json
// @Security BearerAuth
// @Param resource query string false "Resource (calendar) ID"
// @Param start query string false "Window start (RFC3339)"
// @Param end query string false "Window end (RFC3339)"
// @Param include_inactive query bool false "Include deactivated slots"
// @Success 200 {object} response.Envelope
// @Router /blocked-slots [get]
func (h *BlockedSlotHandler) List(c *gin.Context) {
	start, end, err := parseWindowQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	includeInactive, _ := strconv.ParseBool(pickQuery(c, "include_inactive", "includeInactive"))

	slots, err := h.service.ListBlockedSlots(c.Request.Context(), service.BlockedSlotQuery{
		ResourceID:      resourceQuery(c),
		Start:           start,
		End:             end,
		IncludeInactive: includeInactive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, map[string]interface{}{"total": len(slots)})
}

// Create godoc
// @Summary Block time on a calendar
// @Description Accepts all_day with date (and optional end_date), explicit intervals, or date with times. One slot is stored per sub-interval.
// @Tags BlockedSlots
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BlockSlotRequest true "Block"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /blocked-slots [post]
func (h *BlockedSlotHandler) Create(c *gin.Context) {
	var req service.BlockSlotRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	slots, err := h.service.AddBlockedSlot(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slots)
}

// Toggle godoc
// @Summary Activate or deactivate a blocked slot
// @Tags BlockedSlots
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Blocked slot ID"
// @Param payload body toggleBlockedSlotRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /blocked-slots/{id} [patch]
func (h *BlockedSlotHandler) Toggle(c *gin.Context) {
	var req toggleBlockedSlotRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	if req.Active == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active is required"))
		return
	}
	slot, err := h.service.SetBlockedSlotActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Delete godoc
// @Summary Remove a blocked slot
// @Tags BlockedSlots
// @Security BearerAuth
// @Param id path string true "Blocked slot ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /blocked-slots/{id} [delete]
func (h *BlockedSlotHandler) Delete(c *gin.Context) {
	if err := h.service.RemoveBlockedSlot(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
