package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
	"github.com/noah-isme/voyage-admin-api/pkg/response"
)

type activityService interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

// ActivityHandler serves the audit trail of calendar mutations.
type ActivityHandler struct {
	service activityService
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service activityService) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// List godoc
// @Summary Recent calendar activity
// @Tags Activity
// @Produce json
// @Security BearerAuth
// @Param resource query string false "Resource (calendar) ID"
// @Param resource_id query string false "Booking or blocked slot ID"
// @Param limit query int false "Maximum entries" default(50)
// @Success 200 {object} response.Envelope
// @Router /activity [get]
func (h *ActivityHandler) List(c *gin.Context) {
	filter := models.AuditFilter{
		CalendarID: c.Query("resource"),
		ResourceID: pickQuery(c, "resource_id", "resourceId"),
		Limit:      50,
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	entries, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
