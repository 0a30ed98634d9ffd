package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/voyage-admin-api/internal/middleware"
	"github.com/noah-isme/voyage-admin-api/internal/models"
	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// isStaff reports whether the request carries a validated staff token.
func isStaff(c *gin.Context) bool {
	return claimsFromContext(c) != nil && c.GetBool(middleware.ContextStaffKey)
}

// pickQuery reads the snake_case parameter first and falls back to the camelCase alias.
func pickQuery(c *gin.Context, preferred string, fallback string) string {
	if value := c.Query(preferred); value != "" {
		return value
	}
	return c.Query(fallback)
}

func resourceQuery(c *gin.Context) string {
	if value := c.Query("resource"); value != "" {
		return value
	}
	return pickQuery(c, "resource_id", "resourceId")
}

// parseTimeQuery parses an RFC3339 query parameter. An absent parameter yields nil.
func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, name+" must be an RFC3339 timestamp")
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

func parseWindowQuery(c *gin.Context) (*time.Time, *time.Time, error) {
	start, err := parseTimeQuery(c, "start")
	if err != nil {
		return nil, nil, err
	}
	end, err := parseTimeQuery(c, "end")
	if err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body")
	}
	return nil
}
