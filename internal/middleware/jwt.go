package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	"github.com/noah-isme/voyage-admin-api/internal/service"
	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
	"github.com/noah-isme/voyage-admin-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// ContextStaffKey is set to true when the validated token carries a staff role.
const ContextStaffKey = "isStaff"

// JWT protects routes by requiring a valid access token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			msg := "invalid authorization header"
			if c.GetHeader("Authorization") == "" {
				msg = ""
			}
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, msg))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		setClaims(c, authService, claims)
		c.Next()
	}
}

// OptionalJWT attaches claims when present but does not block.
func OptionalJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := authService.ValidateToken(token); err == nil {
				setClaims(c, authService, claims)
			}
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func setClaims(c *gin.Context, authService *service.AuthService, claims *models.JWTClaims) {
	c.Set(ContextUserKey, claims)
	c.Set(ContextStaffKey, authService.IsStaff(claims))
	actor, _ := models.ActorFrom(c.Request.Context())
	actor.ID = claims.UserID()
	actor.Role = string(claims.EffectiveRole())
	c.Request = c.Request.WithContext(models.WithActor(c.Request.Context(), actor))
}
