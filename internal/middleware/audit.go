package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/voyage-admin-api/internal/models"
)

const maxUserAgentLength = 512

// AuditContext stamps the caller's network identity on the request context so calendar
// mutations can attribute their audit entries. JWT later fills in the actor id and role.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := models.ActorFrom(c.Request.Context())
		actor.IP = c.ClientIP()
		actor.UserAgent = c.GetHeader("User-Agent")
		if len(actor.UserAgent) > maxUserAgentLength {
			actor.UserAgent = actor.UserAgent[:maxUserAgentLength]
		}
		c.Request = c.Request.WithContext(models.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
