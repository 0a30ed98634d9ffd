package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowHeaders  = "Authorization, Content-Type, X-Requested-With, X-Request-ID, Idempotency-Key"
	allowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	exposeHeaders = "X-Request-ID, Idempotent-Replay, Retry-After, Content-Disposition, Location"
)

// New returns a CORS middleware for the back-office and booking widget origins.
// Entries may be exact origins or "https://*.example.com" subdomain patterns; an empty list allows any origin.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	exact := make(map[string]struct{}, len(allowedOrigins))
	var patterns []subdomainPattern
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if scheme, host, ok := strings.Cut(origin, "://*."); ok {
			patterns = append(patterns, subdomainPattern{scheme: scheme + "://", suffix: "." + host})
			continue
		}
		exact[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := strings.TrimRight(c.GetHeader("Origin"), "/")
		header := c.Writer.Header()
		header.Add("Vary", "Origin")

		switch {
		case origin == "" && allowAll:
			header.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && (allowAll || allowed(exact, patterns, origin)):
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")
		}

		header.Set("Access-Control-Allow-Headers", allowHeaders)
		header.Set("Access-Control-Allow-Methods", allowMethods)
		header.Set("Access-Control-Expose-Headers", exposeHeaders)
		header.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type subdomainPattern struct {
	scheme string
	suffix string
}

func (p subdomainPattern) match(origin string) bool {
	return len(origin) > len(p.scheme)+len(p.suffix) &&
		strings.HasPrefix(origin, p.scheme) &&
		strings.HasSuffix(origin, p.suffix)
}

func allowed(exact map[string]struct{}, patterns []subdomainPattern, origin string) bool {
	if _, ok := exact[origin]; ok {
		return true
	}
	for _, p := range patterns {
		if p.match(origin) {
			return true
		}
	}
	return false
}
