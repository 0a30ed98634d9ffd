package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	"github.com/noah-isme/voyage-admin-api/internal/service"
)

const testSecret = "middleware-secret"

func newAuth() *service.AuthService {
	return service.NewAuthService(nil, service.AuthConfig{Secret: testSecret, StaffRoles: []string{"admin", "staff"}})
}

func signToken(t *testing.T, subject string, role models.UserRole) string {
	t.Helper()
	claims := models.JWTClaims{
		Email:       subject + "@agency.test",
		Role:        "authenticated",
		AppMetadata: models.AppMetadata{Role: role},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/secure", handlers...)
	return router
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	req.Header.Set("User-Agent", "agency-console/1.0")
	router.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	auth := newAuth()
	router := newRouter(JWT(auth), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Bearer not-a-jwt").Code)
}

func TestJWTAttachesClaimsAndActor(t *testing.T) {
	auth := newAuth()
	var actor models.Actor
	var claims *models.JWTClaims
	router := newRouter(AuditContext(), JWT(auth), func(c *gin.Context) {
		actor, _ = models.ActorFrom(c.Request.Context())
		claims, _ = claimsFrom(c)
		c.Status(http.StatusOK)
	})

	w := serve(router, "Bearer "+signToken(t, "staff-1", models.RoleStaff))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "staff-1", claims.UserID())
	assert.Equal(t, "staff-1", actor.ID)
	assert.Equal(t, "staff", actor.Role)
	assert.Equal(t, "agency-console/1.0", actor.UserAgent)
	assert.NotEmpty(t, actor.IP)
}

func TestOptionalJWTIgnoresBadTokens(t *testing.T) {
	auth := newAuth()
	var found bool
	router := newRouter(OptionalJWT(auth), func(c *gin.Context) {
		_, found = claimsFrom(c)
		c.Status(http.StatusOK)
	})

	w := serve(router, "Bearer garbage")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, found)

	w = serve(router, "Bearer "+signToken(t, "admin-1", models.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, found)
}

func TestOptionalJWTFlagsStaff(t *testing.T) {
	auth := newAuth()
	var staff, set bool
	router := newRouter(OptionalJWT(auth), func(c *gin.Context) {
		var value interface{}
		value, set = c.Get(ContextStaffKey)
		staff, _ = value.(bool)
		c.Status(http.StatusOK)
	})

	serve(router, "")
	assert.False(t, set)

	serve(router, "Bearer "+signToken(t, "client-1", "client"))
	assert.True(t, set)
	assert.False(t, staff)

	serve(router, "Bearer "+signToken(t, "staff-1", models.RoleStaff))
	assert.True(t, staff)
}

func TestRequireStaff(t *testing.T) {
	auth := newAuth()
	router := newRouter(JWT(auth), RequireStaff(auth), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "Bearer "+signToken(t, "staff-1", models.RoleStaff)).Code)
	assert.Equal(t, http.StatusForbidden, serve(router, "Bearer "+signToken(t, "client-1", "client")).Code)
}

func TestRequireStaffWithoutClaims(t *testing.T) {
	router := newRouter(RequireStaff(newAuth()), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
}

func TestRequireRoles(t *testing.T) {
	auth := newAuth()
	router := newRouter(JWT(auth), RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "Bearer "+signToken(t, "admin-1", models.RoleAdmin)).Code)
	assert.Equal(t, http.StatusForbidden, serve(router, "Bearer "+signToken(t, "staff-1", models.RoleStaff)).Code)
}

type recordingObserver struct {
	method, path string
	status       int
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.method, r.path, r.status = method, path, status
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/bookings/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/b-1", nil))

	assert.Equal(t, http.MethodGet, observer.method)
	assert.Equal(t, "/bookings/:id", observer.path)
	assert.Equal(t, http.StatusAccepted, observer.status)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, "unmatched", observer.path)
}
