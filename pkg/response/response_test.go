package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
	"github.com/noah-isme/voyage-admin-api/pkg/middleware/requestid"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestJSONMergesStoredMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/bookings", nil)

	SetMeta(c, "resource", "agency")
	JSON(c, http.StatusOK, []string{"a"}, map[string]interface{}{"count": 1})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	body := decode(t, w)
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, "agency", meta["resource"])
	assert.EqualValues(t, 1, meta["count"])
	assert.NotContains(t, body, "error")
}

func TestErrorRendersTypedErrorWithRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(requestid.Middleware())
	router.GET("/x", func(c *gin.Context) {
		Error(c, appErrors.WithDetails(appErrors.ErrRejected, map[string]int{"conflicts": 2}))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-1")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "BOOKING_CONFLICT", errBody["code"])
	assert.NotNil(t, errBody["details"])
	assert.Equal(t, "req-1", body["meta"].(map[string]interface{})["request_id"])
}

func TestErrorHidesUntypedErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

	Error(c, errors.New("pq: password authentication failed"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, decode(t, w), "meta")
}
