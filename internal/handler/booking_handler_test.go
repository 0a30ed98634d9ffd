package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/voyage-admin-api/internal/middleware"
	"github.com/noah-isme/voyage-admin-api/internal/models"
	"github.com/noah-isme/voyage-admin-api/internal/service"
	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
)

type bookingServiceMock struct {
	admitReq    service.AdmitRequest
	admitResult *service.AdmitResult
	admitErr    error
	updateReq   service.UpdateBookingRequest
	query       service.CalendarQuery
	checked     *models.Interval
	conflicts   []models.ConflictRecord
	cancelled   string
	deleted     string
	err         error
}

func (m *bookingServiceMock) CheckConflicts(_ context.Context, _ string, proposed models.Interval) ([]models.ConflictRecord, error) {
	m.checked = &proposed
	return m.conflicts, m.err
}

func (m *bookingServiceMock) Admit(_ context.Context, req service.AdmitRequest) (*service.AdmitResult, error) {
	m.admitReq = req
	return m.admitResult, m.admitErr
}

func (m *bookingServiceMock) Cancel(_ context.Context, id string) (*models.Booking, error) {
	m.cancelled = id
	if m.err != nil {
		return nil, m.err
	}
	return &models.Booking{ID: id, Status: models.BookingCancelled}, nil
}

func (m *bookingServiceMock) UpdateBooking(_ context.Context, id string, req service.UpdateBookingRequest) (*models.Booking, error) {
	m.updateReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Booking{ID: id, Status: models.BookingConfirmed}, nil
}

func (m *bookingServiceMock) DeleteBooking(_ context.Context, id string) error {
	m.deleted = id
	return m.err
}

func (m *bookingServiceMock) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Booking{ID: id}, nil
}

func (m *bookingServiceMock) ListCalendar(_ context.Context, query service.CalendarQuery) (*models.CalendarView, error) {
	m.query = query
	if m.err != nil {
		return nil, m.err
	}
	client := "client-7"
	txn := "txn-1"
	return &models.CalendarView{
		ResourceID: "agency",
		Bookings: []*models.Booking{{
			ID:         "b-1",
			ResourceID: "agency",
			ClientID:   &client,
			Status:     models.BookingConfirmed,
			Metadata:   models.Metadata{"passport": "X123"},
			TxnID:      &txn,
		}},
		BlockedSlots: []*models.BlockedSlot{{ID: "s-1", ResourceID: "agency", Reason: "office closed", AllDay: true}},
	}, nil
}

type exportServiceMock struct {
	req service.ExportRequest
}

func (m *exportServiceMock) Export(_ context.Context, req service.ExportRequest) (*service.ExportFile, error) {
	m.req = req
	return &service.ExportFile{Filename: "calendar-agency-20260504.csv", ContentType: "text/csv", Data: []byte("Type,ID\n")}, nil
}

func newBookingRouter(svc *bookingServiceMock, exports *exportServiceMock, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewBookingHandler(svc, exports)
	router := gin.New()
	router.Use(pre...)
	router.GET("/bookings", h.List)
	router.GET("/bookings/conflicts", h.Conflicts)
	router.GET("/bookings/export", h.Export)
	router.POST("/bookings", h.Create)
	router.GET("/bookings/:id", h.Get)
	router.PUT("/bookings/:id", h.Update)
	router.DELETE("/bookings/:id", h.Delete)
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestBookingCreateAdmits(t *testing.T) {
	svc := &bookingServiceMock{admitResult: &service.AdmitResult{Booking: &models.Booking{ID: "b-1"}}}
	router := newBookingRouter(svc, nil)

	w := doJSON(router, http.MethodPost, "/bookings", map[string]interface{}{
		"resource_id": "guide-1",
		"start":       "2026-05-04T09:00:00Z",
		"end":         "2026-05-04T10:00:00Z",
		"metadata":    map[string]interface{}{"tour": "volcano"},
	}, map[string]string{IdempotencyKeyHeader: " key-1 "})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/bookings/b-1", w.Header().Get("Location"))
	assert.Empty(t, w.Header().Get(ReplayHeader))
	assert.Equal(t, "guide-1", svc.admitReq.ResourceID)
	assert.Equal(t, "key-1", svc.admitReq.IdempotencyKey)
	assert.Equal(t, time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC), svc.admitReq.Start.UTC())
	assert.Equal(t, "volcano", svc.admitReq.Metadata["tour"])
}

func TestBookingCreateReplay(t *testing.T) {
	svc := &bookingServiceMock{admitResult: &service.AdmitResult{Booking: &models.Booking{ID: "b-1"}, Replayed: true}}
	router := newBookingRouter(svc, nil)

	w := doJSON(router, http.MethodPost, "/bookings", map[string]interface{}{
		"start": "2026-05-04T09:00:00Z",
		"end":   "2026-05-04T10:00:00Z",
	}, map[string]string{IdempotencyKeyHeader: "key-1"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(ReplayHeader))
}

func TestBookingCreateRejectedCarriesConflicts(t *testing.T) {
	proposed := models.Interval{Start: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	conflict := &models.ConflictError{
		ResourceID: "agency",
		Proposed:   proposed,
		Conflicts:  []models.ConflictRecord{{Type: models.ConflictBooking, ID: "b-0", ResourceID: "agency", Start: proposed.Start, End: proposed.End}},
	}
	svc := &bookingServiceMock{admitErr: appErrors.WithDetails(appErrors.ErrRejected, conflict)}
	router := newBookingRouter(svc, nil)

	w := doJSON(router, http.MethodPost, "/bookings", map[string]interface{}{
		"start": "2026-05-04T09:00:00Z",
		"end":   "2026-05-04T10:00:00Z",
	}, nil)

	require.Equal(t, http.StatusConflict, w.Code)
	errBody := envelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "BOOKING_CONFLICT", errBody["code"])
	conflicts := errBody["details"].(map[string]interface{})["conflicts"].([]interface{})
	require.Len(t, conflicts, 1)
	assert.Equal(t, "b-0", conflicts[0].(map[string]interface{})["id"])
}

func TestBookingCreateRejectsMalformedBody(t *testing.T) {
	router := newBookingRouter(&bookingServiceMock{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewBufferString(`{"start":"yesterday"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", envelope(t, w)["error"].(map[string]interface{})["code"])
}

func TestBookingCreatePropagatesStoreUnavailable(t *testing.T) {
	svc := &bookingServiceMock{admitErr: appErrors.ErrStoreUnavailable}
	router := newBookingRouter(svc, nil)

	w := doJSON(router, http.MethodPost, "/bookings", map[string]interface{}{
		"start": "2026-05-04T09:00:00Z",
		"end":   "2026-05-04T10:00:00Z",
	}, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBookingListParsesWindow(t *testing.T) {
	svc := &bookingServiceMock{}
	router := newBookingRouter(svc, nil)

	w := doJSON(router, http.MethodGet, "/bookings?resource=guide-1&start=2026-05-04T00:00:00%2B07:00&end=2026-05-05T00:00:00Z&status=confirmed,%20cancelled", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guide-1", svc.query.ResourceID)
	require.NotNil(t, svc.query.Start)
	assert.Equal(t, time.Date(2026, 5, 3, 17, 0, 0, 0, time.UTC), *svc.query.Start)
	assert.Equal(t, []string{"confirmed", "cancelled"}, svc.query.Status)
	meta := envelope(t, w)["meta"].(map[string]interface{})
	assert.EqualValues(t, 1, meta["bookings"])
}

func TestBookingListHidesClientDataFromAnonymousCallers(t *testing.T) {
	router := newBookingRouter(&bookingServiceMock{}, nil)

	w := doJSON(router, http.MethodGet, "/bookings", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "client-7")
	assert.NotContains(t, w.Body.String(), "passport")
	assert.NotContains(t, w.Body.String(), "txn-1")

	data := envelope(t, w)["data"].(map[string]interface{})
	booking := data["bookings"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "b-1", booking["id"])
	assert.Equal(t, "confirmed", booking["status"])
	assert.NotContains(t, booking, "client_id")
	slot := data["blocked_slots"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "office closed", slot["reason"])
	assert.Equal(t, true, slot["all_day"])
}

func TestBookingListHidesClientDataFromNonStaffTokens(t *testing.T) {
	asClient := func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{})
		c.Set(middleware.ContextStaffKey, false)
	}
	router := newBookingRouter(&bookingServiceMock{}, nil, asClient)

	w := doJSON(router, http.MethodGet, "/bookings", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "client-7")
}

func TestBookingListReturnsFullRowsToStaff(t *testing.T) {
	asStaff := func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{})
		c.Set(middleware.ContextStaffKey, true)
	}
	router := newBookingRouter(&bookingServiceMock{}, nil, asStaff)

	w := doJSON(router, http.MethodGet, "/bookings", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := envelope(t, w)["data"].(map[string]interface{})
	booking := data["bookings"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "client-7", booking["client_id"])
	assert.Equal(t, "txn-1", booking["txn_id"])
}

func TestBookingListRejectsBadTimestamp(t *testing.T) {
	router := newBookingRouter(&bookingServiceMock{}, nil)
	w := doJSON(router, http.MethodGet, "/bookings?start=2026-05-04", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingConflicts(t *testing.T) {
	svc := &bookingServiceMock{}
	router := newBookingRouter(svc, nil)

	w := doJSON(router, http.MethodGet, "/bookings/conflicts?start=2026-05-04T09:00:00Z&end=2026-05-04T10:00:00Z", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.checked)
	data := envelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["available"])

	w = doJSON(router, http.MethodGet, "/bookings/conflicts?start=2026-05-04T09:00:00Z", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingUpdatePassesPartialFields(t *testing.T) {
	svc := &bookingServiceMock{}
	router := newBookingRouter(svc, nil)

	w := doJSON(router, http.MethodPut, "/bookings/b-1", map[string]interface{}{"end": "2026-05-04T11:00:00Z"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.updateReq.Start)
	require.NotNil(t, svc.updateReq.End)
	assert.Equal(t, 11, svc.updateReq.End.UTC().Hour())
}

func TestBookingDeleteCancelsByDefault(t *testing.T) {
	svc := &bookingServiceMock{}
	router := newBookingRouter(svc, nil)

	w := doJSON(router, http.MethodDelete, "/bookings/b-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b-1", svc.cancelled)
	assert.Empty(t, svc.deleted)

	w = doJSON(router, http.MethodDelete, "/bookings/b-2?hard=true", nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "b-2", svc.deleted)

	w = doJSON(router, http.MethodDelete, "/bookings/b-3?hard=maybe", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingGetNotFound(t *testing.T) {
	router := newBookingRouter(&bookingServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "booking not found")}, nil)
	w := doJSON(router, http.MethodGet, "/bookings/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookingExportStreamsFile(t *testing.T) {
	exports := &exportServiceMock{}
	router := newBookingRouter(&bookingServiceMock{}, exports)

	w := doJSON(router, http.MethodGet, "/bookings/export?resource=agency&start=2026-05-04T00:00:00Z&end=2026-05-11T00:00:00Z", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "calendar-agency-20260504.csv")
	assert.Equal(t, "csv", exports.req.Format)
	assert.Equal(t, "agency", exports.req.ResourceID)
}
