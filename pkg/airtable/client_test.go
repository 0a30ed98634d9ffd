package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, BaseID: "appBase", APIKey: "pat-key"})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{APIKey: "x"})
	assert.Error(t, err)
	_, err = NewClient(Config{BaseID: "x"})
	assert.Error(t, err)
}

func TestListFollowsOffsets(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/appBase/Bookings", r.URL.Path)
		assert.Equal(t, "Bearer pat-key", r.Header.Get("Authorization"))
		assert.Equal(t, `{Resource}="agency"`, r.URL.Query().Get("filterByFormula"))
		assert.Equal(t, "Start", r.URL.Query().Get("sort[0][field]"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"records": []map[string]interface{}{{"id": "rec1", "fields": map[string]interface{}{"Booking ID": "b1"}}},
				"offset":  "next",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"records": []map[string]interface{}{{"id": "rec2", "fields": map[string]interface{}{"Booking ID": "b2"}}},
		})
	})

	records, err := client.List(context.Background(), "Bookings", ListOptions{
		Formula: Eq("Resource", "agency"),
		Sort:    []Sort{{Field: "Start"}},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec2", records[1].ID)
	assert.Equal(t, "b2", records[1].Fields["Booking ID"])
	assert.Equal(t, 2, calls)
}

func TestCreateSendsTypecastPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body recordsPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Typecast)
		if !assert.Len(t, body.Records, 1) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body.Records[0].ID = "recNew"
		_ = json.NewEncoder(w).Encode(body)
	})

	rec, err := client.Create(context.Background(), "Bookings", map[string]interface{}{"Status": "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, "recNew", rec.ID)
	assert.Equal(t, "confirmed", rec.Fields["Status"])
}

func TestUpdateAndDelete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appBase/Bookings/rec1", r.URL.Path)
		switch r.Method {
		case http.MethodPatch:
			_ = json.NewEncoder(w).Encode(Record{ID: "rec1", Fields: map[string]interface{}{"Status": "cancelled"}})
		case http.MethodDelete:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "rec1", "deleted": true})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	rec, err := client.Update(context.Background(), "Bookings", "rec1", map[string]interface{}{"Status": "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", rec.Fields["Status"])

	require.NoError(t, client.Delete(context.Background(), "Bookings", "rec1"))
}

func TestErrorsAreClassified(t *testing.T) {
	status := http.StatusNotFound
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusNotFound {
			_, _ = w.Write([]byte(`{"error":"NOT_FOUND"}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":{"type":"RATE_LIMIT_REACHED","message":"slow down"}}`))
	})

	_, err := client.Get(context.Background(), "Bookings", "missing")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransient(err))

	status = http.StatusTooManyRequests
	_, err = client.Get(context.Background(), "Bookings", "rec1")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "RATE_LIMIT_REACHED", apiErr.Type)
	assert.Equal(t, "slow down", apiErr.Message)
}

func TestTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, BaseID: "appBase", APIKey: "k", Timeout: time.Second})
	require.NoError(t, err)

	err = client.Ping(context.Background(), "Bookings")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestFormulaHelpers(t *testing.T) {
	assert.Equal(t, `"say \"hi\""`, Quote(`say "hi"`))
	assert.Equal(t, `{Resource}="a"`, And("", Eq("Resource", "a")))
	assert.Equal(t, `OR({A}="1", {B}="2")`, Or(Eq("A", "1"), Eq("B", "2")))
	assert.Equal(t, "", And())

	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	assert.Equal(t,
		`AND(IS_BEFORE({Start}, "2025-03-10T11:00:00Z"), IS_AFTER({End}, "2025-03-10T10:00:00Z"))`,
		Overlaps("Start", "End", start, end),
	)
}
