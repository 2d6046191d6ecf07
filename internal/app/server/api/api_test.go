package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"punchclock/internal/app/server/config"
	"punchclock/internal/domain/punch"
	"punchclock/internal/domain/session"
)

func newTestAPI(t *testing.T) (*chi.Mux, *punch.MemoryRepository) {
	t.Helper()
	repo := punch.NewMemoryRepository()
	cfg := &config.Config{
		Punch:   config.Punch{DedupWindow: 2 * time.Minute},
		Devices: config.Devices{EnrollmentKey: "secret", TokenTTL: time.Hour},
	}
	mux := New(Deps{
		Config:   cfg,
		Punches:  repo,
		Sessions: session.NewMemoryRepository(),
		Storage:  "memory",
	}, slog.Default())
	return mux, repo
}

func do(t *testing.T, mux http.Handler, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, mux http.Handler, deviceID string) string {
	t.Helper()
	rec := do(t, mux, http.MethodPost, "/api/v1/devices/register", "", map[string]string{
		"device_id":      deviceID,
		"enrollment_key": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func submitBody(clientID string, ts time.Time) punch.SubmitRequest {
	return punch.SubmitRequest{
		ClientID:           clientID,
		EmployeeID:         "emp-1",
		Type:               "clock_in",
		Timestamp:          ts,
		GeofenceResult:     "inside",
		BiometricResult:    "verified",
		VerificationMethod: "geo_face",
		SiteID:             "hq",
		DeviceID:           "dev-1",
	}
}

func TestAPI_Health(t *testing.T) {
	mux, _ := newTestAPI(t)

	rec := do(t, mux, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"storage":"memory"`)
}

func TestAPI_RegisterDevice_InvalidKey(t *testing.T) {
	mux, _ := newTestAPI(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/devices/register", "", map[string]string{
		"device_id":      "dev-1",
		"enrollment_key": "guess",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_SubmitRequiresToken(t *testing.T) {
	mux, repo := newTestAPI(t)
	ts := time.Date(2025, 3, 3, 9, 0, 30, 0, time.UTC)

	rec := do(t, mux, http.MethodPost, "/api/v1/punches", "", submitBody("c1", ts))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/v1/punches", "forged", submitBody("c1", ts))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, repo.Count())
}

func TestAPI_SubmitDedupAndList(t *testing.T) {
	mux, repo := newTestAPI(t)
	token := register(t, mux, "dev-1")
	ts := time.Date(2025, 3, 3, 9, 0, 30, 0, time.UTC)

	rec := do(t, mux, http.MethodPost, "/api/v1/punches", token, submitBody("c1", ts), "Idempotency-Key", "c1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first punch.SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, punch.StatusAccepted, first.Status)
	assert.False(t, first.Deduplicated)

	// потерянный ответ: клиент повторяет ту же отметку
	rec = do(t, mux, http.MethodPost, "/api/v1/punches", token, submitBody("c1", ts), "Idempotency-Key", "c1")
	require.Equal(t, http.StatusOK, rec.Code)
	var retry punch.SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &retry))
	assert.Equal(t, first.ServerID, retry.ServerID)
	assert.True(t, retry.Deduplicated)

	// другая отметка того же типа в пределах окна
	rec = do(t, mux, http.MethodPost, "/api/v1/punches", token, submitBody("c2", ts.Add(40*time.Second)))
	require.Equal(t, http.StatusOK, rec.Code)
	var near punch.SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &near))
	assert.Equal(t, first.ServerID, near.ServerID)

	assert.Equal(t, 1, repo.Count())

	rec = do(t, mux, http.MethodGet, "/api/v1/punches?employee_id=emp-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list punch.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Punches, 1)
	assert.Equal(t, "c1", list.Punches[0].ClientID)

	rec = do(t, mux, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `punchclock_server_punches_total{outcome="deduplicated"} 2`)
}

func TestAPI_SubmitRejections(t *testing.T) {
	mux, repo := newTestAPI(t)
	token := register(t, mux, "dev-1")
	ts := time.Date(2025, 3, 3, 9, 0, 30, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(r *punch.SubmitRequest)
		headers []string
		status  int
	}{
		{
			name:   "outside without override",
			mutate: func(r *punch.SubmitRequest) { r.GeofenceResult = "outside" },
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "unknown type",
			mutate: func(r *punch.SubmitRequest) { r.Type = "lunch" },
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "foreign device",
			mutate: func(r *punch.SubmitRequest) { r.DeviceID = "dev-2" },
			status: http.StatusForbidden,
		},
		{
			name:    "idempotency key mismatch",
			mutate:  func(r *punch.SubmitRequest) {},
			headers: []string{"Idempotency-Key", "other"},
			status:  http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := submitBody("c-"+tt.name, ts)
			tt.mutate(&body)

			rec := do(t, mux, http.MethodPost, "/api/v1/punches", token, body, tt.headers...)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, 0, repo.Count())
}
