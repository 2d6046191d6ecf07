package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/punch"
)

func newTestHTTPClient(t *testing.T, h http.HandlerFunc) *httpClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return newHTTPClient(srv.URL, srv.Client(), slog.Default())
}

func TestHTTPClient_Submit(t *testing.T) {
	var got punch.SubmitRequest
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/punches", r.URL.Path)
		assert.Equal(t, "e1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"accepted","server_id":"srv-1","deduplicated":true}`))
	})
	c.SetToken("tok")

	req := punch.NewSubmitRequest(testEvent("e1", attendance.ClockIn, base))
	resp, err := c.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", resp.ServerID)
	assert.True(t, resp.Deduplicated)
	assert.Equal(t, "e1", got.ClientID)
	assert.Equal(t, "geo_face", got.VerificationMethod)
}

func TestHTTPClient_SubmitWithoutServerID(t *testing.T) {
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"accepted"}`))
	})

	_, err := c.Submit(context.Background(), punch.NewSubmitRequest(testEvent("e1", attendance.ClockIn, base)))
	require.Error(t, err)

	var re *RemoteError
	assert.False(t, errors.As(err, &re))
}

func TestHTTPClient_RemoteErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantMessage   string
		wantServerID  string
		wantPermanent bool
	}{
		{
			name:          "problem json",
			status:        http.StatusUnprocessableEntity,
			body:          `{"title":"Unprocessable Entity","detail":"invalid punch: unknown type","status":422}`,
			wantMessage:   "invalid punch: unknown type",
			wantPermanent: true,
		},
		{
			name:          "conflict with server id",
			status:        http.StatusConflict,
			body:          `{"title":"Conflict","detail":"duplicate","errors":[{"location":"server_id","value":"srv-9"}]}`,
			wantMessage:   "duplicate",
			wantServerID:  "srv-9",
			wantPermanent: true,
		},
		{
			name:         "plain error",
			status:       http.StatusServiceUnavailable,
			body:         `{"error":"maintenance"}`,
			wantMessage:  "maintenance",
			wantServerID: "",
		},
		{
			name:        "token expired",
			status:      http.StatusUnauthorized,
			body:        `{"error":"Unauthorized"}`,
			wantMessage: "Unauthorized",
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `not json`,
		},
		{
			name:        "request timeout",
			status:      http.StatusRequestTimeout,
			body:        `{"title":"Request Timeout"}`,
			wantMessage: "Request Timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Submit(context.Background(), punch.NewSubmitRequest(testEvent("e1", attendance.ClockIn, base)))

			var re *RemoteError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.status, re.Status)
			assert.Equal(t, tt.wantMessage, re.Message)
			assert.Equal(t, tt.wantServerID, re.ServerID)
			assert.Equal(t, tt.wantPermanent, re.Permanent())
		})
	}
}

func TestHTTPClient_RegisterDevice(t *testing.T) {
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/devices/register", r.URL.Path)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["enrollment_key"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"invalid enrollment key"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"device-token"}`))
	})

	_, err := c.RegisterDevice(context.Background(), "dev-1", "wrong")
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusUnauthorized, re.Status)
	assert.Empty(t, c.token)

	token, err := c.RegisterDevice(context.Background(), "dev-1", "secret")
	require.NoError(t, err)
	assert.Equal(t, "device-token", token)
	assert.Equal(t, "device-token", c.token)
}

func TestHTTPClient_HealthCheck(t *testing.T) {
	var unhealthy atomic.Bool
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	assert.NoError(t, c.HealthCheck(context.Background()))

	unhealthy.Store(true)
	assert.Error(t, c.HealthCheck(context.Background()))
}

func TestHTTPClient_ListPunches(t *testing.T) {
	c := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "emp 1", r.URL.Query().Get("employee_id"))
		_, _ = w.Write([]byte(`{"punches":[{"server_id":"srv-1","client_id":"e1","employee_id":"emp 1","type":"clock_in"}]}`))
	})

	punches, err := c.ListPunches(context.Background(), "emp 1")
	require.NoError(t, err)
	require.Len(t, punches, 1)
	assert.Equal(t, "srv-1", punches[0].ServerID)
}
