package punch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"punchclock/internal/app/server/api/http/middleware/auth"
	"punchclock/internal/domain/punch"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Submit(ctx context.Context, req punch.SubmitRequest) (*punch.SubmitResponse, error) {
	args := m.Called(ctx, req)
	// Безопасное приведение nil к указателю
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*punch.SubmitResponse), args.Error(1)
}

func (m *MockService) List(ctx context.Context, employeeID string, limit int) ([]punch.Punch, error) {
	args := m.Called(ctx, employeeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]punch.Punch), args.Error(1)
}

type countingMetrics map[string]int

func (c countingMetrics) IncrementPunch(outcome string) { c[outcome]++ }

func request(clientID string) punch.SubmitRequest {
	return punch.SubmitRequest{
		ClientID:           clientID,
		EmployeeID:         "emp-1",
		Type:               "clock_in",
		Timestamp:          time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
		GeofenceResult:     "inside",
		BiometricResult:    "verified",
		VerificationMethod: "geo_face",
		DeviceID:           "dev-1",
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.True(t, errors.As(err, &se), "ожидалась huma.StatusError, получено %v", err)
	return se.GetStatus()
}

func TestHandler_Submit(t *testing.T) {
	ctx := auth.WithDeviceID(context.Background(), "dev-1")

	t.Run("Accepted", func(t *testing.T) {
		svc := new(MockService)
		m := countingMetrics{}
		h := NewHandler(svc, m, slog.Default(), nil)

		svc.On("Submit", mock.Anything, request("c1")).
			Return(&punch.SubmitResponse{Status: punch.StatusAccepted, ServerID: "srv-1"}, nil)

		out, err := h.submit(ctx, &submitInput{IdempotencyKey: "c1", Body: request("c1")})

		require.NoError(t, err)
		assert.Equal(t, "srv-1", out.Body.ServerID)
		assert.Equal(t, 1, m["accepted"])
		svc.AssertExpectations(t)
	})

	t.Run("Deduplicated", func(t *testing.T) {
		svc := new(MockService)
		m := countingMetrics{}
		h := NewHandler(svc, m, slog.Default(), nil)

		svc.On("Submit", mock.Anything, request("c2")).
			Return(&punch.SubmitResponse{Status: punch.StatusAccepted, ServerID: "srv-1", Deduplicated: true}, nil)

		out, err := h.submit(ctx, &submitInput{Body: request("c2")})

		require.NoError(t, err)
		assert.True(t, out.Body.Deduplicated)
		assert.Equal(t, 1, m["deduplicated"])
	})

	t.Run("ServiceErrors", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
		}{
			{err: punch.ErrPolicyViolation, status: http.StatusUnprocessableEntity},
			{err: fmt.Errorf("%w: unknown type", punch.ErrInvalidPunch), status: http.StatusUnprocessableEntity},
			{err: errors.New("connection reset"), status: http.StatusInternalServerError},
		}

		for _, tt := range tests {
			svc := new(MockService)
			m := countingMetrics{}
			h := NewHandler(svc, m, slog.Default(), nil)
			svc.On("Submit", mock.Anything, mock.Anything).Return(nil, tt.err)

			out, err := h.submit(ctx, &submitInput{Body: request("c3")})

			assert.Nil(t, out)
			assert.Equal(t, tt.status, statusOf(t, err))
			assert.Equal(t, 1, m["rejected"])
		}
	})

	t.Run("NoDevice", func(t *testing.T) {
		h := NewHandler(nil, nil, slog.Default(), nil)

		_, err := h.submit(context.Background(), &submitInput{Body: request("c4")})
		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	})

	t.Run("ForeignDevice", func(t *testing.T) {
		h := NewHandler(nil, nil, slog.Default(), nil)
		req := request("c5")
		req.DeviceID = "dev-2"

		_, err := h.submit(ctx, &submitInput{Body: req})
		assert.Equal(t, http.StatusForbidden, statusOf(t, err))
	})

	t.Run("IdempotencyKeyMismatch", func(t *testing.T) {
		h := NewHandler(nil, nil, slog.Default(), nil)

		_, err := h.submit(ctx, &submitInput{IdempotencyKey: "other", Body: request("c6")})
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})
}

func TestHandler_List(t *testing.T) {
	ctx := auth.WithDeviceID(context.Background(), "dev-1")
	svc := new(MockService)
	h := NewHandler(svc, nil, slog.Default(), nil)

	svc.On("List", mock.Anything, "emp-1", 100).Return(nil, nil)
	svc.On("List", mock.Anything, "emp-2", 10).Return([]punch.Punch{{ServerID: "srv-1"}}, nil)

	out, err := h.list(ctx, &listInput{EmployeeID: "emp-1", Limit: 100})
	require.NoError(t, err)
	assert.NotNil(t, out.Body.Punches)
	assert.Empty(t, out.Body.Punches)

	out, err = h.list(ctx, &listInput{EmployeeID: "emp-2", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, out.Body.Punches, 1)

	svc.AssertExpectations(t)
}
