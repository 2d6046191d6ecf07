package device

import (
	"context"
	"crypto/subtle"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"punchclock/internal/domain/session"
)

type Handler struct {
	sessions      session.Servicer
	enrollmentKey string
	log           *slog.Logger
	middleware    huma.Middlewares
}

func NewHandler(sessions session.Servicer, enrollmentKey string, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		sessions:      sessions,
		enrollmentKey: enrollmentKey,
		log:           log,
		middleware:    mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.registerOp(), h.register)
}

func (h *Handler) register(ctx context.Context, input *registerInput) (*registerOutput, error) {
	if subtle.ConstantTimeCompare([]byte(input.Body.EnrollmentKey), []byte(h.enrollmentKey)) != 1 {
		h.log.Warn("device registration with invalid enrollment key", "device_id", input.Body.DeviceID)
		return nil, huma.Error401Unauthorized("invalid enrollment key")
	}

	token, err := h.sessions.Create(ctx, input.Body.DeviceID)
	if err != nil {
		h.log.Error("failed to create device session", "device_id", input.Body.DeviceID, "error", err)
		return nil, huma.Error500InternalServerError("failed to register device")
	}

	return &registerOutput{
		Body: registerResponse{
			DeviceID: input.Body.DeviceID,
			Token:    token,
		},
	}, nil
}
