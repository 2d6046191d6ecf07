package punch

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"punchclock/internal/app/server/api/http/middleware/auth"
	"punchclock/internal/domain/punch"
)

type outcomeCounter interface {
	IncrementPunch(outcome string)
}

type Handler struct {
	service    punch.Servicer
	metrics    outcomeCounter
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service punch.Servicer, metrics outcomeCounter, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		metrics:    metrics,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.submitOp(), h.submit)
	huma.Register(api, h.listOp(), h.list)
}

func (h *Handler) submit(ctx context.Context, input *submitInput) (*submitOutput, error) {
	deviceID, ok := auth.GetDeviceID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	req := input.Body
	if req.DeviceID != deviceID {
		h.log.Warn("punch from foreign device", "token_device", deviceID, "body_device", req.DeviceID)
		return nil, huma.Error403Forbidden("device_id does not match device token")
	}
	if input.IdempotencyKey != "" && input.IdempotencyKey != req.ClientID {
		return nil, huma.Error400BadRequest("Idempotency-Key must equal client_id")
	}

	resp, err := h.service.Submit(ctx, req)
	if err != nil {
		h.count("rejected")
		switch {
		case errors.Is(err, punch.ErrPolicyViolation):
			return nil, huma.Error422UnprocessableEntity("policy_violation: " + err.Error())
		case errors.Is(err, punch.ErrInvalidPunch):
			return nil, huma.Error422UnprocessableEntity(err.Error())
		default:
			h.log.Error("submit punch", "client_id", req.ClientID, "error", err)
			return nil, huma.Error500InternalServerError("failed to store punch")
		}
	}

	if resp.Deduplicated {
		h.count("deduplicated")
	} else {
		h.count("accepted")
	}
	return &submitOutput{Body: *resp}, nil
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	if _, ok := auth.GetDeviceID(ctx); !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	punches, err := h.service.List(ctx, input.EmployeeID, input.Limit)
	if err != nil {
		if errors.Is(err, punch.ErrInvalidPunch) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to list punches")
	}
	if punches == nil {
		punches = []punch.Punch{}
	}
	return &listOutput{Body: punch.ListResponse{Punches: punches}}, nil
}

func (h *Handler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.IncrementPunch(outcome)
	}
}
