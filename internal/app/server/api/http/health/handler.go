package health

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Info - неизменяемые сведения о сервере для ответа пробнику.
type Info struct {
	Storage     string
	DedupWindow time.Duration
}

type Handler struct {
	info       Info
	log        *slog.Logger
	middleware huma.Middlewares
	now        func() time.Time
}

func NewHandler(info Info, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		info:       info,
		log:        log,
		middleware: mws,
		now:        time.Now,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthOp(), h.health)
}

func (h *Handler) health(_ context.Context, _ *healthInput) (*healthOutput, error) {
	return &healthOutput{
		Body: Status{
			Status:             "OK",
			Storage:            h.info.Storage,
			DedupWindowSeconds: int(h.info.DedupWindow / time.Second),
			Time:               h.now().UTC(),
		},
	}, nil
}
