package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) healthOp() huma.Operation {
	return huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Доступность сервера",
		Description: "Пробник связности для устройств. Время сервера позволяет оценить расхождение часов.",
		Tags:        []string{"health"},
		Middlewares: h.middleware,
	}
}
