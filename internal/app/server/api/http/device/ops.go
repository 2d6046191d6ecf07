package device

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) registerOp() huma.Operation {
	return huma.Operation{
		OperationID: "devices-register",
		Method:      http.MethodPost,
		Path:        "/api/v1/devices/register",
		Summary:     "Регистрация устройства",
		Description: "Обменивает ключ подключения на bearer-токен устройства.",
		Tags:        []string{"devices"},
		Middlewares: h.middleware,
	}
}
