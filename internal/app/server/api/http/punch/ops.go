package punch

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) submitOp() huma.Operation {
	return huma.Operation{
		OperationID: "punches-submit",
		Method:      http.MethodPost,
		Path:        "/api/v1/punches",
		Summary:     "Принять отметку",
		Description: "Идемпотентный прием отметки. Повтор той же отметки или отметка того же типа в окне дедупликации возвращает существующий server_id.",
		Tags:        []string{"punches"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "punches-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/punches",
		Summary:     "Отметки сотрудника",
		Tags:        []string{"punches"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
