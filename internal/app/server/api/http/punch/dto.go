package punch

import "punchclock/internal/domain/punch"

type submitInput struct {
	IdempotencyKey string `header:"Idempotency-Key" doc:"Клиентский id события, совпадает с client_id"`
	Body           punch.SubmitRequest
}

type submitOutput struct {
	Body punch.SubmitResponse
}

type listInput struct {
	EmployeeID string `query:"employee_id" required:"true" minLength:"1" doc:"Сотрудник"`
	Limit      int    `query:"limit" default:"100" minimum:"1" maximum:"500" doc:"Максимум записей"`
}

type listOutput struct {
	Body punch.ListResponse
}
