package punch

import (
	"context"
	"time"

	"punchclock/internal/domain/attendance"
)

type Repository interface {
	// FindNear ищет не-исправление того же сотрудника и типа с временем в (from, to).
	FindNear(ctx context.Context, employeeID string, t attendance.PunchType, from, to time.Time) (*Punch, error)
	// FindCorrection ищет исправление события correctsID того же типа.
	FindCorrection(ctx context.Context, correctsID string, t attendance.PunchType) (*Punch, error)
	// Insert сохраняет отметку. При конфликте ключа (employee, type, bucket)
	// возвращает уже существующую запись и inserted = false.
	Insert(ctx context.Context, p *Punch) (stored *Punch, inserted bool, err error)
	List(ctx context.Context, employeeID string, limit int) ([]Punch, error)
}
