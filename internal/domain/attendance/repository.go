package attendance

import "context"

// EventRepository - журнал событий, только добавление.
type EventRepository interface {
	Append(ctx context.Context, ev *Event) error
	Get(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, filter EventFilter) ([]*Event, error)
	// UpdateSync меняет состояние синхронизации. Перевод в SyncSynced
	// неавторитетного события возвращает ErrNonAuthoritative.
	UpdateSync(ctx context.Context, id string, state SyncState, serverID string) error
}

type EmployeeRepository interface {
	SaveEmployee(ctx context.Context, e *Employee) error
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]*Employee, error)
}
