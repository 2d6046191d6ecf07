package queue

import (
	"context"

	"punchclock/internal/platform/tx"
)

// Repository - постоянное хранилище очереди.
//
// Insert должен быть надежно записан до возврата. CompareAndSwap
// записывает изменяемые поля a, только если текущее состояние равно from,
// иначе возвращает ErrStateConflict.
type Repository interface {
	tx.Runner

	Insert(ctx context.Context, a *Action) error
	Get(ctx context.Context, id string) (*Action, error)
	CompareAndSwap(ctx context.Context, a *Action, from State) error
	// ListByState возвращает действия, упорядоченные по (created_at, seq).
	ListByState(ctx context.Context, states ...State) ([]*Action, error)
	Delete(ctx context.Context, id string) error
	CountByState(ctx context.Context) (map[State]int, error)

	SaveCursor(ctx context.Context, c *Cursor) error
	GetCursor(ctx context.Context, kind Kind) (*Cursor, error)
}
