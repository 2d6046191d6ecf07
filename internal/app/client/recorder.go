package client

import (
	"context"
	"fmt"

	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/queue"
)

type enqueuer interface {
	Enqueue(ctx context.Context, a *queue.Action) error
}

type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// eventRecorder пишет событие в журнал и ставит его в очередь в одной транзакции.
// После возврата без ошибки отметка переживет перезапуск процесса.
type eventRecorder struct {
	tx     txRunner
	events attendance.EventRepository
	queue  enqueuer
	kick   func()
}

func newEventRecorder(tx txRunner, events attendance.EventRepository, q enqueuer, kick func()) *eventRecorder {
	return &eventRecorder{tx: tx, events: events, queue: q, kick: kick}
}

func (r *eventRecorder) Record(ctx context.Context, ev *attendance.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	ev.SyncState = attendance.SyncPending

	action, err := queue.NewEventAction(ev)
	if err != nil {
		return err
	}

	err = r.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.events.Append(ctx, ev); err != nil {
			return fmt.Errorf("ошибка сохранения события: %w", err)
		}
		if err := r.queue.Enqueue(ctx, action); err != nil {
			return fmt.Errorf("ошибка постановки в очередь: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if r.kick != nil {
		r.kick()
	}
	return nil
}
