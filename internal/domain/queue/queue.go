package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

const (
	DefaultMaxAttempts       = 10
	DefaultSubmissionTimeout = 2 * time.Minute
)

type Config struct {
	MaxAttempts       int
	SubmissionTimeout time.Duration
	Backoff           Backoff
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.SubmissionTimeout <= 0 {
		c.SubmissionTimeout = DefaultSubmissionTimeout
	}
	if c.Backoff.Base <= 0 {
		c.Backoff = DefaultBackoff()
	}
	return c
}

type Servicer interface {
	Enqueue(ctx context.Context, a *Action) error
	PeekBatch(ctx context.Context, n int) ([]*Action, error)
	MarkSubmitting(ctx context.Context, id string) (*Action, error)
	MarkSynced(ctx context.Context, id, serverID string) error
	MarkFailed(ctx context.Context, id, cause string) error
	Requeue(ctx context.Context, id, cause string) (*Action, error)
	Release(ctx context.Context, id, cause string) error
	RecoverStale(ctx context.Context) (int, error)
	Resolve(ctx context.Context, id string, r Resolution) error
	Purge(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Cursor(ctx context.Context, kind Kind) (*Cursor, error)
	DeadLetters(ctx context.Context) ([]*Action, error)
	Failed(ctx context.Context) ([]*Action, error)
}

// Queue - надежная локальная очередь действий. Все переходы состояний
// выполняются через CompareAndSwap хранилища.
type Queue struct {
	repo Repository
	cfg  Config
	log  *slog.Logger
	now  func() time.Time
}

type Option func(*Queue)

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func New(repo Repository, cfg Config, log *slog.Logger, opts ...Option) *Queue {
	q := &Queue{
		repo: repo,
		cfg:  cfg.withDefaults(),
		log:  log.With("component", "queue"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Config() Config {
	return q.cfg
}

func (q *Queue) Enqueue(ctx context.Context, a *Action) error {
	if err := a.Validate(); err != nil {
		return err
	}

	now := q.now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.State = StatePending
	a.Attempts = 0
	a.LastError = ""
	a.NextAttemptAt = now
	a.SubmittingSince = time.Time{}
	a.UpdatedAt = now

	if err := q.repo.Insert(ctx, a); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("%w: enqueue %s: %w", ErrPersistence, a.ID, err)
	}

	q.log.Debug("action enqueued", "id", a.ID, "kind", a.Kind)
	return nil
}

// PeekBatch возвращает до n действий, готовых к отправке. Для каждого вида
// берется непрерывный префикс готовых pending-действий от головы очереди.
// Вид, у которого есть действие в submitting, пропускается целиком.
// Dead letter останавливает свой вид до ручного разбора: более поздняя
// отметка не уходит на сервер раньше ранней.
func (q *Queue) PeekBatch(ctx context.Context, n int) ([]*Action, error) {
	if n <= 0 {
		return nil, nil
	}

	actions, err := q.repo.ListByState(ctx, StatePending, StateSubmitting, StateDeadLetter)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}

	blocked := make(map[Kind]bool)
	for _, a := range actions {
		if a.State == StateSubmitting {
			blocked[a.Kind] = true
		}
	}

	now := q.now()
	batch := make([]*Action, 0, n)
	for _, a := range actions {
		if len(batch) == n {
			break
		}
		if blocked[a.Kind] {
			continue
		}
		if a.State == StateDeadLetter {
			blocked[a.Kind] = true
			continue
		}
		if !a.Eligible(now) {
			// дальше по этому виду идти нельзя, иначе нарушится FIFO
			blocked[a.Kind] = true
			continue
		}
		batch = append(batch, a)
	}

	return batch, nil
}

// MarkSubmitting атомарно переводит pending -> submitting. Повторный вызов
// для того же id вернет ErrStateConflict.
func (q *Queue) MarkSubmitting(ctx context.Context, id string) (*Action, error) {
	a, err := q.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.State != StatePending {
		return nil, fmt.Errorf("%w: %s is %s", ErrStateConflict, id, a.State)
	}

	now := q.now().UTC()
	a.State = StateSubmitting
	a.Attempts++
	a.SubmittingSince = now
	a.UpdatedAt = now

	if err := q.repo.CompareAndSwap(ctx, a, StatePending); err != nil {
		return nil, err
	}
	return a, nil
}

// MarkSynced фиксирует подтверждение сервера и сдвигает курсор вида.
func (q *Queue) MarkSynced(ctx context.Context, id, serverID string) error {
	return q.repo.RunInTx(ctx, func(ctx context.Context) error {
		a, err := q.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if a.State != StateSubmitting {
			return fmt.Errorf("%w: %s is %s", ErrStateConflict, id, a.State)
		}

		now := q.now().UTC()
		a.State = StateSynced
		a.ServerID = serverID
		a.LastError = ""
		a.SubmittingSince = time.Time{}
		a.UpdatedAt = now
		if err := q.repo.CompareAndSwap(ctx, a, StateSubmitting); err != nil {
			return err
		}

		return q.repo.SaveCursor(ctx, &Cursor{
			Kind:          a.Kind,
			LastActionID:  a.ID,
			LastServerID:  serverID,
			LastCreatedAt: a.CreatedAt,
			UpdatedAt:     now,
		})
	})
}

// MarkFailed - терминальный отказ, повторов не будет.
func (q *Queue) MarkFailed(ctx context.Context, id, cause string) error {
	a, err := q.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.State != StateSubmitting {
		return fmt.Errorf("%w: %s is %s", ErrStateConflict, id, a.State)
	}

	a.State = StateFailed
	a.LastError = cause
	a.SubmittingSince = time.Time{}
	a.UpdatedAt = q.now().UTC()

	if err := q.repo.CompareAndSwap(ctx, a, StateSubmitting); err != nil {
		return err
	}

	q.log.Warn("action failed", "id", id, "kind", a.Kind, "error", cause)
	return nil
}

// Requeue возвращает действие в pending с задержкой. После MaxAttempts
// попыток действие уходит в dead_letter.
func (q *Queue) Requeue(ctx context.Context, id, cause string) (*Action, error) {
	a, err := q.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.State != StateSubmitting {
		return nil, fmt.Errorf("%w: %s is %s", ErrStateConflict, id, a.State)
	}

	now := q.now().UTC()
	a.LastError = cause
	a.SubmittingSince = time.Time{}
	a.UpdatedAt = now

	if a.Attempts >= q.cfg.MaxAttempts {
		a.State = StateDeadLetter
	} else {
		a.State = StatePending
		a.NextAttemptAt = now.Add(q.cfg.Backoff.Delay(a.Attempts - 1))
	}

	if err := q.repo.CompareAndSwap(ctx, a, StateSubmitting); err != nil {
		return nil, err
	}

	if a.State == StateDeadLetter {
		q.log.Error("action moved to dead letter", "id", id, "kind", a.Kind, "attempts", a.Attempts, "error", cause)
	} else {
		q.log.Debug("action requeued", "id", id, "attempts", a.Attempts, "next_attempt_at", a.NextAttemptAt)
	}
	return a, nil
}

// Release возвращает действие в pending без расхода попытки: отправка не
// состоялась по причине, не связанной с самой отметкой (нет токена устройства).
func (q *Queue) Release(ctx context.Context, id, cause string) error {
	a, err := q.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.State != StateSubmitting {
		return fmt.Errorf("%w: %s is %s", ErrStateConflict, id, a.State)
	}

	now := q.now().UTC()
	a.State = StatePending
	if a.Attempts > 0 {
		a.Attempts--
	}
	a.LastError = cause
	a.SubmittingSince = time.Time{}
	a.NextAttemptAt = now
	a.UpdatedAt = now

	return q.repo.CompareAndSwap(ctx, a, StateSubmitting)
}

// RecoverStale возвращает в pending действия, застрявшие в submitting
// дольше SubmissionTimeout (например, после падения процесса).
func (q *Queue) RecoverStale(ctx context.Context) (int, error) {
	actions, err := q.repo.ListByState(ctx, StateSubmitting)
	if err != nil {
		return 0, fmt.Errorf("list submitting: %w", err)
	}

	now := q.now().UTC()
	recovered := 0
	for _, a := range actions {
		if now.Sub(a.SubmittingSince) < q.cfg.SubmissionTimeout {
			continue
		}

		a.State = StatePending
		a.SubmittingSince = time.Time{}
		a.NextAttemptAt = now
		a.LastError = "submission timed out"
		a.UpdatedAt = now
		if err := q.repo.CompareAndSwap(ctx, a, StateSubmitting); err != nil {
			if errors.Is(err, ErrStateConflict) {
				continue
			}
			return recovered, err
		}
		recovered++
	}

	if recovered > 0 {
		q.log.Info("stale submissions recovered", "count", recovered)
	}
	return recovered, nil
}

// Resolve - ручное разрешение failed или dead_letter действия.
func (q *Queue) Resolve(ctx context.Context, id string, r Resolution) error {
	a, err := q.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.State != StateFailed && a.State != StateDeadLetter {
		return fmt.Errorf("%w: %s is %s", ErrNotResolvable, id, a.State)
	}

	switch r {
	case ResolveRetry:
		from := a.State
		now := q.now().UTC()
		a.State = StatePending
		a.Attempts = 0
		a.NextAttemptAt = now
		a.UpdatedAt = now
		return q.repo.CompareAndSwap(ctx, a, from)
	case ResolveDiscard:
		q.log.Warn("action discarded", "id", id, "kind", a.Kind, "last_error", a.LastError)
		return q.repo.Delete(ctx, id)
	default:
		return fmt.Errorf("unknown resolution %q", r)
	}
}

// Purge удаляет подтвержденные сервером действия.
func (q *Queue) Purge(ctx context.Context) (int, error) {
	synced, err := q.repo.ListByState(ctx, StateSynced)
	if err != nil {
		return 0, fmt.Errorf("list synced: %w", err)
	}

	for i, a := range synced {
		if err := q.repo.Delete(ctx, a.ID); err != nil {
			return i, fmt.Errorf("delete %s: %w", a.ID, err)
		}
	}
	return len(synced), nil
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	counts, err := q.repo.CountByState(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count actions: %w", err)
	}

	return Stats{
		Pending:    counts[StatePending],
		Submitting: counts[StateSubmitting],
		Synced:     counts[StateSynced],
		Failed:     counts[StateFailed],
		DeadLetter: counts[StateDeadLetter],
	}, nil
}

func (q *Queue) Cursor(ctx context.Context, kind Kind) (*Cursor, error) {
	c, err := q.repo.GetCursor(ctx, kind)
	if errors.Is(err, ErrNotFound) {
		return &Cursor{Kind: kind}, nil
	}
	return c, err
}

func (q *Queue) DeadLetters(ctx context.Context) ([]*Action, error) {
	return q.repo.ListByState(ctx, StateDeadLetter)
}

func (q *Queue) Failed(ctx context.Context) ([]*Action, error) {
	return q.repo.ListByState(ctx, StateFailed)
}
