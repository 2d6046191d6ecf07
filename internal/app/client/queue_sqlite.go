package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"punchclock/internal/domain/queue"
)

// QueueStore - queue.Repository поверх той же базы SQLite.
type QueueStore struct {
	s *SQLiteStorage
}

func (s *SQLiteStorage) Queue() *QueueStore {
	return &QueueStore{s: s}
}

func (q *QueueStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return q.s.RunInTx(ctx, fn)
}

func (q *QueueStore) Insert(ctx context.Context, a *queue.Action) error {
	res, err := q.s.exec(ctx).ExecContext(ctx, `
		INSERT INTO actions (id, kind, payload, created_at, attempts, last_error, state,
		                     next_attempt_at, submitting_since, server_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Kind, []byte(a.Payload), formatTime(a.CreatedAt), a.Attempts, a.LastError, a.State,
		formatTime(a.NextAttemptAt), formatTime(a.SubmittingSince), a.ServerID, formatTime(a.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", queue.ErrDuplicate, a.ID)
		}
		return fmt.Errorf("ошибка добавления действия: %w", err)
	}

	if seq, err := res.LastInsertId(); err == nil {
		a.Seq = seq
	}
	return nil
}

const actionColumns = `seq, id, kind, payload, created_at, attempts, last_error, state,
	next_attempt_at, submitting_since, server_id, updated_at`

func scanAction(row rowScanner) (*queue.Action, error) {
	var a queue.Action
	var payload []byte
	var createdAt, nextAttempt, submittingSince, updatedAt string

	if err := row.Scan(&a.Seq, &a.ID, &a.Kind, &payload, &createdAt, &a.Attempts, &a.LastError, &a.State,
		&nextAttempt, &submittingSince, &a.ServerID, &updatedAt); err != nil {
		return nil, err
	}

	a.Payload = payload
	a.CreatedAt = parseTime(createdAt)
	a.NextAttemptAt = parseTime(nextAttempt)
	a.SubmittingSince = parseTime(submittingSince)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func (q *QueueStore) Get(ctx context.Context, id string) (*queue.Action, error) {
	row := q.s.exec(ctx).QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = ?`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения действия: %w", err)
	}
	return a, nil
}

// CompareAndSwap применяет изменение, только если состояние в базе равно from.
func (q *QueueStore) CompareAndSwap(ctx context.Context, a *queue.Action, from queue.State) error {
	res, err := q.s.exec(ctx).ExecContext(ctx, `
		UPDATE actions
		SET state = ?, attempts = ?, last_error = ?, next_attempt_at = ?,
		    submitting_since = ?, server_id = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, a.State, a.Attempts, a.LastError, formatTime(a.NextAttemptAt),
		formatTime(a.SubmittingSince), a.ServerID, formatTime(a.UpdatedAt), a.ID, from)
	if err != nil {
		return fmt.Errorf("ошибка обновления действия: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка обновления действия: %w", err)
	}
	if n == 0 {
		if _, err := q.Get(ctx, a.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s is not %s", queue.ErrStateConflict, a.ID, from)
	}
	return nil
}

func (q *QueueStore) ListByState(ctx context.Context, states ...queue.State) ([]*queue.Action, error) {
	if len(states) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(states)), ",")
	args := make([]any, len(states))
	for i, st := range states {
		args[i] = st
	}

	rows, err := q.s.exec(ctx).QueryContext(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE state IN (`+placeholders+`) ORDER BY created_at, seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var actions []*queue.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования действия: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (q *QueueStore) Delete(ctx context.Context, id string) error {
	_, err := q.s.exec(ctx).ExecContext(ctx, "DELETE FROM actions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("ошибка удаления действия: %w", err)
	}
	return nil
}

func (q *QueueStore) CountByState(ctx context.Context) (map[queue.State]int, error) {
	rows, err := q.s.exec(ctx).QueryContext(ctx, `SELECT state, COUNT(*) FROM actions GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета действий: %w", err)
	}
	defer rows.Close()

	counts := make(map[queue.State]int)
	for rows.Next() {
		var st queue.State
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("ошибка подсчета действий: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

func (q *QueueStore) SaveCursor(ctx context.Context, c *queue.Cursor) error {
	_, err := q.s.exec(ctx).ExecContext(ctx, `
		INSERT INTO sync_cursors (kind, last_action_id, last_server_id, last_created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET
			last_action_id = excluded.last_action_id,
			last_server_id = excluded.last_server_id,
			last_created_at = excluded.last_created_at,
			updated_at = excluded.updated_at
		WHERE excluded.last_created_at >= sync_cursors.last_created_at
	`, c.Kind, c.LastActionID, c.LastServerID, formatTime(c.LastCreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("ошибка сохранения курсора: %w", err)
	}
	return nil
}

func (q *QueueStore) GetCursor(ctx context.Context, kind queue.Kind) (*queue.Cursor, error) {
	var c queue.Cursor
	var lastCreated, updated string
	err := q.s.exec(ctx).QueryRowContext(ctx, `
		SELECT kind, last_action_id, last_server_id, last_created_at, updated_at
		FROM sync_cursors WHERE kind = ?
	`, kind).Scan(&c.Kind, &c.LastActionID, &c.LastServerID, &lastCreated, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: cursor %s", queue.ErrNotFound, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения курсора: %w", err)
	}

	c.LastCreatedAt = parseTime(lastCreated)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}
