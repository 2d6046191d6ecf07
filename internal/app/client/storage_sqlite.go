package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/geofence"
	"punchclock/internal/platform/tx"
)

// Фиксированная ширина, чтобы строки сортировались как время.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

// SQLiteStorage - единственный файл базы на устройстве: журнал событий,
// очередь действий, курсоры и сотрудники.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	// один писатель: все CAS-переходы очереди сериализуются соединением
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}

	// Создаем таблицы
	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			type TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			lat REAL,
			lon REAL,
			accuracy_meters REAL,
			geofence_result TEXT NOT NULL,
			biometric_result TEXT NOT NULL,
			verification_method TEXT NOT NULL,
			fallback_credential BOOLEAN NOT NULL DEFAULT 0,
			override_applied BOOLEAN NOT NULL DEFAULT 0,
			review_required BOOLEAN NOT NULL DEFAULT 0,
			site_id TEXT NOT NULL DEFAULT '',
			device_id TEXT NOT NULL,
			corrects_id TEXT NOT NULL DEFAULT '',
			sync_state TEXT NOT NULL,
			server_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_employee ON events(employee_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_events_sync_state ON events(sync_state);

		CREATE TABLE IF NOT EXISTS actions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			next_attempt_at TEXT NOT NULL,
			submitting_since TEXT NOT NULL DEFAULT '',
			server_id TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_actions_state ON actions(state, created_at, seq);

		CREATE TABLE IF NOT EXISTS sync_cursors (
			kind TEXT PRIMARY KEY,
			last_action_id TEXT NOT NULL,
			last_server_id TEXT NOT NULL,
			last_created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS employees (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			override_geofence BOOLEAN NOT NULL DEFAULT 0,
			pin_hash TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)

	return err
}

// RunInTx выполняет fn в одной транзакции. Вложенные вызовы используют внешнюю.
func (s *SQLiteStorage) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

func (s *SQLiteStorage) exec(ctx context.Context) tx.Executor {
	return tx.Exec(ctx, s.db)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (s *SQLiteStorage) Append(ctx context.Context, ev *attendance.Event) error {
	var lat, lon, acc sql.NullFloat64
	if ev.Location != nil {
		lat = sql.NullFloat64{Float64: ev.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: ev.Location.Lon, Valid: true}
		acc = sql.NullFloat64{Float64: ev.Location.AccuracyMeters, Valid: true}
	}

	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO events (id, employee_id, type, timestamp, lat, lon, accuracy_meters,
		                    geofence_result, biometric_result, verification_method,
		                    fallback_credential, override_applied, review_required,
		                    site_id, device_id, corrects_id, sync_state, server_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.EmployeeID, ev.Type, formatTime(ev.Timestamp), lat, lon, acc,
		ev.GeofenceResult, ev.BiometricResult, ev.VerificationMethod,
		ev.FallbackCredential, ev.OverrideApplied, ev.ReviewRequired,
		ev.SiteID, ev.DeviceID, ev.CorrectsID, ev.SyncState, ev.ServerID, formatTime(ev.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", attendance.ErrDuplicateEvent, ev.ID)
		}
		return fmt.Errorf("ошибка сохранения события: %w", err)
	}

	return nil
}

const eventColumns = `id, employee_id, type, timestamp, lat, lon, accuracy_meters,
	geofence_result, biometric_result, verification_method,
	fallback_credential, override_applied, review_required,
	site_id, device_id, corrects_id, sync_state, server_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*attendance.Event, error) {
	var ev attendance.Event
	var lat, lon, acc sql.NullFloat64
	var ts, createdAt string

	if err := row.Scan(&ev.ID, &ev.EmployeeID, &ev.Type, &ts, &lat, &lon, &acc,
		&ev.GeofenceResult, &ev.BiometricResult, &ev.VerificationMethod,
		&ev.FallbackCredential, &ev.OverrideApplied, &ev.ReviewRequired,
		&ev.SiteID, &ev.DeviceID, &ev.CorrectsID, &ev.SyncState, &ev.ServerID, &createdAt); err != nil {
		return nil, err
	}

	if lat.Valid && lon.Valid {
		ev.Location = &geofence.Location{Lat: lat.Float64, Lon: lon.Float64, AccuracyMeters: acc.Float64}
	}
	ev.Timestamp = parseTime(ts)
	ev.CreatedAt = parseTime(createdAt)

	return &ev, nil
}

func (s *SQLiteStorage) Get(ctx context.Context, id string) (*attendance.Event, error) {
	row := s.exec(ctx).QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", attendance.ErrEventNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения события: %w", err)
	}
	return ev, nil
}

func (s *SQLiteStorage) List(ctx context.Context, filter attendance.EventFilter) ([]*attendance.Event, error) {
	var where []string
	var args []any

	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.SyncState != "" {
		where = append(where, "sync_state = ?")
		args = append(args, filter.SyncState)
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var events []*attendance.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования события: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// UpdateSync не позволяет подтвердить событие вне зоны без разрешения.
func (s *SQLiteStorage) UpdateSync(ctx context.Context, id string, state attendance.SyncState, serverID string) error {
	query := `UPDATE events SET sync_state = ?, server_id = ? WHERE id = ?`
	if state == attendance.SyncSynced {
		query += ` AND NOT (geofence_result = 'outside' AND override_applied = 0)`
	}

	res, err := s.exec(ctx).ExecContext(ctx, query, state, serverID, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления события: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка обновления события: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", attendance.ErrNonAuthoritative, id)
}

func (s *SQLiteStorage) SaveEmployee(ctx context.Context, e *attendance.Employee) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO employees (id, name, override_geofence, pin_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			override_geofence = excluded.override_geofence,
			pin_hash = excluded.pin_hash,
			updated_at = excluded.updated_at
	`, e.ID, e.Name, e.OverrideGeofence, e.PINHash, formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("ошибка сохранения сотрудника: %w", err)
	}

	return nil
}

func scanEmployee(row rowScanner) (*attendance.Employee, error) {
	var e attendance.Employee
	var createdAt, updatedAt string
	if err := row.Scan(&e.ID, &e.Name, &e.OverrideGeofence, &e.PINHash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func (s *SQLiteStorage) GetEmployee(ctx context.Context, id string) (*attendance.Employee, error) {
	row := s.exec(ctx).QueryRowContext(ctx, `
		SELECT id, name, override_geofence, pin_hash, created_at, updated_at
		FROM employees WHERE id = ?
	`, id)

	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", attendance.ErrEmployeeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сотрудника: %w", err)
	}
	return e, nil
}

func (s *SQLiteStorage) ListEmployees(ctx context.Context) ([]*attendance.Employee, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT id, name, override_geofence, pin_hash, created_at, updated_at
		FROM employees ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var list []*attendance.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования сотрудника: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
