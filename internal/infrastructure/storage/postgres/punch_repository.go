package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/geofence"
	"punchclock/internal/domain/punch"
)

const punchColumns = `
	server_id, client_id, employee_id, type, ts, bucket, lat, lon, accuracy_meters,
	geofence_result, biometric_result, verification_method, fallback_credential,
	override_applied, review_required, site_id, device_id, corrects_id, received_at`

type PunchRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewPunchRepository(db *Storage, log *slog.Logger) *PunchRepository {
	return &PunchRepository{
		db:  db,
		log: log.With("component", "punch_repository"),
	}
}

func (r *PunchRepository) FindNear(ctx context.Context, employeeID string, t attendance.PunchType, from, to time.Time) (*punch.Punch, error) {
	query := `SELECT ` + punchColumns + `
		FROM punches
		WHERE employee_id = $1 AND type = $2 AND corrects_id IS NULL
		  AND ts > $3 AND ts < $4
		ORDER BY ts
		LIMIT 1`

	p, err := scanPunch(r.db.Pool().QueryRow(ctx, query, employeeID, string(t), from, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find near: %w", err)
	}
	return p, nil
}

func (r *PunchRepository) FindCorrection(ctx context.Context, correctsID string, t attendance.PunchType) (*punch.Punch, error) {
	query := `SELECT ` + punchColumns + `
		FROM punches
		WHERE corrects_id = $1 AND type = $2`

	p, err := scanPunch(r.db.Pool().QueryRow(ctx, query, correctsID, string(t)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find correction: %w", err)
	}
	return p, nil
}

// Insert полагается на уникальные индексы (employee_id, type, bucket) и
// (corrects_id, type): при гонке двух повторов одной отметки вставляется одна
// строка, вторая транзакция перечитывает победителя. client_id не уникален:
// переустановленные устройства могут повторить его для другой отметки.
func (r *PunchRepository) Insert(ctx context.Context, p *punch.Punch) (*punch.Punch, bool, error) {
	const query = `
		INSERT INTO punches (
			server_id, client_id, employee_id, type, ts, bucket, lat, lon, accuracy_meters,
			geofence_result, biometric_result, verification_method, fallback_credential,
			override_applied, review_required, site_id, device_id, corrects_id, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT DO NOTHING
		RETURNING server_id`

	var lat, lon, acc sql.NullFloat64
	if p.Location != nil {
		lat = sql.NullFloat64{Float64: p.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: p.Location.Lon, Valid: true}
		acc = sql.NullFloat64{Float64: p.Location.AccuracyMeters, Valid: true}
	}

	var bucket sql.NullInt64
	var correctsID sql.NullString
	if p.CorrectsID != "" {
		correctsID = sql.NullString{String: p.CorrectsID, Valid: true}
	} else {
		bucket = sql.NullInt64{Int64: p.Bucket, Valid: true}
	}

	var serverID string
	err := r.db.Pool().QueryRow(ctx, query,
		p.ServerID, p.ClientID, p.EmployeeID, string(p.Type), p.Timestamp, bucket, lat, lon, acc,
		string(p.GeofenceResult), string(p.BiometricResult), string(p.VerificationMethod), p.FallbackCredential,
		p.OverrideApplied, p.ReviewRequired, p.SiteID, p.DeviceID, correctsID, p.ReceivedAt,
	).Scan(&serverID)
	if err == nil {
		stored := *p
		return &stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.log.Error("failed to insert punch", "client_id", p.ClientID, "error", err)
		return nil, false, fmt.Errorf("insert punch: %w", err)
	}

	existing, err := r.findConflicting(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *PunchRepository) findConflicting(ctx context.Context, p *punch.Punch) (*punch.Punch, error) {
	var row pgx.Row
	if p.CorrectsID != "" {
		row = r.db.Pool().QueryRow(ctx, `SELECT `+punchColumns+`
			FROM punches
			WHERE corrects_id = $1 AND type = $2`, p.CorrectsID, string(p.Type))
	} else {
		row = r.db.Pool().QueryRow(ctx, `SELECT `+punchColumns+`
			FROM punches
			WHERE employee_id = $1 AND type = $2 AND bucket = $3 AND corrects_id IS NULL`,
			p.EmployeeID, string(p.Type), p.Bucket)
	}

	existing, err := scanPunch(row)
	if err != nil {
		return nil, fmt.Errorf("read conflicting punch: %w", err)
	}
	return existing, nil
}

func (r *PunchRepository) List(ctx context.Context, employeeID string, limit int) ([]punch.Punch, error) {
	query := `SELECT ` + punchColumns + `
		FROM punches
		WHERE employee_id = $1
		ORDER BY ts DESC
		LIMIT $2`

	rows, err := r.db.Pool().Query(ctx, query, employeeID, limit)
	if err != nil {
		r.log.Error("failed to list punches", "employee_id", employeeID, "error", err)
		return nil, fmt.Errorf("list punches: %w", err)
	}
	defer rows.Close()

	var out []punch.Punch
	for rows.Next() {
		p, err := scanPunch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan punch: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPunch(row pgx.Row) (*punch.Punch, error) {
	var (
		p                     punch.Punch
		typ, geo, bio, method string
		bucket                sql.NullInt64
		lat, lon, acc         sql.NullFloat64
		correctsID            sql.NullString
	)

	err := row.Scan(
		&p.ServerID, &p.ClientID, &p.EmployeeID, &typ, &p.Timestamp, &bucket, &lat, &lon, &acc,
		&geo, &bio, &method, &p.FallbackCredential,
		&p.OverrideApplied, &p.ReviewRequired, &p.SiteID, &p.DeviceID, &correctsID, &p.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Type = attendance.PunchType(typ)
	p.GeofenceResult = geofence.Result(geo)
	p.BiometricResult = attendance.BiometricResult(bio)
	p.VerificationMethod = attendance.MethodKind(method)
	p.Bucket = bucket.Int64
	p.CorrectsID = correctsID.String
	if lat.Valid && lon.Valid {
		p.Location = &geofence.Location{Lat: lat.Float64, Lon: lon.Float64, AccuracyMeters: acc.Float64}
	}
	p.Timestamp = p.Timestamp.UTC()
	p.ReceivedAt = p.ReceivedAt.UTC()
	return &p, nil
}
