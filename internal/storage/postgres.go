package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plantflow/plantflow/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	species    TEXT NOT NULL DEFAULT '',
	location   TEXT NOT NULL DEFAULT '',
	image_url  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sensor_readings (
	id            BIGSERIAL PRIMARY KEY,
	device_id     TEXT NOT NULL,
	temperature   DOUBLE PRECISION,
	air_humidity  DOUBLE PRECISION,
	soil_moisture DOUBLE PRECISION,
	light         DOUBLE PRECISION,
	timestamp     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_readings_device_ts
	ON sensor_readings (device_id, timestamp DESC, id DESC);
`

const readingSelect = `
SELECT id, device_id, temperature, air_humidity, soil_moisture, light, timestamp
FROM sensor_readings`

// Postgres is the production ReadingStore. Ids come from a single sequence,
// so stored order is id order regardless of which pool connection appended.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("storage: pool config: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: database unreachable: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// EnsureSchema creates the tables and indexes if they are missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("storage: ensure schema: %w", err)
	}
	return nil
}

// Pool exposes the underlying pool so the device directory can share it.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Append(ctx context.Context, r model.Reading) (model.Reading, error) {
	var ts *time.Time
	if !r.Timestamp.IsZero() {
		t := r.Timestamp.UTC()
		ts = &t
	}
	row := p.pool.QueryRow(ctx, `
INSERT INTO sensor_readings (device_id, temperature, air_humidity, soil_moisture, light, timestamp)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
RETURNING id, timestamp`,
		r.DeviceID, r.Temperature, r.AirHumidity, r.SoilMoisture, r.Light, ts)
	if err := row.Scan(&r.ID, &r.Timestamp); err != nil {
		return model.Reading{}, fmt.Errorf("storage: append: %w", err)
	}
	return r, nil
}

func (p *Postgres) Latest(ctx context.Context, deviceID string) (model.Reading, error) {
	row := p.pool.QueryRow(ctx, readingSelect+`
WHERE device_id = $1
ORDER BY timestamp DESC, id DESC
LIMIT 1`, deviceID)

	r, err := scanReading(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reading{}, ErrNoReadings
	}
	if err != nil {
		return model.Reading{}, fmt.Errorf("storage: latest: %w", err)
	}
	return r, nil
}

func (p *Postgres) Range(ctx context.Context, deviceID string, limit, offset int) ([]model.Reading, error) {
	rows, err := p.pool.Query(ctx, readingSelect+`
WHERE device_id = $1
ORDER BY timestamp DESC, id DESC
LIMIT $2 OFFSET $3`, deviceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("storage: range: %w", err)
	}
	defer rows.Close()
	return gatherReadings(rows)
}

func (p *Postgres) Between(ctx context.Context, deviceID string, start, end time.Time) ([]model.Reading, error) {
	rows, err := p.pool.Query(ctx, readingSelect+`
WHERE device_id = $1
  AND timestamp BETWEEN $2 AND $3
ORDER BY timestamp DESC, id DESC`, deviceID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("storage: between: %w", err)
	}
	defer rows.Close()
	return gatherReadings(rows)
}

func (p *Postgres) Count(ctx context.Context, deviceID string) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sensor_readings WHERE device_id = $1`, deviceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count: %w", err)
	}
	return n, nil
}

func (p *Postgres) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM sensor_readings WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("storage: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (model.Reading, error) {
	var r model.Reading
	err := row.Scan(&r.ID, &r.DeviceID, &r.Temperature, &r.AirHumidity, &r.SoilMoisture, &r.Light, &r.Timestamp)
	return r, err
}

func gatherReadings(rows pgx.Rows) ([]model.Reading, error) {
	out := make([]model.Reading, 0, 64)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan reading: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate readings: %w", err)
	}
	return out, nil
}
