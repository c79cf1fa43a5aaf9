package devicedir

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plantflow/plantflow/internal/model"
)

// Postgres backs the directory with the devices table; it shares the pool
// with the reading store.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM devices WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("devicedir: exists: %w", err)
	}
	return exists, nil
}

func (p *Postgres) Create(ctx context.Context, id string, meta Metadata) (model.Device, error) {
	dev := model.Device{
		ID:       id,
		Name:     meta.Name,
		Species:  meta.Species,
		Location: meta.Location,
		ImageURL: meta.ImageURL,
	}
	// ON CONFLICT DO NOTHING + RETURNING: zero rows back means another
	// writer holds the id, which is exactly the race auto-registration
	// needs to detect atomically.
	row := p.pool.QueryRow(ctx, `
INSERT INTO devices (id, name, species, location, image_url)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING
RETURNING created_at, updated_at`,
		id, meta.Name, meta.Species, meta.Location, meta.ImageURL)

	err := row.Scan(&dev.CreatedAt, &dev.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Device{}, ErrAlreadyExists
	}
	if err != nil {
		return model.Device{}, fmt.Errorf("devicedir: create: %w", err)
	}
	return dev, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (model.Device, error) {
	var dev model.Device
	err := p.pool.QueryRow(ctx, `
SELECT id, name, species, location, image_url, created_at, updated_at
FROM devices
WHERE id = $1`, id).
		Scan(&dev.ID, &dev.Name, &dev.Species, &dev.Location, &dev.ImageURL, &dev.CreatedAt, &dev.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Device{}, ErrNotFound
	}
	if err != nil {
		return model.Device{}, fmt.Errorf("devicedir: get: %w", err)
	}
	return dev, nil
}
