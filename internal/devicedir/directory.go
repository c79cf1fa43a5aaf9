// Package devicedir is the device registry collaborator consumed by the
// ingestion pipeline. The ingestion dispatcher is a secondary writer: it may
// create devices (auto-registration) but never updates or deletes them.
package devicedir

import (
	"context"
	"errors"

	"github.com/plantflow/plantflow/internal/model"
)

var (
	// ErrAlreadyExists is the insert-if-absent conflict outcome. Callers on
	// the ingestion path treat it as success, not failure.
	ErrAlreadyExists = errors.New("devicedir: device already exists")
	ErrNotFound      = errors.New("devicedir: device not found")
)

// Metadata carries the optional display fields supplied at creation.
type Metadata struct {
	Name     string
	Species  string
	Location string
	ImageURL string
}

type Directory interface {
	Exists(ctx context.Context, id string) (bool, error)
	// Create inserts the device, failing with ErrAlreadyExists when the id
	// is taken. The create must be atomic: two concurrent creates for the
	// same id yield exactly one device and one ErrAlreadyExists.
	Create(ctx context.Context, id string, meta Metadata) (model.Device, error)
	Get(ctx context.Context, id string) (model.Device, error)
}
