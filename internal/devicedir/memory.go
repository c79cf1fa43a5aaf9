package devicedir

import (
	"context"
	"sync"
	"time"

	"github.com/plantflow/plantflow/internal/model"
)

// Memory is the in-process Directory for tests and broker-less local runs.
type Memory struct {
	mu      sync.Mutex
	devices map[string]model.Device
}

func NewMemory() *Memory {
	return &Memory{devices: make(map[string]model.Device)}
}

func (m *Memory) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.devices[id]
	return ok, nil
}

func (m *Memory) Create(_ context.Context, id string, meta Metadata) (model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[id]; ok {
		return model.Device{}, ErrAlreadyExists
	}
	now := time.Now().UTC()
	dev := model.Device{
		ID:        id,
		Name:      meta.Name,
		Species:   meta.Species,
		Location:  meta.Location,
		ImageURL:  meta.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.devices[id] = dev
	return dev, nil
}

func (m *Memory) Get(_ context.Context, id string) (model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dev, ok := m.devices[id]
	if !ok {
		return model.Device{}, ErrNotFound
	}
	return dev, nil
}
