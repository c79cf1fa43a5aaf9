package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/plantflow/plantflow/internal/model"
)

// Memory is an in-process ReadingStore used by tests and broker-less local
// runs. One mutex serializes appends, which also makes id order match
// insertion order.
type Memory struct {
	mu       sync.RWMutex
	nextID   int64
	readings map[string][]model.Reading
}

func NewMemory() *Memory {
	return &Memory{
		nextID:   1,
		readings: make(map[string][]model.Reading),
	}
}

func (m *Memory) Append(_ context.Context, r model.Reading) (model.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = m.nextID
	m.nextID++
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	m.readings[r.DeviceID] = append(m.readings[r.DeviceID], r)
	return r, nil
}

func (m *Memory) Latest(_ context.Context, deviceID string) (model.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rs := m.readings[deviceID]
	if len(rs) == 0 {
		return model.Reading{}, ErrNoReadings
	}
	best := rs[0]
	for _, r := range rs[1:] {
		if newerThan(r, best) {
			best = r
		}
	}
	return best, nil
}

func (m *Memory) Range(_ context.Context, deviceID string, limit, offset int) ([]model.Reading, error) {
	m.mu.RLock()
	sorted := sortedDesc(m.readings[deviceID])
	m.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(sorted) {
		return []model.Reading{}, nil
	}
	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return sorted[offset:end], nil
}

func (m *Memory) Between(_ context.Context, deviceID string, start, end time.Time) ([]model.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Reading, 0)
	for _, r := range m.readings[deviceID] {
		if !r.Timestamp.Before(start) && !r.Timestamp.After(end) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerThan(out[i], out[j]) })
	return out, nil
}

func (m *Memory) Count(_ context.Context, deviceID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.readings[deviceID])), nil
}

func (m *Memory) Purge(_ context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for dev, rs := range m.readings {
		kept := rs[:0]
		for _, r := range rs {
			if r.Timestamp.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, r)
		}
		m.readings[dev] = kept
	}
	return deleted, nil
}

// newerThan orders by timestamp, ties broken by highest id.
func newerThan(a, b model.Reading) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

func sortedDesc(rs []model.Reading) []model.Reading {
	out := make([]model.Reading, len(rs))
	copy(out, rs)
	sort.Slice(out, func(i, j int) bool { return newerThan(out[i], out[j]) })
	return out
}
