// Package storage owns Reading persistence: append-only writes, point
// lookups, range scans and retention deletion. It is the sole mutator of
// readings; device lifecycle lives in devicedir.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/plantflow/plantflow/internal/model"
)

// ErrNoReadings is returned by Latest when the device has no stored samples.
var ErrNoReadings = errors.New("storage: no readings for device")

// ReadingStore is the append-only time series of telemetry samples.
//
// Append assigns a fresh monotonic id and stamps ingestion time when the
// reading carries none. It deliberately does not check that the device id
// references a known device; referential integrity is the ingestion
// dispatcher's responsibility, so storage stays decoupled from device
// lifecycle.
//
// All scan results are ordered newest first, by timestamp then id.
type ReadingStore interface {
	Append(ctx context.Context, r model.Reading) (model.Reading, error)
	Latest(ctx context.Context, deviceID string) (model.Reading, error)
	Range(ctx context.Context, deviceID string, limit, offset int) ([]model.Reading, error)
	Between(ctx context.Context, deviceID string, start, end time.Time) ([]model.Reading, error)
	Count(ctx context.Context, deviceID string) (int64, error)
	// Purge deletes readings older than now-olderThan across all devices and
	// returns how many were removed.
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}
