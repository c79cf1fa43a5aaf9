package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/plantflow/plantflow/internal/model"
)

// CachedStore decorates a ReadingStore with a Redis hot cache of the most
// recent reading per device: write-through on append, cache-first on Latest.
// Cache failures are logged and ignored; the inner store stays the source of
// truth.
type CachedStore struct {
	ReadingStore
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

func NewCachedStore(inner ReadingStore, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedStore{ReadingStore: inner, rdb: rdb, ttl: ttl, log: log}
}

func latestKey(deviceID string) string {
	return "reading:latest:" + deviceID
}

// Append writes through to the cache, but only when the stored reading is at
// least as recent as the cached one. A backfilled reading carrying an older
// timestamp must not displace the latest answer.
func (c *CachedStore) Append(ctx context.Context, r model.Reading) (model.Reading, error) {
	stored, err := c.ReadingStore.Append(ctx, r)
	if err != nil {
		return model.Reading{}, err
	}
	if cur, ok := c.cached(ctx, stored.DeviceID); !ok || !newerThan(cur, stored) {
		c.set(ctx, stored)
	}
	return stored, nil
}

func (c *CachedStore) Latest(ctx context.Context, deviceID string) (model.Reading, error) {
	if r, ok := c.cached(ctx, deviceID); ok {
		return r, nil
	}

	r, err := c.ReadingStore.Latest(ctx, deviceID)
	if err != nil {
		return model.Reading{}, err
	}
	c.set(ctx, r)
	return r, nil
}

// cached reads the hot entry; misses, read failures and corrupt entries all
// report false so the caller falls through to the inner store.
func (c *CachedStore) cached(ctx context.Context, deviceID string) (model.Reading, bool) {
	b, err := c.rdb.Get(ctx, latestKey(deviceID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("device_id", deviceID).Msg("latest cache read failed")
		}
		return model.Reading{}, false
	}
	var r model.Reading
	if err := json.Unmarshal(b, &r); err != nil {
		return model.Reading{}, false
	}
	return r, true
}

func (c *CachedStore) set(ctx context.Context, r model.Reading) {
	b, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, latestKey(r.DeviceID), b, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("device_id", r.DeviceID).Msg("latest cache write failed")
	}
}
