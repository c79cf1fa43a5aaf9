package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantflow/plantflow/internal/model"
)

func newCachedStore(t *testing.T) (*CachedStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCachedStore(NewMemory(), rdb, time.Hour, zerolog.Nop()), mr
}

func TestCachedStoreBackfillDoesNotDisplaceLatest(t *testing.T) {
	cs, _ := newCachedStore(t)
	ctx := context.Background()
	noon := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	_, err := cs.Append(ctx, model.Reading{DeviceID: "d1", Temperature: f(25), Timestamp: noon})
	require.NoError(t, err)
	_, err = cs.Append(ctx, model.Reading{DeviceID: "d1", Temperature: f(10), Timestamp: noon.Add(-time.Hour)})
	require.NoError(t, err)

	got, err := cs.Latest(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 25.0, *got.Temperature)
	assert.True(t, got.Timestamp.Equal(noon))
}

func TestCachedStoreNewerAppendUpdatesCache(t *testing.T) {
	cs, _ := newCachedStore(t)
	ctx := context.Background()
	noon := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	_, err := cs.Append(ctx, model.Reading{DeviceID: "d1", Temperature: f(20), Timestamp: noon})
	require.NoError(t, err)
	_, err = cs.Append(ctx, model.Reading{DeviceID: "d1", Temperature: f(21), Timestamp: noon.Add(time.Minute)})
	require.NoError(t, err)
	// Same timestamp: the later append holds the higher id and wins the tie.
	_, err = cs.Append(ctx, model.Reading{DeviceID: "d1", Temperature: f(22), Timestamp: noon.Add(time.Minute)})
	require.NoError(t, err)

	got, err := cs.Latest(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 22.0, *got.Temperature)
}

func TestCachedStoreMissFallsThroughAndRepopulates(t *testing.T) {
	cs, mr := newCachedStore(t)
	ctx := context.Background()

	_, err := cs.Append(ctx, model.Reading{DeviceID: "d1", Temperature: f(19), Timestamp: time.Now().UTC()})
	require.NoError(t, err)
	mr.FlushAll()

	got, err := cs.Latest(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 19.0, *got.Temperature)
	assert.True(t, mr.Exists(latestKey("d1")), "fallthrough rewarms the cache")
}

func TestCachedStoreLatestNone(t *testing.T) {
	cs, _ := newCachedStore(t)
	_, err := cs.Latest(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNoReadings)
}
