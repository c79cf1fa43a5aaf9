package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantflow/plantflow/internal/storage"
)

func TestServiceHistoryPagination(t *testing.T) {
	store := storage.NewMemory()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedReading(t, store, "plant-001", base.Add(time.Duration(i)*time.Minute), f(float64(i)), nil)
	}

	svc := NewService(store, NewEngine(store))
	ctx := context.Background()

	page1, err := svc.History(ctx, "plant-001", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page1.Total)
	assert.True(t, page1.HasMore)
	require.Len(t, page1.Readings, 2)
	assert.Equal(t, 4.0, *page1.Readings[0].Temperature, "newest first")
	assert.Equal(t, 3.0, *page1.Readings[1].Temperature)

	page2, err := svc.History(ctx, "plant-001", 2, 2)
	require.NoError(t, err)
	assert.True(t, page2.HasMore)
	require.Len(t, page2.Readings, 2)
	assert.Equal(t, 2.0, *page2.Readings[0].Temperature)

	page3, err := svc.History(ctx, "plant-001", 2, 4)
	require.NoError(t, err)
	assert.False(t, page3.HasMore)
	require.Len(t, page3.Readings, 1)
	assert.Equal(t, 0.0, *page3.Readings[0].Temperature)
}

func TestServiceHistoryLimitClamped(t *testing.T) {
	store := storage.NewMemory()
	seedReading(t, store, "plant-001", time.Now().UTC(), f(1), nil)

	svc := NewService(store, NewEngine(store))

	page, err := svc.History(context.Background(), "plant-001", -3, -10)
	require.NoError(t, err)
	assert.Len(t, page.Readings, 1)
	assert.False(t, page.HasMore)
}

func TestServiceLatestNone(t *testing.T) {
	store := storage.NewMemory()
	svc := NewService(store, NewEngine(store))

	_, err := svc.Latest(context.Background(), "ghost")
	require.ErrorIs(t, err, storage.ErrNoReadings)
}
