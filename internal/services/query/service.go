package query

import (
	"context"
	"fmt"
	"time"

	"github.com/plantflow/plantflow/internal/model"
	"github.com/plantflow/plantflow/internal/storage"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Page is one slice of history plus pagination metadata. Pages are not
// restartable cursors; callers re-issue with a new offset.
type Page struct {
	Readings []model.Reading `json:"readings"`
	Total    int64           `json:"total"`
	HasMore  bool            `json:"has_more"`
}

// Service is the query surface handed to the presentation layer. All
// operations are request-scoped and cancellable through ctx; storage
// failures surface as errors rather than fabricated empty data.
type Service struct {
	store  storage.ReadingStore
	engine *Engine
}

func NewService(store storage.ReadingStore, engine *Engine) *Service {
	return &Service{store: store, engine: engine}
}

// Latest returns the most recent reading; storage.ErrNoReadings when the
// device has none.
func (s *Service) Latest(ctx context.Context, deviceID string) (model.Reading, error) {
	return s.store.Latest(ctx, deviceID)
}

// History pages through readings newest first.
func (s *Service) History(ctx context.Context, deviceID string, limit, offset int) (Page, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	readings, err := s.store.Range(ctx, deviceID, limit, offset)
	if err != nil {
		return Page{}, fmt.Errorf("query: history: %w", err)
	}
	total, err := s.store.Count(ctx, deviceID)
	if err != nil {
		return Page{}, fmt.Errorf("query: history count: %w", err)
	}
	return Page{
		Readings: readings,
		Total:    total,
		HasMore:  int64(offset+len(readings)) < total,
	}, nil
}

// Between returns readings in [start, end], newest first.
func (s *Service) Between(ctx context.Context, deviceID string, start, end time.Time) ([]model.Reading, error) {
	return s.store.Between(ctx, deviceID, start, end)
}

// Stats delegates to the aggregation engine.
func (s *Service) Stats(ctx context.Context, deviceID string, windowHours int) (*model.StatsSummary, error) {
	return s.engine.Stats(ctx, deviceID, windowHours)
}

// Chart delegates to the aggregation engine.
func (s *Service) Chart(ctx context.Context, deviceID string, windowHours, intervalMinutes int) ([]model.ChartBucket, error) {
	return s.engine.Chart(ctx, deviceID, windowHours, intervalMinutes)
}
