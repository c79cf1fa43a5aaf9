package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantflow/plantflow/internal/storage"
)

// Pruner periodically deletes readings older than the retention horizon,
// across all devices.
type Pruner struct {
	store    storage.ReadingStore
	horizon  time.Duration
	interval time.Duration
	log      zerolog.Logger
}

func NewPruner(store storage.ReadingStore, horizon, interval time.Duration, log zerolog.Logger) *Pruner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Pruner{store: store, horizon: horizon, interval: interval, log: log}
}

// Run blocks until ctx is cancelled. Purge failures are logged and retried
// on the next tick; retention is not worth crashing ingestion over.
func (p *Pruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := p.store.Purge(ctx, p.horizon)
			if err != nil {
				p.log.Error().Err(err).Msg("retention purge failed")
				continue
			}
			if deleted > 0 {
				p.log.Info().Int64("deleted", deleted).Dur("horizon", p.horizon).Msg("retention purge")
			}
		}
	}
}
