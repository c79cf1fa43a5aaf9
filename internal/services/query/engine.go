// Package query is the read side: statistical summaries, chart bucketing and
// the paginated history API consumed by the presentation layer.
package query

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/plantflow/plantflow/internal/model"
	"github.com/plantflow/plantflow/internal/storage"
)

// Engine computes aggregations over readings scanned from the store.
type Engine struct {
	store storage.ReadingStore

	// BestEffortChart restores the legacy behavior of answering an empty
	// series when the underlying scan fails. Off by default: an outage
	// should look like a failure, not like a healthy device gone quiet.
	BestEffortChart bool

	now func() time.Time
}

func NewEngine(store storage.ReadingStore) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Stats summarizes the trailing window of windowHours. The lower bound is
// inclusive. Returns nil (no error) when the window holds no readings.
func (e *Engine) Stats(ctx context.Context, deviceID string, windowHours int) (*model.StatsSummary, error) {
	now := e.now().UTC()
	start := now.Add(-time.Duration(windowHours) * time.Hour)

	readings, err := e.store.Between(ctx, deviceID, start, now)
	if err != nil {
		return nil, fmt.Errorf("query: stats scan: %w", err)
	}
	if len(readings) == 0 {
		return nil, nil
	}

	var temp, hum, moist, light agg
	for _, r := range readings {
		temp.add(r.Temperature)
		hum.add(r.AirHumidity)
		moist.add(r.SoilMoisture)
		light.add(r.Light)
	}
	return &model.StatsSummary{
		Count:        int64(len(readings)),
		Temperature:  temp.stats(),
		AirHumidity:  hum.stats(),
		SoilMoisture: moist.stats(),
		Light:        light.stats(),
	}, nil
}

// Chart buckets the trailing window into fixed intervalMinutes-wide buckets
// aligned to absolute epoch time: bucket start = floor(unix / width) * width.
// Buckets with no readings are omitted, so the result is a sparse ascending
// series of scatter points.
func (e *Engine) Chart(ctx context.Context, deviceID string, windowHours, intervalMinutes int) ([]model.ChartBucket, error) {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	now := e.now().UTC()
	start := now.Add(-time.Duration(windowHours) * time.Hour)

	readings, err := e.store.Between(ctx, deviceID, start, now)
	if err != nil {
		if e.BestEffortChart {
			return []model.ChartBucket{}, nil
		}
		return nil, fmt.Errorf("query: chart scan: %w", err)
	}

	width := int64(intervalMinutes) * 60
	type bucketAgg struct {
		temp, hum, moist, light agg
		count                   int
	}
	buckets := make(map[int64]*bucketAgg)
	starts := make([]int64, 0)

	for _, r := range readings {
		u := r.Timestamp.Unix()
		// Floor, not truncate: pre-1970 timestamps must land in the bucket
		// below, not the one above.
		bs := u - ((u%width)+width)%width
		b, ok := buckets[bs]
		if !ok {
			b = &bucketAgg{}
			buckets[bs] = b
			starts = append(starts, bs)
		}
		b.temp.add(r.Temperature)
		b.hum.add(r.AirHumidity)
		b.moist.add(r.SoilMoisture)
		b.light.add(r.Light)
		b.count++
	}

	slices.Sort(starts)
	out := make([]model.ChartBucket, 0, len(starts))
	for _, bs := range starts {
		b := buckets[bs]
		out = append(out, model.ChartBucket{
			BucketStart:  time.Unix(bs, 0).UTC(),
			Temperature:  b.temp.avg(),
			AirHumidity:  b.hum.avg(),
			SoilMoisture: b.moist.avg(),
			Light:        b.light.avg(),
			ReadingCount: b.count,
		})
	}
	return out, nil
}

// agg accumulates one channel, skipping readings that don't carry it.
type agg struct {
	n        int
	sum      float64
	min, max float64
}

func (a *agg) add(v *float64) {
	if v == nil {
		return
	}
	if a.n == 0 || *v < a.min {
		a.min = *v
	}
	if a.n == 0 || *v > a.max {
		a.max = *v
	}
	a.sum += *v
	a.n++
}

func (a *agg) avg() *float64 {
	if a.n == 0 {
		return nil
	}
	v := a.sum / float64(a.n)
	return &v
}

func (a *agg) stats() model.ChannelStats {
	if a.n == 0 {
		return model.ChannelStats{}
	}
	mn, mx := a.min, a.max
	return model.ChannelStats{Avg: a.avg(), Min: &mn, Max: &mx}
}
