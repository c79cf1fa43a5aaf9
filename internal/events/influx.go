package events

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"
)

const measurement = "ingest_event"

// InfluxSink writes ingest outcomes as points through the non-blocking write
// API and tracks the age of the last async write error for readiness checks.
type InfluxSink struct {
	api api.WriteAPI
	log zerolog.Logger

	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

func NewInfluxSink(w api.WriteAPI, log zerolog.Logger) *InfluxSink {
	s := &InfluxSink{
		api:     w,
		log:     log,
		lastErr: time.Now().Add(-24 * time.Hour),
		counts:  make(map[string]int64),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				s.mu.Lock()
				s.lastErr = time.Now()
				s.mu.Unlock()
				log.Error().Err(err).Msg("influx write error")
			}
		}
	}()
	return s
}

func (s *InfluxSink) Record(e Event) {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	tags := map[string]string{
		"outcome": e.Outcome,
	}
	if e.Reason != "" {
		tags["reason"] = e.Reason
	}
	if e.DeviceID != "" {
		tags["device_id"] = e.DeviceID
	}
	fields := map[string]any{
		"count": int64(1),
		"topic": e.Topic,
	}
	s.api.WritePoint(influxdb2.NewPoint(measurement, tags, fields, ts))

	s.mu.Lock()
	s.counts[e.Outcome]++
	s.mu.Unlock()
}

// LastErrorAge returns how long the sink has gone without a write error.
func (s *InfluxSink) LastErrorAge() time.Duration {
	s.mu.RLock()
	t := s.lastErr
	s.mu.RUnlock()
	return time.Since(t)
}

// Count reads the in-process counter for one outcome.
func (s *InfluxSink) Count(outcome string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[outcome]
}
