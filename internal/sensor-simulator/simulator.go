package simulator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantflow/plantflow/pkg/mqttconn"
)

// Simulator publishes telemetry for a set of fake devices at a fixed
// interval, on the same topics real devices use. It exists for local
// development and broker smoke tests.
type Simulator struct {
	interval time.Duration
	log      zerolog.Logger
	devices  []device
}

type device struct {
	id  string
	gen *Generator
	pub *mqttconn.Publisher
}

func New(conn *mqttconn.Conn, prefix string, deviceIDs []string, interval time.Duration, log zerolog.Logger) *Simulator {
	s := &Simulator{interval: interval, log: log}
	for i, id := range deviceIDs {
		s.devices = append(s.devices, device{
			id:  id,
			gen: NewGenerator(time.Now().UnixNano() + int64(i)),
			pub: mqttconn.NewPublisher(conn, prefix+"/"+id+"/sensors", 0),
		})
	}
	return s
}

// Run publishes until ctx is cancelled. Publish failures (broker down) are
// logged and skipped; the next tick tries again.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, d := range s.devices {
				payload, err := json.Marshal(d.gen.Next(now))
				if err != nil {
					continue
				}
				if err := d.pub.Publish(payload); err != nil {
					s.log.Warn().Err(err).Str("device_id", d.id).Msg("publish failed")
					continue
				}
				s.log.Debug().Str("device_id", d.id).Msg("telemetry published")
			}
		}
	}
}
