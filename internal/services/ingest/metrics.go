package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Received       prometheus.Counter
	Stored         prometheus.Counter
	Dropped        *prometheus.CounterVec
	AutoRegistered prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Received: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "plantflow",
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Messages delivered by the broker to the ingestion pipeline.",
		}),
		Stored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "plantflow",
			Subsystem: "ingest",
			Name:      "readings_stored_total",
			Help:      "Readings successfully appended to the time-series store.",
		}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantflow",
			Subsystem: "ingest",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped by the ingestion pipeline, by reason.",
		}, []string{"reason"}),
		AutoRegistered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "plantflow",
			Subsystem: "ingest",
			Name:      "devices_autoregistered_total",
			Help:      "Devices created implicitly on first telemetry.",
		}),
	}
}
