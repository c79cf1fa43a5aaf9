package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Probes feeds the health endpoints. Nil members are treated as healthy so a
// memory-store run without a sink still reports ok.
type Probes struct {
	BrokerConnected func() bool
	StorePing       func(ctx context.Context) error
	SinkErrorAge    func() time.Duration
}

const sinkErrorGrace = 30 * time.Second

type healthHandler struct {
	probes Probes
}

// NewHealthHandler reports component status as JSON, always 200.
func NewHealthHandler(p Probes) http.Handler {
	return &healthHandler{probes: p}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type status struct {
		Status        string  `json:"status"`
		MQTTConnected bool    `json:"mqtt_connected"`
		StoreOK       bool    `json:"store_ok"`
		SinkErrorAgeS float64 `json:"last_sink_error_age_sec"`
	}

	st := status{MQTTConnected: true, StoreOK: true, SinkErrorAgeS: -1}
	if h.probes.BrokerConnected != nil {
		st.MQTTConnected = h.probes.BrokerConnected()
	}
	if h.probes.StorePing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		st.StoreOK = h.probes.StorePing(ctx) == nil
		cancel()
	}
	sinkOK := true
	if h.probes.SinkErrorAge != nil {
		age := h.probes.SinkErrorAge()
		st.SinkErrorAgeS = age.Seconds()
		sinkOK = age > sinkErrorGrace
	}

	switch {
	case st.MQTTConnected && st.StoreOK && sinkOK:
		st.Status = "ok"
	case st.MQTTConnected || st.StoreOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

type readyHandler struct {
	probes Probes
}

// NewReadyHandler returns 200 only when every dependency is usable.
func NewReadyHandler(p Probes) http.Handler {
	return &readyHandler{probes: p}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ready := true
	if h.probes.BrokerConnected != nil && !h.probes.BrokerConnected() {
		ready = false
	}
	if ready && h.probes.StorePing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		ready = h.probes.StorePing(ctx) == nil
		cancel()
	}
	if ready && h.probes.SinkErrorAge != nil {
		ready = h.probes.SinkErrorAge() > sinkErrorGrace
	}

	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
}
