package model

import "time"

// Reading is one immutable telemetry sample. Channels are pointers because a
// device may publish any subset of them; nil means "not reported".
type Reading struct {
	ID           int64     `json:"id"`
	DeviceID     string    `json:"device_id"`
	Temperature  *float64  `json:"temperature,omitempty"`
	AirHumidity  *float64  `json:"air_humidity,omitempty"`
	SoilMoisture *float64  `json:"soil_moisture,omitempty"`
	Light        *float64  `json:"light,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// HasMeasurement reports whether at least one channel is populated. A reading
// with no channels at all is never stored.
func (r Reading) HasMeasurement() bool {
	return r.Temperature != nil || r.AirHumidity != nil || r.SoilMoisture != nil || r.Light != nil
}
