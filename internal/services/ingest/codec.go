package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/plantflow/plantflow/internal/model"
)

// ErrInvalidPayload marks a payload that cannot become a valid Reading.
var ErrInvalidPayload = errors.New("ingest: invalid payload")

// Accepted timestamp layouts, RFC3339 first (what the firmware sends).
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// DecodeReading parses a raw payload into a normalized Reading.
//
// Field aliases: "air_humidity" or "humidity", "soil_moisture" or
// "moisture"; the canonical name wins when both appear. Non-numeric values
// are ignored rather than failing the whole message, matching how devices in
// the field actually misbehave. A payload is valid only if at least one
// channel carries a number.
//
// A missing timestamp leaves Reading.Timestamp zero so the store stamps
// ingestion time; a present but unparseable timestamp invalidates the
// payload, because re-stamping it would fabricate a time the device never
// reported.
func DecodeReading(payload []byte) (model.Reading, error) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return model.Reading{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	r := model.Reading{
		Temperature:  numericField(doc, "temperature"),
		AirHumidity:  numericField(doc, "air_humidity", "humidity"),
		SoilMoisture: numericField(doc, "soil_moisture", "moisture"),
		Light:        numericField(doc, "light"),
	}
	if !r.HasMeasurement() {
		return model.Reading{}, fmt.Errorf("%w: no numeric channel present", ErrInvalidPayload)
	}

	if raw, ok := doc["timestamp"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return model.Reading{}, fmt.Errorf("%w: timestamp is not a string", ErrInvalidPayload)
		}
		ts, err := parseTimestamp(s)
		if err != nil {
			return model.Reading{}, fmt.Errorf("%w: unparseable timestamp %q", ErrInvalidPayload, s)
		}
		r.Timestamp = ts
	}
	return r, nil
}

// numericField returns the first key that is present with a numeric value.
func numericField(doc map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			if f, ok := v.(float64); ok {
				return &f
			}
		}
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
