// Package events carries ingest pipeline outcomes to an operational sink so
// drop patterns and registration activity can be charted next to the broker
// and store health.
package events

import "time"

// Outcomes.
const (
	OutcomeStored         = "stored"
	OutcomeDropped        = "dropped"
	OutcomeAutoRegistered = "auto_registered"
)

// Drop reasons.
const (
	ReasonInvalidTopic       = "invalid_topic"
	ReasonInvalidPayload     = "invalid_payload"
	ReasonDirectoryError     = "directory_error"
	ReasonRegistrationDenied = "registration_denied"
	ReasonStoreError         = "store_error"
	ReasonDuplicate          = "duplicate"
)

// Event is one ingest pipeline outcome.
type Event struct {
	Outcome   string
	Reason    string
	DeviceID  string
	Topic     string
	Timestamp time.Time
}

// Sink receives ingest outcomes. Implementations must not block the message
// path; buffering or dropping under pressure is their call.
type Sink interface {
	Record(Event)
}

// NopSink is the default when no diagnostics backend is configured.
type NopSink struct{}

func (NopSink) Record(Event) {}
