package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantflow/plantflow/internal/devicedir"
	"github.com/plantflow/plantflow/internal/events"
	"github.com/plantflow/plantflow/internal/storage"
)

// ErrRegistrationDenied is returned when the provisioning hook rejects an
// unknown device id.
var ErrRegistrationDenied = errors.New("ingest: device registration denied")

// Dispatcher runs the per-message ingestion pipeline: resolve topic, decode
// payload, ensure the device exists, append the reading. It keeps no state
// across messages, so it is safe to invoke concurrently; every failure is
// isolated to the message that caused it.
type Dispatcher struct {
	prefix  string
	dir     devicedir.Directory
	store   storage.ReadingStore
	sink    events.Sink
	metrics *Metrics
	log     zerolog.Logger

	// Provision gates auto-registration of previously unseen device ids.
	// nil allows everything; a future allow-list plugs in here.
	Provision func(deviceID string) bool
}

func NewDispatcher(prefix string, dir devicedir.Directory, store storage.ReadingStore,
	sink events.Sink, metrics *Metrics, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		prefix:  prefix,
		dir:     dir,
		store:   store,
		sink:    sink,
		metrics: metrics,
		log:     log,
	}
}

// HandleMessage ingests one (topic, payload) delivery. The returned error is
// diagnostic only; the caller must not retry, since broker QoS is the sole
// redelivery mechanism.
func (d *Dispatcher) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	d.metrics.Received.Inc()

	deviceID, err := ResolveDeviceID(topic, d.prefix)
	if err != nil {
		d.drop(events.ReasonInvalidTopic, "", topic, err)
		return err
	}

	reading, err := DecodeReading(payload)
	if err != nil {
		d.drop(events.ReasonInvalidPayload, deviceID, topic, err)
		return err
	}

	if err := d.ensureDevice(ctx, deviceID, topic); err != nil {
		reason := events.ReasonDirectoryError
		if errors.Is(err, ErrRegistrationDenied) {
			reason = events.ReasonRegistrationDenied
		}
		d.drop(reason, deviceID, topic, err)
		return err
	}

	reading.DeviceID = deviceID
	stored, err := d.store.Append(ctx, reading)
	if err != nil {
		d.drop(events.ReasonStoreError, deviceID, topic, err)
		return err
	}

	d.metrics.Stored.Inc()
	d.sink.Record(events.Event{
		Outcome:   events.OutcomeStored,
		DeviceID:  deviceID,
		Topic:     topic,
		Timestamp: stored.Timestamp,
	})
	d.log.Debug().
		Str("device_id", deviceID).
		Int64("reading_id", stored.ID).
		Time("timestamp", stored.Timestamp).
		Msg("reading stored")
	return nil
}

// ensureDevice checks existence and auto-registers with placeholder metadata
// when absent. Losing the creation race to a concurrent message is success:
// the device exists either way.
func (d *Dispatcher) ensureDevice(ctx context.Context, deviceID, topic string) error {
	exists, err := d.dir.Exists(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("device lookup: %w", err)
	}
	if exists {
		return nil
	}

	if d.Provision != nil && !d.Provision(deviceID) {
		return ErrRegistrationDenied
	}

	_, err = d.dir.Create(ctx, deviceID, devicedir.Metadata{
		Name:     "Auto-registered " + deviceID,
		Species:  "Unknown",
		Location: "Unknown",
	})
	if errors.Is(err, devicedir.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("auto-register: %w", err)
	}

	d.metrics.AutoRegistered.Inc()
	d.sink.Record(events.Event{
		Outcome:   events.OutcomeAutoRegistered,
		DeviceID:  deviceID,
		Topic:     topic,
		Timestamp: time.Now().UTC(),
	})
	d.log.Info().Str("device_id", deviceID).Msg("device auto-registered")
	return nil
}

func (d *Dispatcher) drop(reason, deviceID, topic string, err error) {
	d.metrics.Dropped.WithLabelValues(reason).Inc()
	d.sink.Record(events.Event{
		Outcome:   events.OutcomeDropped,
		Reason:    reason,
		DeviceID:  deviceID,
		Topic:     topic,
		Timestamp: time.Now().UTC(),
	})
	d.log.Warn().
		Str("topic", topic).
		Str("device_id", deviceID).
		Str("reason", reason).
		Err(err).
		Msg("message dropped")
}
