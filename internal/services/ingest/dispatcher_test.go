package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantflow/plantflow/internal/devicedir"
	"github.com/plantflow/plantflow/internal/events"
	"github.com/plantflow/plantflow/internal/model"
	"github.com/plantflow/plantflow/internal/storage"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Record(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) byOutcome(outcome string) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

type failingStore struct {
	*storage.Memory
}

func (failingStore) Append(context.Context, model.Reading) (model.Reading, error) {
	return model.Reading{}, errors.New("connection refused")
}

type testPipeline struct {
	dispatcher *Dispatcher
	dir        *devicedir.Memory
	store      *storage.Memory
	sink       *recordingSink
	metrics    *Metrics
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	p := &testPipeline{
		dir:     devicedir.NewMemory(),
		store:   storage.NewMemory(),
		sink:    &recordingSink{},
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	p.dispatcher = NewDispatcher("plantflow/devices", p.dir, p.store, p.sink, p.metrics, zerolog.Nop())
	return p
}

func TestDispatcherStoresReading(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	err := p.dispatcher.HandleMessage(ctx, "plantflow/devices/plant-007/sensors",
		[]byte(`{"temperature": 22.5, "soil_moisture": 41}`))
	require.NoError(t, err)

	r, err := p.store.Latest(ctx, "plant-007")
	require.NoError(t, err)
	require.NotNil(t, r.Temperature)
	assert.Equal(t, 22.5, *r.Temperature)
	assert.False(t, r.Timestamp.IsZero())

	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Received))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Stored))
	assert.Len(t, p.sink.byOutcome(events.OutcomeStored), 1)
}

func TestDispatcherAutoRegistersWithPlaceholderMetadata(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	err := p.dispatcher.HandleMessage(ctx, "plantflow/devices/new-kid/sensors",
		[]byte(`{"light": 500}`))
	require.NoError(t, err)

	dev, err := p.dir.Get(ctx, "new-kid")
	require.NoError(t, err)
	assert.Equal(t, "Auto-registered new-kid", dev.Name)
	assert.Equal(t, "Unknown", dev.Species)
	assert.Equal(t, "Unknown", dev.Location)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.AutoRegistered))
	assert.Len(t, p.sink.byOutcome(events.OutcomeAutoRegistered), 1)
}

func TestDispatcherKnownDeviceNotReRegistered(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.dir.Create(ctx, "plant-001", devicedir.Metadata{Name: "Basil", Species: "Ocimum basilicum"})
	require.NoError(t, err)

	err = p.dispatcher.HandleMessage(ctx, "plantflow/devices/plant-001/sensors",
		[]byte(`{"temperature": 19}`))
	require.NoError(t, err)

	dev, err := p.dir.Get(ctx, "plant-001")
	require.NoError(t, err)
	assert.Equal(t, "Basil", dev.Name, "existing metadata must survive ingest")
	assert.Equal(t, 0.0, testutil.ToFloat64(p.metrics.AutoRegistered))
}

func TestDispatcherConcurrentAutoRegistration(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.dispatcher.HandleMessage(ctx, "plantflow/devices/racer/sensors",
				[]byte(`{"air_humidity": 50}`))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := p.dir.Get(ctx, "racer")
	require.NoError(t, err)

	n, err := p.store.Count(ctx, "racer")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), n, "losing the creation race must not drop the reading")
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.AutoRegistered), "exactly one registration event")
}

func TestDispatcherDrops(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		reason  string
		wantErr error
	}{
		{
			name:    "unresolvable topic",
			topic:   "plantflow/nope/plant-001/sensors",
			payload: `{"temperature": 20}`,
			reason:  events.ReasonInvalidTopic,
			wantErr: ErrInvalidTopic,
		},
		{
			name:    "invalid payload",
			topic:   "plantflow/devices/plant-001/sensors",
			payload: `{"battery": 90}`,
			reason:  events.ReasonInvalidPayload,
			wantErr: ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t)

			err := p.dispatcher.HandleMessage(context.Background(), tt.topic, []byte(tt.payload))
			require.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Dropped.WithLabelValues(tt.reason)))
			drops := p.sink.byOutcome(events.OutcomeDropped)
			require.Len(t, drops, 1)
			assert.Equal(t, tt.reason, drops[0].Reason)

			n, err := p.store.Count(context.Background(), "plant-001")
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestDispatcherStoreFailure(t *testing.T) {
	p := newTestPipeline(t)
	p.dispatcher = NewDispatcher("plantflow/devices", p.dir, failingStore{p.store}, p.sink, p.metrics, zerolog.Nop())

	err := p.dispatcher.HandleMessage(context.Background(), "plantflow/devices/plant-001/sensors",
		[]byte(`{"temperature": 20}`))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Dropped.WithLabelValues(events.ReasonStoreError)))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.metrics.Stored))

	// The device was still registered before the append failed.
	exists, err := p.dir.Exists(context.Background(), "plant-001")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDispatcherProvisionDenied(t *testing.T) {
	p := newTestPipeline(t)
	p.dispatcher.Provision = func(deviceID string) bool { return deviceID == "allowed" }
	ctx := context.Background()

	err := p.dispatcher.HandleMessage(ctx, "plantflow/devices/stranger/sensors",
		[]byte(`{"temperature": 20}`))
	require.ErrorIs(t, err, ErrRegistrationDenied)

	exists, err := p.dir.Exists(ctx, "stranger")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Dropped.WithLabelValues(events.ReasonRegistrationDenied)))

	err = p.dispatcher.HandleMessage(ctx, "plantflow/devices/allowed/sensors",
		[]byte(`{"temperature": 20}`))
	require.NoError(t, err)
}
