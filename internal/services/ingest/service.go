package ingest

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/plantflow/plantflow/internal/events"
	"github.com/plantflow/plantflow/pkg/dedup"
	"github.com/plantflow/plantflow/pkg/mqttconn"
)

const defaultOpTimeout = 5 * time.Second

// Service ties the broker consumer to the dispatcher. One service, one
// wildcard subscription; paho may run the handler concurrently and the
// dispatcher is built for that.
type Service struct {
	consumer   *mqttconn.Consumer
	dispatcher *Dispatcher
	deduper    *dedup.Deduper
	opTimeout  time.Duration
	log        zerolog.Logger

	baseCtx context.Context
}

func NewService(consumer *mqttconn.Consumer, dispatcher *Dispatcher, log zerolog.Logger) *Service {
	return &Service{
		consumer:   consumer,
		dispatcher: dispatcher,
		opTimeout:  defaultOpTimeout,
		log:        log,
	}
}

// EnableDedup turns on payload-hash duplicate suppression. Only useful when
// the subscription QoS is 1 and the broker may redeliver.
func (s *Service) EnableDedup(ttl time.Duration, max int) {
	s.deduper = dedup.New(ttl, max)
}

// Start consumes until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.baseCtx = ctx
	s.consumer.SetHandler(s.handle)
	return s.consumer.Consume(ctx)
}

func (s *Service) handle(topic string, msg mqtt.Message) error {
	if s.deduper != nil {
		if !s.deduper.ShouldProcess(dedup.Key(topic, msg.Payload())) {
			s.dispatcher.drop(events.ReasonDuplicate, "", topic, nil)
			return nil
		}
	}

	// Bound each message so a wedged store cannot pile up handler
	// goroutines forever.
	ctx, cancel := context.WithTimeout(s.baseCtx, s.opTimeout)
	defer cancel()
	return s.dispatcher.HandleMessage(ctx, topic, msg.Payload())
}
