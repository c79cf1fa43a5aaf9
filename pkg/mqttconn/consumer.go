package mqttconn

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Handler processes one delivered message. Errors are logged and swallowed:
// a bad message must never take the subscription down with it.
type Handler func(topic string, msg mqtt.Message) error

// Consumer binds a handler to one subscription filter for the lifetime of a
// context.
type Consumer struct {
	conn    *Conn
	filter  string
	qos     byte
	handler Handler
	log     zerolog.Logger
}

func NewConsumer(conn *Conn, filter string, qos byte, log zerolog.Logger, handler Handler) *Consumer {
	return &Consumer{
		conn:    conn,
		filter:  filter,
		qos:     qos,
		handler: handler,
		log:     log,
	}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// Consume subscribes and blocks until ctx is cancelled, then unsubscribes.
// Messages are handled on paho's router goroutines, so the handler may be
// invoked concurrently.
func (c *Consumer) Consume(ctx context.Context) error {
	err := c.conn.Subscribe(c.filter, c.qos, func(_ mqtt.Client, m mqtt.Message) {
		if c.handler == nil {
			c.log.Warn().Str("topic", m.Topic()).Msg("no handler set, message ignored")
			return
		}
		if err := c.handler(m.Topic(), m); err != nil {
			// Already logged with context by the handler; kept at debug so
			// the drop paths don't double-report.
			c.log.Debug().Err(err).Str("topic", m.Topic()).Msg("handler error")
		}
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	c.conn.Unsubscribe(c.filter)
	return nil
}
