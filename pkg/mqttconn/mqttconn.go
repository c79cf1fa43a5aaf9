package mqttconn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned by Publish when the broker session is down.
// Publishing fails fast instead of queueing; the caller decides what to do.
var ErrNotConnected = errors.New("mqttconn: not connected")

type Config struct {
	BrokerURL string
	Username  string
	Password  string
	// ClientID is generated when empty.
	ClientID string
	// ConnectTimeout bounds a single connect attempt.
	ConnectTimeout time.Duration
	// ReconnectMin is the initial retry delay after a connection drop,
	// ReconnectMax the backoff ceiling. Reconnection itself never gives up.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ClientID == "" {
		out.ClientID = "plantflow-" + uuid.NewString()[:8]
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 30 * time.Second
	}
	if out.ReconnectMin <= 0 {
		out.ReconnectMin = 5 * time.Second
	}
	if out.ReconnectMax < out.ReconnectMin {
		out.ReconnectMax = 2 * time.Minute
	}
	return out
}

// Conn owns one clean-session MQTT connection. Because the session is clean,
// broker-side subscription state dies with every drop; Conn records every
// Subscribe call and replays it on reconnect.
type Conn struct {
	client mqtt.Client
	log    zerolog.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

type subscription struct {
	qos byte
	cb  mqtt.MessageHandler
}

// Dial connects to the broker, retrying the initial connect with exponential
// backoff until it succeeds or ctx is cancelled. A broker that is down at
// startup is waited out, same as one that drops later: once established the
// paho client reconnects on its own, backing off up to cfg.ReconnectMax. The
// connection is closed when ctx is cancelled.
func Dial(ctx context.Context, cfg *Config, log zerolog.Logger) (*Conn, error) {
	c := cfg.withDefaults()

	conn := &Conn{
		log:  log,
		subs: make(map[string]subscription),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.BrokerURL)
	opts.SetClientID(c.ClientID)
	if c.Username != "" {
		opts.SetUsername(c.Username)
		opts.SetPassword(c.Password)
	}
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(c.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.ReconnectMax)
	opts.SetOnConnectHandler(func(cl mqtt.Client) {
		log.Info().Str("broker", c.BrokerURL).Str("client_id", c.ClientID).Msg("mqtt connected")
		conn.replaySubscriptions(cl)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost, reconnecting")
	})

	conn.client = mqtt.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.ReconnectMin
	bo.MaxInterval = c.ReconnectMax
	bo.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		if token := conn.client.Connect(); token.Wait() && token.Error() != nil {
			log.Warn().Err(token.Error()).Str("broker", c.BrokerURL).Msg("mqtt connect failed")
			return token.Error()
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("mqttconn: connect to %s: %w", c.BrokerURL, err)
	}

	go func() {
		<-ctx.Done()
		conn.Close(250)
	}()

	return conn, nil
}

// Subscribe registers the filter so it survives reconnects, then applies it.
func (c *Conn) Subscribe(filter string, qos byte, cb mqtt.MessageHandler) error {
	c.mu.Lock()
	c.subs[filter] = subscription{qos: qos, cb: cb}
	c.mu.Unlock()

	if token := c.client.Subscribe(filter, qos, cb); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqttconn: subscribe %s: %w", filter, token.Error())
	}
	c.log.Info().Str("topic", filter).Uint8("qos", qos).Msg("subscribed")
	return nil
}

// Unsubscribe drops the filter, both on the broker and from replay state.
func (c *Conn) Unsubscribe(filter string) {
	c.mu.Lock()
	delete(c.subs, filter)
	c.mu.Unlock()

	token := c.client.Unsubscribe(filter)
	token.Wait()
}

func (c *Conn) replaySubscriptions(cl mqtt.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for f, s := range c.subs {
		subs[f] = s
	}
	c.mu.Unlock()

	for filter, s := range subs {
		if token := cl.Subscribe(filter, s.qos, s.cb); token.Wait() && token.Error() != nil {
			c.log.Error().Err(token.Error()).Str("topic", filter).Msg("resubscribe failed")
		}
	}
}

// Publish sends one message. It fails fast when the session is down rather
// than buffering into a connection that may never come back.
func (c *Conn) Publish(topic string, qos byte, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, qos, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqttconn: publish %s: %w", topic, token.Error())
	}
	return nil
}

// IsConnected reports whether the session is currently established.
func (c *Conn) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects, waiting up to quiesceMs for in-flight work.
func (c *Conn) Close(quiesceMs uint) {
	if c.client.IsConnectionOpen() {
		c.client.Disconnect(quiesceMs)
		c.log.Info().Msg("mqtt connection closed")
	}
}
