package mqttconn

// Publisher is a narrow publish capability bound to a fixed topic. It exists
// so components that only need to emit on one topic don't hold the whole
// connection.
type Publisher struct {
	conn  *Conn
	topic string
	qos   byte
}

func NewPublisher(conn *Conn, topic string, qos byte) *Publisher {
	return &Publisher{conn: conn, topic: topic, qos: qos}
}

// Publish sends payload to the bound topic; ErrNotConnected when the session
// is down.
func (p *Publisher) Publish(payload []byte) error {
	return p.conn.Publish(p.topic, p.qos, payload)
}

// Topic returns the bound topic.
func (p *Publisher) Topic() string {
	return p.topic
}
