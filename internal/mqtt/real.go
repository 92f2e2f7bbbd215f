package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/prop-controller/internal/logging"
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	BufferSize int // messages kept while disconnected

	// OnConnectionChange, if set, is called on connect and on connection loss.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. While the connection is
// down, messages go to a ring buffer that is replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	log    *logging.Logger

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. The broker
// gets a retained OFFLINE will on the system topic. If the first connect
// times out the client keeps retrying in the background and messages are
// buffered until it succeeds.
//
// log must not itself forward to MQTT.
func NewRealPublisher(opts Options, log *logging.Logger) (*RealPublisher, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	p := &RealPublisher{
		topics: opts.Topics,
		log:    log.With("component", "mqtt"),
		buf:    newRingBuffer(opts.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	notify := func(connected bool) {
		if opts.OnConnectionChange != nil {
			opts.OnConnectionChange(connected)
		}
	}

	popts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(opts.Topics.System, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			p.log.Info("connected to broker", "broker", opts.Broker)
			notify(true)
			go p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn("connection to broker lost", "error", err)
			notify(false)
		})

	p.client = paho.NewClient(popts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		p.log.Warn("broker not reachable yet, buffering", "broker", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends a diagnostic to the broker.
func (p *RealPublisher) Publish(d Diagnostic) error {
	payload, err := FormatDiagnostic(d)
	if err != nil {
		return fmt.Errorf("format diagnostic: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(p.topics.Diag, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(p.topics.System, 1, event.Retained, payload)
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		overflow := p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		if overflow {
			p.log.Warn("offline buffer full, dropping oldest", "capacity", p.buf.capacity)
		}
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// flush replays messages buffered while disconnected, oldest first.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs := p.buf.drainAll()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	p.log.Info("replaying buffered messages", "count", len(msgs))
	for _, m := range msgs {
		token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
			p.log.Warn("replay failed, dropping rest", "topic", m.topic)
			return
		}
	}
}
