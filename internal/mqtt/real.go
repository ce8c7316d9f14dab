package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// DefaultBufferSize is the number of messages kept while disconnected.
const DefaultBufferSize = 100

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	writeTimeout   = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	BufferSize  int
	// OnConnectionChange is called from paho's goroutines when the
	// connection goes up or down.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client      paho.Client
	statusTopic string
	systemTopic string
	logger      zerolog.Logger
	onConn      func(bool)

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for the given broker. If the broker is
// not reachable within the connect timeout the publisher is still returned;
// it keeps retrying in the background and buffers until connected.
func NewRealPublisher(opts Options, logger zerolog.Logger) (*RealPublisher, error) {
	if opts.ClientID == "" {
		opts.ClientID = "warranty-activator"
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	p := &RealPublisher{
		statusTopic: StatusTopic(opts.TopicPrefix),
		systemTopic: SystemTopic(opts.TopicPrefix),
		logger:      logger.With().Str("component", "mqtt").Logger(),
		onConn:      opts.OnConnectionChange,
		buf:         newRingBuffer(opts.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventOffline,
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWriteTimeout(writeTimeout).
		SetBinaryWill(p.systemTopic, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.handleConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.handleConnectionLost(err) })

	p.client = paho.NewClient(clientOpts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		p.logger.Warn().Str("broker", opts.Broker).Msg("Broker not reachable yet; buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// IsConnected reports whether the client currently has a live connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// PublishStatus sends a retained progress message without waiting for the
// broker.
func (p *RealPublisher) PublishStatus(event StatusEvent) error {
	payload, err := FormatStatusPayload(event)
	if err != nil {
		return fmt.Errorf("format status payload: %w", err)
	}
	p.publish(bufferedMsg{topic: p.statusTopic, payload: payload, qos: 0, retained: true})
	return nil
}

// PublishSystem sends a system lifecycle event and waits for delivery.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	token := p.publish(bufferedMsg{topic: p.systemTopic, payload: payload, qos: 1, retained: event.Retained})
	if token == nil {
		return nil
	}
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// publish sends msg, or buffers it while disconnected. It returns nil when
// the message was buffered.
func (p *RealPublisher) publish(msg bufferedMsg) paho.Token {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		if p.buf.push(msg) {
			p.logger.Warn().Int("capacity", p.buf.capacity).Msg("Offline buffer full, dropping oldest")
		}
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
}

func (p *RealPublisher) handleConnect() {
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()

	p.logger.Info().Int("replayed", len(pending)).Msg("Connected to broker")
	for _, msg := range pending {
		p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}

	payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventReconnected})
	p.client.Publish(p.systemTopic, 1, false, payload)

	if p.onConn != nil {
		p.onConn(true)
	}
}

func (p *RealPublisher) handleConnectionLost(err error) {
	p.logger.Warn().Err(err).Msg("Connection to broker lost")
	if p.onConn != nil {
		p.onConn(false)
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
