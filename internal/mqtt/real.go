package mqtt

import (
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/gpio-sequencer/internal/engine"
)

// outboxCapacity bounds how many publishes are held while disconnected.
const outboxCapacity = 256

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Program     string
}

// RealPublisher publishes to an actual MQTT broker. Publish and
// PublishSystem only queue; a background sender delivers in order while
// connected and resumes after a reconnect.
type RealPublisher struct {
	client  paho.Client
	topics  Topics
	program string
	out     *dispatcher
}

// NewRealPublisher creates a publisher for the given broker. It waits briefly
// for the first connection; if the broker is slow, publishing starts queued
// and the client keeps retrying in the background.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	p := &RealPublisher{
		topics:  NewTopics(o.TopicPrefix),
		program: o.Program,
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "connection lost"})
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(ClientID(o.ClientID)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(p.topics.System, will, 1, true).
		SetOnConnectHandler(func(paho.Client) {
			log.Printf("mqtt: connected to %s", o.Broker)
			p.out.notify()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.out = newDispatcher(outboxCapacity, p.client.IsConnectionOpen, p.deliver)

	token := p.client.Connect()
	if token.WaitTimeout(5 * time.Second) {
		if err := token.Error(); err != nil {
			p.out.close()
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
	} else {
		log.Printf("mqtt: broker %s not reachable yet, queueing", o.Broker)
	}
	return p, nil
}

// Publish queues an engine event (QoS 0, not retained).
func (p *RealPublisher) Publish(event engine.Event) error {
	payload, err := FormatPayload(p.program, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	p.out.enqueue(pendingMsg{topic: p.topics.Events, payload: payload})
	return nil
}

// PublishSystem queues a lifecycle event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	p.out.enqueue(pendingMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
	return nil
}

// deliver runs on the dispatcher goroutine.
func (p *RealPublisher) deliver(m pendingMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close delivers what is still queued, if connected, then disconnects.
func (p *RealPublisher) Close() error {
	p.out.close()
	if n := p.out.pending(); n > 0 {
		log.Printf("mqtt: %d messages undelivered at shutdown", n)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
