package bus

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/banshee-data/flowfusion/internal/monitoring"
)

// MQTT adapter timeouts.
const (
	mqttConnectTimeout   = 5 * time.Second
	mqttPublishTimeout   = 3 * time.Second
	mqttSubscribeTimeout = 3 * time.Second
)

// MQTTBus is a Bus backed by an MQTT broker. Each bus topic maps directly to
// an MQTT topic; payloads are published at QoS 0 because sensor streams are
// latest-value traffic where a retransmitted stale sample is worse than a
// dropped one.
type MQTTBus struct {
	client paho.Client

	mu   sync.Mutex
	subs map[string]map[string]chan []byte // topic -> id -> channel

	closed bool
}

// NewMQTTBus connects to the broker at brokerURL (e.g. "tcp://host:1883")
// and returns a Bus backed by it.
func NewMQTTBus(brokerURL, clientID string) (*MQTTBus, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetProtocolVersion(4)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %q", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %q: %w", brokerURL, err)
	}

	return &MQTTBus{
		client: client,
		subs:   make(map[string]map[string]chan []byte),
	}, nil
}

// Publish sends the payload to the broker.
func (b *MQTTBus) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	token := b.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("timed out publishing to %q", topic)
	}
	return token.Error()
}

// Subscribe creates a new subscription channel for the topic. The first
// subscriber for a topic installs the broker-side subscription; later
// subscribers share it.
func (b *MQTTBus) Subscribe(topic string) (string, <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan []byte, subscriberQueueSize)

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]chan []byte)
		token := b.client.Subscribe(topic, 0, func(_ paho.Client, m paho.Message) {
			b.fanOut(m.Topic(), m.Payload())
		})
		if !token.WaitTimeout(mqttSubscribeTimeout) || token.Error() != nil {
			monitoring.Logf("bus: broker subscription for %q failed: %v", topic, token.Error())
		}
	}
	b.subs[topic][id] = ch
	return id, ch
}

func (b *MQTTBus) fanOut(topic string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
			monitoring.Logf("bus: dropping message on %q for slow subscriber %s", topic, id)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel. The broker-side
// subscription is released when the last local subscriber leaves.
func (b *MQTTBus) Unsubscribe(topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[topic][id]; ok {
		close(ch)
		delete(b.subs[topic], id)
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
		token := b.client.Unsubscribe(topic)
		token.WaitTimeout(mqttSubscribeTimeout)
	}
}

// Close disconnects from the broker and closes all subscriber channels.
func (b *MQTTBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for topic, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, topic)
	}
	b.mu.Unlock()

	b.client.Disconnect(250)
	return nil
}
