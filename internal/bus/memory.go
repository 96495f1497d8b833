package bus

import (
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/flowfusion/internal/monitoring"
)

// subscriberQueueSize bounds each subscriber channel. A slow subscriber
// drops messages rather than stalling the publisher.
const subscriberQueueSize = 100

// MemoryBus is an in-process Bus that fans published payloads out to
// subscriber channels. It backs tests and replay runs that have no broker.
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[string]map[string]chan []byte // topic -> id -> channel
	closed bool
}

// NewMemoryBus returns an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: make(map[string]map[string]chan []byte),
	}
}

// Publish delivers the payload to every subscriber of the topic. Subscribers
// whose queue is full miss the message.
func (b *MemoryBus) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	for id, ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
			monitoring.Logf("bus: dropping message on %q for slow subscriber %s", topic, id)
		}
	}
	return nil
}

// Subscribe creates a new subscription channel for the topic.
func (b *MemoryBus) Subscribe(topic string) (string, <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan []byte, subscriberQueueSize)
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]chan []byte)
	}
	b.subs[topic][id] = ch
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *MemoryBus) Unsubscribe(topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[topic][id]; ok {
		close(ch)
		delete(b.subs[topic], id)
	}
}

// Close closes every subscriber channel and marks the bus unusable.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
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
	return nil
}
