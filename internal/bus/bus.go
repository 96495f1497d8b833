// Package bus provides the publish/subscribe transport that carries sensor
// samples into the estimator and published results out of it. The estimator
// core only depends on the Bus interface; the MQTT adapter is used live and
// the in-memory adapter in tests and replay.
package bus

import (
	"encoding/json"
	"errors"
)

// ErrBusClosed is returned by Publish after the bus has been closed.
var ErrBusClosed = errors.New("bus is closed")

// Topic names shared by every collaborator on the bus.
const (
	TopicAccel       = "sensors/accel"
	TopicOdom        = "sensors/odom"
	TopicFlowSpeed   = "sensors/flow_speed"
	TopicOdomRebased = "odom/rebased"
	TopicRPY         = "fusion/rpy"
	TopicVelocity    = "fusion/velocity"
	TopicPosition    = "fusion/position"
)

// Bus is a topic-based publish/subscribe transport. Payloads are opaque
// bytes; collaborators on this bus encode messages as JSON.
type Bus interface {
	// Publish delivers the payload to all current subscribers of the topic.
	Publish(topic string, payload []byte) error
	// Subscribe creates a new channel receiving payloads published to the
	// topic. The returned ID identifies the subscription for Unsubscribe.
	Subscribe(topic string) (id string, ch <-chan []byte)
	// Unsubscribe removes a subscription and closes its channel.
	Unsubscribe(topic, id string)
	// Close tears down the transport and closes all subscriber channels.
	Close() error
}

// PublishJSON marshals v and publishes it to the topic.
func PublishJSON(b Bus, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Publish(topic, payload)
}
