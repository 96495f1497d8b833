// Package relay republishes raw odometry with the initial pose rebased to
// the origin, for easier charting, and derives the optical-flow speed stream
// the estimator consumes.
package relay

import (
	"context"
	"encoding/json"

	"github.com/banshee-data/flowfusion/internal/bus"
	"github.com/banshee-data/flowfusion/internal/monitoring"
)

// Relay subscribes to a raw odometry stream and publishes two derived
// streams: the same odometry rebased so the first pose is (0,0), and a speed
// stream carrying the optical-flow velocity scaled by a fixed bias factor.
//
// A sample whose twist covariance degraded since the previous sample is
// published with Valid=false instead of being dropped, so downstream
// consumers can tell "rejected" from "missing". The covariance memory
// advances on every sample, accepted or not.
type Relay struct {
	b          bus.Bus
	speedScale float64

	firstX, firstY float64
	havePose       bool

	lastCov float64
	haveCov bool
}

// New returns a Relay that scales relayed optical speed by speedScale.
func New(b bus.Bus, speedScale float64) *Relay {
	return &Relay{b: b, speedScale: speedScale}
}

// Run consumes raw odometry until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	id, ch := r.b.Subscribe(bus.TopicOdom)
	defer r.b.Unsubscribe(bus.TopicOdom, id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			var m bus.OdomMessage
			if err := json.Unmarshal(payload, &m); err != nil {
				monitoring.Logf("relay: bad odom payload: %v", err)
				continue
			}
			rebased, speed := r.Handle(m)
			if err := bus.PublishJSON(r.b, bus.TopicOdomRebased, rebased); err != nil {
				monitoring.Logf("relay: failed to publish rebased odom: %v", err)
			}
			if err := bus.PublishJSON(r.b, bus.TopicFlowSpeed, speed); err != nil {
				monitoring.Logf("relay: failed to publish flow speed: %v", err)
			}
		}
	}
}

// Handle processes one odometry sample and returns the rebased odometry and
// the derived speed sample.
func (r *Relay) Handle(m bus.OdomMessage) (bus.OdomMessage, bus.FlowSpeedMessage) {
	if !r.havePose {
		r.firstX = m.X
		r.firstY = m.Y
		r.havePose = true
	}

	rebased := m
	rebased.X -= r.firstX
	rebased.Y -= r.firstY

	speed := bus.FlowSpeedMessage{
		UnixNanos: m.UnixNanos,
		Cov:       m.Cov,
	}
	if !r.haveCov || m.Cov-r.lastCov <= 0 {
		speed.VX = m.VX * r.speedScale
		speed.VY = m.VY * r.speedScale
		speed.Valid = true
	}
	r.lastCov = m.Cov
	r.haveCov = true

	return rebased, speed
}
