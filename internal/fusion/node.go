package fusion

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/banshee-data/flowfusion/internal/bus"
	"github.com/banshee-data/flowfusion/internal/monitoring"
)

// EstimateRecorder receives every published estimate, typically to persist
// it for replay and offline inspection.
type EstimateRecorder interface {
	RecordEstimate(unixNanos int64, vx, vy, stdVX, stdVY, posX, posY float64) error
}

// Snapshot is the most recent published estimate, served by the HTTP API.
type Snapshot struct {
	UnixNanos int64   `json:"unix_nanos"`
	Roll      float64 `json:"roll"`
	Pitch     float64 `json:"pitch"`
	Yaw       float64 `json:"yaw"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
	StdVX     float64 `json:"std_vx"`
	StdVY     float64 `json:"std_vy"`
	PosX      float64 `json:"pos_x"`
	PosY      float64 `json:"pos_y"`
}

// Node glues the estimator together: it subscribes to both sample streams,
// serializes every event through a single critical section, runs one
// predict+correct cycle per event, and publishes the three output streams.
// There is one Node per process, alive for the process lifetime.
type Node struct {
	cfg *Config
	b   bus.Bus

	mu         sync.Mutex
	clock      *DeltaTracker
	filter     *FusionFilter
	gate       *FlowGate
	pre        *AccelPreprocessor
	integrator *PositionIntegrator
	snapshot   Snapshot

	recorder EstimateRecorder // optional
}

// NewNode creates a Node publishing on and subscribing to the given bus.
func NewNode(cfg *Config, b bus.Bus) *Node {
	return &Node{
		cfg:        cfg,
		b:          b,
		clock:      &DeltaTracker{},
		filter:     NewFusionFilter(cfg),
		gate:       &FlowGate{},
		pre:        NewAccelPreprocessor(cfg.GetAccelBiasY()),
		integrator: NewPositionIntegrator(cfg.GetPositionIntegrationInterval()),
	}
}

// SetRecorder attaches an estimate recorder. Must be called before Run.
func (n *Node) SetRecorder(r EstimateRecorder) {
	n.recorder = r
}

// Run consumes both sample streams until the context is cancelled. The
// select loop delivers one event at a time, so predict/correct cycles never
// overlap regardless of how the two sensors interleave.
func (n *Node) Run(ctx context.Context) error {
	accelID, accelCh := n.b.Subscribe(bus.TopicAccel)
	defer n.b.Unsubscribe(bus.TopicAccel, accelID)
	flowID, flowCh := n.b.Subscribe(bus.TopicFlowSpeed)
	defer n.b.Unsubscribe(bus.TopicFlowSpeed, flowID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-accelCh:
			if !ok {
				return nil
			}
			var m bus.AccelMessage
			if err := json.Unmarshal(payload, &m); err != nil {
				monitoring.Logf("fusion: bad accel payload: %v", err)
				continue
			}
			n.HandleAccel(m)
		case payload, ok := <-flowCh:
			if !ok {
				return nil
			}
			var m bus.FlowSpeedMessage
			if err := json.Unmarshal(payload, &m); err != nil {
				monitoring.Logf("fusion: bad flow payload: %v", err)
				continue
			}
			n.HandleFlow(m)
		}
	}
}

// HandleAccel runs one acceleration-driven cycle: predict, correct the
// auxiliary channel with the bias-corrected reading, integrate position, and
// publish orientation, velocity, and position. The first event of the
// estimator's lifetime only primes the clock.
func (n *Node) HandleAccel(m bus.AccelMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()

	dt, ok := n.clock.Elapsed(time.Unix(0, m.UnixNanos))
	if !ok {
		// NoPriorTimestamp: skip this cycle.
		return
	}

	n.filter.Predict(dt)

	ax, ay, _, rpy := n.pre.Process(AccelSample{
		Time: time.Unix(0, m.UnixNanos),
		AX:   m.AX, AY: m.AY, AZ: m.AZ,
		QX: m.QX, QY: m.QY, QZ: m.QZ, QW: m.QW,
	})

	n.publish(bus.TopicRPY, bus.RPYMessage{
		UnixNanos: m.UnixNanos,
		Roll:      rpy.Roll,
		Pitch:     rpy.Pitch,
		Yaw:       rpy.Yaw,
	})

	n.filter.CorrectAccel(ax, ay)

	vx, vy := n.filter.Velocity()
	stdVX, stdVY := n.filter.VelocityStdDev()

	var posX, posY float64
	if n.cfg.GetIntegrateMeasuredDt() {
		posX, posY = n.integrator.IntegrateDt(vx, vy, dt)
	} else {
		posX, posY = n.integrator.Integrate(vx, vy)
	}

	n.publish(bus.TopicVelocity, bus.VelocityMessage{
		UnixNanos: m.UnixNanos,
		VX:        vx,
		VY:        vy,
		StdVX:     stdVX,
		StdVY:     stdVY,
	})
	n.publish(bus.TopicPosition, bus.PositionMessage{
		UnixNanos: m.UnixNanos,
		X:         posX,
		Y:         posY,
	})

	n.snapshot = Snapshot{
		UnixNanos: m.UnixNanos,
		Roll:      rpy.Roll,
		Pitch:     rpy.Pitch,
		Yaw:       rpy.Yaw,
		VX:        vx,
		VY:        vy,
		StdVX:     stdVX,
		StdVY:     stdVY,
		PosX:      posX,
		PosY:      posY,
	}

	if n.recorder != nil {
		if err := n.recorder.RecordEstimate(m.UnixNanos, vx, vy, stdVX, stdVY, posX, posY); err != nil {
			monitoring.Logf("fusion: failed to record estimate: %v", err)
		}
	}
}

// HandleFlow runs one optical-flow-driven cycle. Samples marked invalid by
// the producer, and samples the gate rejects, leave the accelerometer-only
// prediction in place for this cycle; the skip is local, not a filter reset.
func (n *Node) HandleFlow(m bus.FlowSpeedMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !m.Valid || !n.gate.Evaluate(m.Cov) {
		return
	}

	dt, ok := n.clock.Elapsed(time.Unix(0, m.UnixNanos))
	if !ok {
		return
	}

	n.filter.Predict(dt)
	n.filter.CorrectFlow(m.VX, m.VY, m.Cov)
}

// Snapshot returns the most recent published estimate.
func (n *Node) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshot
}

func (n *Node) publish(topic string, v any) {
	if err := bus.PublishJSON(n.b, topic, v); err != nil {
		monitoring.Logf("fusion: failed to publish %s: %v", topic, err)
	}
}
