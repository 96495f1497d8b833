package fusiondb

import (
	"context"
	"encoding/json"

	"github.com/banshee-data/flowfusion/internal/bus"
	"github.com/banshee-data/flowfusion/internal/monitoring"
)

// Recorder taps the sensor topics on the bus and persists every sample into
// a run.
type Recorder struct {
	db    *DB
	b     bus.Bus
	runID string
}

// NewRecorder returns a Recorder persisting into the given run.
func NewRecorder(db *DB, b bus.Bus, runID string) *Recorder {
	return &Recorder{db: db, b: b, runID: runID}
}

// Run records samples until the context is cancelled. Storage errors are
// logged and skipped; recording must never stall the sensor streams.
func (r *Recorder) Run(ctx context.Context) error {
	accelID, accelCh := r.b.Subscribe(bus.TopicAccel)
	defer r.b.Unsubscribe(bus.TopicAccel, accelID)
	flowID, flowCh := r.b.Subscribe(bus.TopicFlowSpeed)
	defer r.b.Unsubscribe(bus.TopicFlowSpeed, flowID)

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
				monitoring.Logf("recorder: bad accel payload: %v", err)
				continue
			}
			if err := r.db.RecordAccelSample(r.runID, m); err != nil {
				monitoring.Logf("recorder: failed to record accel sample: %v", err)
			}
		case payload, ok := <-flowCh:
			if !ok {
				return nil
			}
			var m bus.FlowSpeedMessage
			if err := json.Unmarshal(payload, &m); err != nil {
				monitoring.Logf("recorder: bad flow payload: %v", err)
				continue
			}
			if err := r.db.RecordFlowSample(r.runID, m); err != nil {
				monitoring.Logf("recorder: failed to record flow sample: %v", err)
			}
		}
	}
}
