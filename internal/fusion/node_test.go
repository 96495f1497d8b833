package fusion

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flowfusion/internal/bus"
)

func drainJSON[T any](t *testing.T, ch <-chan []byte) []T {
	t.Helper()
	var out []T
	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return out
			}
			var m T
			require.NoError(t, json.Unmarshal(payload, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestNodeFirstAccelEventSkipsCycle(t *testing.T) {
	b := bus.NewMemoryBus()
	defer b.Close()
	n := NewNode(DefaultConfig(), b)

	_, velCh := b.Subscribe(bus.TopicVelocity)

	n.HandleAccel(bus.AccelMessage{UnixNanos: 0, AY: 0.13, QW: 1})

	// No prior timestamp: nothing published, no state change.
	assert.Empty(t, drainJSON[bus.VelocityMessage](t, velCh))
	assert.Equal(t, [4]float64{0, 0, 0, 0}, n.filter.State())
}

func TestNodeBiasCancellation(t *testing.T) {
	// A platform at rest whose sensor carries its characteristic +0.13
	// lateral offset must produce negligible velocity after correction.
	b := bus.NewMemoryBus()
	defer b.Close()
	n := NewNode(DefaultConfig(), b)

	_, rpyCh := b.Subscribe(bus.TopicRPY)
	_, velCh := b.Subscribe(bus.TopicVelocity)
	_, posCh := b.Subscribe(bus.TopicPosition)

	n.HandleAccel(bus.AccelMessage{UnixNanos: 0, AY: 0.13, QW: 1})
	n.HandleAccel(bus.AccelMessage{UnixNanos: int64(100 * time.Millisecond), AY: 0.13, QW: 1})

	rpys := drainJSON[bus.RPYMessage](t, rpyCh)
	require.Len(t, rpys, 1, "only the second event completes a cycle")
	want := bus.RPYMessage{UnixNanos: int64(100 * time.Millisecond)}
	if diff := cmp.Diff(want, rpys[0], cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("rpy mismatch (-want +got):\n%s", diff)
	}

	vels := drainJSON[bus.VelocityMessage](t, velCh)
	require.Len(t, vels, 1)
	assert.InDelta(t, 0, vels[0].VX, 1e-9)
	assert.InDelta(t, 0, vels[0].VY, 1e-9)
	assert.Greater(t, vels[0].StdVX, 0.0)
	assert.Greater(t, vels[0].StdVY, 0.0)

	positions := drainJSON[bus.PositionMessage](t, posCh)
	require.Len(t, positions, 1)
	assert.InDelta(t, 0, positions[0].X, 1e-9)
	assert.InDelta(t, 0, positions[0].Y, 1e-9)
}

func TestNodeAccelDrivesVelocity(t *testing.T) {
	b := bus.NewMemoryBus()
	defer b.Close()
	n := NewNode(DefaultConfig(), b)

	ts := int64(0)
	n.HandleAccel(bus.AccelMessage{UnixNanos: ts, QW: 1})
	for i := 0; i < 10; i++ {
		ts += int64(10 * time.Millisecond)
		n.HandleAccel(bus.AccelMessage{UnixNanos: ts, AX: 1.0, AY: 0.13, QW: 1})
	}

	snap := n.Snapshot()
	assert.Greater(t, snap.VX, 0.0, "sustained forward acceleration builds vx")
	assert.Greater(t, snap.VX, snap.VY, "vx outgrows the cross-coupling transient on vy")
	assert.Greater(t, snap.PosX, 0.0)
}

func TestNodeFlowCorrectionPullsVelocity(t *testing.T) {
	b := bus.NewMemoryBus()
	defer b.Close()
	n := NewNode(DefaultConfig(), b)

	n.HandleAccel(bus.AccelMessage{UnixNanos: 0, AY: 0.13, QW: 1})
	n.HandleFlow(bus.FlowSpeedMessage{
		UnixNanos: int64(50 * time.Millisecond),
		VX:        1.0,
		Valid:     true,
		Cov:       0,
	})

	vx, _ := n.filter.Velocity()
	assert.Greater(t, vx, 0.0, "flow correction pulls vx toward the measurement")
}

func TestNodeFlowSkips(t *testing.T) {
	t.Run("invalid sample leaves the prediction in place", func(t *testing.T) {
		b := bus.NewMemoryBus()
		defer b.Close()
		n := NewNode(DefaultConfig(), b)

		n.HandleAccel(bus.AccelMessage{UnixNanos: 0, AY: 0.13, QW: 1})
		n.HandleFlow(bus.FlowSpeedMessage{
			UnixNanos: int64(50 * time.Millisecond),
			VX:        1.0,
			Valid:     false,
			Cov:       0,
		})

		vx, _ := n.filter.Velocity()
		assert.Equal(t, 0.0, vx, "invalid sample must not correct the filter")
	})

	t.Run("gate rejection leaves the prediction in place", func(t *testing.T) {
		b := bus.NewMemoryBus()
		defer b.Close()
		n := NewNode(DefaultConfig(), b)

		n.HandleAccel(bus.AccelMessage{UnixNanos: 0, AY: 0.13, QW: 1})
		n.HandleFlow(bus.FlowSpeedMessage{UnixNanos: 1, VX: 1.0, Valid: true, Cov: 0.5})
		vxAfterFirst, _ := n.filter.Velocity()

		// Degraded quality: rejected, no correction this cycle.
		n.HandleFlow(bus.FlowSpeedMessage{UnixNanos: 2, VX: 100.0, Valid: true, Cov: 0.9})
		vx, _ := n.filter.Velocity()
		assert.InDelta(t, vxAfterFirst, vx, 1e-9)
	})
}

func TestNodeMeasuredDtIntegration(t *testing.T) {
	cfg := &Config{IntegrateMeasuredDt: ptrBool(true)}
	b := bus.NewMemoryBus()
	defer b.Close()
	n := NewNode(cfg, b)

	ts := int64(0)
	n.HandleAccel(bus.AccelMessage{UnixNanos: ts, AY: 0.13, QW: 1})
	for i := 0; i < 5; i++ {
		// 50ms cadence: measured dt integration must move position five
		// times further per cycle than the 10ms nominal interval would.
		ts += int64(50 * time.Millisecond)
		n.HandleAccel(bus.AccelMessage{UnixNanos: ts, AX: 1.0, AY: 0.13, QW: 1})
	}

	nominal := NewNode(DefaultConfig(), bus.NewMemoryBus())
	ts = 0
	nominal.HandleAccel(bus.AccelMessage{UnixNanos: ts, AY: 0.13, QW: 1})
	for i := 0; i < 5; i++ {
		ts += int64(50 * time.Millisecond)
		nominal.HandleAccel(bus.AccelMessage{UnixNanos: ts, AX: 1.0, AY: 0.13, QW: 1})
	}

	assert.Greater(t, n.Snapshot().PosX, nominal.Snapshot().PosX)
}

func TestNodeRunConsumesBus(t *testing.T) {
	b := bus.NewMemoryBus()
	defer b.Close()
	n := NewNode(DefaultConfig(), b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Run(ctx)
	}()

	// Give the node time to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, bus.PublishJSON(b, bus.TopicAccel, bus.AccelMessage{UnixNanos: 0, AY: 0.13, QW: 1}))
	require.NoError(t, bus.PublishJSON(b, bus.TopicAccel, bus.AccelMessage{
		UnixNanos: int64(10 * time.Millisecond), AX: 1.0, AY: 0.13, QW: 1,
	}))

	require.Eventually(t, func() bool {
		return n.Snapshot().UnixNanos == int64(10*time.Millisecond)
	}, 2*time.Second, 10*time.Millisecond, "node did not process published samples")

	snap := n.Snapshot()
	assert.False(t, math.IsNaN(snap.VX))
	assert.Greater(t, snap.VX, 0.0)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("node did not stop on context cancellation")
	}
}

type recordedEstimate struct {
	unixNanos int64
	vx, vy    float64
}

type fakeRecorder struct {
	estimates []recordedEstimate
}

func (r *fakeRecorder) RecordEstimate(unixNanos int64, vx, vy, stdVX, stdVY, posX, posY float64) error {
	r.estimates = append(r.estimates, recordedEstimate{unixNanos, vx, vy})
	return nil
}

func TestNodeRecordsEstimates(t *testing.T) {
	b := bus.NewMemoryBus()
	defer b.Close()
	n := NewNode(DefaultConfig(), b)
	rec := &fakeRecorder{}
	n.SetRecorder(rec)

	n.HandleAccel(bus.AccelMessage{UnixNanos: 0, AY: 0.13, QW: 1})
	n.HandleAccel(bus.AccelMessage{UnixNanos: int64(10 * time.Millisecond), AY: 0.13, QW: 1})

	require.Len(t, rec.estimates, 1)
	assert.Equal(t, int64(10*time.Millisecond), rec.estimates[0].unixNanos)
}
