package fusiondb

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flowfusion/internal/bus"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "fusion_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"runs", "accel_samples", "flow_samples", "estimates"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %s must exist", table)
	}
}

func TestBeginRunAndListRuns(t *testing.T) {
	db := openTestDB(t)

	first, err := db.BeginRun("bench run")
	require.NoError(t, err)
	second, err := db.BeginRun("")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	runs, err := db.ListRuns()
	require.NoError(t, err)
	assert.Contains(t, runs, first)
	assert.Contains(t, runs, second)
}

func TestAccelSampleRoundTrip(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.BeginRun("")
	require.NoError(t, err)

	samples := []bus.AccelMessage{
		{UnixNanos: 200, AX: -0.5, QW: 1},
		{UnixNanos: 100, AY: 0.13, QZ: 0.7071, QW: 0.7071},
	}
	for _, m := range samples {
		require.NoError(t, db.RecordAccelSample(runID, m))
	}

	got, err := db.LoadAccelSamples(runID)
	require.NoError(t, err)

	// Loaded in time order, not insert order.
	want := []bus.AccelMessage{samples[1], samples[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestFlowSampleRoundTrip(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.BeginRun("")
	require.NoError(t, err)

	want := []bus.FlowSpeedMessage{
		{UnixNanos: 100, VX: 0.93, VY: -0.1, Valid: true, Cov: 0.5},
		{UnixNanos: 200, Valid: false, Cov: 0.9},
	}
	for _, m := range want {
		require.NoError(t, db.RecordFlowSample(runID, m))
	}

	got, err := db.LoadFlowSamples(runID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestSamplesScopedToRun(t *testing.T) {
	db := openTestDB(t)
	runA, err := db.BeginRun("a")
	require.NoError(t, err)
	runB, err := db.BeginRun("b")
	require.NoError(t, err)

	require.NoError(t, db.RecordAccelSample(runA, bus.AccelMessage{UnixNanos: 1, QW: 1}))

	got, err := db.LoadAccelSamples(runB)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEstimateWriter(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.BeginRun("")
	require.NoError(t, err)

	w := db.NewEstimateWriter(runID)
	require.NoError(t, w.RecordEstimate(100, 0.1, -0.2, 0.9, 0.9, 0.001, -0.002))
	require.NoError(t, w.RecordEstimate(110, 0.2, -0.1, 0.8, 0.8, 0.003, -0.003))

	n, err := db.CountEstimates(runID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	other, err := db.BeginRun("")
	require.NoError(t, err)
	n, err = db.CountEstimates(other)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
