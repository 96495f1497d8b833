// Package fusiondb persists sensor samples and published estimates per run,
// so recorded runs can be replayed through the estimator and inspected
// offline.
package fusiondb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/flowfusion/internal/bus"
	"github.com/banshee-data/flowfusion/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the sample/estimate store.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the store at path and applies any
// pending schema migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db := &DB{sqlDB}
	if err := db.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// migrateUp runs all pending migrations from the embedded migration files.
func (db *DB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// BeginRun creates a new run and returns its ID.
func (db *DB) BeginRun(note string) (string, error) {
	runID := uuid.NewString()
	_, err := db.Exec("INSERT INTO runs (run_id, note) VALUES (?, ?)", runID, note)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the IDs of all recorded runs, oldest first.
func (db *DB) ListRuns() ([]string, error) {
	rows, err := db.Query("SELECT run_id FROM runs ORDER BY started_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

// RecordAccelSample stores one accelerometer sample for a run.
func (db *DB) RecordAccelSample(runID string, m bus.AccelMessage) error {
	_, err := db.Exec(`
		INSERT INTO accel_samples (run_id, unix_nanos, ax, ay, az, qx, qy, qz, qw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, m.UnixNanos, m.AX, m.AY, m.AZ, m.QX, m.QY, m.QZ, m.QW)
	return err
}

// RecordFlowSample stores one optical-flow speed sample for a run.
func (db *DB) RecordFlowSample(runID string, m bus.FlowSpeedMessage) error {
	_, err := db.Exec(`
		INSERT INTO flow_samples (run_id, unix_nanos, vx, vy, valid, cov)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, m.UnixNanos, m.VX, m.VY, m.Valid, m.Cov)
	return err
}

// LoadAccelSamples returns a run's accelerometer samples in time order.
func (db *DB) LoadAccelSamples(runID string) ([]bus.AccelMessage, error) {
	rows, err := db.Query(`
		SELECT unix_nanos, ax, ay, az, qx, qy, qz, qw
		FROM accel_samples WHERE run_id = ? ORDER BY unix_nanos`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []bus.AccelMessage
	for rows.Next() {
		var m bus.AccelMessage
		if err := rows.Scan(&m.UnixNanos, &m.AX, &m.AY, &m.AZ, &m.QX, &m.QY, &m.QZ, &m.QW); err != nil {
			return nil, err
		}
		samples = append(samples, m)
	}
	return samples, rows.Err()
}

// LoadFlowSamples returns a run's optical-flow samples in time order.
func (db *DB) LoadFlowSamples(runID string) ([]bus.FlowSpeedMessage, error) {
	rows, err := db.Query(`
		SELECT unix_nanos, vx, vy, valid, cov
		FROM flow_samples WHERE run_id = ? ORDER BY unix_nanos`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []bus.FlowSpeedMessage
	for rows.Next() {
		var m bus.FlowSpeedMessage
		if err := rows.Scan(&m.UnixNanos, &m.VX, &m.VY, &m.Valid, &m.Cov); err != nil {
			return nil, err
		}
		samples = append(samples, m)
	}
	return samples, rows.Err()
}

// EstimateWriter records published estimates for one run. It satisfies
// fusion.EstimateRecorder.
type EstimateWriter struct {
	db    *DB
	runID string
}

// NewEstimateWriter returns an EstimateWriter recording into the given run.
func (db *DB) NewEstimateWriter(runID string) *EstimateWriter {
	return &EstimateWriter{db: db, runID: runID}
}

// RecordEstimate stores one published estimate.
func (w *EstimateWriter) RecordEstimate(unixNanos int64, vx, vy, stdVX, stdVY, posX, posY float64) error {
	_, err := w.db.Exec(`
		INSERT INTO estimates (run_id, unix_nanos, vx, vy, std_vx, std_vy, pos_x, pos_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.runID, unixNanos, vx, vy, stdVX, stdVY, posX, posY)
	return err
}

// CountEstimates returns the number of recorded estimates for a run.
func (db *DB) CountEstimates(runID string) (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM estimates WHERE run_id = ?", runID).Scan(&n)
	return n, err
}
