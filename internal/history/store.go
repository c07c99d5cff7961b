package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/crimson-sun/machwatch/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	model         TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	row_count     INTEGER NOT NULL DEFAULT 0,
	failure_count INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'running'
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id           TEXT NOT NULL,
	row_index        INTEGER NOT NULL,
	ts               TEXT NOT NULL,
	temperature      REAL NOT NULL,
	rotational_speed REAL NOT NULL,
	torque           REAL NOT NULL,
	label            INTEGER NOT NULL,
	PRIMARY KEY (run_id, row_index),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// tsLayout is fixed-width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded replay.
type Run struct {
	ID         string
	Source     string
	Model      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Rows       int
	Failures   int
	Status     string // running | completed | cancelled | failed
}

// Store keeps replay history in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	// One connection keeps ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun records a new run and returns its id.
func (s *Store) BeginRun(ctx context.Context, source, modelName string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, source, model, started_at) VALUES (?, ?, ?, ?)`,
		id, source, modelName, time.Now().UTC().Format(tsLayout),
	)
	if err != nil {
		return "", fmt.Errorf("history: begin run: %w", err)
	}
	return id, nil
}

// RecordOutcome stores one processed row of a run.
func (s *Store) RecordOutcome(ctx context.Context, runID string, o model.Outcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, row_index, ts, temperature, rotational_speed, torque, label)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, o.Row.Index, o.Timestamp.UTC().Format(tsLayout),
		o.Row.Temperature, o.Row.RotationalSpeed, o.Row.Torque, int(o.Label),
	)
	if err != nil {
		return fmt.Errorf("history: record row %d: %w", o.Row.Index, err)
	}
	return nil
}

// FinishRun stamps the run's final counts and status from its stored rows.
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
			finished_at = ?,
			status = ?,
			row_count = (SELECT COUNT(*) FROM outcomes WHERE run_id = ?),
			failure_count = (SELECT COUNT(*) FROM outcomes WHERE run_id = ? AND label = 1)
		 WHERE run_id = ?`,
		time.Now().UTC().Format(tsLayout), status, runID, runID, runID,
	)
	if err != nil {
		return fmt.Errorf("history: finish run: %w", err)
	}
	return nil
}

// Runs lists the most recent runs first, at most limit of them.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, source, model, started_at, COALESCE(finished_at, ''), row_count, failure_count, status
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Source, &r.Model, &started, &finished, &r.Rows, &r.Failures, &r.Status); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(tsLayout, started)
		if finished != "" {
			r.FinishedAt, _ = time.Parse(tsLayout, finished)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Outcomes returns a run's rows in row order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]model.Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_index, ts, temperature, rotational_speed, torque, label
		 FROM outcomes WHERE run_id = ? ORDER BY row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: list outcomes: %w", err)
	}
	defer rows.Close()

	var out []model.Outcome
	for rows.Next() {
		var o model.Outcome
		var ts string
		var label int64
		if err := rows.Scan(&o.Row.Index, &ts, &o.Row.Temperature, &o.Row.RotationalSpeed, &o.Row.Torque, &label); err != nil {
			return nil, fmt.Errorf("history: scan outcome: %w", err)
		}
		o.Timestamp, _ = time.Parse(tsLayout, ts)
		o.Label, err = model.ParseLabel(label)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
