// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history records search runs and their evaluations in a SQLite
// database so past screens can be listed, filtered and exported.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/knockout-engine/internal/engine"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

// ErrRunNotFound is returned when a run id is not in the database.
var ErrRunNotFound = errors.New("history: run not found")

// Store manages the run history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path, creating the parent
// directory and schema as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history: database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started TEXT NOT NULL,
			finished TEXT,
			model_id TEXT,
			run_key TEXT,
			production_target TEXT NOT NULL,
			production_reaction TEXT,
			growth_objective TEXT,
			method TEXT,
			pool_kind TEXT,
			max_knockout_size INTEGER,
			pool_size INTEGER,
			sampled INTEGER,
			generated INTEGER,
			evaluated INTEGER,
			pruned INTEGER,
			cached INTEGER,
			accepted INTEGER,
			cancelled INTEGER,
			baseline_growth REAL,
			growth_floor REAL,
			baseline_production REAL,
			config TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS evaluations (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			candidate TEXT NOT NULL,
			kind TEXT NOT NULL,
			targets TEXT NOT NULL,
			size INTEGER NOT NULL,
			status TEXT NOT NULL,
			growth REAL,
			production REAL,
			total_flux REAL,
			message TEXT,
			duration_ns INTEGER,
			rank INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_run ON evaluations(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_status ON evaluations(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores a run and all its evaluations in one transaction.
// Accepted candidates carry their 1-based rank.
func (s *Store) Record(ctx context.Context, rep *engine.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cfgJSON, err := json.Marshal(rep.Config)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	var (
		production                 string
		growthObjective            = rep.Config.GrowthObjective
		growth, floor, baselineOut sql.NullFloat64
	)
	if b := rep.Baseline; b != nil {
		production, growthObjective = b.ProductionReaction, b.GrowthObjective
		growth = sql.NullFloat64{Float64: b.Growth, Valid: true}
		floor = sql.NullFloat64{Float64: b.GrowthFloor, Valid: true}
		baselineOut = sql.NullFloat64{Float64: b.Production, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started, finished, model_id, run_key, production_target,
			production_reaction, growth_objective, method, pool_kind, max_knockout_size,
			pool_size, sampled, generated, evaluated, pruned, cached, accepted, cancelled,
			baseline_growth, growth_floor, baseline_production, config)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, formatTime(rep.Started), formatTime(rep.Finished), rep.ModelID, rep.RunKey,
		rep.Config.ProductionTarget, production, growthObjective, string(rep.Config.Method),
		string(rep.Config.PoolKind), rep.Config.MaxKnockoutSize, len(rep.Pool), rep.Sampled,
		rep.Generated, rep.Evaluated, rep.Pruned, rep.Cached, len(rep.Accepted), rep.Cancelled,
		growth, floor, baselineOut, string(cfgJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	rank := make(map[string]int, len(rep.Accepted))
	for i, r := range rep.Accepted {
		rank[r.Candidate.Key()] = i + 1
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO evaluations (run_id, ordinal, candidate, kind, targets, size, status,
			growth, production, total_flux, message, duration_ns, rank)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rep.Results {
		targetsJSON, _ := json.Marshal(r.Candidate.Targets)
		var pos sql.NullInt64
		if n, ok := rank[r.Candidate.Key()]; ok {
			pos = sql.NullInt64{Int64: int64(n), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			rep.RunID, r.Ordinal, r.Candidate.Key(), string(r.Candidate.Kind), string(targetsJSON),
			r.Candidate.Size(), string(r.Status), nullable(r.Growth), nullable(r.Production),
			nullable(r.TotalFlux), r.Message, int64(r.Duration), pos,
		)
		if err != nil {
			return fmt.Errorf("inserting evaluation %s: %w", r.Candidate.Key(), err)
		}
	}

	return tx.Commit()
}

// Delete removes a run and its evaluations.
func (s *Store) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s.String)
	return t
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func pointer(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return types.Float(v.Float64)
}
