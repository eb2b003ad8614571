// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/knockout-engine/pkg/types"
)

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID                 string                 `json:"id" yaml:"id"`
	Started            time.Time              `json:"started" yaml:"started"`
	Finished           time.Time              `json:"finished" yaml:"finished"`
	ModelID            string                 `json:"model_id" yaml:"model_id"`
	RunKey             string                 `json:"run_key,omitempty" yaml:"run_key,omitempty"`
	ProductionTarget   string                 `json:"production_target" yaml:"production_target"`
	ProductionReaction string                 `json:"production_reaction" yaml:"production_reaction"`
	GrowthObjective    string                 `json:"growth_objective" yaml:"growth_objective"`
	Method             types.EvaluationMethod `json:"method" yaml:"method"`
	PoolKind           types.TargetKind       `json:"pool_kind" yaml:"pool_kind"`
	MaxKnockoutSize    int                    `json:"max_knockout_size" yaml:"max_knockout_size"`
	PoolSize           int                    `json:"pool_size" yaml:"pool_size"`
	Sampled            bool                   `json:"sampled" yaml:"sampled"`
	Generated          int                    `json:"generated" yaml:"generated"`
	Evaluated          int                    `json:"evaluated" yaml:"evaluated"`
	Pruned             int                    `json:"pruned" yaml:"pruned"`
	Cached             int                    `json:"cached" yaml:"cached"`
	Accepted           int                    `json:"accepted" yaml:"accepted"`
	Cancelled          bool                   `json:"cancelled" yaml:"cancelled"`

	// Baseline values are nil for runs that evaluated nothing.
	BaselineGrowth     *float64 `json:"baseline_growth,omitempty" yaml:"baseline_growth,omitempty"`
	GrowthFloor        *float64 `json:"growth_floor,omitempty" yaml:"growth_floor,omitempty"`
	BaselineProduction *float64 `json:"baseline_production,omitempty" yaml:"baseline_production,omitempty"`

	Config types.SearchConfig `json:"config" yaml:"config"`
}

const runColumns = `id, started, finished, model_id, run_key, production_target,
	production_reaction, growth_objective, method, pool_kind, max_knockout_size,
	pool_size, sampled, generated, evaluated, pruned, cached, accepted, cancelled,
	baseline_growth, growth_floor, baseline_production, config`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunSummary, error) {
	var (
		rs                        RunSummary
		started, finished         sql.NullString
		modelID, runKey           sql.NullString
		production, growthObj     sql.NullString
		method, kind, cfgJSON     sql.NullString
		growth, floor, baselinePr sql.NullFloat64
	)
	if err := row.Scan(
		&rs.ID, &started, &finished, &modelID, &runKey, &rs.ProductionTarget,
		&production, &growthObj, &method, &kind, &rs.MaxKnockoutSize,
		&rs.PoolSize, &rs.Sampled, &rs.Generated, &rs.Evaluated, &rs.Pruned, &rs.Cached,
		&rs.Accepted, &rs.Cancelled, &growth, &floor, &baselinePr, &cfgJSON,
	); err != nil {
		return RunSummary{}, err
	}
	rs.Started, rs.Finished = parseTime(started), parseTime(finished)
	rs.ModelID, rs.RunKey = modelID.String, runKey.String
	rs.ProductionReaction, rs.GrowthObjective = production.String, growthObj.String
	rs.Method = types.EvaluationMethod(method.String)
	rs.PoolKind = types.TargetKind(kind.String)
	rs.BaselineGrowth, rs.GrowthFloor, rs.BaselineProduction = pointer(growth), pointer(floor), pointer(baselinePr)
	if cfgJSON.Valid {
		if err := json.Unmarshal([]byte(cfgJSON.String), &rs.Config); err != nil {
			return RunSummary{}, fmt.Errorf("decoding config of run %s: %w", rs.ID, err)
		}
	}
	return rs, nil
}

// ListRuns returns recorded runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		rs, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, rs)
	}
	return runs, rows.Err()
}

// Run returns one run. A unique id prefix is accepted.
func (s *Store) Run(ctx context.Context, id string) (RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, length(?)) = ? ORDER BY id = ? DESC LIMIT 2`,
		id, id, id)
	if err != nil {
		return RunSummary{}, fmt.Errorf("querying run: %w", err)
	}
	defer rows.Close()

	var found []RunSummary
	for rows.Next() {
		rs, err := scanRun(rows)
		if err != nil {
			return RunSummary{}, fmt.Errorf("scanning run: %w", err)
		}
		found = append(found, rs)
	}
	if err := rows.Err(); err != nil {
		return RunSummary{}, err
	}
	switch {
	case len(found) == 0:
		return RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case found[0].ID == id, len(found) == 1:
		return found[0], nil
	}
	return RunSummary{}, fmt.Errorf("run id prefix %q is ambiguous", id)
}

// QueryOptions filters evaluation queries.
type QueryOptions struct {
	// RunID restricts results to one run. Empty queries every run.
	RunID string

	// AcceptedOnly keeps ranked candidates, ordered by rank.
	AcceptedOnly bool

	// Status filters by result status.
	Status types.Status

	// MaxSize keeps candidates with at most this many targets. Zero disables.
	MaxSize int

	// Limit caps the result count. Zero means no limit.
	Limit int
}

// Evaluation is a stored evaluation with its run id and rank.
type Evaluation struct {
	RunID string `json:"run_id" yaml:"run_id"`

	// Rank is the 1-based position in the accepted list, or 0.
	Rank int `json:"rank,omitempty" yaml:"rank,omitempty"`

	types.EvaluationResult `yaml:",inline"`
}

// Results returns stored evaluations matching opts, in run and generation
// order, or by rank when AcceptedOnly is set.
func (s *Store) Results(ctx context.Context, opts QueryOptions) ([]Evaluation, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT e.run_id, e.ordinal, e.kind, e.targets, e.status, e.growth, e.production,
			e.total_flux, e.message, e.duration_ns, e.rank
		FROM evaluations e
		JOIN runs r ON r.id = e.run_id
		WHERE 1=1`)

	if opts.RunID != "" {
		qb.WriteString(` AND e.run_id = ?`)
		args = append(args, opts.RunID)
	}
	if opts.AcceptedOnly {
		qb.WriteString(` AND e.rank IS NOT NULL`)
	}
	if opts.Status != "" {
		qb.WriteString(` AND e.status = ?`)
		args = append(args, string(opts.Status))
	}
	if opts.MaxSize > 0 {
		qb.WriteString(` AND e.size <= ?`)
		args = append(args, opts.MaxSize)
	}

	if opts.AcceptedOnly {
		qb.WriteString(` ORDER BY r.started, e.run_id, e.rank`)
	} else {
		qb.WriteString(` ORDER BY r.started, e.run_id, e.ordinal`)
	}
	if opts.Limit > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying evaluations: %w", err)
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		var (
			ev                        Evaluation
			kind, targetsJSON, status string
			growth, production, total sql.NullFloat64
			message                   sql.NullString
			durationNS                int64
			rank                      sql.NullInt64
		)
		if err := rows.Scan(&ev.RunID, &ev.Ordinal, &kind, &targetsJSON, &status,
			&growth, &production, &total, &message, &durationNS, &rank); err != nil {
			return nil, fmt.Errorf("scanning evaluation: %w", err)
		}
		ev.Candidate.Kind = types.TargetKind(kind)
		if err := json.Unmarshal([]byte(targetsJSON), &ev.Candidate.Targets); err != nil {
			return nil, fmt.Errorf("decoding targets: %w", err)
		}
		ev.Status = types.Status(status)
		ev.Growth, ev.Production, ev.TotalFlux = pointer(growth), pointer(production), pointer(total)
		ev.Message = message.String
		ev.Duration = time.Duration(durationNS)
		ev.Rank = int(rank.Int64)
		out = append(out, ev)
	}
	return out, rows.Err()
}
