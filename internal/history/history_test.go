package history

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/knockout-engine/internal/engine"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func result(ordinal int, status types.Status, growth, production float64, targets ...string) types.EvaluationResult {
	r := types.EvaluationResult{
		Candidate: types.Candidate{Kind: types.TargetReaction, Targets: targets},
		Ordinal:   ordinal,
		Status:    status,
		Duration:  time.Millisecond,
	}
	r.Growth = types.Float(growth)
	if status == types.StatusOptimal {
		r.Production = types.Float(production)
	} else {
		r.Message = "growth below floor"
	}
	return r
}

func sampleReport(id string, started time.Time) *engine.Report {
	cfg := types.DefaultSearchConfig()
	cfg.ProductionTarget = "mev"
	cfg.MaxKnockoutSize = 2

	results := []types.EvaluationResult{
		result(0, types.StatusGrowthLimited, 0, 0, "HEX"),
		result(1, types.StatusOptimal, 6.5, 1.9, "ACK"),
		result(2, types.StatusOptimal, 6.0, 2.4, "PGI"),
		result(3, types.StatusOptimal, 6.6, 1.3, "ACK", "PGI"),
	}
	return &engine.Report{
		RunID:  id,
		Config: cfg,
		Baseline: &types.Baseline{
			GrowthObjective: "BIO", ProductionReaction: "EX_mev",
			Growth: 6.67, GrowthFraction: 0.8, GrowthFloor: 5.33, Production: 1.33,
		},
		ModelID:      "toy",
		RunKey:       "key-" + id,
		Pool:         []string{"HEX", "ACK", "PGI"},
		Generated:    4,
		Evaluated:    4,
		StatusCounts: map[types.Status]int{types.StatusOptimal: 3, types.StatusGrowthLimited: 1},
		Results:      results,
		Accepted:     []types.EvaluationResult{results[2], results[1]},
		Started:      started,
		Finished:     started.Add(2 * time.Second),
	}
}

// --- schema tests ---

func TestOpenCreatesSchema(t *testing.T) {
	store := testStore(t)

	for _, table := range []string{"runs", "evaluations"} {
		var count int
		err := store.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") should fail")
	}
}

// --- record and list tests ---

func TestRecordAndListRuns(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Record(ctx, sampleReport("run-old", base)); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(ctx, sampleReport("run-new", base.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-new" {
		t.Errorf("first run = %q, want newest first", runs[0].ID)
	}

	r := runs[1]
	if r.ModelID != "toy" || r.ProductionReaction != "EX_mev" || r.GrowthObjective != "BIO" {
		t.Errorf("run fields = %+v", r)
	}
	if r.Evaluated != 4 || r.Accepted != 2 || r.PoolSize != 3 {
		t.Errorf("counts = evaluated %d, accepted %d, pool %d", r.Evaluated, r.Accepted, r.PoolSize)
	}
	if r.BaselineProduction == nil || *r.BaselineProduction != 1.33 {
		t.Errorf("BaselineProduction = %v, want 1.33", r.BaselineProduction)
	}
	if !r.Started.Equal(base) {
		t.Errorf("Started = %v, want %v", r.Started, base)
	}
	if r.Config.ProductionTarget != "mev" || r.Config.MaxKnockoutSize != 2 {
		t.Errorf("Config = %+v", r.Config)
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("ListRuns(1) returned %d runs", len(limited))
	}
}

func TestRecordDuplicateRunFails(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	rep := sampleReport("dup", time.Now())
	if err := store.Record(ctx, rep); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(ctx, rep); err == nil {
		t.Fatal("recording the same run twice should fail")
	}

	// The failed transaction leaves no extra evaluations behind.
	evals, err := store.Results(ctx, QueryOptions{RunID: "dup"})
	if err != nil {
		t.Fatal(err)
	}
	if len(evals) != 4 {
		t.Errorf("got %d evaluations, want 4", len(evals))
	}
}

func TestRecordEmptyRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	rep := &engine.Report{
		RunID:    "empty",
		Config:   types.DefaultSearchConfig(),
		Accepted: []types.EvaluationResult{},
		Started:  time.Now(),
	}
	if err := store.Record(ctx, rep); err != nil {
		t.Fatal(err)
	}
	r, err := store.Run(ctx, "empty")
	if err != nil {
		t.Fatal(err)
	}
	if r.BaselineGrowth != nil {
		t.Errorf("BaselineGrowth = %v, want nil", *r.BaselineGrowth)
	}
}

func TestRunByPrefix(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	for _, id := range []string{"abc123", "abd456"} {
		if err := store.Record(ctx, sampleReport(id, time.Now())); err != nil {
			t.Fatal(err)
		}
	}

	r, err := store.Run(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if r.ID != "abc123" {
		t.Errorf("Run(abc) = %q", r.ID)
	}
	if _, err := store.Run(ctx, "ab"); err == nil {
		t.Error("ambiguous prefix should fail")
	}
	if _, err := store.Run(ctx, "zzz"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

// --- result filter tests ---

func TestResultsFilters(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	if err := store.Record(ctx, sampleReport("r1", time.Now())); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{"all", QueryOptions{RunID: "r1"}, []string{"reaction:HEX", "reaction:ACK", "reaction:PGI", "reaction:ACK+PGI"}},
		{"accepted by rank", QueryOptions{AcceptedOnly: true}, []string{"reaction:PGI", "reaction:ACK"}},
		{"status", QueryOptions{Status: types.StatusGrowthLimited}, []string{"reaction:HEX"}},
		{"singles", QueryOptions{MaxSize: 1, Limit: 2}, []string{"reaction:HEX", "reaction:ACK"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evals, err := store.Results(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, e := range evals {
				got = append(got, e.Candidate.Key())
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("result %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestResultsRoundTripFields(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	if err := store.Record(ctx, sampleReport("r1", time.Now())); err != nil {
		t.Fatal(err)
	}

	evals, err := store.Results(ctx, QueryOptions{AcceptedOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	top := evals[0]
	if top.Rank != 1 || top.RunID != "r1" || top.Ordinal != 2 {
		t.Errorf("rank %d, run %s, ordinal %d", top.Rank, top.RunID, top.Ordinal)
	}
	if top.Production == nil || *top.Production != 2.4 {
		t.Errorf("Production = %v, want 2.4", top.Production)
	}
	if top.Duration != time.Millisecond {
		t.Errorf("Duration = %v", top.Duration)
	}

	limited, err := store.Results(ctx, QueryOptions{Status: types.StatusGrowthLimited})
	if err != nil {
		t.Fatal(err)
	}
	if limited[0].Production != nil {
		t.Errorf("growth-limited Production = %v, want nil", *limited[0].Production)
	}
	if limited[0].Message == "" {
		t.Error("Message not stored")
	}
}

func TestDeleteCascades(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	if err := store.Record(ctx, sampleReport("gone", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatal(err)
	}
	evals, err := store.Results(ctx, QueryOptions{RunID: "gone"})
	if err != nil {
		t.Fatal(err)
	}
	if len(evals) != 0 {
		t.Errorf("got %d evaluations after delete", len(evals))
	}
	if err := store.Delete(ctx, "gone"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

// --- export tests ---

func TestExportYAML(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	if err := store.Record(ctx, sampleReport("r1", time.Now())); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out", "export.yaml")
	if err := store.ExportYAML(ctx, path, QueryOptions{AcceptedOnly: true}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries []ExportRun
	if err := yaml.Unmarshal(data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || len(entries[0].Evaluations) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Evaluations[0].Candidate.Key() != "reaction:PGI" {
		t.Errorf("first exported = %s", entries[0].Evaluations[0].Candidate.Key())
	}
}

func TestExportJSON(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	if err := store.Record(ctx, sampleReport("r1", time.Now())); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "export.json")
	if err := store.ExportJSON(ctx, path, QueryOptions{RunID: "r1"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries []ExportRun
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Run.ID != "r1" || len(entries[0].Evaluations) != 4 {
		t.Errorf("entries = %+v", entries)
	}
}
