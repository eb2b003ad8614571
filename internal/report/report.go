// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders search results and persists them as run files.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/knockout-engine/internal/engine"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

// Summary holds the counts of a run.
type Summary struct {
	PoolSize     int                  `json:"pool_size" yaml:"pool_size"`
	Sampled      bool                 `json:"sampled" yaml:"sampled"`
	Generated    int                  `json:"generated" yaml:"generated"`
	Evaluated    int                  `json:"evaluated" yaml:"evaluated"`
	Pruned       int                  `json:"pruned" yaml:"pruned"`
	Cached       int                  `json:"cached" yaml:"cached"`
	Discarded    int                  `json:"discarded" yaml:"discarded"`
	StatusCounts map[types.Status]int `json:"status_counts" yaml:"status_counts"`
	Cancelled    bool                 `json:"cancelled" yaml:"cancelled"`
}

// RunFile is the persisted form of a search: configuration, baseline,
// ranked candidates and counts. Per-candidate results of rejected
// candidates live in the history database, not here.
type RunFile struct {
	RunID    string                   `json:"run_id" yaml:"run_id"`
	ModelID  string                   `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	Config   types.SearchConfig       `json:"config" yaml:"config"`
	Baseline *types.Baseline          `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	Accepted []types.EvaluationResult `json:"accepted" yaml:"accepted"`
	Summary  Summary                  `json:"summary" yaml:"summary"`
	Started  time.Time                `json:"started" yaml:"started"`
	Finished time.Time                `json:"finished" yaml:"finished"`
}

// FromReport builds the run file for rep.
func FromReport(rep *engine.Report) *RunFile {
	accepted := rep.Accepted
	if accepted == nil {
		accepted = []types.EvaluationResult{}
	}
	return &RunFile{
		RunID:    rep.RunID,
		ModelID:  rep.ModelID,
		Config:   rep.Config,
		Baseline: rep.Baseline,
		Accepted: accepted,
		Summary: Summary{
			PoolSize:     len(rep.Pool),
			Sampled:      rep.Sampled,
			Generated:    rep.Generated,
			Evaluated:    rep.Evaluated,
			Pruned:       rep.Pruned,
			Cached:       rep.Cached,
			Discarded:    rep.Discarded,
			StatusCounts: rep.StatusCounts,
			Cancelled:    rep.Cancelled,
		},
		Started:  rep.Started,
		Finished: rep.Finished,
	}
}

// WriteRunFile writes rf as YAML to path, creating parent directories.
func WriteRunFile(path string, rf *RunFile) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating run directory: %w", err)
		}
	}
	data, err := yaml.Marshal(rf)
	if err != nil {
		return fmt.Errorf("marshaling run file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadRunFile loads a run file written by WriteRunFile.
func ReadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run file: %w", err)
	}
	var rf RunFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing run file %s: %w", path, err)
	}
	if rf.Accepted == nil {
		rf.Accepted = []types.EvaluationResult{}
	}
	return &rf, nil
}

// FormatJSON writes rf as indented JSON.
func FormatJSON(w io.Writer, rf *RunFile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rf)
}

// FormatTable writes a human-readable summary of rf: the baseline, the
// ranked candidates and the status counts.
func FormatTable(w io.Writer, rf *RunFile) error {
	cfg := rf.Config
	fmt.Fprintf(w, "Run %s", rf.RunID)
	if rf.ModelID != "" {
		fmt.Fprintf(w, " on %s", rf.ModelID)
	}
	fmt.Fprintln(w)

	if b := rf.Baseline; b != nil {
		fmt.Fprintf(w, "Target:   %s (%s)\n", cfg.ProductionTarget, b.ProductionReaction)
		fmt.Fprintf(w, "Baseline: growth %.6g on %s, floor %.6g (%.0f%%), production %.6g\n",
			b.Growth, b.GrowthObjective, b.GrowthFloor, b.GrowthFraction*100, b.Production)
	} else {
		fmt.Fprintf(w, "Target:   %s\n", cfg.ProductionTarget)
	}
	fmt.Fprintf(w, "Search:   %s knockouts up to size %d, %s, pool %d",
		cfg.PoolKind, cfg.MaxKnockoutSize, cfg.Method, rf.Summary.PoolSize)
	if rf.Summary.Sampled {
		fmt.Fprintf(w, " (sampled, seed %d)", cfg.Seed)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	switch {
	case rf.Summary.Evaluated == 0:
		fmt.Fprintln(w, "No candidates evaluated.")
	case len(rf.Accepted) == 0:
		fmt.Fprintf(w, "No candidates met the growth floor and a %.0f%% production gain.\n", cfg.ProductionMargin*100)
	default:
		fmt.Fprintf(w, "%-4s  %-40s  %-12s  %-12s  %s\n", "Rank", "Knockout", "Growth", "Production", "Gain")
		fmt.Fprintln(w, strings.Repeat("-", 84))
		for i, r := range rf.Accepted {
			fmt.Fprintf(w, "%-4d  %-40s  %-12s  %-12s  %s\n",
				i+1, truncate(r.Candidate.String(), 40), value(r.Growth), value(r.Production), gain(r, rf.Baseline))
		}
		fmt.Fprintf(w, "\n%d accepted of %d evaluated\n", len(rf.Accepted), rf.Summary.Evaluated)
	}

	s := rf.Summary
	fmt.Fprintf(w, "\ngenerated: %d, evaluated: %d, pruned: %d, cached: %d", s.Generated, s.Evaluated, s.Pruned, s.Cached)
	if s.Discarded > 0 {
		fmt.Fprintf(w, ", discarded: %d", s.Discarded)
	}
	fmt.Fprintln(w)
	if counts := statusLine(s.StatusCounts); counts != "" {
		fmt.Fprintln(w, counts)
	}
	if s.Cancelled {
		fmt.Fprintln(w, "Search was cancelled; results are partial.")
	}
	return nil
}

func statusLine(counts map[types.Status]int) string {
	var parts []string
	for _, st := range types.AllStatuses {
		if n := counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", st, n))
		}
	}
	// Statuses from newer versions still show up.
	var extra []string
	for st, n := range counts {
		if n > 0 && !slices.Contains(types.AllStatuses, st) {
			extra = append(extra, fmt.Sprintf("%s: %d", st, n))
		}
	}
	slices.Sort(extra)
	return strings.Join(append(parts, extra...), ", ")
}

func value(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.6g", *v)
}

func gain(r types.EvaluationResult, b *types.Baseline) string {
	if r.Production == nil || b == nil {
		return "-"
	}
	if b.Production == 0 {
		if *r.Production > 0 {
			return "new"
		}
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", (*r.Production/b.Production-1)*100)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
