// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ExportRun is a run with its filtered evaluations, as written by the
// export commands.
type ExportRun struct {
	Run         RunSummary   `json:"run" yaml:"run"`
	Evaluations []Evaluation `json:"evaluations" yaml:"evaluations"`
}

// ExportYAML writes runs and evaluations matching opts to path.
func (s *Store) ExportYAML(ctx context.Context, path string, opts QueryOptions) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return writeFile(path, data)
}

// ExportJSON writes runs and evaluations matching opts to path.
func (s *Store) ExportJSON(ctx context.Context, path string, opts QueryOptions) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) exportEntries(ctx context.Context, opts QueryOptions) ([]ExportRun, error) {
	var runs []RunSummary
	if opts.RunID != "" {
		rs, err := s.Run(ctx, opts.RunID)
		if err != nil {
			return nil, err
		}
		runs = []RunSummary{rs}
	} else {
		var err error
		if runs, err = s.ListRuns(ctx, 0); err != nil {
			return nil, err
		}
	}

	entries := make([]ExportRun, 0, len(runs))
	for _, rs := range runs {
		q := opts
		q.RunID = rs.ID
		evals, err := s.Results(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("querying for export: %w", err)
		}
		if evals == nil {
			evals = []Evaluation{}
		}
		entries = append(entries, ExportRun{Run: rs, Evaluations: evals})
	}
	return entries, nil
}
