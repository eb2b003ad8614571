// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/knockout-engine/internal/checkpoint"
	"github.com/pdiddy/knockout-engine/internal/engine"
	"github.com/pdiddy/knockout-engine/internal/history"
	"github.com/pdiddy/knockout-engine/internal/report"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [model]",
	Short: "Screen knockout sets for higher production",
	Long: `Search computes the wild-type baseline, then evaluates every knockout
set up to --max-size from the candidate pool. A candidate qualifies when
growth stays at or above the floor and production beats the baseline by
more than the margin. Qualifying candidates are ranked by production,
then growth.

Interrupting a search (Ctrl-C) stops dispatch and reports the candidates
finished so far. With --checkpoint-dir, finished evaluations are cached so
a repeated run resumes where the last one stopped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	d := types.DefaultSearchConfig()
	fs := searchCmd.Flags()
	addTargetFlags(fs)
	fs.Int("max-size", d.MaxKnockoutSize, "largest knockout set size")
	fs.String("kind", string(d.PoolKind), "knockout targets: reaction or gene")
	fs.String("source", string(d.PoolSource), "candidate pool: all, neighborhood, or list")
	fs.StringSlice("pool", nil, "explicit pool members (with --source list)")
	fs.StringSlice("exclude-prefix", d.ExcludePrefixes, "reaction id prefixes never knocked out")
	fs.Int("ceiling", d.PoolSampleCeiling, "largest pool evaluated as is (0 = no limit)")
	fs.String("sampling", "", "oversized pool policy: sample or reject")
	fs.Int64("seed", d.Seed, "seed for pool sampling")
	fs.Float64("margin", d.ProductionMargin, "required relative production gain over baseline")
	fs.Int("top", d.TopN, "number of ranked candidates to report")
	fs.Duration("timeout", d.TimeoutPerCandidate, "time limit per candidate (0 = none)")
	fs.Int("workers", d.Workers, "parallel evaluators (0 = number of CPUs)")
	fs.Bool("prune", d.PruneLethal, "skip supersets of knockout sets that fail the growth floor")
	fs.String("history", "", "record the run in this SQLite database")
	fs.String("checkpoint-dir", "", "cache finished evaluations in this directory")

	fs.Bool("json", false, "output the report as JSON")
	fs.String("save", "", "write the run file (YAML) to this path")
	fs.Bool("quiet", false, "suppress progress output")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address during the run (e.g. :9090)")
	fs.Bool("trace", false, "write OpenTelemetry spans to stderr")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := engine.Validate(cfg.Search); err != nil {
		return err
	}
	m, err := loadModel(cfg.Search.ModelPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if traceOn, _ := cmd.Flags().GetBool("trace"); traceOn {
		shutdown, err := startTracing(os.Stderr)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		shutdown := serveMetrics(addr)
		defer shutdown(context.Background())
	}

	opts := engine.Options{Config: cfg.Search, Logger: logger, Progress: os.Stderr}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		opts.Progress = io.Discard
	}
	if cfg.Checkpoint.Dir != "" {
		store, err := checkpoint.Open(checkpoint.FromConfig(cfg.Checkpoint, logger))
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Checkpoint = store
	}

	rep, err := engine.New(opts).Run(ctx, m)
	if err != nil {
		return err
	}

	if cfg.History.Path != "" {
		if err := recordHistory(cfg.History.Path, rep); err != nil {
			return err
		}
	}

	rf := report.FromReport(rep)
	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := report.WriteRunFile(path, rf); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Run saved to %s\n", filepath.Clean(path))
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		err = report.FormatJSON(os.Stdout, rf)
	} else {
		err = report.FormatTable(os.Stdout, rf)
	}
	if err != nil {
		return err
	}

	if rep.Cancelled {
		return errors.New("search interrupted; results are partial")
	}
	return nil
}

func recordHistory(path string, rep *engine.Report) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	// The run context may already be cancelled; recording still completes.
	if err := store.Record(context.Background(), rep); err != nil {
		return fmt.Errorf("recording run history: %w", err)
	}
	logger.Info("run recorded", "run_id", rep.RunID, "history", path)
	return nil
}
