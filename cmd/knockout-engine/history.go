// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/knockout-engine/internal/history"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse recorded search runs (list, show, export)",
	Long: `History reads the SQLite database that search writes with --history.
Use subcommands to list runs, show one run's evaluations, or export.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(context.Background(), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-8s  %-16s  %-20s  %-20s  %4s  %9s  %8s\n",
		"Run", "Started", "Model", "Production", "Size", "Evaluated", "Accepted")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 99))
	for _, r := range runs {
		accepted := fmt.Sprintf("%d", r.Accepted)
		if r.Cancelled {
			accepted += "*"
		}
		fmt.Fprintf(os.Stdout, "%-8s  %-16s  %-20s  %-20s  %4d  %9d  %8s\n",
			shortID(r.ID), r.Started.Local().Format("2006-01-02 15:04"),
			clip(r.ModelID, 20), clip(r.ProductionReaction, 20),
			r.MaxKnockoutSize, r.Evaluated, accepted)
	}
	fmt.Fprintf(os.Stdout, "\n%d runs (* interrupted)\n", len(runs))
	return nil
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run's evaluations",
	Long: `Show prints one run's settings and its evaluations. The run id may be
abbreviated to any unique prefix.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	run, err := store.Run(ctx, args[0])
	if err != nil {
		return err
	}
	opts := queryOptsFromFlags(cmd)
	opts.RunID = run.ID
	evals, err := store.Results(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history.ExportRun{Run: run, Evaluations: evals})
	}

	fmt.Printf("Run:        %s\n", run.ID)
	fmt.Printf("Model:      %s\n", run.ModelID)
	fmt.Printf("Production: %s (%s)\n", run.ProductionReaction, run.ProductionTarget)
	fmt.Printf("Growth:     %s\n", run.GrowthObjective)
	fmt.Printf("Search:     %s knockouts up to size %d, pool %d, method %s\n",
		run.PoolKind, run.MaxKnockoutSize, run.PoolSize, run.Method)
	if run.BaselineGrowth != nil {
		fmt.Printf("Baseline:   growth %.6g, floor %.6g, production %.6g\n",
			*run.BaselineGrowth, deref(run.GrowthFloor), deref(run.BaselineProduction))
	}
	fmt.Println()

	if len(evals) == 0 {
		fmt.Println("No evaluations match.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-4s  %-40s  %-14s  %12s  %12s\n", "Rank", "Knockouts", "Status", "Growth", "Production")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))
	for _, e := range evals {
		rank := "-"
		if e.Rank > 0 {
			rank = fmt.Sprintf("%d", e.Rank)
		}
		fmt.Fprintf(os.Stdout, "%-4s  %-40s  %-14s  %12s  %12s\n",
			rank, clip(e.Candidate.String(), 40), e.Status, flux(e.Growth), flux(e.Production))
	}
	fmt.Fprintf(os.Stdout, "\n%d evaluations\n", len(evals))
	return nil
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export runs and evaluations to YAML or JSON",
	Long: `Export writes recorded runs with their evaluations to a file. Supports
the same filters as show; --run restricts the export to one run.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	opts := queryOptsFromFlags(cmd)
	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		run, err := store.Run(ctx, runID)
		if err != nil {
			return err
		}
		opts.RunID = run.ID
	}

	path := args[0]
	switch format {
	case "yaml", "":
		err = store.ExportYAML(ctx, path, opts)
	case "json":
		err = store.ExportJSON(ctx, path, opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

// --- shared helpers ---

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	if f := cmd.Flags().Lookup("history"); f != nil {
		if err := viper.BindPFlag("history.path", f); err != nil {
			return nil, err
		}
	}
	path := viper.GetString("history.path")
	if path == "" {
		return nil, fmt.Errorf("history database required: pass --history or set history.path in the config file")
	}
	return history.Open(path)
}

func queryOptsFromFlags(cmd *cobra.Command) history.QueryOptions {
	accepted, _ := cmd.Flags().GetBool("accepted")
	status, _ := cmd.Flags().GetString("status")
	maxSize, _ := cmd.Flags().GetInt("max-size")
	limit, _ := cmd.Flags().GetInt("limit")
	return history.QueryOptions{
		AcceptedOnly: accepted,
		Status:       types.Status(status),
		MaxSize:      maxSize,
		Limit:        limit,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func flux(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.6g", *v)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func init() {
	historyCmd.PersistentFlags().String("history", "", "SQLite history database")

	historyListCmd.Flags().Int("limit", 20, "maximum runs to list (0 = all)")
	historyListCmd.Flags().Bool("json", false, "output as JSON")

	for _, c := range []*cobra.Command{historyShowCmd, historyExportCmd} {
		c.Flags().Bool("accepted", false, "only ranked candidates")
		c.Flags().String("status", "", "filter by status (optimal, growth_limited, infeasible, ...)")
		c.Flags().Int("max-size", 0, "only knockout sets up to this size")
		c.Flags().Int("limit", 0, "maximum evaluations (0 = all)")
	}
	historyShowCmd.Flags().Bool("json", false, "output as JSON")
	historyExportCmd.Flags().String("run", "", "export only this run (id or prefix)")
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
