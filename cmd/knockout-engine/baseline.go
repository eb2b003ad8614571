// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/knockout-engine/internal/evaluate"
	"github.com/pdiddy/knockout-engine/internal/model"
	"github.com/pdiddy/knockout-engine/internal/scope"
	"github.com/pdiddy/knockout-engine/internal/solver"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline [model]",
	Short: "Compute wild-type growth and production",
	Long: `Baseline solves the unmodified model for maximum growth, then for
maximum production with growth held at the floor. These are the values
search compares every knockout against.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBaseline,
}

func init() {
	addTargetFlags(baselineCmd.Flags())
	baselineCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(baselineCmd)
}

func runBaseline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	m, err := loadModel(cfg.Search.ModelPath)
	if err != nil {
		return err
	}

	s := cfg.Search
	growthID, err := model.ResolveObjective(m, s.GrowthObjective)
	if err != nil {
		return err
	}
	production, err := model.ResolveTarget(m, s.ProductionTarget, s.AddDemand)
	if err != nil {
		return err
	}
	if production == growthID {
		return &types.ConfigError{Field: "production_target", Reason: "resolves to the growth objective " + growthID}
	}

	b, err := evaluate.ComputeBaseline(context.Background(), scope.NewManager(m), solver.NewSimplex(), evaluate.BaselineOptions{
		GrowthObjective: growthID,
		Production:      production,
		GrowthFraction:  s.GrowthFloorFraction,
		Method:          s.Method,
	})
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	}
	fmt.Printf("Model:        %s\n", m.ID())
	fmt.Printf("Growth:       %s = %.6g\n", b.GrowthObjective, b.Growth)
	fmt.Printf("Growth floor: %.6g (%.0f%%)\n", b.GrowthFloor, b.GrowthFraction*100)
	fmt.Printf("Production:   %s = %.6g\n", b.ProductionReaction, b.Production)
	return nil
}
