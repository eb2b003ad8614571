// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/knockout-engine/internal/scope"
	"github.com/pdiddy/knockout-engine/internal/solver"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

var (
	// ErrNoGrowth is returned when the unperturbed network cannot grow.
	ErrNoGrowth = errors.New("evaluate: wild-type growth is not positive")

	// ErrBaselineFailed is returned when a baseline solve is not optimal.
	ErrBaselineFailed = errors.New("evaluate: baseline solve failed")

	// ErrScopeOpen is returned when the baseline is requested on a network
	// that still has overrides applied.
	ErrScopeOpen = errors.New("evaluate: baseline needs an unperturbed network")
)

// BaselineOptions configures ComputeBaseline.
type BaselineOptions struct {
	GrowthObjective string
	Production      string
	GrowthFraction  float64
	Method          types.EvaluationMethod
}

// ComputeBaseline solves the unperturbed network for maximum growth, then
// for maximum production with growth held at GrowthFraction of that.
func ComputeBaseline(ctx context.Context, mgr *scope.Manager, s solver.Solver, opts BaselineOptions) (_ types.Baseline, err error) {
	if mgr.Depth() != 0 {
		return types.Baseline{}, ErrScopeOpen
	}
	net := mgr.Network()

	growth := s.Solve(ctx, net, solver.Request{Objective: opts.GrowthObjective, Sense: solver.Maximize})
	if growth.Status != solver.Optimal {
		return types.Baseline{}, fmt.Errorf("%w: growth solve %s: %v", ErrBaselineFailed, growth.Status, growth.Err)
	}
	if growth.ObjectiveValue <= 0 {
		return types.Baseline{}, fmt.Errorf("%w: %s reaches %g", ErrNoGrowth, opts.GrowthObjective, growth.ObjectiveValue)
	}

	b := types.Baseline{
		GrowthObjective:    opts.GrowthObjective,
		ProductionReaction: opts.Production,
		Growth:             growth.ObjectiveValue,
		GrowthFraction:     opts.GrowthFraction,
		GrowthFloor:        opts.GrowthFraction * growth.ObjectiveValue,
	}

	_, hi, err := net.Bounds(opts.GrowthObjective)
	if err != nil {
		return types.Baseline{}, err
	}
	floor, err := mgr.Open(map[string]scope.Override{opts.GrowthObjective: {Lower: b.GrowthFloor, Upper: hi}})
	if err != nil {
		return types.Baseline{}, fmt.Errorf("applying growth floor: %w", err)
	}
	defer func() {
		if cerr := floor.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	prod := s.Solve(ctx, net, solver.Request{
		Objective:    opts.Production,
		Sense:        solver.Maximize,
		Parsimonious: opts.Method == types.MethodPFBA,
	})
	if prod.Status != solver.Optimal {
		return types.Baseline{}, fmt.Errorf("%w: production solve %s: %v", ErrBaselineFailed, prod.Status, prod.Err)
	}
	b.Production = prod.ObjectiveValue
	return b, nil
}
