// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package solver defines the flux solver oracle the evaluator calls and a
// reference implementation on top of gonum's simplex.
package solver

import (
	"context"
	"errors"

	"github.com/pdiddy/knockout-engine/internal/model"
)

// Status is the outcome of one solve.
type Status string

const (
	Optimal    Status = "optimal"
	Infeasible Status = "infeasible"
	Unbounded  Status = "unbounded"
	Error      Status = "error"
	Timeout    Status = "timeout"
	Canceled   Status = "canceled"
)

// Sense is the optimization direction.
type Sense int

const (
	Maximize Sense = iota
	Minimize
)

func (s Sense) String() string {
	if s == Minimize {
		return "minimize"
	}
	return "maximize"
}

// Request describes one solve against the current bounds of a network.
type Request struct {
	// Objective is the reaction whose flux is optimized.
	Objective string

	Sense Sense

	// Parsimonious holds the objective at its optimum and then minimizes the
	// sum of absolute fluxes.
	Parsimonious bool
}

// Solution is the result of a solve. Fluxes and ObjectiveValue are only
// meaningful when Status is Optimal.
type Solution struct {
	Status         Status
	ObjectiveValue float64
	Fluxes         map[string]float64

	// TotalFlux is the sum of absolute fluxes, set by parsimonious solves.
	TotalFlux float64

	// Err carries the cause of a non-optimal status.
	Err error
}

// Solver computes optimal flux distributions. Implementations must not
// modify the network and must return promptly once ctx is done.
type Solver interface {
	Solve(ctx context.Context, net model.Network, req Request) Solution
}

// Func adapts a function to the Solver interface.
type Func func(ctx context.Context, net model.Network, req Request) Solution

func (f Func) Solve(ctx context.Context, net model.Network, req Request) Solution {
	return f(ctx, net, req)
}

// FromContext returns the solution reported when ctx ends before a solve
// finishes: Timeout for an expired deadline, Canceled otherwise.
func FromContext(ctx context.Context) Solution {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return Solution{Status: Timeout, Err: err}
	}
	return Solution{Status: Canceled, Err: err}
}
