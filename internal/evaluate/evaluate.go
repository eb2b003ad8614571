// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate scores knockout candidates: a growth solve with the
// knockout applied, then a production solve with growth held at the floor.
package evaluate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/knockout-engine/internal/scope"
	"github.com/pdiddy/knockout-engine/internal/solver"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

// Options configures an Evaluator.
type Options struct {
	// GrowthObjective is the biomass reaction.
	GrowthObjective string

	// Production is the resolved production reaction.
	Production string

	// Method selects fba or pfba for the production solve.
	Method types.EvaluationMethod

	// Timeout bounds all solves of one candidate. Zero means no limit.
	Timeout time.Duration

	Logger *slog.Logger
}

// Evaluator scores candidates against a baseline.
type Evaluator struct {
	solver solver.Solver
	opts   Options
	log    *slog.Logger
}

// New returns an Evaluator that calls s.
func New(s solver.Solver, opts Options) *Evaluator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{solver: s, opts: opts, log: log}
}

// Evaluate applies the candidate on mgr's network, solves, and restores
// the network before returning. Solver failures and panics are reported in
// the result status; Evaluate never fails the batch.
func (e *Evaluator) Evaluate(ctx context.Context, mgr *scope.Manager, c types.Candidate, b types.Baseline) (res types.EvaluationResult) {
	start := time.Now()
	res = types.EvaluationResult{Candidate: c}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("evaluation panicked", "candidate", c.Key(), "panic", r)
			res = types.EvaluationResult{Candidate: c, Status: types.StatusError, Message: fmt.Sprintf("panic: %v", r)}
		}
		res.Duration = time.Since(start)
	}()

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	ko, err := mgr.Knockout(c)
	if err != nil {
		res.Status, res.Message = types.StatusError, err.Error()
		return res
	}
	defer e.close(ko, c, &res)

	net := mgr.Network()
	growth := e.solver.Solve(ctx, net, solver.Request{Objective: e.opts.GrowthObjective, Sense: solver.Maximize})
	if growth.Status != solver.Optimal {
		res.Status, res.Message = fromSolver(growth, "growth")
		return res
	}
	res.Growth = types.Float(growth.ObjectiveValue)

	if growth.ObjectiveValue < b.GrowthFloor {
		res.Status = types.StatusGrowthLimited
		res.Message = fmt.Sprintf("growth %.6g below floor %.6g", growth.ObjectiveValue, b.GrowthFloor)
		return res
	}

	_, hi, err := net.Bounds(e.opts.GrowthObjective)
	if err != nil {
		res.Status, res.Message = types.StatusError, err.Error()
		return res
	}
	floor, err := mgr.Open(map[string]scope.Override{e.opts.GrowthObjective: {Lower: b.GrowthFloor, Upper: hi}})
	if err != nil {
		res.Status, res.Message = types.StatusError, err.Error()
		return res
	}
	defer e.close(floor, c, &res)

	prod := e.solver.Solve(ctx, net, solver.Request{
		Objective:    e.opts.Production,
		Sense:        solver.Maximize,
		Parsimonious: e.opts.Method == types.MethodPFBA,
	})
	if prod.Status != solver.Optimal {
		res.Status, res.Message = fromSolver(prod, "production")
		return res
	}

	res.Status = types.StatusOptimal
	res.Production = types.Float(prod.ObjectiveValue)
	if e.opts.Method == types.MethodPFBA {
		res.TotalFlux = types.Float(prod.TotalFlux)
	}
	return res
}

// close restores a scope. A failed restore leaves the worker's network in
// an unknown state, so the candidate is reported as an error.
func (e *Evaluator) close(s *scope.Scope, c types.Candidate, res *types.EvaluationResult) {
	if err := s.Close(); err != nil {
		e.log.Error("restoring bounds failed", "candidate", c.Key(), "error", err)
		res.Status = types.StatusError
		res.Message = fmt.Sprintf("restoring bounds: %v", err)
		res.Growth, res.Production, res.TotalFlux = nil, nil, nil
	}
}

func fromSolver(sol solver.Solution, stage string) (types.Status, string) {
	msg := stage + " solve " + string(sol.Status)
	if sol.Err != nil {
		msg += ": " + sol.Err.Error()
	}
	switch sol.Status {
	case solver.Infeasible:
		return types.StatusInfeasible, msg
	case solver.Unbounded:
		return types.StatusUnbounded, msg
	case solver.Timeout:
		return types.StatusTimeout, msg
	}
	return types.StatusError, msg
}
