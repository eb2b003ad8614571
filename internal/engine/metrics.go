// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/knockout-engine/internal/model"
	"github.com/pdiddy/knockout-engine/internal/solver"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

var (
	// candidatesEvaluated counts finished evaluations.
	// Labels: status (optimal, growth_limited, infeasible, unbounded, error, timeout)
	candidatesEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "knockout_engine",
		Subsystem: "search",
		Name:      "candidates_evaluated_total",
		Help:      "Candidates evaluated, by result status",
	}, []string{"status"})

	// candidatesSkipped counts candidates that needed no solve.
	// Labels: reason (pruned, cached, discarded)
	candidatesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "knockout_engine",
		Subsystem: "search",
		Name:      "candidates_skipped_total",
		Help:      "Candidates skipped by lethality pruning, served from the checkpoint, or discarded on cancellation",
	}, []string{"reason"})

	// evaluationDuration measures wall time of one candidate evaluation.
	evaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "knockout_engine",
		Subsystem: "search",
		Name:      "evaluation_duration_seconds",
		Help:      "Candidate evaluation latency in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
	}, []string{"status"})

	// solverCalls counts solver invocations by outcome.
	solverCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "knockout_engine",
		Subsystem: "solver",
		Name:      "calls_total",
		Help:      "Flux solver calls, by solver status",
	}, []string{"status"})

	// runsTotal counts search runs by outcome (completed, cancelled, failed).
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "knockout_engine",
		Subsystem: "search",
		Name:      "runs_total",
		Help:      "Search runs, by outcome",
	}, []string{"outcome"})

	// activeWorkers is the number of evaluations currently running.
	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "knockout_engine",
		Subsystem: "search",
		Name:      "active_workers",
		Help:      "Evaluations in flight",
	})
)

func recordEvaluation(r types.EvaluationResult) {
	candidatesEvaluated.WithLabelValues(string(r.Status)).Inc()
	evaluationDuration.WithLabelValues(string(r.Status)).Observe(r.Duration.Seconds())
}

func recordSkip(reason string) {
	candidatesSkipped.WithLabelValues(reason).Inc()
}

func recordRun(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
}

// instrumented counts solver calls by status.
type instrumented struct {
	next solver.Solver
}

func (s instrumented) Solve(ctx context.Context, net model.Network, req solver.Request) solver.Solution {
	sol := s.next.Solve(ctx, net, req)
	solverCalls.WithLabelValues(string(sol.Status)).Inc()
	return sol
}
