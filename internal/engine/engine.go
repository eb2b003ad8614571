// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine runs a knockout search: it resolves the production
// target, builds the candidate pool, computes the wild-type baseline, and
// evaluates candidates level by level on a pool of workers, each with its
// own network clone.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/knockout-engine/internal/candidate"
	"github.com/pdiddy/knockout-engine/internal/evaluate"
	"github.com/pdiddy/knockout-engine/internal/model"
	"github.com/pdiddy/knockout-engine/internal/rank"
	"github.com/pdiddy/knockout-engine/internal/scope"
	"github.com/pdiddy/knockout-engine/internal/solver"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

var tracer = otel.Tracer("knockout-engine/engine")

// Checkpoint stores finished evaluations so an interrupted run can resume.
type Checkpoint interface {
	Get(runKey, candidateKey string) (types.EvaluationResult, bool, error)
	Put(runKey string, r types.EvaluationResult) error
}

// Options configures an Engine. Only Config is required.
type Options struct {
	Config types.SearchConfig

	// Solver defaults to solver.NewSimplex().
	Solver solver.Solver

	// Checkpoint, when set, is consulted before each evaluation.
	Checkpoint Checkpoint

	// Progress receives per-level progress lines. Nil discards them.
	Progress io.Writer

	Logger *slog.Logger
}

// Engine runs searches for one configuration.
type Engine struct {
	cfg        types.SearchConfig
	solver     solver.Solver
	checkpoint Checkpoint
	progress   io.Writer
	log        *slog.Logger
}

// New returns an Engine for opts.
func New(opts Options) *Engine {
	e := &Engine{
		cfg:        opts.Config,
		solver:     opts.Solver,
		checkpoint: opts.Checkpoint,
		progress:   opts.Progress,
		log:        opts.Logger,
	}
	if e.solver == nil {
		e.solver = solver.NewSimplex()
	}
	if e.progress == nil {
		e.progress = io.Discard
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Report is the outcome of a search run.
type Report struct {
	RunID  string             `json:"run_id" yaml:"run_id"`
	Config types.SearchConfig `json:"config" yaml:"config"`

	// ModelID and RunKey identify the network and the evaluation settings.
	ModelID string `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	RunKey  string `json:"run_key,omitempty" yaml:"run_key,omitempty"`

	// Baseline is nil when no candidate needed evaluating.
	Baseline *types.Baseline `json:"baseline,omitempty" yaml:"baseline,omitempty"`

	// Pool is the prepared candidate pool, after sampling.
	Pool    []string `json:"pool" yaml:"pool"`
	Sampled bool     `json:"sampled" yaml:"sampled"`

	// Generated counts candidates produced by the generator, including
	// pruned ones. Evaluated counts results, including cached ones.
	Generated int `json:"generated" yaml:"generated"`
	Evaluated int `json:"evaluated" yaml:"evaluated"`
	Pruned    int `json:"pruned" yaml:"pruned"`
	Cached    int `json:"cached" yaml:"cached"`

	// Discarded counts in-flight candidates dropped on cancellation.
	Discarded int `json:"discarded" yaml:"discarded"`

	StatusCounts map[types.Status]int `json:"status_counts" yaml:"status_counts"`

	// Results holds every evaluation in generation order.
	Results []types.EvaluationResult `json:"results,omitempty" yaml:"results,omitempty"`

	// Accepted is the ranked selection.
	Accepted []types.EvaluationResult `json:"accepted" yaml:"accepted"`

	Cancelled bool      `json:"cancelled" yaml:"cancelled"`
	Started   time.Time `json:"started" yaml:"started"`
	Finished  time.Time `json:"finished" yaml:"finished"`
}

// NoneEvaluated reports whether the run produced no evaluations at all,
// as opposed to evaluations none of which qualified.
func (r *Report) NoneEvaluated() bool { return r.Evaluated == 0 }

// Run searches net. The caller's network is never modified; the engine
// works on clones. Configuration and fatal model errors are returned
// before any candidate is evaluated. Cancelling ctx stops dispatch; the
// results finished so far are ranked and the report is marked Cancelled.
func (e *Engine) Run(ctx context.Context, net model.Network) (rep *Report, err error) {
	cfg := e.cfg
	ctx, span := tracer.Start(ctx, "Engine.Run", trace.WithAttributes(
		attribute.String("production_target", cfg.ProductionTarget),
		attribute.String("pool_kind", string(cfg.PoolKind)),
		attribute.Int("max_knockout_size", cfg.MaxKnockoutSize),
	))
	defer func() {
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			recordRun("failed")
		case rep.Cancelled:
			recordRun("cancelled")
		default:
			recordRun("completed")
		}
		span.End()
	}()

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	rep = &Report{
		RunID:        uuid.NewString(),
		Config:       cfg,
		StatusCounts: make(map[types.Status]int),
		Accepted:     []types.EvaluationResult{},
		Started:      time.Now(),
	}

	base := net.Clone()
	if m, ok := base.(*model.Model); ok {
		rep.ModelID = m.ID()
	}
	growthID, err := model.ResolveObjective(base, cfg.GrowthObjective)
	if err != nil {
		return nil, err
	}
	production, err := model.ResolveTarget(base, cfg.ProductionTarget, cfg.AddDemand)
	if err != nil {
		return nil, err
	}
	if production == growthID {
		return nil, &types.ConfigError{Field: "production_target", Reason: "resolves to the growth objective " + growthID}
	}
	e.log.Info("search configured", "run_id", rep.RunID, "growth_objective", growthID, "production", production)

	pool, err := candidate.BuildPool(base, candidate.PoolOptions{
		Kind:            cfg.PoolKind,
		Source:          cfg.PoolSource,
		Explicit:        cfg.Pool,
		ExcludePrefixes: cfg.ExcludePrefixes,
		Exclude:         []string{growthID, production},
		Production:      production,
	})
	if err != nil {
		return nil, err
	}
	gen, err := candidate.NewGenerator(cfg.PoolKind, pool, cfg.MaxKnockoutSize, candidate.Policy{
		Ceiling:  cfg.PoolSampleCeiling,
		Sampling: cfg.Sampling,
		Seed:     cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	rep.Pool = gen.Pool()
	rep.Sampled = gen.Sampled()
	if rep.Sampled {
		fmt.Fprintf(e.progress, "sampled %d of %d pool members (seed %d)\n", len(rep.Pool), len(pool), cfg.Seed)
	}

	if len(rep.Pool) == 0 {
		fmt.Fprintf(e.progress, "candidate pool is empty; nothing to evaluate\n")
		rep.Finished = time.Now()
		return rep, nil
	}

	baseline, err := e.baseline(ctx, base, growthID, production)
	if err != nil {
		return nil, err
	}
	rep.Baseline = &baseline
	fmt.Fprintf(e.progress, "baseline: growth %.6g (floor %.6g), production %.6g\n",
		baseline.Growth, baseline.GrowthFloor, baseline.Production)

	if fp, ok := base.(interface{ Fingerprint() string }); ok {
		rep.RunKey = RunKey(fp.Fingerprint(), growthID, production, cfg.Method, cfg.GrowthFloorFraction)
	}

	e.search(ctx, base, gen, baseline, rep)

	rep.Evaluated = len(rep.Results)
	rep.Accepted = rank.Select(rep.Results, baseline, rank.Criteria{
		GrowthFloorFraction: cfg.GrowthFloorFraction,
		ProductionMargin:    cfg.ProductionMargin,
		TopN:                cfg.TopN,
	})
	rep.Finished = time.Now()

	span.SetAttributes(
		attribute.Int("evaluated", rep.Evaluated),
		attribute.Int("pruned", rep.Pruned),
		attribute.Int("accepted", len(rep.Accepted)),
		attribute.Bool("cancelled", rep.Cancelled),
	)
	fmt.Fprintf(e.progress, "Search summary: %d evaluated (%d cached), %d pruned, %d accepted\n",
		rep.Evaluated, rep.Cached, rep.Pruned, len(rep.Accepted))
	if rep.Cancelled {
		fmt.Fprintf(e.progress, "search cancelled; %d in-flight candidates discarded\n", rep.Discarded)
	}
	return rep, nil
}

func (e *Engine) baseline(ctx context.Context, base model.Network, growthID, production string) (types.Baseline, error) {
	ctx, span := tracer.Start(ctx, "Engine.Baseline")
	defer span.End()

	b, err := evaluate.ComputeBaseline(ctx, scope.NewManager(base), instrumented{e.solver}, evaluate.BaselineOptions{
		GrowthObjective: growthID,
		Production:      production,
		GrowthFraction:  e.cfg.GrowthFloorFraction,
		Method:          e.cfg.Method,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return b, err
	}
	span.SetAttributes(attribute.Float64("growth", b.Growth), attribute.Float64("production", b.Production))
	return b, nil
}

// search evaluates every level of the generator, filling rep.Results in
// generation order.
func (e *Engine) search(ctx context.Context, base model.Network, gen *candidate.Generator, b types.Baseline, rep *Report) {
	cfg := e.cfg
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, gen.Count())

	// One clone per worker, reused for every candidate it evaluates.
	managers := make(chan *scope.Manager, workers)
	for range workers {
		managers <- scope.NewManager(base.Clone())
	}

	ev := evaluate.New(instrumented{e.solver}, evaluate.Options{
		GrowthObjective: b.GrowthObjective,
		Production:      b.ProductionReaction,
		Method:          cfg.Method,
		Timeout:         cfg.TimeoutPerCandidate,
		Logger:          e.log,
	})

	// lethal holds keys of candidates whose growth is below the floor or
	// whose network is infeasible. Knockouts only shrink the feasible flux
	// space, so every superset of a lethal set is lethal too.
	lethal := make(map[string]bool)
	ordinal := 0

	for k := 1; k <= gen.MaxSize(); k++ {
		if ctx.Err() != nil {
			rep.Cancelled = true
			break
		}
		_, span := tracer.Start(ctx, "Engine.Level", trace.WithAttributes(attribute.Int("size", k)))

		slots := make([]*types.EvaluationResult, gen.LevelCount(k))
		var discarded atomic.Int64
		pruned, cached, generated := 0, 0, 0

		g := new(errgroup.Group)
		g.SetLimit(workers)

		idx := -1
		for c := range gen.Level(k) {
			idx++
			ord := ordinal
			ordinal++
			generated++

			if cfg.PruneLethal && k > 1 && hasLethalSubset(c, lethal) {
				lethal[c.Key()] = true
				pruned++
				recordSkip("pruned")
				continue
			}
			if ctx.Err() != nil {
				rep.Cancelled = true
				break
			}
			if r, ok := e.cached(rep.RunKey, c); ok {
				r.Ordinal = ord
				slots[idx] = &r
				cached++
				recordSkip("cached")
				continue
			}

			slot := idx
			g.Go(func() error {
				mgr := <-managers
				defer func() { managers <- mgr }()
				if ctx.Err() != nil {
					discarded.Add(1)
					recordSkip("discarded")
					return nil
				}

				activeWorkers.Inc()
				res := ev.Evaluate(ctx, mgr, c, b)
				activeWorkers.Dec()
				res.Ordinal = ord

				if ctx.Err() != nil && !res.Status.Deterministic() {
					discarded.Add(1)
					recordSkip("discarded")
					return nil
				}
				recordEvaluation(res)
				e.store(rep.RunKey, res)
				slots[slot] = &res
				return nil
			})
		}
		_ = g.Wait()

		evaluated := 0
		for _, r := range slots {
			if r == nil {
				continue
			}
			evaluated++
			rep.Results = append(rep.Results, *r)
			rep.StatusCounts[r.Status]++
			if r.Status == types.StatusGrowthLimited || r.Status == types.StatusInfeasible {
				lethal[r.Candidate.Key()] = true
			}
		}
		rep.Generated += generated
		rep.Pruned += pruned
		rep.Cached += cached
		rep.Discarded += int(discarded.Load())

		span.SetAttributes(
			attribute.Int("generated", generated),
			attribute.Int("evaluated", evaluated),
			attribute.Int("pruned", pruned),
			attribute.Int("cached", cached),
		)
		span.End()
		fmt.Fprintf(e.progress, "level %d: %d candidates (%d pruned, %d cached)\n", k, generated, pruned, cached)

		if ctx.Err() != nil {
			rep.Cancelled = true
			break
		}
	}
}

// hasLethalSubset reports whether dropping any one target of c gives a
// lethal candidate. Pruned candidates are marked lethal as well, so
// checking the immediate subsets covers every smaller set.
func hasLethalSubset(c types.Candidate, lethal map[string]bool) bool {
	if len(lethal) == 0 {
		return false
	}
	for skip := range c.Targets {
		sub := types.Candidate{Kind: c.Kind, Targets: make([]string, 0, len(c.Targets)-1)}
		for i, t := range c.Targets {
			if i != skip {
				sub.Targets = append(sub.Targets, t)
			}
		}
		if lethal[sub.Key()] {
			return true
		}
	}
	return false
}

func (e *Engine) cached(runKey string, c types.Candidate) (types.EvaluationResult, bool) {
	if e.checkpoint == nil || runKey == "" {
		return types.EvaluationResult{}, false
	}
	r, ok, err := e.checkpoint.Get(runKey, c.Key())
	if err != nil {
		e.log.Warn("checkpoint read failed", "candidate", c.Key(), "error", err)
		return types.EvaluationResult{}, false
	}
	return r, ok
}

func (e *Engine) store(runKey string, r types.EvaluationResult) {
	if e.checkpoint == nil || runKey == "" || !r.Status.Deterministic() {
		return
	}
	if err := e.checkpoint.Put(runKey, r); err != nil {
		e.log.Warn("checkpoint write failed", "candidate", r.Candidate.Key(), "error", err)
	}
}

// RunKey identifies the settings that determine an evaluation's outcome:
// the network content, the objective, the production reaction, the method
// and the growth floor fraction.
func RunKey(fingerprint, growthObjective, production string, method types.EvaluationMethod, fraction float64) string {
	h := sha256.New()
	for _, part := range []string{fingerprint, growthObjective, production, string(method), strconv.FormatFloat(fraction, 'g', -1, 64)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
