// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine_test

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/knockout-engine/internal/engine"
	"github.com/pdiddy/knockout-engine/internal/evaluate"
	"github.com/pdiddy/knockout-engine/internal/model"
	"github.com/pdiddy/knockout-engine/internal/model/modeltest"
	"github.com/pdiddy/knockout-engine/internal/solver"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

// chainWithProduct adds an EX_prod export to a Chain network so that the
// pool is exactly R1..Rn.
func chainWithProduct(t *testing.T, n int) *model.Model {
	t.Helper()
	m := modeltest.Chain(t, n)
	require.NoError(t, m.AddMetabolite(model.Metabolite{ID: "p"}))
	require.NoError(t, m.AddReaction(model.Reaction{ID: "EX_prod", Metabolites: map[string]float64{"p": -1}, UpperBound: 5}))
	return m
}

// fakeSolver answers growth and production requests from the knockout
// state of the network. Growth is 10 unless a lethal reaction is blocked,
// in which case it is 0. Production is 1, or 2 while a booster is blocked.
type fakeSolver struct {
	lethal  []string
	booster string
	calls   atomic.Int64
}

func blocked(net model.Network, rx string) bool {
	lo, hi, err := net.Bounds(rx)
	return err == nil && lo == 0 && hi == 0
}

func (f *fakeSolver) Solve(_ context.Context, net model.Network, req solver.Request) solver.Solution {
	f.calls.Add(1)
	if req.Objective == "BIO" {
		for _, rx := range f.lethal {
			if blocked(net, rx) {
				return solver.Solution{Status: solver.Optimal, ObjectiveValue: 0}
			}
		}
		growth := 10.0
		if f.booster != "" && blocked(net, f.booster) {
			growth = 9
		}
		return solver.Solution{Status: solver.Optimal, ObjectiveValue: growth}
	}
	if f.booster != "" && blocked(net, f.booster) {
		return solver.Solution{Status: solver.Optimal, ObjectiveValue: 2}
	}
	return solver.Solution{Status: solver.Optimal, ObjectiveValue: 1}
}

func chainConfig(maxSize int) types.SearchConfig {
	cfg := types.DefaultSearchConfig()
	cfg.ProductionTarget = "EX_prod"
	cfg.GrowthObjective = "BIO"
	cfg.MaxKnockoutSize = maxSize
	cfg.Workers = 4
	return cfg
}

func TestEmptyPoolMakesNoSolverCalls(t *testing.T) {
	m := model.New("pair")
	require.NoError(t, m.AddReaction(model.Reaction{ID: "R1", UpperBound: 10, ObjectiveCoefficient: 1}))
	require.NoError(t, m.AddReaction(model.Reaction{ID: "R2", UpperBound: 5}))

	cfg := types.DefaultSearchConfig()
	cfg.ProductionTarget = "R2"
	cfg.MaxKnockoutSize = 3
	fake := &fakeSolver{}

	rep, err := engine.New(engine.Options{Config: cfg, Solver: fake}).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Empty(t, rep.Pool)
	assert.Zero(t, rep.Generated)
	assert.NotNil(t, rep.Accepted)
	assert.Empty(t, rep.Accepted)
	assert.Nil(t, rep.Baseline)
	assert.True(t, rep.NoneEvaluated())
	assert.Zero(t, fake.calls.Load())
}

func TestPairsOfThirtyReactions(t *testing.T) {
	m := chainWithProduct(t, 30)
	cfg := chainConfig(2)
	cfg.PruneLethal = false
	fake := &fakeSolver{}

	rep, err := engine.New(engine.Options{Config: cfg, Solver: fake}).Run(context.Background(), m)
	require.NoError(t, err)

	assert.Len(t, rep.Pool, 30)
	assert.Equal(t, 465, rep.Generated)
	assert.Equal(t, 465, rep.Evaluated)
	assert.Equal(t, 465, rep.StatusCounts[types.StatusOptimal])
	require.Len(t, rep.Results, 465)

	seen := make(map[string]bool, 465)
	for i, r := range rep.Results {
		assert.Equal(t, i, r.Ordinal)
		assert.False(t, seen[r.Candidate.Key()], "duplicate %s", r.Candidate.Key())
		seen[r.Candidate.Key()] = true
	}
	assert.Equal(t, 1, rep.Results[0].Candidate.Size())
	assert.Equal(t, 2, rep.Results[464].Candidate.Size())

	// Baseline plus two solves per candidate.
	assert.Equal(t, int64(2+2*465), fake.calls.Load())
	assert.Empty(t, rep.Accepted)
}

func TestLethalSupersetsArePruned(t *testing.T) {
	m := chainWithProduct(t, 3)
	cfg := chainConfig(2)
	fake := &fakeSolver{lethal: []string{"R1"}, booster: "R2"}

	rep, err := engine.New(engine.Options{Config: cfg, Solver: fake}).Run(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, 6, rep.Generated)
	assert.Equal(t, 2, rep.Pruned)
	assert.Equal(t, 4, rep.Evaluated)
	assert.Equal(t, 1, rep.StatusCounts[types.StatusGrowthLimited])
	assert.Equal(t, 3, rep.StatusCounts[types.StatusOptimal])

	var keys []string
	for _, r := range rep.Results {
		keys = append(keys, r.Candidate.Key())
	}
	assert.Equal(t, []string{"reaction:R1", "reaction:R2", "reaction:R3", "reaction:R2+R3"}, keys)

	require.Len(t, rep.Accepted, 2)
	assert.Equal(t, "reaction:R2", rep.Accepted[0].Candidate.Key())
	assert.Equal(t, "reaction:R2+R3", rep.Accepted[1].Candidate.Key())
}

func TestPruningDisabledEvaluatesEverything(t *testing.T) {
	m := chainWithProduct(t, 3)
	cfg := chainConfig(2)
	cfg.PruneLethal = false
	fake := &fakeSolver{lethal: []string{"R1"}}

	rep, err := engine.New(engine.Options{Config: cfg, Solver: fake}).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Zero(t, rep.Pruned)
	assert.Equal(t, 6, rep.Evaluated)
	assert.Equal(t, 3, rep.StatusCounts[types.StatusGrowthLimited])
}

func TestToySearch(t *testing.T) {
	m := modeltest.Toy(t)
	cfg := types.DefaultSearchConfig()
	cfg.ProductionTarget = "mev"
	cfg.Workers = 2
	var progress bytes.Buffer

	rep, err := engine.New(engine.Options{Config: cfg, Progress: &progress}).Run(context.Background(), m)
	require.NoError(t, err)

	require.NotNil(t, rep.Baseline)
	assert.Equal(t, "EX_mev", rep.Baseline.ProductionReaction)
	assert.InDelta(t, modeltest.ToyMaxGrowth, rep.Baseline.Growth, 1e-6)
	assert.InDelta(t, modeltest.ToyProduction, rep.Baseline.Production, 1e-6)
	assert.Equal(t, []string{"HEX", "PGI", "PDH", "HMG", "ACK"}, rep.Pool)
	assert.Equal(t, 3, rep.StatusCounts[types.StatusGrowthLimited])
	assert.Equal(t, 2, rep.StatusCounts[types.StatusOptimal])
	assert.Empty(t, rep.Accepted)
	assert.False(t, rep.NoneEvaluated())
	assert.NotEmpty(t, rep.RunID)
	assert.NotEmpty(t, rep.RunKey)
	assert.Equal(t, "toy", rep.ModelID)

	assert.Contains(t, progress.String(), "level 1: 5 candidates (0 pruned, 0 cached)")
	assert.Contains(t, progress.String(), "Search summary: 5 evaluated")

	// The caller's network is untouched.
	lo, hi, err := m.Bounds("HEX")
	require.NoError(t, err)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1000.0, hi)
	assert.NotContains(t, m.Reactions(), "DM_mev")
}

func TestDemandReactionAddedToClone(t *testing.T) {
	m := modeltest.Toy(t)
	cfg := types.DefaultSearchConfig()
	cfg.ProductionTarget = "ac"
	cfg.AddDemand = true
	cfg.Workers = 1

	rep, err := engine.New(engine.Options{Config: cfg}).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "EX_ac", rep.Baseline.ProductionReaction)

	cfg.ProductionTarget = "pyr"
	rep, err = engine.New(engine.Options{Config: cfg}).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "DM_pyr", rep.Baseline.ProductionReaction)
	assert.NotContains(t, m.Reactions(), "DM_pyr")
}

func TestCancellationKeepsFinishedResults(t *testing.T) {
	m := chainWithProduct(t, 30)
	cfg := chainConfig(1)
	cfg.Workers = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int64
	s := solver.Func(func(ctx context.Context, _ model.Network, req solver.Request) solver.Solution {
		// Calls 1-2 are the baseline, 3-4 the first candidate.
		if calls.Add(1) == 5 {
			cancel()
		}
		if ctx.Err() != nil {
			return solver.FromContext(ctx)
		}
		if req.Objective == "BIO" {
			return solver.Solution{Status: solver.Optimal, ObjectiveValue: 10}
		}
		return solver.Solution{Status: solver.Optimal, ObjectiveValue: 1}
	})

	rep, err := engine.New(engine.Options{Config: cfg, Solver: s}).Run(ctx, m)
	require.NoError(t, err)
	assert.True(t, rep.Cancelled)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, "reaction:R1", rep.Results[0].Candidate.Key())
	assert.GreaterOrEqual(t, rep.Discarded, 1)
	assert.Less(t, rep.Generated, 30)
	assert.LessOrEqual(t, calls.Load(), int64(5))
}

func TestSampledPoolIsReproducible(t *testing.T) {
	m := chainWithProduct(t, 30)
	cfg := chainConfig(1)
	cfg.PoolSampleCeiling = 10
	cfg.Sampling = types.SamplingSample
	cfg.Seed = 7

	run := func() *engine.Report {
		rep, err := engine.New(engine.Options{Config: cfg, Solver: &fakeSolver{}}).Run(context.Background(), m)
		require.NoError(t, err)
		return rep
	}
	a, b := run(), run()
	assert.True(t, a.Sampled)
	assert.Len(t, a.Pool, 10)
	assert.Equal(t, a.Pool, b.Pool)
	require.Len(t, b.Results, len(a.Results))
	for i := range a.Results {
		assert.Equal(t, a.Results[i].Candidate, b.Results[i].Candidate)
	}

	cfg.Sampling = types.SamplingUnset
	_, err := engine.New(engine.Options{Config: cfg, Solver: &fakeSolver{}}).Run(context.Background(), m)
	var cerrs types.ConfigErrors
	require.ErrorAs(t, err, &cerrs)
}

// memCheckpoint is a map-backed Checkpoint.
type memCheckpoint struct {
	mu sync.Mutex
	m  map[string]types.EvaluationResult
}

func (c *memCheckpoint) Get(runKey, key string) (types.EvaluationResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[runKey+"/"+key]
	return r, ok, nil
}

func (c *memCheckpoint) Put(runKey string, r types.EvaluationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[runKey+"/"+r.Candidate.Key()] = r
	return nil
}

func TestCheckpointSkipsFinishedCandidates(t *testing.T) {
	m := chainWithProduct(t, 5)
	cfg := chainConfig(2)
	cp := &memCheckpoint{m: make(map[string]types.EvaluationResult)}

	first := &fakeSolver{booster: "R3"}
	rep1, err := engine.New(engine.Options{Config: cfg, Solver: first, Checkpoint: cp}).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Zero(t, rep1.Cached)
	assert.Len(t, cp.m, 15)

	second := &fakeSolver{booster: "R3"}
	rep2, err := engine.New(engine.Options{Config: cfg, Solver: second, Checkpoint: cp}).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 15, rep2.Cached)
	assert.Equal(t, 15, rep2.Evaluated)
	assert.Equal(t, int64(2), second.calls.Load(), "only the baseline is solved")
	assert.Equal(t, rep1.RunKey, rep2.RunKey)
	assert.Equal(t, len(rep1.Accepted), len(rep2.Accepted))
	for i := range rep1.Accepted {
		assert.Equal(t, rep1.Accepted[i].Candidate, rep2.Accepted[i].Candidate)
	}
}

func TestRunRejectsBadConfiguration(t *testing.T) {
	m := modeltest.Toy(t)
	fake := &fakeSolver{}

	cfg := types.DefaultSearchConfig()
	cfg.ProductionTarget = "EX_mev"
	cfg.GrowthFloorFraction = 1.5
	cfg.TopN = 0
	_, err := engine.New(engine.Options{Config: cfg, Solver: fake}).Run(context.Background(), m)
	var cerrs types.ConfigErrors
	require.ErrorAs(t, err, &cerrs)
	assert.Len(t, cerrs, 2)

	cfg = types.DefaultSearchConfig()
	cfg.ProductionTarget = "nothing"
	_, err = engine.New(engine.Options{Config: cfg, Solver: fake}).Run(context.Background(), m)
	assert.ErrorIs(t, err, model.ErrTargetNotFound)

	cfg.ProductionTarget = "BIO"
	_, err = engine.New(engine.Options{Config: cfg, Solver: fake}).Run(context.Background(), m)
	var cerr *types.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "production_target", cerr.Field)

	cfg = types.DefaultSearchConfig()
	cfg.ProductionTarget = "EX_mev"
	cfg.MaxKnockoutSize = 9
	_, err = engine.New(engine.Options{Config: cfg, Solver: fake}).Run(context.Background(), m)
	require.Error(t, err)

	assert.Zero(t, fake.calls.Load())
}

func TestBaselineWithoutGrowthIsFatal(t *testing.T) {
	m := chainWithProduct(t, 3)
	s := solver.Func(func(context.Context, model.Network, solver.Request) solver.Solution {
		return solver.Solution{Status: solver.Optimal}
	})
	_, err := engine.New(engine.Options{Config: chainConfig(1), Solver: s}).Run(context.Background(), m)
	assert.ErrorIs(t, err, evaluate.ErrNoGrowth)
}

func TestRunKeyDependsOnSettings(t *testing.T) {
	a := engine.RunKey("fp", "BIO", "EX_mev", types.MethodFBA, 0.8)
	assert.Equal(t, a, engine.RunKey("fp", "BIO", "EX_mev", types.MethodFBA, 0.8))
	assert.NotEqual(t, a, engine.RunKey("fp", "BIO", "EX_mev", types.MethodPFBA, 0.8))
	assert.NotEqual(t, a, engine.RunKey("fp", "BIO", "EX_mev", types.MethodFBA, 0.9))
	assert.NotEqual(t, a, engine.RunKey("fp2", "BIO", "EX_mev", types.MethodFBA, 0.8))
}
