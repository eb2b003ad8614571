// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package candidate

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/knockout-engine/pkg/types"
)

func pool(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("R%03d", i+1)
	}
	return out
}

func collect(t *testing.T, g *Generator) []types.Candidate {
	t.Helper()
	var out []types.Candidate
	for c := range g.All() {
		out = append(out, c)
	}
	return out
}

func TestThirtyChooseUpToTwo(t *testing.T) {
	g, err := NewGenerator(types.TargetReaction, pool(30), 2, Policy{})
	require.NoError(t, err)

	got := collect(t, g)
	assert.Len(t, got, 465)
	assert.Equal(t, 465, g.Count())
	assert.Equal(t, 30, g.LevelCount(1))
	assert.Equal(t, 435, g.LevelCount(2))

	seen := make(map[string]bool)
	for _, c := range got {
		sorted := slices.Clone(c.Targets)
		slices.Sort(sorted)
		key := fmt.Sprint(sorted)
		assert.False(t, seen[key], "duplicate set %v", c.Targets)
		seen[key] = true
	}
}

func TestOrderIsLexicographicBySize(t *testing.T) {
	g, err := NewGenerator(types.TargetGene, []string{"a", "b", "c"}, 3, Policy{})
	require.NoError(t, err)

	var got []string
	for c := range g.All() {
		got = append(got, c.String())
		assert.Equal(t, types.TargetGene, c.Kind)
	}
	assert.Equal(t, []string{
		"a", "b", "c",
		"a + b", "a + c", "b + c",
		"a + b + c",
	}, got)
}

func TestSmallerRunIsPrefix(t *testing.T) {
	p := pool(8)
	prev := []types.Candidate{}
	for k := 1; k <= 4; k++ {
		g, err := NewGenerator(types.TargetReaction, p, k, Policy{})
		require.NoError(t, err)
		got := collect(t, g)

		assert.Greater(t, len(got), len(prev))
		assert.Equal(t, prev, got[:len(prev)], "size %d run must extend size %d run", k, k-1)
		prev = got
	}
}

func TestEmptyPool(t *testing.T) {
	g, err := NewGenerator(types.TargetReaction, nil, 3, Policy{Ceiling: 5})
	require.NoError(t, err)
	assert.Empty(t, collect(t, g))
	assert.Equal(t, 0, g.Count())
}

func TestRestartable(t *testing.T) {
	g, err := NewGenerator(types.TargetReaction, pool(5), 2, Policy{})
	require.NoError(t, err)
	assert.Equal(t, collect(t, g), collect(t, g))
}

func TestEarlyStop(t *testing.T) {
	g, err := NewGenerator(types.TargetReaction, pool(10), 3, Policy{})
	require.NoError(t, err)

	n := 0
	for range g.All() {
		n++
		if n == 12 {
			break
		}
	}
	assert.Equal(t, 12, n)
}

func TestDedupeKeepsFirst(t *testing.T) {
	g, err := NewGenerator(types.TargetReaction, []string{"b", "a", "b", "c", "a"}, 1, Policy{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, g.Pool())
}

func TestPolicy(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		policy    Policy
		wantPool  int
		sampled   bool
		configErr bool
		tooLarge  bool
	}{
		{name: "under ceiling", size: 10, policy: Policy{Ceiling: 10}, wantPool: 10},
		{name: "ceiling disabled", size: 500, policy: Policy{}, wantPool: 500},
		{name: "sample", size: 50, policy: Policy{Ceiling: 20, Sampling: types.SamplingSample, Seed: 42}, wantPool: 20, sampled: true},
		{name: "reject", size: 50, policy: Policy{Ceiling: 20, Sampling: types.SamplingReject}, tooLarge: true},
		{name: "no sampling policy", size: 50, policy: Policy{Ceiling: 20}, configErr: true},
		{name: "negative ceiling", size: 5, policy: Policy{Ceiling: -1}, configErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGenerator(types.TargetReaction, pool(tt.size), 1, tt.policy)
			switch {
			case tt.tooLarge:
				var tooLarge *PoolTooLargeError
				require.True(t, errors.As(err, &tooLarge), "got %v", err)
				assert.Equal(t, tt.size, tooLarge.Size)
				assert.Equal(t, tt.policy.Ceiling, tooLarge.Ceiling)
			case tt.configErr:
				var cfgErr *types.ConfigError
				require.True(t, errors.As(err, &cfgErr), "got %v", err)
			default:
				require.NoError(t, err)
				assert.Len(t, g.Pool(), tt.wantPool)
				assert.Equal(t, tt.sampled, g.Sampled())
			}
		})
	}
}

func TestMaxSizeValidation(t *testing.T) {
	_, err := NewGenerator(types.TargetReaction, pool(3), 0, Policy{})
	var cfgErr *types.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "max_knockout_size", cfgErr.Field)

	_, err = NewGenerator(types.TargetReaction, pool(3), 4, Policy{})
	require.ErrorAs(t, err, &cfgErr)

	// Checked against the sampled pool.
	_, err = NewGenerator(types.TargetReaction, pool(50), 3, Policy{Ceiling: 2, Sampling: types.SamplingSample})
	require.ErrorAs(t, err, &cfgErr)
}

func TestSampleIsDeterministic(t *testing.T) {
	p := pool(100)
	a := Sample(p, 10, 7)
	b := Sample(p, 10, 7)
	c := Sample(p, 10, 8)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, slices.IsSorted(a), "sample keeps pool order: %v", a)
	assert.Len(t, slices.Compact(slices.Clone(a)), 10)
	assert.Equal(t, p[:3], Sample(p[:3], 5, 1))
}

func TestBinomial(t *testing.T) {
	assert.Equal(t, 1, binomial(5, 0))
	assert.Equal(t, 10, binomial(5, 2))
	assert.Equal(t, 0, binomial(3, 4))
	assert.Equal(t, 4060, binomial(30, 3))
}
