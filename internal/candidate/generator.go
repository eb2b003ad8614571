// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package candidate builds knockout pools and enumerates knockout sets
// over them.
package candidate

import (
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/pdiddy/knockout-engine/pkg/types"
)

// Policy controls oversized pools. A Ceiling of zero disables the check.
type Policy struct {
	Ceiling  int
	Sampling types.SamplingPolicy
	Seed     int64
}

// PoolTooLargeError is returned under the reject policy when the pool is
// larger than the ceiling.
type PoolTooLargeError struct {
	Size    int
	Ceiling int
}

func (e *PoolTooLargeError) Error() string {
	return fmt.Sprintf("candidate pool of %d exceeds ceiling %d; narrow the pool or use sampling", e.Size, e.Ceiling)
}

// Generator enumerates combinations of a prepared pool. Its sequences are
// lazy and can be ranged over any number of times.
type Generator struct {
	kind    types.TargetKind
	pool    []string
	maxSize int
	sampled bool
}

// NewGenerator removes duplicate pool entries (keeping the first), applies
// the policy, and checks maxSize against the prepared pool. An empty pool
// is valid and yields nothing.
func NewGenerator(kind types.TargetKind, pool []string, maxSize int, policy Policy) (*Generator, error) {
	if maxSize < 1 {
		return nil, &types.ConfigError{Field: "max_knockout_size", Reason: fmt.Sprintf("must be at least 1, got %d", maxSize)}
	}
	if policy.Ceiling < 0 {
		return nil, &types.ConfigError{Field: "pool_sample_ceiling", Reason: fmt.Sprintf("must not be negative, got %d", policy.Ceiling)}
	}

	g := &Generator{kind: kind, pool: dedupe(pool), maxSize: maxSize}

	if policy.Ceiling > 0 && len(g.pool) > policy.Ceiling {
		switch policy.Sampling {
		case types.SamplingSample:
			g.pool = Sample(g.pool, policy.Ceiling, policy.Seed)
			g.sampled = true
		case types.SamplingReject:
			return nil, &PoolTooLargeError{Size: len(g.pool), Ceiling: policy.Ceiling}
		default:
			return nil, &types.ConfigError{
				Field:  "sampling",
				Reason: fmt.Sprintf("pool of %d exceeds ceiling %d and no sampling policy is set (sample or reject)", len(g.pool), policy.Ceiling),
			}
		}
	}

	if len(g.pool) > 0 && maxSize > len(g.pool) {
		return nil, &types.ConfigError{
			Field:  "max_knockout_size",
			Reason: fmt.Sprintf("%d is larger than the pool (%d)", maxSize, len(g.pool)),
		}
	}
	return g, nil
}

// Pool returns the prepared pool.
func (g *Generator) Pool() []string { return slices.Clone(g.pool) }

// Kind returns the target kind of generated candidates.
func (g *Generator) Kind() types.TargetKind { return g.kind }

// MaxSize returns the largest knockout size.
func (g *Generator) MaxSize() int { return g.maxSize }

// Sampled reports whether the pool was reduced by sampling.
func (g *Generator) Sampled() bool { return g.sampled }

// All yields every combination of size 1 through MaxSize, smaller sizes
// first, each size in lexicographic order of pool index.
func (g *Generator) All() iter.Seq[types.Candidate] {
	return func(yield func(types.Candidate) bool) {
		for k := 1; k <= g.maxSize; k++ {
			for c := range g.Level(k) {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// Level yields the combinations of exactly k targets.
func (g *Generator) Level(k int) iter.Seq[types.Candidate] {
	return func(yield func(types.Candidate) bool) {
		n := len(g.pool)
		if k < 1 || k > n {
			return
		}
		idx := make([]int, k)
		for i := range idx {
			idx[i] = i
		}
		for {
			targets := make([]string, k)
			for i, j := range idx {
				targets[i] = g.pool[j]
			}
			if !yield(types.Candidate{Kind: g.kind, Targets: targets}) {
				return
			}

			i := k - 1
			for i >= 0 && idx[i] == n-k+i {
				i--
			}
			if i < 0 {
				return
			}
			idx[i]++
			for j := i + 1; j < k; j++ {
				idx[j] = idx[j-1] + 1
			}
		}
	}
}

// Count returns the number of candidates All yields.
func (g *Generator) Count() int {
	total := 0
	for k := 1; k <= g.maxSize; k++ {
		c := g.LevelCount(k)
		if total > math.MaxInt-c {
			return math.MaxInt
		}
		total += c
	}
	return total
}

// LevelCount returns C(len(pool), k).
func (g *Generator) LevelCount(k int) int {
	return binomial(len(g.pool), k)
}

func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	c := 1
	for i := 0; i < k; i++ {
		if c > math.MaxInt/(n-i) {
			return math.MaxInt
		}
		c = c * (n - i) / (i + 1)
	}
	return c
}

// Sample returns size members of pool chosen with a fixed seed, kept in
// pool order. The same pool, size and seed always give the same sample.
func Sample(pool []string, size int, seed int64) []string {
	if size >= len(pool) {
		return slices.Clone(pool)
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	idx := rng.Perm(len(pool))[:size]
	slices.Sort(idx)

	out := make([]string, size)
	for i, j := range idx {
		out[i] = pool[j]
	}
	return out
}

func dedupe(pool []string) []string {
	seen := make(map[string]bool, len(pool))
	out := make([]string, 0, len(pool))
	for _, id := range pool {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
