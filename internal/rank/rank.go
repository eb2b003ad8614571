// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank filters evaluation results against the baseline and orders
// the accepted ones.
package rank

import (
	"cmp"
	"slices"

	"github.com/pdiddy/knockout-engine/pkg/types"
)

// Criteria are the acceptance thresholds.
type Criteria struct {
	// GrowthFloorFraction is the minimum growth as a fraction of baseline growth.
	GrowthFloorFraction float64

	// ProductionMargin is the relative improvement production must exceed.
	ProductionMargin float64

	// TopN caps the selection. Zero or less keeps every accepted result.
	TopN int
}

// Accept reports whether a result is feasible, keeps growth at or above
// the floor, and beats baseline production by more than the margin.
func Accept(r types.EvaluationResult, b types.Baseline, c Criteria) bool {
	if !r.Feasible() || r.Growth == nil || r.Production == nil {
		return false
	}
	return *r.Growth >= c.GrowthFloorFraction*b.Growth &&
		*r.Production > b.Production*(1+c.ProductionMargin)
}

// Select returns the accepted results ordered by production, then growth
// (both descending), then ordinal. It returns at most TopN entries and an
// empty, non-nil slice when nothing qualifies.
func Select(results []types.EvaluationResult, b types.Baseline, c Criteria) []types.EvaluationResult {
	accepted := make([]types.EvaluationResult, 0)
	for _, r := range results {
		if Accept(r, b, c) {
			accepted = append(accepted, r)
		}
	}

	slices.SortStableFunc(accepted, Compare)
	if c.TopN > 0 && len(accepted) > c.TopN {
		accepted = accepted[:c.TopN]
	}
	return accepted
}

// Compare orders accepted results best first. Both must carry fluxes.
func Compare(a, b types.EvaluationResult) int {
	if n := cmp.Compare(*b.Production, *a.Production); n != 0 {
		return n
	}
	if n := cmp.Compare(*b.Growth, *a.Growth); n != 0 {
		return n
	}
	return cmp.Compare(a.Ordinal, b.Ordinal)
}
