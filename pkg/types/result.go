// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// Candidate is a knockout set: one to K reaction or gene identifiers,
// kept in pool order. Two candidates with the same Kind and Targets are the
// same knockout.
type Candidate struct {
	// Kind is reaction or gene.
	Kind TargetKind `json:"kind" yaml:"kind"`

	// Targets lists the knocked-out identifiers in pool order.
	Targets []string `json:"targets" yaml:"targets"`
}

// Size returns the number of knockout targets.
func (c Candidate) Size() int { return len(c.Targets) }

// Key returns the canonical identity of the candidate, used for caching
// and pruning lookups.
func (c Candidate) Key() string {
	return string(c.Kind) + ":" + strings.Join(c.Targets, "+")
}

func (c Candidate) String() string {
	return strings.Join(c.Targets, " + ")
}

// Status is the outcome of one candidate evaluation.
type Status string

const (
	// StatusOptimal means both solves finished and growth met the floor.
	StatusOptimal Status = "optimal"

	// StatusGrowthLimited means the knockout network grows below the floor.
	// The production solve was skipped.
	StatusGrowthLimited Status = "growth_limited"

	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusError      Status = "error"
	StatusTimeout    Status = "timeout"
)

// AllStatuses lists every status in report order.
var AllStatuses = []Status{
	StatusOptimal, StatusGrowthLimited, StatusInfeasible,
	StatusUnbounded, StatusError, StatusTimeout,
}

// Deterministic reports whether re-running the same evaluation is
// guaranteed to produce the same status. Timeouts and solver errors are not.
func (s Status) Deterministic() bool {
	switch s {
	case StatusOptimal, StatusGrowthLimited, StatusInfeasible:
		return true
	}
	return false
}

// EvaluationResult records the outcome of evaluating one candidate. It is
// created once by the evaluator and never modified afterward.
type EvaluationResult struct {
	Candidate Candidate `json:"candidate" yaml:"candidate"`

	// Ordinal is the candidate's position in generation order. It breaks
	// ranking ties so results never depend on completion order.
	Ordinal int `json:"ordinal" yaml:"ordinal"`

	Status Status `json:"status" yaml:"status"`

	// Growth is the maximum growth flux with the knockout applied. Nil when
	// the growth solve did not finish.
	Growth *float64 `json:"growth" yaml:"growth"`

	// Production is the production flux under the growth floor. Nil when
	// the production solve was skipped or failed.
	Production *float64 `json:"production" yaml:"production"`

	// TotalFlux is the sum of absolute fluxes of the parsimonious solution.
	// Set only for pfba.
	TotalFlux *float64 `json:"total_flux,omitempty" yaml:"total_flux,omitempty"`

	// Message describes a non-optimal outcome.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Feasible is true only for optimal results.
func (r EvaluationResult) Feasible() bool { return r.Status == StatusOptimal }

// Baseline is the wild-type reference every candidate is compared against.
type Baseline struct {
	// GrowthObjective is the biomass reaction id.
	GrowthObjective string `json:"growth_objective" yaml:"growth_objective"`

	// ProductionReaction is the resolved production reaction id.
	ProductionReaction string `json:"production_reaction" yaml:"production_reaction"`

	// Growth is the maximum growth flux of the unperturbed network.
	Growth float64 `json:"growth" yaml:"growth"`

	// GrowthFraction is the floor fraction used to derive GrowthFloor.
	GrowthFraction float64 `json:"growth_fraction" yaml:"growth_fraction"`

	// GrowthFloor is GrowthFraction x Growth.
	GrowthFloor float64 `json:"growth_floor" yaml:"growth_floor"`

	// Production is the wild-type production flux with growth held at the floor.
	Production float64 `json:"production" yaml:"production"`
}

// Float returns a pointer to v, for populating optional flux fields.
func Float(v float64) *float64 { return &v }
