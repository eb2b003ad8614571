// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrTargetNotFound is returned when a production target names neither
	// a reaction nor a metabolite with a boundary reaction.
	ErrTargetNotFound = errors.New("model: production target not found")

	// ErrAmbiguousTarget is returned when a metabolite has several boundary
	// reactions that consume it.
	ErrAmbiguousTarget = errors.New("model: production target is ambiguous")

	// ErrNoObjective is returned when no growth objective is configured and
	// the model does not carry exactly one objective reaction.
	ErrNoObjective = errors.New("model: no growth objective")
)

// DemandPrefix prefixes demand reactions added for metabolite targets.
const DemandPrefix = "DM_"

// Extender is implemented by networks that accept new reactions.
type Extender interface {
	AddReaction(r Reaction) error
}

// ResolveTarget returns the production reaction for a target id. A
// reaction id is returned as is. A metabolite id resolves to the single
// boundary reaction that consumes it. When there is none and addDemand is
// set, a DM_<metabolite> reaction is added to net.
func ResolveTarget(net Network, id string, addDemand bool) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty target", ErrTargetNotFound)
	}
	if _, _, err := net.Bounds(id); err == nil {
		return id, nil
	}
	if !slices.Contains(net.Metabolites(), id) {
		return "", fmt.Errorf("%w: %q is neither a reaction nor a metabolite", ErrTargetNotFound, id)
	}

	exports, err := BoundaryReactions(net, id)
	if err != nil {
		return "", err
	}
	switch len(exports) {
	case 1:
		return exports[0], nil
	case 0:
		if !addDemand {
			return "", fmt.Errorf("%w: metabolite %q has no boundary reaction (enable add_demand to create one)", ErrTargetNotFound, id)
		}
		ext, ok := net.(Extender)
		if !ok {
			return "", fmt.Errorf("%w: network cannot add a demand reaction for %q", ErrTargetNotFound, id)
		}
		demand := Reaction{
			ID:          DemandPrefix + id,
			Name:        id + " demand",
			Metabolites: map[string]float64{id: -1},
			LowerBound:  0,
			UpperBound:  DefaultUpperBound,
		}
		if err := ext.AddReaction(demand); err != nil {
			return "", fmt.Errorf("adding demand reaction: %w", err)
		}
		return demand.ID, nil
	default:
		return "", fmt.Errorf("%w: metabolite %q has boundary reactions %s", ErrAmbiguousTarget, id, strings.Join(exports, ", "))
	}
}

// BoundaryReactions returns the single-metabolite reactions that consume
// the metabolite, in model order.
func BoundaryReactions(net Network, metabolite string) ([]string, error) {
	var out []string
	for _, rx := range net.Reactions() {
		st, err := net.Stoichiometry(rx)
		if err != nil {
			return nil, err
		}
		if len(st) != 1 {
			continue
		}
		if coef, ok := st[metabolite]; ok && coef < 0 {
			out = append(out, rx)
		}
	}
	return out, nil
}

// ResolveObjective returns the growth objective reaction. An explicit id
// must name a reaction; an empty id falls back to the network's single
// objective reaction.
func ResolveObjective(net Network, id string) (string, error) {
	if id != "" {
		if _, _, err := net.Bounds(id); err != nil {
			return "", fmt.Errorf("growth objective: %w", err)
		}
		return id, nil
	}
	op, ok := net.(ObjectiveProvider)
	if !ok {
		return "", ErrNoObjective
	}
	objs := op.ObjectiveReactions()
	if len(objs) != 1 {
		return "", fmt.Errorf("%w: model has %d objective reactions", ErrNoObjective, len(objs))
	}
	return objs[0], nil
}
