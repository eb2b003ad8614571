// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package candidate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pdiddy/knockout-engine/internal/model"
	"github.com/pdiddy/knockout-engine/pkg/types"
)

// PoolOptions selects and filters the candidate pool.
type PoolOptions struct {
	Kind   types.TargetKind
	Source types.PoolSource

	// Explicit lists the pool members for the list source.
	Explicit []string

	// ExcludePrefixes drops reactions whose id starts with any prefix.
	ExcludePrefixes []string

	// Exclude lists reactions that are never candidates, typically the
	// growth objective and the production reaction.
	Exclude []string

	// Production is the production reaction, used by the neighborhood source.
	Production string
}

// BuildPool returns the pool for opts in model order (or list order for
// the list source).
func BuildPool(net model.Network, opts PoolOptions) ([]string, error) {
	switch opts.Source {
	case types.PoolAll, "":
		if opts.Kind == types.TargetGene {
			return GenePool(net, opts)
		}
		return ReactionPool(net, opts)
	case types.PoolNeighborhood:
		return NeighborhoodPool(net, opts)
	case types.PoolList:
		return ExplicitPool(net, opts.Kind, opts.Explicit)
	}
	return nil, &types.ConfigError{Field: "pool_source", Reason: fmt.Sprintf("unknown source %q", opts.Source)}
}

// ReactionPool returns every reaction that may be knocked out: not
// excluded, not matching an excluded prefix, and not already blocked.
func ReactionPool(net model.Network, opts PoolOptions) ([]string, error) {
	var pool []string
	for _, rx := range net.Reactions() {
		ok, err := eligible(net, rx, opts)
		if err != nil {
			return nil, err
		}
		if ok {
			pool = append(pool, rx)
		}
	}
	return pool, nil
}

// GenePool returns every gene named by the rule of an eligible reaction.
func GenePool(net model.Network, opts PoolOptions) ([]string, error) {
	var reactions []string
	for _, rx := range net.Reactions() {
		ok, err := eligible(net, rx, opts)
		if err != nil {
			return nil, err
		}
		if ok {
			reactions = append(reactions, rx)
		}
	}
	return genesOf(net, reactions)
}

// NeighborhoodPool returns the eligible reactions that touch a reactant of
// the production reaction, or the genes governing them.
func NeighborhoodPool(net model.Network, opts PoolOptions) ([]string, error) {
	st, err := net.Stoichiometry(opts.Production)
	if err != nil {
		return nil, fmt.Errorf("neighborhood pool: %w", err)
	}
	precursors := make(map[string]bool)
	for met, coef := range st {
		if coef < 0 {
			precursors[met] = true
		}
	}

	var reactions []string
	for _, rx := range net.Reactions() {
		rst, err := net.Stoichiometry(rx)
		if err != nil {
			return nil, err
		}
		touches := false
		for met := range rst {
			if precursors[met] {
				touches = true
				break
			}
		}
		if !touches {
			continue
		}
		ok, err := eligible(net, rx, opts)
		if err != nil {
			return nil, err
		}
		if ok {
			reactions = append(reactions, rx)
		}
	}

	if opts.Kind == types.TargetGene {
		return genesOf(net, reactions)
	}
	return reactions, nil
}

// ExplicitPool checks that every id names a reaction or gene of the
// network. Unknown ids are fatal.
func ExplicitPool(net model.Network, kind types.TargetKind, ids []string) ([]string, error) {
	switch kind {
	case types.TargetReaction:
		for _, id := range ids {
			if _, _, err := net.Bounds(id); err != nil {
				return nil, fmt.Errorf("candidate pool: %w", err)
			}
		}
	case types.TargetGene:
		genes := net.Genes()
		for _, id := range ids {
			if !slices.Contains(genes, id) {
				return nil, fmt.Errorf("candidate pool: %w: %q", model.ErrUnknownGene, id)
			}
		}
	default:
		return nil, &types.ConfigError{Field: "pool_kind", Reason: fmt.Sprintf("unknown kind %q", kind)}
	}
	return slices.Clone(ids), nil
}

func eligible(net model.Network, rx string, opts PoolOptions) (bool, error) {
	if slices.Contains(opts.Exclude, rx) {
		return false, nil
	}
	for _, p := range opts.ExcludePrefixes {
		if p != "" && strings.HasPrefix(rx, p) {
			return false, nil
		}
	}
	lo, hi, err := net.Bounds(rx)
	if err != nil {
		return false, err
	}
	return lo != 0 || hi != 0, nil
}

// genesOf returns, in model gene order, the genes named by the rules of
// the given reactions.
func genesOf(net model.Network, reactions []string) ([]string, error) {
	named := make(map[string]bool)
	for _, rx := range reactions {
		rule, err := net.GeneRule(rx)
		if err != nil {
			return nil, err
		}
		if rule == nil {
			continue
		}
		for _, g := range rule.Genes() {
			named[g] = true
		}
	}
	var pool []string
	for _, g := range net.Genes() {
		if named[g] {
			pool = append(pool, g)
		}
	}
	return pool, nil
}
