// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package model holds the metabolic network consumed by the knockout
// engine: stoichiometry, flux bounds, and gene-reaction rules, plus
// loading from COBRA model files and production target resolution.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"strconv"
)

var (
	// ErrInvalidModel is returned when a model document or a reaction
	// added to a model breaks a structural rule.
	ErrInvalidModel = errors.New("model: invalid model")

	// ErrUnknownReaction is returned for a reaction id the network does not contain.
	ErrUnknownReaction = errors.New("model: unknown reaction")

	// ErrUnknownGene is returned for a gene id the network does not contain.
	ErrUnknownGene = errors.New("model: unknown gene")

	// ErrInvalidBounds is returned by SetBounds when lower > upper or a bound is NaN.
	ErrInvalidBounds = errors.New("model: invalid bounds")
)

// Network is the view of a metabolic network the engine works against.
// Implementations are not safe for concurrent mutation; the engine gives
// each worker its own Clone.
type Network interface {
	// Reactions returns reaction ids in model order.
	Reactions() []string

	// Genes returns gene ids in model order.
	Genes() []string

	// Metabolites returns metabolite ids in model order.
	Metabolites() []string

	Bounds(reaction string) (lower, upper float64, err error)
	SetBounds(reaction string, lower, upper float64) error

	// GeneRule returns the parsed rule of a reaction, or nil when the
	// reaction has no rule.
	GeneRule(reaction string) (*Rule, error)

	// Stoichiometry returns metabolite coefficients of a reaction.
	// Negative coefficients are consumed. The map must not be modified.
	Stoichiometry(reaction string) (map[string]float64, error)

	// DisabledReactions returns, in model order, the reactions whose rule
	// is no longer satisfied once every gene in genes is removed.
	DisabledReactions(genes []string) ([]string, error)

	// Clone returns a copy whose bounds can be changed independently.
	Clone() Network
}

// ObjectiveProvider is implemented by networks that carry objective
// coefficients, used to default the growth objective.
type ObjectiveProvider interface {
	ObjectiveReactions() []string
}

// Reaction is one reaction of the network.
type Reaction struct {
	ID        string
	Name      string
	Subsystem string

	// Metabolites maps metabolite id to stoichiometric coefficient.
	Metabolites map[string]float64

	LowerBound float64
	UpperBound float64

	// GeneRule is the gene-reaction rule text, empty when ungoverned.
	GeneRule string

	ObjectiveCoefficient float64
}

// Boundary reports whether the reaction exchanges a single metabolite with
// the outside of the system (exchange, demand, or sink).
func (r Reaction) Boundary() bool { return len(r.Metabolites) == 1 }

// Metabolite is one species of the network.
type Metabolite struct {
	ID          string
	Name        string
	Formula     string
	Compartment string
}

// Gene is one gene named by the network's rules.
type Gene struct {
	ID   string
	Name string
}

// Model is the in-memory Network implementation.
type Model struct {
	id string

	reactions []Reaction
	rules     []*Rule
	rxIndex   map[string]int

	metabolites []Metabolite
	metIndex    map[string]int

	genes     []Gene
	geneIndex map[string]int

	// geneReactions maps a gene to the indexes of reactions whose rule names it.
	geneReactions map[string][]int
}

// New returns an empty model.
func New(id string) *Model {
	return &Model{
		id:            id,
		rxIndex:       make(map[string]int),
		metIndex:      make(map[string]int),
		geneIndex:     make(map[string]int),
		geneReactions: make(map[string][]int),
	}
}

// ID returns the model identifier.
func (m *Model) ID() string { return m.id }

// AddMetabolite registers a metabolite. Ids must be unique.
func (m *Model) AddMetabolite(met Metabolite) error {
	if met.ID == "" {
		return fmt.Errorf("%w: metabolite with empty id", ErrInvalidModel)
	}
	if _, ok := m.metIndex[met.ID]; ok {
		return fmt.Errorf("%w: duplicate metabolite %q", ErrInvalidModel, met.ID)
	}
	m.metIndex[met.ID] = len(m.metabolites)
	m.metabolites = append(m.metabolites, met)
	return nil
}

// AddGene registers a gene. Adding a known gene is a no-op, except that a
// non-empty name replaces an empty one.
func (m *Model) AddGene(g Gene) {
	if i, ok := m.geneIndex[g.ID]; ok {
		if m.genes[i].Name == "" {
			m.genes[i].Name = g.Name
		}
		return
	}
	m.geneIndex[g.ID] = len(m.genes)
	m.genes = append(m.genes, g)
}

// AddReaction validates and registers a reaction. Every metabolite must be
// known and the rule must parse. Genes named by the rule that are not yet
// registered are added.
func (m *Model) AddReaction(r Reaction) error {
	if r.ID == "" {
		return fmt.Errorf("%w: reaction with empty id", ErrInvalidModel)
	}
	if _, ok := m.rxIndex[r.ID]; ok {
		return fmt.Errorf("%w: duplicate reaction %q", ErrInvalidModel, r.ID)
	}
	if math.IsNaN(r.LowerBound) || math.IsNaN(r.UpperBound) || r.LowerBound > r.UpperBound {
		return fmt.Errorf("%w: reaction %q has bounds [%g, %g]", ErrInvalidModel, r.ID, r.LowerBound, r.UpperBound)
	}
	for met, coef := range r.Metabolites {
		if _, ok := m.metIndex[met]; !ok {
			return fmt.Errorf("%w: reaction %q uses unknown metabolite %q", ErrInvalidModel, r.ID, met)
		}
		if math.IsNaN(coef) || math.IsInf(coef, 0) {
			return fmt.Errorf("%w: reaction %q has coefficient %g for %q", ErrInvalidModel, r.ID, coef, met)
		}
	}
	rule, err := ParseRule(r.GeneRule)
	if err != nil {
		return fmt.Errorf("%w: reaction %q: %v", ErrInvalidModel, r.ID, err)
	}

	r.Metabolites = maps.Clone(r.Metabolites)
	idx := len(m.reactions)
	m.rxIndex[r.ID] = idx
	m.reactions = append(m.reactions, r)
	m.rules = append(m.rules, rule)

	if rule != nil {
		for _, g := range rule.Genes() {
			m.AddGene(Gene{ID: g})
			m.geneReactions[g] = append(m.geneReactions[g], idx)
		}
	}
	return nil
}

// Reaction returns a copy of the reaction with the given id.
func (m *Model) Reaction(id string) (Reaction, bool) {
	i, ok := m.rxIndex[id]
	if !ok {
		return Reaction{}, false
	}
	return m.reactions[i], true
}

// Metabolite returns the metabolite with the given id.
func (m *Model) Metabolite(id string) (Metabolite, bool) {
	i, ok := m.metIndex[id]
	if !ok {
		return Metabolite{}, false
	}
	return m.metabolites[i], true
}

// ReactionList returns copies of all reactions in model order.
func (m *Model) ReactionList() []Reaction { return slices.Clone(m.reactions) }

// MetaboliteList returns all metabolites in model order.
func (m *Model) MetaboliteList() []Metabolite { return slices.Clone(m.metabolites) }

// GeneReactions returns the ids of reactions whose rule names the gene.
func (m *Model) GeneReactions(gene string) []string {
	idxs := m.geneReactions[gene]
	out := make([]string, len(idxs))
	for i, idx := range idxs {
		out[i] = m.reactions[idx].ID
	}
	return out
}

// ReactionsOf returns the ids of reactions that involve the metabolite.
func (m *Model) ReactionsOf(metabolite string) []string {
	var out []string
	for _, r := range m.reactions {
		if _, ok := r.Metabolites[metabolite]; ok {
			out = append(out, r.ID)
		}
	}
	return out
}

func (m *Model) Reactions() []string {
	ids := make([]string, len(m.reactions))
	for i, r := range m.reactions {
		ids[i] = r.ID
	}
	return ids
}

func (m *Model) Genes() []string {
	ids := make([]string, len(m.genes))
	for i, g := range m.genes {
		ids[i] = g.ID
	}
	return ids
}

func (m *Model) Metabolites() []string {
	ids := make([]string, len(m.metabolites))
	for i, met := range m.metabolites {
		ids[i] = met.ID
	}
	return ids
}

func (m *Model) Bounds(reaction string) (float64, float64, error) {
	i, ok := m.rxIndex[reaction]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownReaction, reaction)
	}
	return m.reactions[i].LowerBound, m.reactions[i].UpperBound, nil
}

func (m *Model) SetBounds(reaction string, lower, upper float64) error {
	i, ok := m.rxIndex[reaction]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownReaction, reaction)
	}
	if math.IsNaN(lower) || math.IsNaN(upper) || lower > upper {
		return fmt.Errorf("%w: %q [%g, %g]", ErrInvalidBounds, reaction, lower, upper)
	}
	m.reactions[i].LowerBound = lower
	m.reactions[i].UpperBound = upper
	return nil
}

func (m *Model) GeneRule(reaction string) (*Rule, error) {
	i, ok := m.rxIndex[reaction]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReaction, reaction)
	}
	return m.rules[i], nil
}

func (m *Model) Stoichiometry(reaction string) (map[string]float64, error) {
	i, ok := m.rxIndex[reaction]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReaction, reaction)
	}
	return m.reactions[i].Metabolites, nil
}

func (m *Model) DisabledReactions(genes []string) ([]string, error) {
	removed := make(map[string]bool, len(genes))
	touched := make(map[int]bool)
	for _, g := range genes {
		if _, ok := m.geneIndex[g]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGene, g)
		}
		removed[g] = true
		for _, idx := range m.geneReactions[g] {
			touched[idx] = true
		}
	}

	idxs := make([]int, 0, len(touched))
	for idx := range touched {
		if !m.rules[idx].Active(removed) {
			idxs = append(idxs, idx)
		}
	}
	sort.Ints(idxs)

	out := make([]string, len(idxs))
	for i, idx := range idxs {
		out[i] = m.reactions[idx].ID
	}
	return out, nil
}

// Clone copies reactions and indexes. Stoichiometry maps and parsed rules
// are shared; neither is modified after AddReaction.
func (m *Model) Clone() Network { return m.clone() }

func (m *Model) clone() *Model {
	c := &Model{
		id:            m.id,
		reactions:     slices.Clone(m.reactions),
		rules:         slices.Clone(m.rules),
		rxIndex:       maps.Clone(m.rxIndex),
		metabolites:   slices.Clone(m.metabolites),
		metIndex:      maps.Clone(m.metIndex),
		genes:         slices.Clone(m.genes),
		geneIndex:     maps.Clone(m.geneIndex),
		geneReactions: make(map[string][]int, len(m.geneReactions)),
	}
	for g, idxs := range m.geneReactions {
		c.geneReactions[g] = slices.Clone(idxs)
	}
	return c
}

// ObjectiveReactions returns reactions with a non-zero objective coefficient.
func (m *Model) ObjectiveReactions() []string {
	var out []string
	for _, r := range m.reactions {
		if r.ObjectiveCoefficient != 0 {
			out = append(out, r.ID)
		}
	}
	return out
}

// Fingerprint hashes reactions, stoichiometry, bounds and rules. Two
// models with the same fingerprint produce the same solver results.
func (m *Model) Fingerprint() string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

	for _, r := range m.reactions {
		write(r.ID)
		write(ff(r.LowerBound))
		write(ff(r.UpperBound))
		write(r.GeneRule)
		mets := slices.Sorted(maps.Keys(r.Metabolites))
		for _, met := range mets {
			write(met)
			write(ff(r.Metabolites[met]))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
