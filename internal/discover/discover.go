// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover helps pick a production target before a search: keyword
// search over reactions and metabolites, and a listing of the boundary
// reactions that touch a metabolite. The search engine never uses it; the
// target it runs on is always an explicit id.
package discover

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/pdiddy/knockout-engine/internal/model"
)

// ErrNoKeywords is returned when a search has nothing to look for.
var ErrNoKeywords = errors.New("discover: at least one keyword is required")

// Options controls a keyword search.
type Options struct {
	Keywords      []string
	CaseSensitive bool
}

// FieldMatch names a field whose value contains a keyword.
type FieldMatch struct {
	Field string `json:"field" yaml:"field"`
	Value string `json:"value" yaml:"value"`
}

// ReactionMatch is a reaction whose id, name or subsystem matched, or
// that involves a matching metabolite.
type ReactionMatch struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name,omitempty" yaml:"name,omitempty"`
	Subsystem  string       `json:"subsystem,omitempty" yaml:"subsystem,omitempty"`
	Equation   string       `json:"equation" yaml:"equation"`
	LowerBound float64      `json:"lower_bound" yaml:"lower_bound"`
	UpperBound float64      `json:"upper_bound" yaml:"upper_bound"`
	Fields     []FieldMatch `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Metabolites lists matching metabolites the reaction involves.
	Metabolites []string `json:"metabolites,omitempty" yaml:"metabolites,omitempty"`
}

// MetaboliteMatch is a metabolite with at least one matching field.
type MetaboliteMatch struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name,omitempty" yaml:"name,omitempty"`
	Compartment string       `json:"compartment,omitempty" yaml:"compartment,omitempty"`
	Fields      []FieldMatch `json:"fields" yaml:"fields"`
}

// Result holds the matches of a search, in model order.
type Result struct {
	Keywords    []string          `json:"keywords" yaml:"keywords"`
	Reactions   []ReactionMatch   `json:"reactions" yaml:"reactions"`
	Metabolites []MetaboliteMatch `json:"metabolites" yaml:"metabolites"`
}

// Search finds reactions and metabolites mentioning any keyword.
func Search(m *model.Model, opts Options) (Result, error) {
	var keywords []string
	for _, k := range opts.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		return Result{}, ErrNoKeywords
	}
	match := matcher(keywords, opts.CaseSensitive)

	res := Result{Keywords: keywords, Reactions: []ReactionMatch{}, Metabolites: []MetaboliteMatch{}}
	metMatched := make(map[string]bool)
	for _, met := range m.MetaboliteList() {
		fields := matchFields(match,
			FieldMatch{"id", met.ID}, FieldMatch{"name", met.Name},
			FieldMatch{"formula", met.Formula}, FieldMatch{"compartment", met.Compartment})
		if len(fields) == 0 {
			continue
		}
		// Compartment alone ("c") matches too broadly to mark reactions.
		if slices.ContainsFunc(fields, func(f FieldMatch) bool { return f.Field == "id" || f.Field == "name" }) {
			metMatched[met.ID] = true
		}
		res.Metabolites = append(res.Metabolites, MetaboliteMatch{
			ID: met.ID, Name: met.Name, Compartment: met.Compartment, Fields: fields,
		})
	}

	for _, rx := range m.ReactionList() {
		fields := matchFields(match,
			FieldMatch{"id", rx.ID}, FieldMatch{"name", rx.Name}, FieldMatch{"subsystem", rx.Subsystem})
		var mets []string
		for _, id := range sortedMetabolites(rx) {
			if metMatched[id] {
				mets = append(mets, id)
			}
		}
		if len(fields) == 0 && len(mets) == 0 {
			continue
		}
		res.Reactions = append(res.Reactions, ReactionMatch{
			ID:          rx.ID,
			Name:        rx.Name,
			Subsystem:   rx.Subsystem,
			Equation:    Equation(rx),
			LowerBound:  rx.LowerBound,
			UpperBound:  rx.UpperBound,
			Fields:      fields,
			Metabolites: mets,
		})
	}
	return res, nil
}

func matcher(keywords []string, caseSensitive bool) func(string) bool {
	if !caseSensitive {
		lowered := make([]string, len(keywords))
		for i, k := range keywords {
			lowered[i] = strings.ToLower(k)
		}
		keywords = lowered
	}
	return func(text string) bool {
		if text == "" {
			return false
		}
		if !caseSensitive {
			text = strings.ToLower(text)
		}
		for _, k := range keywords {
			if strings.Contains(text, k) {
				return true
			}
		}
		return false
	}
}

func matchFields(match func(string) bool, candidates ...FieldMatch) []FieldMatch {
	var out []FieldMatch
	for _, f := range candidates {
		if match(f.Value) {
			out = append(out, f)
		}
	}
	return out
}

// Boundaries returns the boundary (single-metabolite) reactions of m that
// involve the metabolite, in model order. These are the candidates for a
// production target.
func Boundaries(m *model.Model, metabolite string) ([]model.Reaction, error) {
	if _, ok := m.Metabolite(metabolite); !ok {
		return nil, fmt.Errorf("%w: metabolite %q", model.ErrTargetNotFound, metabolite)
	}
	var out []model.Reaction
	for _, id := range m.ReactionsOf(metabolite) {
		rx, _ := m.Reaction(id)
		if rx.Boundary() {
			out = append(out, rx)
		}
	}
	return out, nil
}

// Equation formats a reaction as "2 a + b -> c". Reversible reactions use
// "<=>", and reactions that only run backwards use "<-".
func Equation(rx model.Reaction) string {
	var left, right []string
	for _, id := range sortedMetabolites(rx) {
		coef := rx.Metabolites[id]
		term := id
		if c := math.Abs(coef); c != 1 {
			term = strconv.FormatFloat(c, 'g', -1, 64) + " " + id
		}
		if coef < 0 {
			left = append(left, term)
		} else {
			right = append(right, term)
		}
	}
	arrow := "->"
	switch {
	case rx.LowerBound < 0 && rx.UpperBound > 0:
		arrow = "<=>"
	case rx.LowerBound < 0:
		arrow = "<-"
	}
	return strings.TrimSpace(strings.Join(left, " + ") + " " + arrow + " " + strings.Join(right, " + "))
}

func sortedMetabolites(rx model.Reaction) []string {
	ids := make([]string, 0, len(rx.Metabolites))
	for id := range rx.Metabolites {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
