// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package modeltest provides small networks for tests.
package modeltest

import (
	"strconv"
	"testing"

	"github.com/pdiddy/knockout-engine/internal/model"
)

// ToyJSON is a COBRA JSON document for a nine-reaction network: glucose
// uptake feeds biomass (BIO) and a mevalonate branch exported by EX_mev.
//
// With 10 units of glucose the maximum BIO flux is 20/3. Holding BIO at
// 80% of that leaves 4/3 for EX_mev.
const ToyJSON = `{
  "id": "toy",
  "metabolites": [
    {"id": "glc", "name": "D-glucose", "formula": "C6H12O6", "compartment": "c"},
    {"id": "g6p", "name": "glucose 6-phosphate", "compartment": "c"},
    {"id": "pyr", "name": "pyruvate", "formula": "C3H3O3", "compartment": "c"},
    {"id": "accoa", "name": "acetyl-CoA", "compartment": "c"},
    {"id": "mev", "name": "mevalonate", "formula": "C6H11O4", "compartment": "c"},
    {"id": "ac", "name": "acetate", "compartment": "c"}
  ],
  "reactions": [
    {"id": "EX_glc", "name": "glucose exchange", "metabolites": {"glc": -1}, "lower_bound": -10, "upper_bound": 1000},
    {"id": "HEX", "name": "hexokinase", "subsystem": "Glycolysis", "metabolites": {"glc": -1, "g6p": 1}, "lower_bound": 0, "upper_bound": 1000, "gene_reaction_rule": "g1"},
    {"id": "PGI", "name": "lower glycolysis", "subsystem": "Glycolysis", "metabolites": {"g6p": -1, "pyr": 2}, "lower_bound": 0, "upper_bound": 1000, "gene_reaction_rule": "g2 or g3"},
    {"id": "PDH", "name": "pyruvate dehydrogenase", "subsystem": "Central", "metabolites": {"pyr": -1, "accoa": 1}, "lower_bound": 0, "upper_bound": 1000, "gene_reaction_rule": "g4 and g5"},
    {"id": "HMG", "name": "mevalonate synthesis", "subsystem": "Mevalonate pathway", "metabolites": {"accoa": -3, "mev": 1}, "lower_bound": 0, "upper_bound": 1000, "gene_reaction_rule": "g6"},
    {"id": "EX_mev", "name": "mevalonate export", "metabolites": {"mev": -1}, "lower_bound": 0, "upper_bound": 1000},
    {"id": "ACK", "name": "acetate kinase", "subsystem": "Fermentation", "metabolites": {"pyr": -1, "ac": 1}, "lower_bound": 0, "upper_bound": 1000, "gene_reaction_rule": "g7"},
    {"id": "EX_ac", "name": "acetate exchange", "metabolites": {"ac": -1}, "lower_bound": 0, "upper_bound": 1000},
    {"id": "BIO", "name": "biomass", "metabolites": {"g6p": -1, "accoa": -1}, "lower_bound": 0, "upper_bound": 1000, "objective_coefficient": 1}
  ],
  "genes": [
    {"id": "g1", "name": "HXK1"},
    {"id": "g2", "name": "PGI1"},
    {"id": "g3"},
    {"id": "g4"},
    {"id": "g5"},
    {"id": "g6", "name": "HMG1"},
    {"id": "g7"}
  ]
}
`

// Expected optima of the toy network.
const (
	ToyMaxGrowth  = 20.0 / 3
	ToyProduction = 4.0 / 3 // EX_mev with BIO held at 0.8 x ToyMaxGrowth
)

// Toy returns a fresh toy network.
func Toy(t testing.TB) *model.Model {
	t.Helper()
	m, err := model.Parse([]byte(ToyJSON), ".json")
	if err != nil {
		t.Fatalf("parsing toy model: %v", err)
	}
	return m
}

// Chain returns a network with n independent reactions R1..Rn, each
// consuming its own metabolite, plus a BIO reaction. It is used where only
// ids and bounds matter.
func Chain(t testing.TB, n int) *model.Model {
	t.Helper()
	m := model.New("chain")
	if err := m.AddMetabolite(model.Metabolite{ID: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddReaction(model.Reaction{
		ID: "BIO", Metabolites: map[string]float64{"x": -1},
		UpperBound: 10, ObjectiveCoefficient: 1,
	}); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= n; i++ {
		met := "m" + strconv.Itoa(i)
		if err := m.AddMetabolite(model.Metabolite{ID: met}); err != nil {
			t.Fatal(err)
		}
		if err := m.AddReaction(model.Reaction{
			ID:          "R" + strconv.Itoa(i),
			Metabolites: map[string]float64{met: -1},
			UpperBound:  5,
			GeneRule:    "gene" + strconv.Itoa(i),
		}); err != nil {
			t.Fatal(err)
		}
	}
	return m
}
