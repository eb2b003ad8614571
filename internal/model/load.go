// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Default bounds for reactions that omit them, matching COBRA conventions.
const (
	DefaultLowerBound = 0.0
	DefaultUpperBound = 1000.0
)

// document is the on-disk layout of a COBRA JSON or YAML model.
type document struct {
	ID          string        `json:"id" yaml:"id"`
	Metabolites []metabolite  `json:"metabolites" yaml:"metabolites"`
	Reactions   []reactionDoc `json:"reactions" yaml:"reactions"`
	Genes       []gene        `json:"genes" yaml:"genes"`
}

type metabolite struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Formula     string `json:"formula" yaml:"formula"`
	Compartment string `json:"compartment" yaml:"compartment"`
}

type gene struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type reactionDoc struct {
	ID                   string             `json:"id" yaml:"id"`
	Name                 string             `json:"name" yaml:"name"`
	Subsystem            string             `json:"subsystem" yaml:"subsystem"`
	Metabolites          map[string]float64 `json:"metabolites" yaml:"metabolites"`
	LowerBound           *float64           `json:"lower_bound" yaml:"lower_bound"`
	UpperBound           *float64           `json:"upper_bound" yaml:"upper_bound"`
	GeneReactionRule     string             `json:"gene_reaction_rule" yaml:"gene_reaction_rule"`
	ObjectiveCoefficient float64            `json:"objective_coefficient" yaml:"objective_coefficient"`
}

// Load reads a model file. The format is chosen by extension: .json, or
// .yaml / .yml.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	m, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if m.id == "" {
		m.id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return m, nil
}

// Parse decodes a model document. ext is ".json", ".yaml" or ".yml".
func Parse(data []byte, ext string) (*Model, error) {
	var doc document
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported model format %q", ErrInvalidModel, ext)
	}
	return build(doc)
}

func build(doc document) (*Model, error) {
	m := New(doc.ID)
	for _, met := range doc.Metabolites {
		if err := m.AddMetabolite(Metabolite(met)); err != nil {
			return nil, err
		}
	}
	for _, g := range doc.Genes {
		if g.ID == "" {
			return nil, fmt.Errorf("%w: gene with empty id", ErrInvalidModel)
		}
		m.AddGene(Gene(g))
	}
	for _, rd := range doc.Reactions {
		r := Reaction{
			ID:                   rd.ID,
			Name:                 rd.Name,
			Subsystem:            rd.Subsystem,
			Metabolites:          rd.Metabolites,
			LowerBound:           DefaultLowerBound,
			UpperBound:           DefaultUpperBound,
			GeneRule:             rd.GeneReactionRule,
			ObjectiveCoefficient: rd.ObjectiveCoefficient,
		}
		if rd.LowerBound != nil {
			r.LowerBound = *rd.LowerBound
		}
		if rd.UpperBound != nil {
			r.UpperBound = *rd.UpperBound
		}
		if err := m.AddReaction(r); err != nil {
			return nil, err
		}
	}
	if len(m.reactions) == 0 {
		return nil, fmt.Errorf("%w: no reactions", ErrInvalidModel)
	}
	return m, nil
}
