// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/knockout-engine/internal/model"
	"github.com/pdiddy/knockout-engine/internal/model/modeltest"
)

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		addDemand bool
		want      string
		wantErr   error
	}{
		{name: "reaction id", target: "HMG", want: "HMG"},
		{name: "metabolite with export", target: "mev", want: "EX_mev"},
		{name: "metabolite export for uptake metabolite", target: "glc", want: "EX_glc"},
		{name: "metabolite without export", target: "accoa", wantErr: model.ErrTargetNotFound},
		{name: "metabolite with demand added", target: "accoa", addDemand: true, want: "DM_accoa"},
		{name: "unknown id", target: "nothing", wantErr: model.ErrTargetNotFound},
		{name: "empty", target: "", wantErr: model.ErrTargetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := modeltest.Toy(t)
			got, err := model.ResolveTarget(m, tt.target, tt.addDemand)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveTargetAddsDemandReaction(t *testing.T) {
	m := modeltest.Toy(t)
	id, err := model.ResolveTarget(m, "accoa", true)
	require.NoError(t, err)

	st, err := m.Stoichiometry(id)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"accoa": -1}, st)

	lo, hi, err := m.Bounds(id)
	require.NoError(t, err)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, model.DefaultUpperBound, hi)
}

func TestResolveTargetAmbiguous(t *testing.T) {
	m := modeltest.Toy(t)
	require.NoError(t, m.AddReaction(model.Reaction{
		ID: "sink_mev", Metabolites: map[string]float64{"mev": -1}, UpperBound: 10,
	}))

	_, err := model.ResolveTarget(m, "mev", false)
	require.ErrorIs(t, err, model.ErrAmbiguousTarget)
	assert.Contains(t, err.Error(), "EX_mev, sink_mev")
}

func TestResolveObjective(t *testing.T) {
	m := modeltest.Toy(t)

	got, err := model.ResolveObjective(m, "")
	require.NoError(t, err)
	assert.Equal(t, "BIO", got)

	got, err = model.ResolveObjective(m, "HMG")
	require.NoError(t, err)
	assert.Equal(t, "HMG", got)

	_, err = model.ResolveObjective(m, "NOPE")
	assert.ErrorIs(t, err, model.ErrUnknownReaction)

	none := model.New("none")
	require.NoError(t, none.AddMetabolite(model.Metabolite{ID: "a"}))
	require.NoError(t, none.AddReaction(model.Reaction{ID: "R", Metabolites: map[string]float64{"a": -1}}))
	_, err = model.ResolveObjective(none, "")
	assert.ErrorIs(t, err, model.ErrNoObjective)
}
