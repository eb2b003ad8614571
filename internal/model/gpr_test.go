// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		genes  []string
		isNil  bool
		errMsg string
	}{
		{name: "empty", input: "", isNil: true},
		{name: "blank", input: "   ", isNil: true},
		{name: "single gene", input: "b0001", want: "b0001", genes: []string{"b0001"}},
		{name: "and", input: "a and b", want: "a and b", genes: []string{"a", "b"}},
		{name: "or", input: "a or b or c", want: "a or b or c", genes: []string{"a", "b", "c"}},
		{name: "and binds tighter", input: "a or b and c", want: "a or (b and c)", genes: []string{"a", "b", "c"}},
		{name: "parentheses", input: "(a or b) and c", want: "(a or b) and c", genes: []string{"a", "b", "c"}},
		{name: "upper case keywords", input: "a AND (b OR c)", want: "a and (b or c)", genes: []string{"a", "b", "c"}},
		{name: "nested flatten", input: "a and (b and c)", want: "a and b and c", genes: []string{"a", "b", "c"}},
		{name: "tight parentheses", input: "(a)and(b)", want: "a and b", genes: []string{"a", "b"}},
		{name: "repeated gene", input: "a or (a and b)", want: "a or (a and b)", genes: []string{"a", "b"}},
		{name: "dangling and", input: "a and", errMsg: "rule ends"},
		{name: "leading or", input: "or a", errMsg: "unexpected"},
		{name: "unclosed", input: "(a or b", errMsg: "missing closing parenthesis"},
		{name: "extra close", input: "a or b)", errMsg: "unexpected"},
		{name: "empty group", input: "()", errMsg: "unexpected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseRule(tt.input)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			if tt.isNil {
				assert.Nil(t, r)
				return
			}
			require.NotNil(t, r)
			assert.Equal(t, tt.want, r.String())
			assert.Equal(t, tt.genes, r.Genes())
		})
	}
}

func TestRuleActive(t *testing.T) {
	r, err := ParseRule("(g1 and g2) or g3")
	require.NoError(t, err)

	tests := []struct {
		removed []string
		want    bool
	}{
		{nil, true},
		{[]string{"g1"}, true},
		{[]string{"g3"}, true},
		{[]string{"g1", "g3"}, false},
		{[]string{"g2", "g3"}, false},
		{[]string{"g1", "g2"}, true},
		{[]string{"other"}, true},
	}
	for _, tt := range tests {
		removed := make(map[string]bool)
		for _, g := range tt.removed {
			removed[g] = true
		}
		assert.Equal(t, tt.want, r.Active(removed), "removed %v", tt.removed)
	}
}
