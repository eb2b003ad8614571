// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// RuleOp is the node type of a gene-reaction rule tree.
type RuleOp int

const (
	RuleGene RuleOp = iota
	RuleAnd
	RuleOr
)

// Rule is a parsed gene-reaction rule. An And node needs every child, an
// Or node needs any child, and a Gene leaf is present unless knocked out.
type Rule struct {
	Op   RuleOp
	Gene string
	Args []*Rule
}

// ParseRule parses a rule such as "b0001 and (b0002 or b0003)". The
// keywords are case-insensitive, and binds tighter than or, and parentheses
// group. An empty or blank rule returns nil with no error.
func ParseRule(s string) (*Rule, error) {
	toks := tokenizeRule(s)
	if len(toks) == 0 {
		return nil, nil
	}
	p := &ruleParser{toks: toks}
	r, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("unexpected %q at token %d in rule %q", p.toks[p.pos], p.pos, s)
	}
	return r, nil
}

// Active reports whether the reaction governed by the rule can still run
// when the genes in removed are knocked out.
func (r *Rule) Active(removed map[string]bool) bool {
	switch r.Op {
	case RuleGene:
		return !removed[r.Gene]
	case RuleAnd:
		for _, a := range r.Args {
			if !a.Active(removed) {
				return false
			}
		}
		return true
	default:
		for _, a := range r.Args {
			if a.Active(removed) {
				return true
			}
		}
		return false
	}
}

// Genes returns the distinct genes named in the rule, sorted.
func (r *Rule) Genes() []string {
	seen := make(map[string]bool)
	var walk func(*Rule)
	walk = func(n *Rule) {
		if n.Op == RuleGene {
			seen[n.Gene] = true
			return
		}
		for _, a := range n.Args {
			walk(a)
		}
	}
	walk(r)

	genes := make([]string, 0, len(seen))
	for g := range seen {
		genes = append(genes, g)
	}
	sort.Strings(genes)
	return genes
}

func (r *Rule) String() string {
	switch r.Op {
	case RuleGene:
		return r.Gene
	case RuleAnd, RuleOr:
		sep := " and "
		if r.Op == RuleOr {
			sep = " or "
		}
		parts := make([]string, len(r.Args))
		for i, a := range r.Args {
			s := a.String()
			if a.Op != RuleGene && a.Op != r.Op {
				s = "(" + s + ")"
			}
			parts[i] = s
		}
		return strings.Join(parts, sep)
	}
	return ""
}

func tokenizeRule(s string) []string {
	var toks []string
	i := 0
	for i < len(s) {
		c := rune(s[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(' || c == ')':
			toks = append(toks, string(c))
			i++
		default:
			j := i
			for j < len(s) && !unicode.IsSpace(rune(s[j])) && s[j] != '(' && s[j] != ')' {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks
}

type ruleParser struct {
	toks []string
	pos  int
}

func (p *ruleParser) peekKeyword(kw string) bool {
	return p.pos < len(p.toks) && strings.EqualFold(p.toks[p.pos], kw)
}

func (p *ruleParser) parseOr() (*Rule, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	args := []*Rule{first}
	for p.peekKeyword("or") {
		p.pos++
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		args = append(args, next)
	}
	return flatten(RuleOr, args), nil
}

func (p *ruleParser) parseAnd() (*Rule, error) {
	first, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	args := []*Rule{first}
	for p.peekKeyword("and") {
		p.pos++
		next, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		args = append(args, next)
	}
	return flatten(RuleAnd, args), nil
}

func (p *ruleParser) parseTerm() (*Rule, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("rule ends where a gene was expected")
	}
	tok := p.toks[p.pos]
	switch {
	case tok == "(":
		p.pos++
		r, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos] != ")" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return r, nil
	case tok == ")", strings.EqualFold(tok, "and"), strings.EqualFold(tok, "or"):
		return nil, fmt.Errorf("unexpected %q where a gene was expected", tok)
	}
	p.pos++
	return &Rule{Op: RuleGene, Gene: tok}, nil
}

// flatten merges nested nodes of the same operator so "a and (b and c)"
// becomes a single three-way And.
func flatten(op RuleOp, args []*Rule) *Rule {
	if len(args) == 1 {
		return args[0]
	}
	out := &Rule{Op: op}
	for _, a := range args {
		if a.Op == op {
			out.Args = append(out.Args, a.Args...)
			continue
		}
		out.Args = append(out.Args, a)
	}
	return out
}
