// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/pdiddy/knockout-engine/internal/model"
)

const (
	// DefaultTolerance is passed to lp.Simplex.
	DefaultTolerance = 1e-10

	// rankTolerance decides when an eliminated stoichiometry row is zero.
	rankTolerance = 1e-9

	// objectiveSlack relaxes the held objective of a parsimonious solve, as
	// a fraction of max(1, |optimum|).
	objectiveSlack = 1e-7
)

// Simplex solves FBA and pFBA problems with gonum's dense simplex. It
// suits small and medium networks; every solve builds a dense matrix.
type Simplex struct {
	Tolerance float64
}

// NewSimplex returns a Simplex solver with DefaultTolerance.
func NewSimplex() *Simplex {
	return &Simplex{Tolerance: DefaultTolerance}
}

// Solve implements Solver.
func (s *Simplex) Solve(ctx context.Context, net model.Network, req Request) Solution {
	if ctx.Err() != nil {
		return FromContext(ctx)
	}
	if _, _, err := net.Bounds(req.Objective); err != nil {
		return Solution{Status: Error, Err: fmt.Errorf("objective: %w", err)}
	}

	p, err := newProblem(net)
	if err != nil {
		return Solution{Status: Error, Err: err}
	}

	first := s.run(ctx, p.fba(req))
	if first.status != Optimal || !req.Parsimonious {
		return p.solution(first, req, false)
	}

	opt := p.fluxes(first)[req.Objective]
	second := s.run(ctx, p.parsimonious(req, opt))
	return p.solution(second, req, true)
}

// run solves lp in a goroutine so the caller returns when ctx ends. The
// simplex itself cannot be interrupted and finishes in the background.
func (s *Simplex) run(ctx context.Context, l *linearProgram) lpResult {
	done := make(chan lpResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- lpResult{status: Error, err: fmt.Errorf("simplex panic: %v", r)}
			}
		}()
		done <- l.solve(s.tolerance())
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		sol := FromContext(ctx)
		return lpResult{status: sol.Status, err: sol.Err}
	}
}

func (s *Simplex) tolerance() float64 {
	if s.Tolerance <= 0 {
		return DefaultTolerance
	}
	return s.Tolerance
}

// problem is a snapshot of the network's reactions, bounds and
// stoichiometry taken at the start of a solve.
type problem struct {
	reactions []string
	lower     []float64
	upper     []float64
	stoich    []map[string]float64
	metRow    map[string]int
}

func newProblem(net model.Network) (*problem, error) {
	p := &problem{
		reactions: net.Reactions(),
		metRow:    make(map[string]int),
	}
	for i, met := range net.Metabolites() {
		p.metRow[met] = i
	}
	p.lower = make([]float64, len(p.reactions))
	p.upper = make([]float64, len(p.reactions))
	p.stoich = make([]map[string]float64, len(p.reactions))
	for j, rx := range p.reactions {
		lo, hi, err := net.Bounds(rx)
		if err != nil {
			return nil, err
		}
		st, err := net.Stoichiometry(rx)
		if err != nil {
			return nil, err
		}
		p.lower[j], p.upper[j], p.stoich[j] = lo, hi, st
	}
	return p, nil
}

func (p *problem) index(rx string) int {
	for j, id := range p.reactions {
		if id == rx {
			return j
		}
	}
	return -1
}

// fba builds the single-objective program: optimize the objective flux
// over the current bounds.
func (p *problem) fba(req Request) *linearProgram {
	obj := p.index(req.Objective)
	cols := make([]column, len(p.reactions))
	for j := range p.reactions {
		cols[j] = column{reaction: j, sign: 1, lower: p.lower[j], upper: p.upper[j]}
	}
	cols[obj].cost = -1
	if req.Sense == Minimize {
		cols[obj].cost = 1
	}
	return p.program(cols)
}

// parsimonious builds the total-flux program. Each reaction is split into
// a forward and a reverse part with non-negative bounds, the objective is
// held at opt, and the sum of both parts is minimized.
func (p *problem) parsimonious(req Request, opt float64) *linearProgram {
	obj := p.index(req.Objective)
	slack := objectiveSlack * math.Max(1, math.Abs(opt))

	cols := make([]column, 0, 2*len(p.reactions))
	for j := range p.reactions {
		lo, hi := p.lower[j], p.upper[j]
		if j == obj {
			if req.Sense == Maximize {
				lo = math.Min(math.Max(lo, opt-slack), hi)
			} else {
				hi = math.Max(math.Min(hi, opt+slack), lo)
			}
		}
		cols = append(cols,
			column{reaction: j, sign: 1, lower: math.Max(lo, 0), upper: math.Max(hi, 0), cost: 1},
			column{reaction: j, sign: -1, lower: math.Max(-hi, 0), upper: math.Max(-lo, 0), cost: 1},
		)
	}
	return p.program(cols)
}

func (p *problem) program(cols []column) *linearProgram {
	return &linearProgram{nRows: len(p.metRow), cols: cols, stoich: p.stoich, metRow: p.metRow}
}

// fluxes folds column values back into reaction fluxes.
func (p *problem) fluxes(res lpResult) map[string]float64 {
	out := make(map[string]float64, len(p.reactions))
	for _, rx := range p.reactions {
		out[rx] = 0
	}
	for k, col := range res.cols {
		out[p.reactions[col.reaction]] += col.sign * res.values[k]
	}
	return out
}

func (p *problem) solution(res lpResult, req Request, parsimonious bool) Solution {
	if res.status != Optimal {
		return Solution{Status: res.status, Err: res.err}
	}
	fluxes := p.fluxes(res)
	sol := Solution{Status: Optimal, ObjectiveValue: fluxes[req.Objective], Fluxes: fluxes}
	if parsimonious {
		for _, v := range res.values {
			sol.TotalFlux += v
		}
	}
	return sol
}

// column is one bounded variable of the program. Its flux contribution to
// reaction is sign x value.
type column struct {
	reaction int
	sign     float64
	lower    float64
	upper    float64
	cost     float64
}

type linearProgram struct {
	nRows  int
	cols   []column
	stoich []map[string]float64
	metRow map[string]int
}

type lpResult struct {
	status Status
	err    error
	cols   []column
	values []float64
}

// variable is a non-negative standard-form variable y mapped to a column
// value as offset + dir x y.
type variable struct {
	col    int
	dir    float64
	offset float64
	cost   float64
	span   float64 // finite upper limit of y, or +Inf
	coefs  map[int]float64
}

// solve converts the bounded program to standard form
//
//	minimize c'y  subject to  Ay = b, y >= 0
//
// and hands it to lp.Simplex.
func (l *linearProgram) solve(tol float64) lpResult {
	res := lpResult{cols: l.cols, values: make([]float64, len(l.cols))}
	rhs := make([]float64, l.nRows)
	var vars []variable

	for k, c := range l.cols {
		if math.IsInf(c.lower, 1) || math.IsInf(c.upper, -1) {
			res.status, res.err = Infeasible, fmt.Errorf("column %d has empty bounds", k)
			return res
		}
		coefs := make(map[int]float64, len(l.stoich[c.reaction]))
		for met, coef := range l.stoich[c.reaction] {
			if coef != 0 {
				coefs[l.metRow[met]] = c.sign * coef
			}
		}

		switch {
		case c.lower == c.upper:
			res.values[k] = c.lower
			for i, a := range coefs {
				rhs[i] -= a * c.lower
			}
		case !math.IsInf(c.lower, -1):
			for i, a := range coefs {
				rhs[i] -= a * c.lower
			}
			vars = append(vars, variable{col: k, dir: 1, offset: c.lower, cost: c.cost, span: c.upper - c.lower, coefs: coefs})
		case !math.IsInf(c.upper, 1):
			for i, a := range coefs {
				rhs[i] -= a * c.upper
			}
			vars = append(vars, variable{col: k, dir: -1, offset: c.upper, cost: -c.cost, span: math.Inf(1), coefs: negate(coefs)})
		default:
			vars = append(vars,
				variable{col: k, dir: 1, cost: c.cost, span: math.Inf(1), coefs: coefs},
				variable{col: k, dir: -1, cost: -c.cost, span: math.Inf(1), coefs: negate(coefs)},
			)
		}
	}

	rows, infeasible := independentRows(l.nRows, vars, rhs)
	if infeasible {
		res.status, res.err = Infeasible, lp.ErrInfeasible
		return res
	}
	inRow := make([]bool, l.nRows)
	for _, i := range rows {
		inRow[i] = true
	}

	// A variable that appears in no kept row and has no upper limit is
	// unconstrained: it either drives the objective to -Inf or sits at zero.
	var kept, dropped []variable
	for _, v := range vars {
		constrained := !math.IsInf(v.span, 1)
		for i := range v.coefs {
			if inRow[i] {
				constrained = true
				break
			}
		}
		if constrained {
			kept = append(kept, v)
			continue
		}
		if v.cost < 0 {
			res.status, res.err = Unbounded, lp.ErrUnbounded
			return res
		}
		dropped = append(dropped, v)
	}

	nSlack := 0
	for _, v := range kept {
		if !math.IsInf(v.span, 1) {
			nSlack++
		}
	}
	m := len(rows) + nSlack
	n := len(kept) + nSlack

	y := make([]float64, len(kept))
	if m > 0 {
		a := mat.NewDense(m, n, nil)
		b := make([]float64, m)
		c := make([]float64, n)
		rowPos := make(map[int]int, len(rows))
		for r, i := range rows {
			rowPos[i] = r
			b[r] = rhs[i]
		}
		slackRow, slackCol := len(rows), len(kept)
		for j, v := range kept {
			c[j] = v.cost
			for i, coef := range v.coefs {
				if r, ok := rowPos[i]; ok {
					a.Set(r, j, coef)
				}
			}
			if !math.IsInf(v.span, 1) {
				a.Set(slackRow, j, 1)
				a.Set(slackRow, slackCol, 1)
				b[slackRow] = v.span
				slackRow++
				slackCol++
			}
		}
		for r := range m {
			if b[r] < 0 {
				b[r] = -b[r]
				for j := range n {
					a.Set(r, j, -a.At(r, j))
				}
			}
		}

		_, x, err := lp.Simplex(c, a, b, tol, nil)
		if err != nil {
			res.status, res.err = statusOf(err), err
			return res
		}
		copy(y, x[:len(kept)])
	}

	for j, v := range kept {
		res.values[v.col] += v.offset + v.dir*y[j]
	}
	for _, v := range dropped {
		res.values[v.col] += v.offset
	}
	res.status = Optimal
	return res
}

func statusOf(err error) Status {
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return Infeasible
	case errors.Is(err, lp.ErrUnbounded):
		return Unbounded
	}
	return Error
}

// independentRows returns, in order, a maximal set of linearly independent
// stoichiometry rows over the free variables. A dependent row whose
// right-hand side does not follow the same combination makes the program
// infeasible.
func independentRows(nRows int, vars []variable, rhs []float64) ([]int, bool) {
	dense := make([][]float64, nRows)
	for i := range dense {
		dense[i] = make([]float64, len(vars))
	}
	for j, v := range vars {
		for i, coef := range v.coefs {
			dense[i][j] = coef
		}
	}

	type pivotRow struct {
		row   []float64
		rhs   float64
		pivot int
	}
	var basis []pivotRow
	var kept []int
	for i := range nRows {
		row := append([]float64(nil), dense[i]...)
		b := rhs[i]
		scale := 0.0
		for _, x := range row {
			scale = math.Max(scale, math.Abs(x))
		}
		for _, p := range basis {
			f := row[p.pivot] / p.row[p.pivot]
			if f == 0 {
				continue
			}
			for j := range row {
				row[j] -= f * p.row[j]
			}
			b -= f * p.rhs
		}

		pivot, best := -1, rankTolerance*math.Max(1, scale)
		for j, x := range row {
			if math.Abs(x) > best {
				pivot, best = j, math.Abs(x)
			}
		}
		if pivot < 0 {
			if math.Abs(b) > rankTolerance*math.Max(1, math.Abs(rhs[i])) {
				return nil, true
			}
			continue
		}
		basis = append(basis, pivotRow{row: row, rhs: b, pivot: pivot})
		kept = append(kept, i)
	}
	return kept, false
}

func negate(coefs map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(coefs))
	for i, a := range coefs {
		out[i] = -a
	}
	return out
}
