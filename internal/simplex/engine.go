// Package simplex implements the revised dual simplex engine (component
// C4, "Ekk" in the design notes). The outer loop, state machine, and the
// separation of a short-lived per-iteration DualRow value from
// long-lived engine state are grounded on the cyclic-state design note in
// spec.md §9; the underlying triangular-solve and pivoting mechanics
// reuse the teacher's numerical style (threshold pivot acceptance,
// explicit synthetic work counters) carried down from internal/factor.
package simplex

import (
	"math"

	"github.com/pkg/errors"

	"github.com/edp1096/dsimplex/internal/config"
	"github.com/edp1096/dsimplex/internal/lpmodel"
	"github.com/edp1096/dsimplex/internal/nla"
	"github.com/edp1096/dsimplex/internal/sparse"
)

// State is the outer-loop state machine of spec.md §4.4.4.
type State int

const (
	StateInit State = iota
	StatePriced
	StateBtranDone
	StateRowFormed
	StatePivoted
	StateUpdating
	// StateOK means one iteration completed cleanly; the caller should
	// call Step again. It is distinct from StateOptimal, which means
	// CHUZR found no infeasible row and the solve has converged.
	StateOK
	StateOptimal
	StateRefactorNeeded
	StateUnbounded
	StateInfeasible
	StateIterationLimit
	StateTimeLimit
	StateError
)

// Outcome is the terminal solver status reported to the driver.
type Outcome int

const (
	OutcomeOptimal Outcome = iota
	OutcomeInfeasible
	OutcomeUnbounded
	OutcomeIterationLimit
	OutcomeTimeLimit
	OutcomeError
)

// ErrRefactorFailed names the failure of re-inversion more than m times
// (spec.md §4.4.4). No function returns it: the driver reports that case
// as StateError.
var ErrRefactorFailed = errors.New("simplex: refactor failed repeatedly")

// Engine owns the dual simplex iteration state: the basis, primal/dual
// values, edge weights, and its Factor/Nla. The LP and scaling data are
// shared read-only per spec.md §5.
type Engine struct {
	Model *lpmodel.Model
	Opts  *config.Options

	Basis *lpmodel.Basis
	Nla   *nla.Nla

	// numTot is n + m, the total variable count.
	numTot int

	XB []float64 // primal values of the basic variables, indexed by basis row
	DN []float64 // reduced costs, indexed by full variable index (meaningful for nonbasic)

	// Range[j] = upper[j] - lower[j] for every variable, +Inf for free/one-sided.
	Range []float64

	// EdgeWeight[i] is the DSE/Devex weight of basis row i.
	EdgeWeight []float64

	// freelist holds nonbasic free variables (spec.md §4.4.3).
	freelist map[int]bool

	// numTotPermutation is the fixed anti-cycling tie-break permutation
	// (spec.md §4.4.2).
	numTotPermutation []int

	updateCountAtLastRefactor int
	iterations                int64
	refactorFailures          int

	state State
}

// bound returns (lower, upper) for full variable index j: structural
// columns read Model bounds, logical columns read the row bounds directly
// (the logical column tracks the row in the same units the rest of the
// engine's A_full/-N x_N bookkeeping already uses for it).
func (e *Engine) bound(j int) (float64, float64) {
	if j < e.Model.NumCols {
		return e.Model.ColLower[j], e.Model.ColUpper[j]
	}
	i := j - e.Model.NumCols
	return e.Model.RowLower[i], e.Model.RowUpper[i]
}

func (e *Engine) cost(j int) float64 {
	if j < e.Model.NumCols {
		return e.Model.Cost[j]
	}
	return 0
}

// New builds an Engine over an assessed model with a starting basis and an
// already-Built Nla (factor plus scaling). n is shared, not copied: the
// caller may reuse the same Nla — including its frozen-basis arena and
// update-region generation counter — across multiple Engines built in
// sequence, which is what warm-starting a branch-and-bound child node from
// its parent's basis requires (spec.md §4.5).
func New(m *lpmodel.Model, opts *config.Options, basis *lpmodel.Basis, n *nla.Nla) *Engine {
	numTot := m.NumCols + m.NumRows
	e := &Engine{
		Model:             m,
		Opts:              opts,
		Basis:             basis,
		Nla:               n,
		numTot:            numTot,
		XB:                make([]float64, m.NumRows),
		DN:                make([]float64, numTot),
		Range:             make([]float64, numTot),
		EdgeWeight:        make([]float64, m.NumRows),
		freelist:          make(map[int]bool),
		numTotPermutation: identityPermutation(numTot),
		state:             StateInit,
	}
	for j := 0; j < numTot; j++ {
		lo, up := e.bound(j)
		if math.IsInf(lo, -1) && math.IsInf(up, 1) {
			e.Range[j] = math.Inf(1)
		} else {
			e.Range[j] = up - lo
		}
	}
	for i := range e.EdgeWeight {
		e.EdgeWeight[i] = 1
	}
	e.rebuildFreelist()
	return e
}

func identityPermutation(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

func (e *Engine) rebuildFreelist() {
	for j := 0; j < e.numTot; j++ {
		if e.Basis.IsBasic(j) {
			continue
		}
		lo, up := e.bound(j)
		if math.IsInf(lo, -1) && math.IsInf(up, 1) {
			e.freelist[j] = true
		}
	}
}

// RecomputePrimal recomputes x_B from scratch via FTRAN of the current
// nonbasic values. It is called after a Build (engine construction and
// refactor); no iteration count triggers it.
func (e *Engine) RecomputePrimal() error {
	rhs := sparse.NewHVector(e.Model.NumRows)
	for j := 0; j < e.numTot; j++ {
		if e.Basis.IsBasic(j) {
			continue
		}
		v := e.nonbasicValue(j)
		if v == 0 {
			continue
		}
		if j < e.Model.NumCols {
			e.Model.A.CollectCol(j, -v, rhs)
		} else {
			i := j - e.Model.NumCols
			if rhs.Val[i] == 0 {
				rhs.Idx = append(rhs.Idx, i)
			}
			rhs.Val[i] += -v
		}
	}
	// Also account for the row's own RHS (rows are stored as bounds on the
	// logical column directly, so no separate b vector is needed).
	if err := e.Nla.FTRAN(rhs); err != nil {
		return err
	}
	for i := range e.XB {
		e.XB[i] = 0
	}
	for _, i := range rhs.Idx {
		e.XB[i] = rhs.Val[i]
	}
	return nil
}

func (e *Engine) nonbasicValue(j int) float64 {
	lo, up := e.bound(j)
	switch e.Basis.Move[j] {
	case lpmodel.MoveUp:
		return lo
	case lpmodel.MoveDown:
		return up
	default:
		return 0
	}
}

// RecomputeDual recomputes d_N from scratch: d_N = c_N - A_N^T y where
// B^T y = c_B. This is the full resync counterpart to the incremental
// update in Step, per the periodic-resync open question in spec.md §9.
func (e *Engine) RecomputeDual() error {
	cB := sparse.NewHVector(e.Model.NumRows)
	for i, bi := range e.Basis.BaseIndex {
		c := e.cost(bi)
		if c != 0 {
			cB.SetFresh(i, c)
		}
	}
	if err := e.Nla.BTRAN(cB); err != nil {
		return err
	}
	y := make([]float64, e.Model.NumRows)
	for _, i := range cB.Idx {
		y[i] = cB.Val[i]
	}
	for j := 0; j < e.numTot; j++ {
		if e.Basis.IsBasic(j) {
			e.DN[j] = 0
			continue
		}
		var aty float64
		if j < e.Model.NumCols {
			aty = e.Model.A.Dot(j, y)
		} else {
			aty = y[j-e.Model.NumCols]
		}
		e.DN[j] = e.cost(j) - aty
	}
	return nil
}

// State returns the engine's current outer-loop state.
func (e *Engine) State() State { return e.state }

// Iterations returns the number of completed iterations.
func (e *Engine) Iterations() int64 { return e.iterations }
