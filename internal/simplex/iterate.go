package simplex

import (
	"math"

	"github.com/edp1096/dsimplex/internal/factor"
	"github.com/edp1096/dsimplex/internal/lpmodel"
	"github.com/edp1096/dsimplex/internal/sparse"
)

// Step runs exactly one outer-loop iteration (spec.md §4.4.1), advancing
// through the state machine of §4.4.4 and returning the terminal state if
// this iteration concludes the solve. Callers pump Step in a loop and
// check budgets between calls, per the coroutine-like-iteration design
// note in spec.md §9.
func (e *Engine) Step() State {
	e.state = StateInit

	p, ok := e.chooseRow()
	if !ok {
		e.state = StateOptimal
		return e.state
	}
	e.state = StatePriced

	pi := sparse.NewHVector(e.Model.NumRows)
	pi.SetFresh(p, 1)
	if err := e.Nla.BTRAN(pi); err != nil {
		e.state = StateRefactorNeeded
		return e.state
	}
	e.state = StateBtranDone

	row := e.formRow(pi)
	e.state = StateRowFormed

	leavingVar := e.Basis.BaseIndex[p]
	deltaPrimal := e.XB[p]
	if e.Basis.Move[leavingVar] == 0 {
		// Basic variables always carry Move 0 (Step and NewBasis set it
		// so); the leaving direction is taken below from which bound
		// x_B[p] violates, not from Move.
	}
	lo, up := e.bound(leavingVar)
	var moveOut Move
	var targetBound float64
	if deltaPrimal < lo-e.Opts.PrimalFeasibilityTol {
		moveOut = moveUp
		targetBound = lo
	} else if deltaPrimal > up+e.Opts.PrimalFeasibilityTol {
		moveOut = moveDown
		targetBound = up
	} else {
		e.state = StateOK
		return e.state
	}

	dr := &dualRow{e: e, leavingRow: p, moveOut: moveOut, rowP: row}
	q, alphaQ, thetaDual, flips, ok := dr.chooseColumn(deltaPrimal - targetBound)
	if !ok {
		// chooseColumn found no entering candidate: the dual is unbounded in
		// this direction, which by duality means the original problem has
		// no feasible point (dualrow.go's chooseColumn doc comment).
		e.state = StateInfeasible
		return e.state
	}
	e.state = StatePivoted

	aQ := sparse.NewHVector(e.Model.NumRows)
	if q < e.Model.NumCols {
		e.Model.A.CollectCol(q, 1, aQ)
	} else {
		aQ.SetFresh(q-e.Model.NumCols, 1)
	}
	if err := e.Nla.FTRAN(aQ); err != nil {
		e.state = StateRefactorNeeded
		return e.state
	}

	e.applyFlips(flips, row)

	// The entering variable's new (basic) value is its old nonbasic anchor
	// plus the step that drives the leaving variable exactly to
	// targetBound. aQ[p] equals row_p[q] by the BTRAN/FTRAN adjoint
	// identity, so this is the standard dual-simplex ratio-test primal
	// update; it is a distinct quantity from thetaDual (DN[q]/alphaQ),
	// which only updates reduced costs below.
	enteringOld := e.nonbasicValue(q)
	primalStep := (targetBound - deltaPrimal) / aQ.Val[p]
	for _, i := range aQ.Idx {
		e.XB[i] -= primalStep * aQ.Val[i]
	}
	e.XB[p] = enteringOld + primalStep
	e.Basis.Status[leavingVar] = boundStatus(moveOut)
	e.Basis.Move[leavingVar] = lpmodel.Move(moveOut)
	e.Basis.Status[q] = lpmodel.StatusBasic
	e.Basis.Move[q] = 0
	e.Basis.BaseIndex[p] = q

	for _, j := range row.idx {
		e.DN[j] -= thetaDual * row.val[j]
	}
	e.DN[leavingVar] = -thetaDual
	e.DN[q] = 0

	e.updateEdgeWeights(p, alphaQ, aQ)

	if e.freelist[q] {
		delete(e.freelist, q)
	}
	if _, wasFree := e.freelistCandidate(leavingVar); wasFree {
		e.freelist[leavingVar] = true
	}

	e.state = StateUpdating
	status, err := e.Nla.Factor.Update(p, aQ, e.Opts.PivotTol)
	if err != nil || status == factor.StatusSingular {
		e.state = StateRefactorNeeded
		return e.state
	}
	if status == factor.StatusUpdateLimitReached || status == factor.StatusDensityTooHigh || e.Nla.Factor.RefactorRecommended() {
		e.state = StateRefactorNeeded
		return e.state
	}

	e.iterations++
	e.state = StateOK
	return e.state
}

func boundStatus(m Move) lpmodel.VarStatus {
	if m == moveUp {
		return lpmodel.StatusLower
	}
	return lpmodel.StatusUpper
}

func (e *Engine) freelistCandidate(j int) (int, bool) {
	lo, up := e.bound(j)
	if math.IsInf(lo, -1) && math.IsInf(up, 1) {
		return j, true
	}
	return j, false
}

// chooseRow implements CHUZR (spec.md §4.4.1 step 1): pick the
// primal-infeasible basic row with largest infeasibility^2/edge_weight.
func (e *Engine) chooseRow() (int, bool) {
	best := -1
	bestScore := 0.0
	tol := e.Opts.PrimalFeasibilityTol
	for i, bi := range e.Basis.BaseIndex {
		lo, up := e.bound(bi)
		var infeas float64
		if e.XB[i] < lo-tol {
			infeas = lo - e.XB[i]
		} else if e.XB[i] > up+tol {
			infeas = e.XB[i] - up
		} else {
			continue
		}
		score := infeas * infeas / e.EdgeWeight[i]
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// formRow computes row_p = pi^T A_N restricted to nonbasic columns
// (spec.md §4.4.1 step 3).
func (e *Engine) formRow(pi *sparse.HVector) *sparseRow {
	row := newSparseRow()
	for j := 0; j < e.numTot; j++ {
		if e.Basis.IsBasic(j) {
			continue
		}
		var v float64
		if j < e.Model.NumCols {
			v = e.Model.A.Dot(j, pi.Val)
		} else {
			v = pi.Val[j-e.Model.NumCols]
		}
		if v != 0 {
			row.set(j, v)
		}
	}
	return row
}

// applyFlips moves every candidate in flips to its opposite bound, per
// spec.md §4.4.2's BFRT flip step, adjusting x_B for the flipped columns'
// contribution via their FTRAN-transformed columns.
func (e *Engine) applyFlips(flips []int, row *sparseRow) {
	for _, j := range flips {
		lo, up := e.bound(j)
		delta := up - lo
		if e.Basis.Move[j] == lpmodel.MoveDown {
			delta = -delta
		}
		aJ := sparse.NewHVector(e.Model.NumRows)
		if j < e.Model.NumCols {
			e.Model.A.CollectCol(j, 1, aJ)
		} else {
			aJ.SetFresh(j-e.Model.NumCols, 1)
		}
		_ = e.Nla.FTRAN(aJ)
		for _, i := range aJ.Idx {
			e.XB[i] -= delta * aJ.Val[i]
		}
		if e.Basis.Move[j] == lpmodel.MoveUp {
			e.Basis.Move[j] = lpmodel.MoveDown
		} else {
			e.Basis.Move[j] = lpmodel.MoveUp
		}
	}
}

// updateEdgeWeights applies a Devex-style recurrence to the edge-weight
// vector using the pivot column a_q (already FTRAN-solved), per spec.md
// §4.4.1 step 8: gamma_i' = max(gamma_i, (a_i/a_p)^2*gamma_p) for every
// row i != p, and gamma_p' = max(gamma_p/a_p^2, 1) for the pivot row. No
// steepest-edge cross terms are computed.
func (e *Engine) updateEdgeWeights(p int, alphaQ float64, aQ *sparse.HVector) {
	gammaP := e.EdgeWeight[p]
	pivotVal := aQ.Val[p]
	if pivotVal == 0 {
		return
	}
	for _, i := range aQ.Idx {
		if i == p {
			continue
		}
		ratio := aQ.Val[i] / pivotVal
		candidate := ratio * ratio * gammaP
		if candidate > e.EdgeWeight[i] {
			e.EdgeWeight[i] = candidate
		}
	}
	e.EdgeWeight[p] = math.Max(gammaP/(pivotVal*pivotVal), 1)
}
