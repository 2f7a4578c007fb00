package factor

import (
	"github.com/pkg/errors"

	"github.com/edp1096/dsimplex/internal/sparse"
)

// FTRAN solves B x = rhs in place on rhs (external ordering), applying the
// base LU factorization first and then every accumulated product-form
// update in chronological order, oldest to newest. This ordering, and the
// per-update rule x'[i] -= eta[i]*x[pivotRow] for every i (which reduces to
// x'[pivotRow] = x[pivotRow]/a_q[pivotRow] since eta[pivotRow] = 1 -
// 1/a_q[pivotRow]), follows from applying T^-1 = I - eta*e_p^T
// successively for each rank-one update T = I + (a_q - e_p)*e_p^T, per the
// eta-vector formula in spec §4.2.
func (f *Factor) FTRAN(rhs *sparse.HVector) error {
	if !f.factored {
		return ErrNotFactored
	}
	dense := f.toDenseByRow(rhs)
	f.solveLLower(dense)
	f.solveUUpper(dense)
	f.fromDenseByCol(dense, rhs)
	for _, u := range f.updates {
		xp := rhs.Val[u.pivotRow]
		if xp == 0 {
			continue
		}
		for _, i := range u.eta.Idx {
			rhs.Val[i] -= u.eta.Val[i] * xp
		}
	}
	rhs.Resparsify()
	return nil
}

// BTRAN solves B^T w = rhs in place on rhs, applying the accumulated
// updates in reverse chronological order (newest to oldest) before the
// base L^T U^T solve, since (T1 T2 ... Tk)^T = Tk^T ... T1^T and BTRAN
// against the product form must undo the newest update first. Only
// component pivotRow of w changes at each step: w'[pivotRow] = w[pivotRow]
// - dot(eta, w).
func (f *Factor) BTRAN(rhs *sparse.HVector) error {
	if !f.factored {
		return ErrNotFactored
	}
	for i := len(f.updates) - 1; i >= 0; i-- {
		u := f.updates[i]
		var dot float64
		for _, j := range u.eta.Idx {
			dot += u.eta.Val[j] * rhs.Val[j]
		}
		if dot == 0 {
			continue
		}
		if rhs.Val[u.pivotRow] == 0 {
			rhs.Idx = append(rhs.Idx, u.pivotRow)
		}
		rhs.Val[u.pivotRow] -= dot
	}
	dense := f.toDenseByCol(rhs)
	f.solveUUpperT(dense)
	f.solveLLowerT(dense)
	f.fromDenseByRow(dense, rhs)
	rhs.Resparsify()
	return nil
}

// solveLLower applies L^-1 in place on a dense array already in internal
// index order (forward substitution using the below-diagonal entries
// created during elimination), mirroring solve.go's SolveMatrix forward
// pass with the complex path dropped.
func (f *Factor) solveLLower(dense []float64) {
	for step := 0; step < f.dim; step++ {
		v := dense[step]
		if v == 0 {
			continue
		}
		for e := f.diag[step].nextInCol; e != nil; e = e.nextInCol {
			dense[e.row] -= e.value * v
		}
	}
}

// solveUUpper applies U^-1 in place (back substitution using the
// diagonal's stored reciprocal and the above-diagonal entries), the
// mirror of solveLLower.
func (f *Factor) solveUUpper(dense []float64) {
	for step := f.dim - 1; step >= 0; step-- {
		v := dense[step]
		for e := f.diag[step].nextInRow; e != nil; e = e.nextInRow {
			v -= e.value * dense[e.col]
		}
		dense[step] = v * f.diag[step].value
	}
}

// solveUUpperT applies (U^T)^-1 in place, i.e. forward substitution
// through U's transpose: row step depends on the already-resolved columns
// below it in U, which are the entries U stores to the right of the
// diagonal.
func (f *Factor) solveUUpperT(dense []float64) {
	for step := 0; step < f.dim; step++ {
		dense[step] *= f.diag[step].value
		v := dense[step]
		if v == 0 {
			continue
		}
		for e := f.diag[step].nextInRow; e != nil; e = e.nextInRow {
			dense[e.col] -= e.value * v
		}
	}
}

// solveLLowerT applies (L^T)^-1 in place, back substitution through L's
// transpose.
func (f *Factor) solveLLowerT(dense []float64) {
	for step := f.dim - 1; step >= 0; step-- {
		v := dense[step]
		for e := f.diag[step].nextInCol; e != nil; e = e.nextInCol {
			v -= e.value * dense[e.row]
		}
		dense[step] = v
	}
}

// toDenseByRow expands rhs (external row/basis-slot order, the space B's
// rows are labeled in) into a dense array in internal order via
// extToIntRow. FTRAN's incoming right-hand side and BTRAN's outgoing
// solution both live in this space.
func (f *Factor) toDenseByRow(rhs *sparse.HVector) []float64 {
	dense := make([]float64, f.dim)
	for _, ext := range rhs.Idx {
		dense[f.extToIntRow[ext]] = rhs.Val[ext]
	}
	return dense
}

// toDenseByCol expands rhs (external column/basis-slot order, the space
// B's columns are labeled in) into a dense array in internal order via
// extToIntCol. BTRAN's incoming right-hand side lives in this space,
// since B^T's rows are B's columns.
func (f *Factor) toDenseByCol(rhs *sparse.HVector) []float64 {
	dense := make([]float64, f.dim)
	for _, ext := range rhs.Idx {
		dense[f.extToIntCol[ext]] = rhs.Val[ext]
	}
	return dense
}

// fromDenseByRow collapses an internal-order dense array back into rhs
// using intToExtRow. BTRAN's solution (which basic variable's row) lives
// in this space.
func (f *Factor) fromDenseByRow(dense []float64, rhs *sparse.HVector) {
	rhs.Clear()
	for internal, v := range dense {
		if v == 0 {
			continue
		}
		rhs.SetFresh(f.intToExtRow[internal], v)
	}
}

// fromDenseByCol collapses an internal-order dense array back into rhs
// using intToExtCol. FTRAN's solution (which basic variable's column of
// B it loads) lives in this space.
func (f *Factor) fromDenseByCol(dense []float64, rhs *sparse.HVector) {
	rhs.Clear()
	for internal, v := range dense {
		if v == 0 {
			continue
		}
		rhs.SetFresh(f.intToExtCol[internal], v)
	}
}

// Update records a product-form rank-one update for the pivot that leaves
// basis position pivotRow, given the FTRAN-transformed incoming column
// alphaQ (a_q = B^-1 A_q) in external row order. It returns StatusSingular
// if alphaQ[pivotRow] is not acceptably far from zero, StatusUpdateLimitReached
// if the configured update cap is hit, and otherwise stores eta = (a_q -
// e_pivotRow) / a_q[pivotRow] (spec §4.2) and returns StatusOK, or
// StatusDensityTooHigh when the stored eta is more than half dense.
func (f *Factor) Update(pivotRow int, alphaQ *sparse.HVector, pivotTol float64) (Status, error) {
	if !f.factored {
		return StatusSingular, ErrNotFactored
	}
	pivotVal := alphaQ.Val[pivotRow]
	if pivotVal < pivotTol && pivotVal > -pivotTol {
		return StatusSingular, errors.Errorf("factor: update pivot %g below tolerance %g", pivotVal, pivotTol)
	}
	if len(f.updates) >= f.updateLimit {
		return StatusUpdateLimitReached, nil
	}

	eta := sparse.NewHVector(f.dim)
	inv := 1.0 / pivotVal
	for _, i := range alphaQ.Idx {
		v := alphaQ.Val[i]
		if i == pivotRow {
			v -= 1
		}
		v *= inv
		if v != 0 {
			eta.SetFresh(i, v)
		}
	}
	if eta.Val[pivotRow] == 0 && pivotVal != 1 {
		eta.SetFresh(pivotRow, (pivotVal-1)*inv)
	}

	f.updates = append(f.updates, etaUpdate{pivotRow: pivotRow, eta: eta})
	f.updateSyntheticTick += float64(eta.Count()) + 1
	if eta.Density() > 0.5 {
		return StatusDensityTooHigh, nil
	}
	return StatusOK, nil
}

// ResetUpdates discards the product-form update region, used right after a
// fresh Build.
func (f *Factor) ResetUpdates() {
	f.updates = f.updates[:0]
	f.updateSyntheticTick = 0
}
