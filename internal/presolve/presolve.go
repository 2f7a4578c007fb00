// Package presolve implements the size-reducing transformation described
// in spec.md §4.5 and its postsolve inverse: fixed-variable substitution,
// empty row and empty column removal, and removal of singleton equality
// rows. Column singletons are not reduced. The reduction-then-restore
// pattern mirrors the teacher's own build-then-solve separation
// (_examples/edp1096-sparse/factor.go builds a decomposition once and
// solve.go replays it against many right-hand sides); here a reduction is
// built once and postsolve replays it against the reduced solution.
package presolve

import (
	"math"

	"github.com/edp1096/dsimplex/internal/config"
	"github.com/edp1096/dsimplex/internal/lpmodel"
)

// Outcome is the presolve result enum of spec.md §7 kind 3.
type Outcome int

const (
	Reduced Outcome = iota
	ReducedToEmpty
	NotReduced
	Infeasible
	Unbounded
	NullError
	Error
)

// fixedSubstitution records that column j was fixed at value v and
// removed from the reduced model.
type fixedSubstitution struct {
	col int
	val float64
}

// singletonRow records that row i had exactly one nonzero (at column col
// with coefficient coef) and was used to fix that column, then removed.
type singletonRow struct {
	row  int
	col  int
	coef float64
	rhs  float64
}

// Result is the presolve reduction: the reduced model plus enough
// information to postsolve a reduced solution back to the original space.
type Result struct {
	Outcome Outcome
	Reduced *lpmodel.Model

	fixed       []fixedSubstitution
	singletons  []singletonRow
	colMap      []int // reduced column index -> original column index
	rowMap      []int // reduced row index -> original row index
	original    *lpmodel.Model
}

// Run applies fixed-variable substitution, empty row and empty column
// removal, and singleton equality-row removal to m, returning a Result that Postsolve can use to lift a
// solution of Result.Reduced back into m's variable space.
func Run(m *lpmodel.Model, opts *config.Options) *Result {
	res := &Result{original: m}

	keepCol := make([]bool, m.NumCols)
	for j := range keepCol {
		keepCol[j] = true
	}
	keepRow := make([]bool, m.NumRows)
	for i := range keepRow {
		keepRow[i] = true
	}

	// Fixed-variable substitution: collo[j] == colup[j].
	for j := 0; j < m.NumCols; j++ {
		if m.ColLower[j] == m.ColUpper[j] {
			res.fixed = append(res.fixed, fixedSubstitution{col: j, val: m.ColLower[j]})
			keepCol[j] = false
		}
	}

	// Row singleton removal: a row with exactly one surviving nonzero
	// fixes that column directly, provided the row is an equality (or its
	// bounds pin the column uniquely).
	for i := 0; i < m.NumRows; i++ {
		if !keepRow[i] {
			continue
		}
		nnz, onlyCol, onlyCoef := rowNnz(m, i, keepCol)
		if nnz == 1 && m.RowLower[i] == m.RowUpper[i] && keepCol[onlyCol] {
			val := m.RowLower[i] / onlyCoef
			res.singletons = append(res.singletons, singletonRow{row: i, col: onlyCol, coef: onlyCoef, rhs: m.RowLower[i]})
			res.fixed = append(res.fixed, fixedSubstitution{col: onlyCol, val: val})
			keepCol[onlyCol] = false
			keepRow[i] = false
		} else if nnz == 0 {
			if m.RowLower[i] > opts.PrimalFeasibilityTol || m.RowUpper[i] < -opts.PrimalFeasibilityTol {
				res.Outcome = Infeasible
				return res
			}
			keepRow[i] = false
		}
	}

	// Empty column removal: a column with no surviving nonzeros is fixed
	// at whichever finite bound is cost-optimal, or reported unbounded if
	// its cost has the wrong sign against an infinite bound.
	for j := 0; j < m.NumCols; j++ {
		if !keepCol[j] {
			continue
		}
		if colNnz(m, j, keepRow) > 0 {
			continue
		}
		val, ok := emptyColumnValue(m, j, opts)
		if !ok {
			res.Outcome = Unbounded
			return res
		}
		res.fixed = append(res.fixed, fixedSubstitution{col: j, val: val})
		keepCol[j] = false
	}

	res.colMap = compactIndices(keepCol)
	res.rowMap = compactIndices(keepRow)

	if len(res.colMap) == 0 || len(res.rowMap) == 0 {
		res.Outcome = ReducedToEmpty
		res.Reduced = lpmodel.New(0, 0)
		return res
	}
	if len(res.colMap) == m.NumCols && len(res.rowMap) == m.NumRows {
		res.Outcome = NotReduced
		res.Reduced = m
		return res
	}

	res.Reduced = buildReduced(m, res.colMap, res.rowMap, res.fixed)
	res.Outcome = Reduced
	return res
}

func rowNnz(m *lpmodel.Model, row int, keepCol []bool) (count, onlyCol int, onlyCoef float64) {
	for j := 0; j < m.NumCols; j++ {
		if !keepCol[j] {
			continue
		}
		idx, val := m.A.Col(j)
		for k, r := range idx {
			if r == row && val[k] != 0 {
				count++
				onlyCol, onlyCoef = j, val[k]
			}
		}
	}
	return
}

func colNnz(m *lpmodel.Model, col int, keepRow []bool) int {
	idx, val := m.A.Col(col)
	count := 0
	for k, r := range idx {
		if keepRow[r] && val[k] != 0 {
			count++
		}
	}
	return count
}

func emptyColumnValue(m *lpmodel.Model, j int, opts *config.Options) (float64, bool) {
	c := m.Cost[j]
	lo, up := m.ColLower[j], m.ColUpper[j]
	switch {
	case c > 0:
		if math.IsInf(lo, -1) {
			return 0, false
		}
		return lo, true
	case c < 0:
		if math.IsInf(up, 1) {
			return 0, false
		}
		return up, true
	default:
		if !math.IsInf(lo, -1) {
			return lo, true
		}
		if !math.IsInf(up, 1) {
			return up, true
		}
		return 0, true
	}
}

func compactIndices(keep []bool) []int {
	out := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			out = append(out, i)
		}
	}
	return out
}

func buildReduced(m *lpmodel.Model, colMap, rowMap []int, fixed []fixedSubstitution) *lpmodel.Model {
	fixedVal := make(map[int]float64, len(fixed))
	for _, f := range fixed {
		fixedVal[f.col] = f.val
	}
	rowIndex := make(map[int]int, len(rowMap))
	for newI, oldI := range rowMap {
		rowIndex[oldI] = newI
	}

	reduced := lpmodel.New(len(rowMap), len(colMap))
	reduced.Name = m.Name
	reduced.Sense = m.Sense
	reduced.Offset = m.Offset

	for newI, oldI := range rowMap {
		lo, up := m.RowLower[oldI], m.RowUpper[oldI]
		for oldJ, v := range fixedVal {
			idx, val := m.A.Col(oldJ)
			for k, r := range idx {
				if r == oldI {
					lo -= val[k] * v
					up -= val[k] * v
				}
			}
		}
		reduced.RowLower[newI] = lo
		reduced.RowUpper[newI] = up
	}

	for newJ, oldJ := range colMap {
		reduced.Cost[newJ] = m.Cost[oldJ]
		reduced.ColLower[newJ] = m.ColLower[oldJ]
		reduced.ColUpper[newJ] = m.ColUpper[oldJ]
		reduced.Integrality[newJ] = m.Integrality[oldJ]
		idx, val := m.A.Col(oldJ)
		for k, r := range idx {
			if newI, ok := rowIndex[r]; ok {
				reduced.A.Upsert(newI, newJ, val[k])
			}
		}
	}
	return reduced
}

// FixedObjective sums cost[j]*val over every column presolve eliminated by
// fixed-variable or singleton-row substitution: the portion of the
// objective that extractSolution's pass over the reduced model's own cost
// vector can never see, since those columns no longer exist in it.
func (r *Result) FixedObjective() float64 {
	var sum float64
	for _, f := range r.fixed {
		sum += r.original.Cost[f.col] * f.val
	}
	return sum
}

// Postsolve lifts a reduced-space solution x (length len(colMap)) back
// into the original variable space (length original.NumCols).
func (r *Result) Postsolve(reducedX []float64) []float64 {
	if r.Outcome == NotReduced {
		return reducedX
	}
	out := make([]float64, r.original.NumCols)
	for _, f := range r.fixed {
		out[f.col] = f.val
	}
	for newJ, oldJ := range r.colMap {
		out[oldJ] = reducedX[newJ]
	}
	return out
}
