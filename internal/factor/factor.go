// Package factor implements the LU factor and product-form update of the
// current basis matrix B (component C2). The elimination, Markowitz
// counting, threshold pivot acceptance, and row/column exchange machinery
// are adapted from _examples/edp1096-sparse's OrderAndFactor/pivot/
// markowitz/exchange/elimination files, which build P_r L U P_c = B for a
// circuit admittance matrix using the same linked-list element structure.
// Two things change relative to the teacher: there is no complex-number
// path (LP data is real), and there is no diagonal-pivoting preference
// (a simplex basis matrix has no structural diagonal to favor) — pivot
// selection here is singleton search followed by full Markowitz search
// over the remaining submatrix, both retained from the teacher.
package factor

import (
	"math"

	"github.com/pkg/errors"

	"github.com/edp1096/dsimplex/internal/sparse"
)

// Status is the outcome of an Update call (spec §4.2).
type Status int

const (
	StatusOK Status = iota
	StatusSingular
	StatusUpdateLimitReached
	StatusDensityTooHigh
)

var (
	// ErrSingular is returned when Build cannot find an acceptable pivot.
	ErrSingular = errors.New("factor: matrix is singular")
	// ErrNotFactored is returned by FTRAN/BTRAN before a successful Build.
	ErrNotFactored = errors.New("factor: matrix is not factored")
)

// ColumnSource supplies the entries of basis column i (0-based, in basis
// row order) during Build.
type ColumnSource func(i int) (rows []int, values []float64)

// etaUpdate is one product-form rank-one update, stored as η = (a_q -
// e_p)/a_q[p] (spec §4.2). Updates never mutate L/U; Build clears them.
type etaUpdate struct {
	pivotRow int
	eta      *sparse.HVector
}

// Factor holds the LU decomposition of the current basis matrix together
// with the accumulated product-form update region.
type Factor struct {
	dim int

	diag       []*element
	firstInRow []*element
	firstInCol []*element

	markowitzRow  []int
	markowitzCol  []int
	markowitzProd []int
	singletons    int
	fillins       int

	// intToExt{Row,Col} and extToInt{Row,Col} record the P_r, P_c
	// permutations chosen during elimination, exactly as the teacher's
	// IntToExtRowMap/IntToExtColMap/ExtToInt* do.
	intToExtRow, intToExtCol []int
	extToIntRow, extToIntCol []int

	pivotTol float64
	factored bool

	singularRow int

	updates     []etaUpdate
	updateLimit int

	buildSyntheticTick  float64
	updateSyntheticTick float64
	refactorCostRatio   float64
}

// New allocates a Factor for an m-by-m basis matrix.
func New(dim int, pivotTol float64, updateLimit int, refactorCostRatio float64) *Factor {
	return &Factor{
		dim:               dim,
		pivotTol:          pivotTol,
		updateLimit:       updateLimit,
		refactorCostRatio: refactorCostRatio,
	}
}

// Dim returns the basis dimension m.
func (f *Factor) Dim() int { return f.dim }

// Factored reports whether Build has succeeded and no update since has
// forced a refactor.
func (f *Factor) Factored() bool { return f.factored }

// SingularColumn returns the internal elimination step at which Build
// detected singularity. It is a step number, not a basis position, and
// the driver does not call it: a failed Build during a solve ends that
// solve with StateError instead of swapping in a logical column.
func (f *Factor) SingularColumn() int { return f.singularRow }

// Build computes P_r L U P_c = B via Markowitz-threshold elimination,
// mirroring _examples/edp1096-sparse/factor.go's OrderAndFactor combined
// with pivot.go's SearchForPivot (singleton search, then full-matrix
// Markowitz search) and elimination.go's RealRowColElimination.
func (f *Factor) Build(dim int, cols ColumnSource) error {
	f.dim = dim
	n := dim
	f.diag = make([]*element, n)
	f.firstInRow = make([]*element, n)
	f.firstInCol = make([]*element, n)
	f.markowitzRow = make([]int, n)
	f.markowitzCol = make([]int, n)
	f.markowitzProd = make([]int, n)
	f.intToExtRow = make([]int, n)
	f.intToExtCol = make([]int, n)
	f.extToIntRow = make([]int, n)
	f.extToIntCol = make([]int, n)
	f.updates = f.updates[:0]
	f.fillins = 0
	f.factored = false
	f.singularRow = -1

	for i := 0; i < n; i++ {
		f.intToExtRow[i] = i
		f.intToExtCol[i] = i
		f.extToIntRow[i] = i
		f.extToIntCol[i] = i
	}

	for col := 0; col < n; col++ {
		rows, vals := cols(col)
		var firstCol *element
		for k, row := range rows {
			e := &element{row: row, col: col, value: vals[k]}
			e.nextInCol = firstCol
			firstCol = e
		}
		// re-sort into strictly increasing row order (cols are typically
		// already sorted; this guards callers that are not).
		f.firstInCol[col] = sortByRow(firstCol)
	}
	f.linkRows()
	f.countMarkowitz()

	var work float64
	for step := 0; step < n; step++ {
		pivot := f.searchForPivot(step)
		if pivot == nil {
			f.singularRow = step
			return errors.Wrapf(ErrSingular, "no acceptable pivot at step %d", step)
		}
		f.exchangeRowsAndCols(pivot, step)
		if err := f.eliminate(pivot); err != nil {
			f.singularRow = step
			return err
		}
		f.updateMarkowitz(pivot)
		work += float64(f.markowitzRow[step]) * float64(f.markowitzCol[step])
	}

	f.buildSyntheticTick = work + 1
	f.updateSyntheticTick = 0
	f.factored = true
	return nil
}

func sortByRow(head *element) *element {
	// small-n insertion sort over the linked list; basis columns are sparse
	// enough that this beats allocating a slice for the common case.
	var sorted *element
	for head != nil {
		next := head.nextInCol
		if sorted == nil || head.row < sorted.row {
			head.nextInCol = sorted
			sorted = head
		} else {
			cur := sorted
			for cur.nextInCol != nil && cur.nextInCol.row < head.row {
				cur = cur.nextInCol
			}
			head.nextInCol = cur.nextInCol
			cur.nextInCol = head
		}
		head = next
	}
	return sorted
}

func (f *Factor) linkRows() {
	for i := range f.firstInRow {
		f.firstInRow[i] = nil
	}
	for col := f.dim - 1; col >= 0; col-- {
		for e := f.firstInCol[col]; e != nil; e = e.nextInCol {
			e.col = col
			e.nextInRow = f.firstInRow[e.row]
			f.firstInRow[e.row] = e
		}
	}
	for row := range f.firstInRow {
		f.firstInRow[row] = sortByCol(f.firstInRow[row])
	}
}

func sortByCol(head *element) *element {
	var sorted *element
	for head != nil {
		next := head.nextInRow
		if sorted == nil || head.col < sorted.col {
			head.nextInRow = sorted
			sorted = head
		} else {
			cur := sorted
			for cur.nextInRow != nil && cur.nextInRow.col < head.col {
				cur = cur.nextInRow
			}
			head.nextInRow = cur.nextInRow
			cur.nextInRow = head
		}
		head = next
	}
	return sorted
}

// countMarkowitz computes the initial per-row/per-column nonzero counts and
// products, matching markowitz.go's CountMarkowitz/MarkowitzProducts.
func (f *Factor) countMarkowitz() {
	for i := 0; i < f.dim; i++ {
		count := -1
		for e := f.firstInRow[i]; e != nil; e = e.nextInRow {
			count++
		}
		f.markowitzRow[i] = count
	}
	for i := 0; i < f.dim; i++ {
		count := -1
		for e := f.firstInCol[i]; e != nil; e = e.nextInCol {
			count++
		}
		f.markowitzCol[i] = count
	}
	f.singletons = 0
	for i := 0; i < f.dim; i++ {
		f.markowitzProd[i] = f.markowitzRow[i] * f.markowitzCol[i]
		if f.markowitzProd[i] == 0 {
			f.singletons++
		}
	}
}

func (f *Factor) findBiggestInColExcluding(col, excludeRow, step int) float64 {
	largest := 0.0
	for e := f.firstInCol[col]; e != nil; e = e.nextInCol {
		if e.row < step || e.row == excludeRow {
			continue
		}
		if m := e.magnitude(); m > largest {
			largest = m
		}
	}
	return largest
}

// searchForPivot picks the leaving pivot at elimination step `step`,
// preferring row/column singletons (mirrors pivot.go's SearchForSingleton)
// and falling back to a full Markowitz scan of the remaining submatrix
// (SearchEntireMatrix), both gated by the |pivot| >= pivotTol*max(|col|)
// threshold acceptance test.
func (f *Factor) searchForPivot(step int) *element {
	if f.singletons > 0 {
		if p := f.searchForSingleton(step); p != nil {
			return p
		}
	}
	return f.searchEntireMatrix(step)
}

func (f *Factor) searchForSingleton(step int) *element {
	for i := step; i < f.dim; i++ {
		if f.markowitzProd[i] != 0 {
			continue
		}
		if pivot := f.diag[i]; pivot != nil && pivot.row >= step {
			mag := pivot.magnitude()
			if mag > f.pivotTol*f.findBiggestInColExcluding(pivot.col, pivot.row, step) || mag > 0 && f.findBiggestInColExcluding(pivot.col, pivot.row, step) == 0 {
				return pivot
			}
			continue
		}
		if f.markowitzCol[i] == 0 {
			for e := f.firstInCol[i]; e != nil; e = e.nextInCol {
				if e.row >= step {
					return e
				}
			}
		}
		if f.markowitzRow[i] == 0 {
			for e := f.firstInRow[i]; e != nil; e = e.nextInRow {
				if e.col >= step {
					return e
				}
			}
		}
	}
	return nil
}

func (f *Factor) searchEntireMatrix(step int) *element {
	var chosen *element
	var largestElem *element
	minProduct := math.MaxInt64
	largestMag := 0.0
	for col := step; col < f.dim; col++ {
		var first *element
		for e := f.firstInCol[col]; e != nil; e = e.nextInCol {
			if e.row >= step {
				first = e
				break
			}
		}
		largestInCol := 0.0
		for e := first; e != nil; e = e.nextInCol {
			if m := e.magnitude(); m > largestInCol {
				largestInCol = m
			}
		}
		if largestInCol == 0 {
			continue
		}
		for e := first; e != nil; e = e.nextInCol {
			mag := e.magnitude()
			if mag > largestMag {
				largestMag = mag
				largestElem = e
			}
			product := f.markowitzRow[e.row] * f.markowitzCol[e.col]
			if product <= minProduct && mag > f.pivotTol*largestInCol {
				if product < minProduct || chosen == nil {
					chosen = e
					minProduct = product
				}
			}
		}
	}
	if chosen != nil {
		return chosen
	}
	if largestMag == 0 {
		return nil
	}
	return largestElem
}

// eliminate performs one step of Gaussian elimination around pivot,
// creating fill-in elements as needed. Adapted from elimination.go's
// RealRowColElimination.
func (f *Factor) eliminate(pivot *element) error {
	if pivot.magnitude() == 0 {
		return errors.Wrapf(ErrSingular, "zero pivot at row %d", pivot.row)
	}
	pivot.value = 1.0 / pivot.value

	for pUpper := pivot.nextInRow; pUpper != nil; pUpper = pUpper.nextInRow {
		pUpper.value *= pivot.value

		pSub := pUpper.nextInCol
		pLower := pivot.nextInCol
		above := &pUpper.nextInCol
		for pLower != nil {
			row := pLower.row
			for pSub != nil && pSub.row < row {
				above = &pSub.nextInCol
				pSub = pSub.nextInCol
			}
			if pSub == nil || pSub.row > row {
				pSub = f.createElement(row, pUpper.col, &pLower.nextInRow, above, true)
			}
			pSub.value -= pUpper.value * pLower.value
			pSub = pSub.nextInCol
			pLower = pLower.nextInCol
		}
	}
	return nil
}

func (f *Factor) findDiag(col int) *element {
	for e := f.firstInCol[col]; e != nil; e = e.nextInCol {
		if e.row == col {
			return e
		}
	}
	return nil
}

// exchangeRowsAndCols moves pivot into position (step, step), swapping the
// row and column linked lists (exchange.go's ExchangeRowsAndCols).
func (f *Factor) exchangeRowsAndCols(pivot *element, step int) {
	row, col := pivot.row, pivot.col
	if row != step {
		f.rowExchange(step, row)
	}
	if col != step {
		f.colExchange(step, col)
	}
	f.diag[step] = f.findDiag(step)
}

func (f *Factor) rowExchange(r1, r2 int) {
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	// Detach both rows entirely and reinsert with swapped row labels; this
	// trades the teacher's merge-walk for simplicity since basis matrices
	// in this engine are modest in row degree compared to circuit meshes.
	row1 := f.detachRow(r1)
	row2 := f.detachRow(r2)
	f.relabelAndInsertRow(row2, r1)
	f.relabelAndInsertRow(row1, r2)
	f.markowitzRow[r1], f.markowitzRow[r2] = f.markowitzRow[r2], f.markowitzRow[r1]
	f.intToExtRow[r1], f.intToExtRow[r2] = f.intToExtRow[r2], f.intToExtRow[r1]
	f.extToIntRow[f.intToExtRow[r1]] = r1
	f.extToIntRow[f.intToExtRow[r2]] = r2
}

func (f *Factor) colExchange(c1, c2 int) {
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	col1 := f.detachCol(c1)
	col2 := f.detachCol(c2)
	f.relabelAndInsertCol(col2, c1)
	f.relabelAndInsertCol(col1, c2)
	f.markowitzCol[c1], f.markowitzCol[c2] = f.markowitzCol[c2], f.markowitzCol[c1]
	f.intToExtCol[c1], f.intToExtCol[c2] = f.intToExtCol[c2], f.intToExtCol[c1]
	f.extToIntCol[f.intToExtCol[c1]] = c1
	f.extToIntCol[f.intToExtCol[c2]] = c2
}

// detachRow removes every element of row from both its row and column
// lists and returns the row's elements as a plain slice.
func (f *Factor) detachRow(row int) []*element {
	var out []*element
	for e := f.firstInRow[row]; e != nil; e = e.nextInRow {
		out = append(out, e)
		f.removeFromCol(e)
	}
	f.firstInRow[row] = nil
	return out
}

func (f *Factor) detachCol(col int) []*element {
	var out []*element
	for e := f.firstInCol[col]; e != nil; e = e.nextInCol {
		out = append(out, e)
		f.removeFromRow(e)
	}
	f.firstInCol[col] = nil
	return out
}

func (f *Factor) removeFromCol(e *element) {
	pp := &f.firstInCol[e.col]
	cur := *pp
	for cur != nil && cur != e {
		pp = &cur.nextInCol
		cur = cur.nextInCol
	}
	if cur != nil {
		*pp = cur.nextInCol
	}
}

func (f *Factor) removeFromRow(e *element) {
	pp := &f.firstInRow[e.row]
	cur := *pp
	for cur != nil && cur != e {
		pp = &cur.nextInRow
		cur = cur.nextInRow
	}
	if cur != nil {
		*pp = cur.nextInRow
	}
}

func (f *Factor) relabelAndInsertRow(elems []*element, newRow int) {
	for _, e := range elems {
		e.row = newRow
		f.insertIntoCol(e)
	}
	f.firstInRow[newRow] = sortByCol(sliceToRowList(elems))
}

func (f *Factor) relabelAndInsertCol(elems []*element, newCol int) {
	for _, e := range elems {
		e.col = newCol
		f.insertIntoRow(e)
	}
	f.firstInCol[newCol] = sortByRow(sliceToColList(elems))
}

func sliceToRowList(elems []*element) *element {
	var head *element
	for i := len(elems) - 1; i >= 0; i-- {
		elems[i].nextInRow = head
		head = elems[i]
	}
	return head
}

func sliceToColList(elems []*element) *element {
	var head *element
	for i := len(elems) - 1; i >= 0; i-- {
		elems[i].nextInCol = head
		head = elems[i]
	}
	return head
}

func (f *Factor) insertIntoCol(e *element) {
	pp := &f.firstInCol[e.col]
	cur := *pp
	for cur != nil && cur.row < e.row {
		pp = &cur.nextInCol
		cur = cur.nextInCol
	}
	e.nextInCol = cur
	*pp = e
}

func (f *Factor) insertIntoRow(e *element) {
	pp := &f.firstInRow[e.row]
	cur := *pp
	for cur != nil && cur.col < e.col {
		pp = &cur.nextInRow
		cur = cur.nextInRow
	}
	e.nextInRow = cur
	*pp = e
}

// updateMarkowitz decrements the Markowitz counts of rows/cols touched by
// the just-eliminated pivot's fill pattern (markowitz.go's
// UpdateMarkowitzNumbers).
func (f *Factor) updateMarkowitz(pivot *element) {
	for e := pivot.nextInCol; e != nil; e = e.nextInCol {
		f.markowitzRow[e.row]--
		f.markowitzProd[e.row] = f.markowitzRow[e.row] * f.markowitzCol[e.row]
		if f.markowitzRow[e.row] == 0 {
			f.singletons++
		}
	}
	for e := pivot.nextInRow; e != nil; e = e.nextInRow {
		f.markowitzCol[e.col]--
		f.markowitzProd[e.col] = f.markowitzRow[e.col] * f.markowitzCol[e.col]
		if f.markowitzCol[e.col] == 0 && f.markowitzRow[e.col] != 0 {
			f.singletons++
		}
	}
}

// RefactorRecommended reports whether cumulative update-pass cost has
// exceeded the last build cost by RefactorCostRatio (spec §4.2's
// build_synthetic_tick policy).
func (f *Factor) RefactorRecommended() bool {
	if f.buildSyntheticTick == 0 {
		return false
	}
	return f.updateSyntheticTick > f.refactorCostRatio*f.buildSyntheticTick
}

// UpdateCount returns the number of accumulated product-form updates k.
func (f *Factor) UpdateCount() int { return len(f.updates) }

// TruncateUpdates discards every accumulated update past the first n,
// restoring the product-form region to the state it had right after the
// n-th update. Updates are append-only (Update never mutates an existing
// entry), so this slice truncation is a complete and correct rewind — used
// by nla.Unfreeze to restore Factor to a checkpoint recorded earlier by
// Freeze before a sibling branch-and-bound node is explored from the same
// parent basis. n must be <= UpdateCount().
func (f *Factor) TruncateUpdates(n int) {
	if n >= len(f.updates) {
		return
	}
	f.updates = f.updates[:n]
	f.updateSyntheticTick = 0
	for _, u := range f.updates {
		f.updateSyntheticTick += float64(u.eta.Count()) + 1
	}
}
