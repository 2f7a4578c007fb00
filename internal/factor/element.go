package factor

// element is a linked-list entry in the working LU matrix, threaded both by
// row and by column. This is a direct generalization of the Element type in
// _examples/edp1096-sparse/model.go: that repo threads circuit-admittance
// elements the same way for its modified-nodal-analysis matrix. Here the
// same threading supports arbitrary square basis matrices instead of
// symmetric circuit topologies, and complex values are dropped since the LP
// engine is real-only.
type element struct {
	row, col  int
	value     float64
	nextInRow *element
	nextInCol *element
}

// createElement inserts a new element at (row, col) into both the row and
// column linked lists, keeping each list sorted by the other index (rows
// increasing within a column, columns increasing within a row) exactly as
// _examples/edp1096-sparse/sparse.go's createElement does; fillin reports
// whether this element arose from elimination fill-in (so Markowitz counts
// are updated) or from the original matrix (counts left unchanged).
func (f *Factor) createElement(row, col int, firstInRow, firstInCol **element, fillin bool) *element {
	current := *firstInCol
	prev := firstInCol
	for current != nil && current.row < row {
		prev = &current.nextInCol
		current = current.nextInCol
	}
	if current != nil && current.row == row {
		return current
	}

	e := &element{row: row, col: col}
	if fillin {
		f.fillins++
		f.markowitzRow[row]++
		f.markowitzCol[col]++
		f.markowitzProd[row] = f.markowitzRow[row] * f.markowitzCol[row]
		f.markowitzProd[col] = f.markowitzRow[col] * f.markowitzCol[col]
		if f.markowitzRow[row] == 1 && f.markowitzCol[row] != 0 {
			f.singletons--
		}
		if f.markowitzRow[col] != 0 && f.markowitzCol[col] == 1 {
			f.singletons--
		}
	}

	e.nextInCol = current
	*prev = e

	rowCur := *firstInRow
	rowPrev := firstInRow
	for rowCur != nil && rowCur.col < col {
		rowPrev = &rowCur.nextInRow
		rowCur = rowCur.nextInRow
	}
	e.nextInRow = rowCur
	*rowPrev = e

	if row == col {
		f.diag[row] = e
	}
	return e
}

// magnitude returns |value|; kept as a method for parity with the teacher's
// elementMag helper, which also handled the complex case.
func (e *element) magnitude() float64 {
	v := e.value
	if v < 0 {
		return -v
	}
	return v
}
