// Package sparse implements the column-major sparse matrix and packed-sparse
// working vector kernel (component C1). The layout and the discipline of
// keeping the packed representation's index list in sync with its dense
// values is grounded on the element bookkeeping in
// _examples/edp1096-sparse (package sparse): that repo maintains parallel
// Markowitz row/column counts as elements are created and threaded into
// linked lists; here the same "never let the sparse index and the dense
// values disagree" discipline applies to a CSC matrix and an HVector.
package sparse

import "github.com/pkg/errors"

// ErrInvalidIndexCollection is returned when an index collection given to a
// kernel operation is non-monotonic or out of range.
var ErrInvalidIndexCollection = errors.New("sparse: invalid index collection")

// Matrix is a column-major sparse matrix in compressed-sparse-column form.
// Start has length NumCols+1; Index and Value have length Start[NumCols].
// Within a column, row indices are strictly increasing. Assess (in package
// lpmodel) sets entries below SmallMatrixValue to zero in place, so an
// assessed matrix can still hold explicit zeros.
type Matrix struct {
	NumRows int
	NumCols int
	Start   []int
	Index   []int
	Value   []float64
}

// New allocates a matrix with the given column start offsets pre-sized.
func New(numRows, numCols int) *Matrix {
	return &Matrix{
		NumRows: numRows,
		NumCols: numCols,
		Start:   make([]int, numCols+1),
	}
}

// Col returns the row indices and values of column j as slices into the
// matrix's backing arrays. Callers must not retain them past a mutation.
func (m *Matrix) Col(j int) ([]int, []float64) {
	lo, hi := m.Start[j], m.Start[j+1]
	return m.Index[lo:hi], m.Value[lo:hi]
}

// nnzCol returns the number of nonzeros in column j.
func (m *Matrix) nnzCol(j int) int { return m.Start[j+1] - m.Start[j] }

// Dot computes the inner product of column j with a dense vector v of
// length NumRows.
func (m *Matrix) Dot(j int, v []float64) float64 {
	idx, val := m.Col(j)
	var sum float64
	for k, row := range idx {
		sum += val[k] * v[row]
	}
	return sum
}

// CollectCol performs y.Val += alpha * A[:,j] on the packed-sparse HVector
// y, maintaining its index/count invariant (spec §4.1: collect_col).
func (m *Matrix) CollectCol(j int, alpha float64, y *HVector) {
	idx, val := m.Col(j)
	for k, row := range idx {
		v := alpha * val[k]
		if v == 0 {
			continue
		}
		if y.Val[row] == 0 {
			y.Idx = append(y.Idx, row)
		}
		y.Val[row] += v
	}
}

// SpMVColInto computes y += A*x column-wise, i.e. for every nonzero x[j] it
// adds x[j]*A[:,j] into the packed-sparse y (spec §4.1: spmv_col_into).
func (m *Matrix) SpMVColInto(x *HVector, y *HVector) {
	for _, j := range x.Idx {
		xj := x.Val[j]
		if xj == 0 {
			continue
		}
		m.CollectCol(j, xj, y)
	}
}

// ScaleRows multiplies every entry in row i by rowScale[i], in place.
func (m *Matrix) ScaleRows(rowScale []float64) {
	for j := 0; j < m.NumCols; j++ {
		lo, hi := m.Start[j], m.Start[j+1]
		for k := lo; k < hi; k++ {
			m.Value[k] *= rowScale[m.Index[k]]
		}
	}
}

// ScaleCols multiplies every entry in column j by colScale[j], in place.
func (m *Matrix) ScaleCols(colScale []float64) {
	for j := 0; j < m.NumCols; j++ {
		s := colScale[j]
		lo, hi := m.Start[j], m.Start[j+1]
		for k := lo; k < hi; k++ {
			m.Value[k] *= s
		}
	}
}

// IndexCollection is one of the three forms the kernel accepts for deletion
// and other bulk operations (spec §4.1): a contiguous interval, an explicit
// increasing set, or a boolean mask over a declared dimension.
type IndexCollection struct {
	// Interval, when Interval is true, selects [Lo, Hi).
	Interval   bool
	Lo, Hi     int
	// Set, when non-nil, is an explicit strictly increasing index list.
	Set []int
	// Mask, when non-nil, is a boolean mask over dimension Dim.
	Mask []bool
	Dim  int
}

// Indices materializes the collection into a strictly increasing slice of
// indices in [0, dim), validating monotonicity/range as it goes.
func (ic IndexCollection) Indices(dim int) ([]int, error) {
	switch {
	case ic.Interval:
		if ic.Lo < 0 || ic.Hi > dim || ic.Lo > ic.Hi {
			return nil, errors.Wrapf(ErrInvalidIndexCollection, "interval [%d,%d) out of range [0,%d)", ic.Lo, ic.Hi, dim)
		}
		out := make([]int, 0, ic.Hi-ic.Lo)
		for i := ic.Lo; i < ic.Hi; i++ {
			out = append(out, i)
		}
		return out, nil
	case ic.Set != nil:
		prev := -1
		for _, i := range ic.Set {
			if i <= prev || i < 0 || i >= dim {
				return nil, errors.Wrapf(ErrInvalidIndexCollection, "set entry %d violates monotonic/range constraint", i)
			}
			prev = i
		}
		return ic.Set, nil
	case ic.Mask != nil:
		if len(ic.Mask) != ic.Dim || ic.Dim != dim {
			return nil, errors.Wrapf(ErrInvalidIndexCollection, "mask length %d does not match dimension %d", len(ic.Mask), dim)
		}
		out := make([]int, 0)
		for i, b := range ic.Mask {
			if b {
				out = append(out, i)
			}
		}
		return out, nil
	default:
		return nil, errors.Wrap(ErrInvalidIndexCollection, "empty index collection")
	}
}

// DeleteCols removes the columns named by ic, compacting Start/Index/Value
// and reducing NumCols accordingly.
func (m *Matrix) DeleteCols(ic IndexCollection) error {
	drop, err := ic.Indices(m.NumCols)
	if err != nil {
		return err
	}
	dropSet := make(map[int]bool, len(drop))
	for _, j := range drop {
		dropSet[j] = true
	}

	newStart := make([]int, 0, m.NumCols+1-len(drop))
	newIndex := make([]int, 0, len(m.Index))
	newValue := make([]float64, 0, len(m.Value))
	newStart = append(newStart, 0)
	for j := 0; j < m.NumCols; j++ {
		if dropSet[j] {
			continue
		}
		idx, val := m.Col(j)
		newIndex = append(newIndex, idx...)
		newValue = append(newValue, val...)
		newStart = append(newStart, len(newIndex))
	}
	m.Start, m.Index, m.Value = newStart, newIndex, newValue
	m.NumCols -= len(drop)
	return nil
}

// DeleteRows removes the rows named by ic and renumbers the surviving row
// indices, compacting NumRows accordingly.
func (m *Matrix) DeleteRows(ic IndexCollection) error {
	drop, err := ic.Indices(m.NumRows)
	if err != nil {
		return err
	}
	dropSet := make(map[int]bool, len(drop))
	for _, i := range drop {
		dropSet[i] = true
	}
	remap := make([]int, m.NumRows)
	next := 0
	for i := 0; i < m.NumRows; i++ {
		if dropSet[i] {
			remap[i] = -1
			continue
		}
		remap[i] = next
		next++
	}

	newIndex := make([]int, 0, len(m.Index))
	newValue := make([]float64, 0, len(m.Value))
	newStart := make([]int, 0, m.NumCols+1)
	newStart = append(newStart, 0)
	for j := 0; j < m.NumCols; j++ {
		idx, val := m.Col(j)
		for k, row := range idx {
			nr := remap[row]
			if nr < 0 {
				continue
			}
			newIndex = append(newIndex, nr)
			newValue = append(newValue, val[k])
		}
		newStart = append(newStart, len(newIndex))
	}
	m.Start, m.Index, m.Value = newStart, newIndex, newValue
	m.NumRows = next
	return nil
}

// Upsert sets A[row,col] = value, inserting a new nonzero if none existed
// (in sorted position) or overwriting the existing one.
func (m *Matrix) Upsert(row, col int, value float64) error {
	if row < 0 || row >= m.NumRows || col < 0 || col >= m.NumCols {
		return errors.Wrapf(ErrInvalidIndexCollection, "coefficient (%d,%d) out of range", row, col)
	}
	lo, hi := m.Start[col], m.Start[col+1]
	pos := lo
	for pos < hi && m.Index[pos] < row {
		pos++
	}
	if pos < hi && m.Index[pos] == row {
		m.Value[pos] = value
		return nil
	}
	m.Index = append(m.Index, 0)
	copy(m.Index[pos+1:], m.Index[pos:len(m.Index)-1])
	m.Index[pos] = row
	m.Value = append(m.Value, 0)
	copy(m.Value[pos+1:], m.Value[pos:len(m.Value)-1])
	m.Value[pos] = value
	for c := col + 1; c <= m.NumCols; c++ {
		m.Start[c]++
	}
	return nil
}
