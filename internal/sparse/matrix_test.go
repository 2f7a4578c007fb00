package sparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTestMatrix(t *testing.T) *Matrix {
	t.Helper()
	// [[1, 0, 2],
	//  [0, 3, 0]]
	m := New(2, 3)
	require.NoError(t, m.Upsert(0, 0, 1))
	require.NoError(t, m.Upsert(1, 1, 3))
	require.NoError(t, m.Upsert(0, 2, 2))
	return m
}

func TestMatrixDot(t *testing.T) {
	m := buildTestMatrix(t)
	v := []float64{5, 7}
	require.Equal(t, 5.0, m.Dot(0, v))
	require.Equal(t, 21.0, m.Dot(1, v))
	require.Equal(t, 10.0, m.Dot(2, v))
}

func TestSpMVColInto(t *testing.T) {
	m := buildTestMatrix(t)
	x := NewHVector(3)
	x.SetFresh(0, 1)
	x.SetFresh(2, 2)
	y := NewHVector(2)
	m.SpMVColInto(x, y)
	require.Equal(t, 5.0, y.Val[0]) // 1*1 + 2*2
	require.Equal(t, 0.0, y.Val[1])
}

func TestDeleteColsCompacts(t *testing.T) {
	m := buildTestMatrix(t)
	err := m.DeleteCols(IndexCollection{Interval: true, Lo: 1, Hi: 2})
	require.NoError(t, err)
	require.Equal(t, 2, m.NumCols)
	idx, val := m.Col(1)
	require.Equal(t, []int{0}, idx)
	require.Equal(t, []float64{2}, val)
}

func TestIndicesRejectsNonMonotonic(t *testing.T) {
	ic := IndexCollection{Set: []int{2, 1}}
	_, err := ic.Indices(5)
	require.ErrorIs(t, err, ErrInvalidIndexCollection)
}

func TestIndicesRejectsOutOfRange(t *testing.T) {
	ic := IndexCollection{Interval: true, Lo: 0, Hi: 10}
	_, err := ic.Indices(5)
	require.ErrorIs(t, err, ErrInvalidIndexCollection)
}

func TestHVectorInvariant(t *testing.T) {
	h := NewHVector(4)
	h.Set(1, 5)
	h.Set(2, 0) // no-op, value is zero
	require.Equal(t, 1, h.Count())
	h.Set(1, 0)
	require.Equal(t, 0.0, h.Val[1])

	h2 := NewHVector(4)
	h2.SetFresh(3, 9)
	h.CopyFrom(h2)
	require.Equal(t, 9.0, h.Val[3])
	require.Equal(t, 1, h.Count())
}

func TestHVectorSanitize(t *testing.T) {
	h := NewHVector(3)
	h.SetFresh(0, 1e-12)
	h.SetFresh(1, 1.0)
	h.Sanitize(1e-9)
	require.Equal(t, []int{1}, h.Idx)
	require.Equal(t, 0.0, h.Val[0])
}
