package factor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/dsimplex/internal/sparse"
)

// diagonalColumns returns a ColumnSource for a diagonal matrix.
func diagonalColumns(diag []float64) ColumnSource {
	return func(j int) ([]int, []float64) {
		return []int{j}, []float64{diag[j]}
	}
}

func vec(dim int, entries map[int]float64) *sparse.HVector {
	h := sparse.NewHVector(dim)
	for i, v := range entries {
		h.SetFresh(i, v)
	}
	return h
}

func TestFactorDiagonalRoundTrip(t *testing.T) {
	f := New(3, 1e-10, 100, 10)
	require.NoError(t, f.Build(3, diagonalColumns([]float64{2, 3, 4})))

	rhs := vec(3, map[int]float64{0: 4, 1: 9, 2: 8})
	require.NoError(t, f.FTRAN(rhs))
	require.InDelta(t, 2.0, rhs.Val[0], 1e-9)
	require.InDelta(t, 3.0, rhs.Val[1], 1e-9)
	require.InDelta(t, 2.0, rhs.Val[2], 1e-9)

	w := vec(3, map[int]float64{0: 4, 1: 9, 2: 8})
	require.NoError(t, f.BTRAN(w))
	require.InDelta(t, 2.0, w.Val[0], 1e-9)
	require.InDelta(t, 3.0, w.Val[1], 1e-9)
	require.InDelta(t, 2.0, w.Val[2], 1e-9)
}

// TestFactorOffDiagonalPivotPermutation builds a matrix that forces the
// Markowitz search to pick an off-diagonal singleton on its first step
// (exercising the row exchange in exchangeRowsAndCols and, crucially, the
// distinct row/col external permutations threaded through FTRAN/BTRAN).
//
//	B = [[0, 2],
//	     [3, 0]]
func TestFactorOffDiagonalPivotPermutation(t *testing.T) {
	cols := func(j int) ([]int, []float64) {
		switch j {
		case 0:
			return []int{1}, []float64{3}
		case 1:
			return []int{0}, []float64{2}
		}
		return nil, nil
	}
	f := New(2, 1e-10, 100, 10)
	require.NoError(t, f.Build(2, cols))

	rhs := vec(2, map[int]float64{0: 2, 1: 3})
	require.NoError(t, f.FTRAN(rhs))
	require.InDelta(t, 1.0, rhs.Val[0], 1e-9)
	require.InDelta(t, 1.0, rhs.Val[1], 1e-9)

	w := vec(2, map[int]float64{0: 6, 1: 4})
	require.NoError(t, f.BTRAN(w))
	require.InDelta(t, 2.0, w.Val[0], 1e-9)
	require.InDelta(t, 2.0, w.Val[1], 1e-9)
}

func TestFactorUpdateEta(t *testing.T) {
	f := New(3, 1e-10, 100, 10)
	require.NoError(t, f.Build(3, diagonalColumns([]float64{2, 3, 4})))

	alphaQ := vec(3, map[int]float64{0: 2})
	status, err := f.Update(0, alphaQ, 1e-10)
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	require.Equal(t, 1, f.UpdateCount())

	rhs := vec(3, map[int]float64{0: 4, 1: 9, 2: 8})
	require.NoError(t, f.FTRAN(rhs))
	require.InDelta(t, 1.0, rhs.Val[0], 1e-9)
	require.InDelta(t, 3.0, rhs.Val[1], 1e-9)
	require.InDelta(t, 2.0, rhs.Val[2], 1e-9)
}

func TestFactorUpdateLimitReached(t *testing.T) {
	f := New(2, 1e-10, 1, 10)
	require.NoError(t, f.Build(2, diagonalColumns([]float64{1, 1})))

	_, err := f.Update(0, vec(2, map[int]float64{0: 1}), 1e-10)
	require.NoError(t, err)
	status, err := f.Update(0, vec(2, map[int]float64{0: 1}), 1e-10)
	require.NoError(t, err)
	require.Equal(t, StatusUpdateLimitReached, status)
}

func TestFactorSingularColumn(t *testing.T) {
	cols := func(j int) ([]int, []float64) {
		if j == 1 {
			return nil, nil
		}
		return []int{0}, []float64{1}
	}
	f := New(2, 1e-10, 100, 10)
	err := f.Build(2, cols)
	require.ErrorIs(t, err, ErrSingular)
	require.False(t, f.Factored())
}

func TestFactorRefactorRecommended(t *testing.T) {
	f := New(2, 1e-10, 100, 1)
	require.NoError(t, f.Build(2, diagonalColumns([]float64{1, 1})))
	require.False(t, f.RefactorRecommended())

	for i := 0; i < 50; i++ {
		_, err := f.Update(0, vec(2, map[int]float64{0: 1}), 1e-10)
		require.NoError(t, err)
	}
	require.True(t, f.RefactorRecommended())
}
