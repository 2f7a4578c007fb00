package simplex

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/dsimplex/internal/config"
	"github.com/edp1096/dsimplex/internal/factor"
	"github.com/edp1096/dsimplex/internal/lpmodel"
	"github.com/edp1096/dsimplex/internal/nla"
)

func identityColumns(dim int) factor.ColumnSource {
	return func(i int) ([]int, []float64) {
		return []int{i}, []float64{1}
	}
}

// newSingleRowEngine builds a one-row, one-column engine over `coef*x`
// bounded by [rowLower, +Inf), with x itself bounded by [0, +Inf) and
// costing 1 per unit, mirroring buildEngine's all-slack starting basis.
func newSingleRowEngine(t *testing.T, coef, rowLower float64) *Engine {
	t.Helper()
	m := lpmodel.New(1, 1)
	require.NoError(t, m.A.Upsert(0, 0, coef))
	m.Cost[0] = 1
	m.ColLower[0], m.ColUpper[0] = 0, math.Inf(1)
	m.RowLower[0], m.RowUpper[0] = rowLower, math.Inf(1)

	opts := config.Default()
	basis := lpmodel.NewBasis(m.NumCols, m.NumRows)
	f := factor.New(m.NumRows, opts.PivotTol, opts.UpdateLimit, opts.RefactorCostRatio)
	require.NoError(t, f.Build(m.NumRows, identityColumns(m.NumRows)))
	n := nla.New(f, nla.Identity(m.NumRows, m.NumCols))

	eng := New(m, opts, basis, n)
	require.NoError(t, eng.RecomputePrimal())
	require.NoError(t, eng.RecomputeDual())
	return eng
}

// TestStepPivotsInfeasibleRowToBound drives a single dual-simplex iteration
// against "min x s.t. x >= 2": the all-slack starting basis has the row's
// logical variable basic at 0, below its lower bound of 2, so CHUZR must
// select that row, CHUZC must select x as the only viable entering column,
// and the resulting pivot must leave x basic at exactly 2 with the row's
// logical variable nonbasic at its lower bound.
func TestStepPivotsInfeasibleRowToBound(t *testing.T) {
	eng := newSingleRowEngine(t, 1, 2)

	require.Equal(t, 0.0, eng.XB[0])

	st := eng.Step()
	require.Equal(t, StateOK, st)
	require.InDelta(t, 2.0, eng.XB[0], 1e-9)
	require.Equal(t, 0, eng.Basis.BaseIndex[0]) // x is now basic in the only row
	require.Equal(t, lpmodel.StatusLower, eng.Basis.Status[1])
	require.Equal(t, lpmodel.MoveUp, eng.Basis.Move[1])
	require.InDelta(t, -1.0, eng.DN[1], 1e-9)

	st = eng.Step()
	require.Equal(t, StateOptimal, st)
	require.EqualValues(t, 1, eng.Iterations())
}

// TestChooseRowSelectsOnlyInfeasibleRow exercises CHUZR in isolation on a
// single row: an infeasible row is selected, and a row within bounds is
// never selected even when its edge weight is tiny.
func TestChooseRowSelectsOnlyInfeasibleRow(t *testing.T) {
	eng := newSingleRowEngine(t, 1, 2)
	p, ok := eng.chooseRow()
	require.True(t, ok)
	require.Equal(t, 0, p)

	// Once the row is feasible, chooseRow reports nothing to pivot on.
	eng.XB[0] = 2
	eng.EdgeWeight[0] = 1e-12
	_, ok = eng.chooseRow()
	require.False(t, ok)
}
