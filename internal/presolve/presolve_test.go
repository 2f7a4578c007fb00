package presolve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/dsimplex/internal/config"
	"github.com/edp1096/dsimplex/internal/lpmodel"
)

func TestRunFixedVariableSubstitution(t *testing.T) {
	m := lpmodel.New(2, 3)
	m.ColLower[0], m.ColUpper[0] = 2, 2 // fixed
	m.ColUpper[1] = math.Inf(1)
	m.ColUpper[2] = math.Inf(1)
	require.NoError(t, m.A.Upsert(0, 0, 1))
	require.NoError(t, m.A.Upsert(0, 1, 1))
	require.NoError(t, m.A.Upsert(0, 2, 1))
	m.RowLower[0], m.RowUpper[0] = 10, 10
	require.NoError(t, m.A.Upsert(1, 1, 1))
	m.RowLower[1], m.RowUpper[1] = 1, math.Inf(1)

	res := Run(m, config.Default())
	require.Equal(t, Reduced, res.Outcome)
	require.Equal(t, 2, res.Reduced.NumCols)
	require.Equal(t, 2, res.Reduced.NumRows)
	require.InDelta(t, 8.0, res.Reduced.RowLower[0], 1e-9)
	require.InDelta(t, 8.0, res.Reduced.RowUpper[0], 1e-9)

	restored := res.Postsolve([]float64{3, 4})
	require.Equal(t, []float64{2, 3, 4}, restored)
}

func TestRunSingletonRowFixesColumn(t *testing.T) {
	m := lpmodel.New(2, 2)
	m.ColUpper[0], m.ColUpper[1] = math.Inf(1), math.Inf(1)
	require.NoError(t, m.A.Upsert(0, 0, 2))
	m.RowLower[0], m.RowUpper[0] = 6, 6
	require.NoError(t, m.A.Upsert(1, 1, 1))
	m.RowLower[1], m.RowUpper[1] = 0, math.Inf(1)

	res := Run(m, config.Default())
	require.Equal(t, Reduced, res.Outcome)
	require.Equal(t, 1, res.Reduced.NumCols)
	require.Equal(t, 1, res.Reduced.NumRows)

	restored := res.Postsolve([]float64{5})
	require.Equal(t, []float64{3, 5}, restored) // col0 fixed at 6/2=3
}

func TestRunEmptyColumnFixedAtFiniteBound(t *testing.T) {
	m := lpmodel.New(1, 2)
	m.Cost[1] = 5
	m.ColLower[1] = 2
	m.ColUpper[0], m.ColUpper[1] = math.Inf(1), math.Inf(1)
	require.NoError(t, m.A.Upsert(0, 0, 1))
	m.RowLower[0], m.RowUpper[0] = 0, math.Inf(1)

	res := Run(m, config.Default())
	require.Equal(t, Reduced, res.Outcome)
	require.Equal(t, 1, res.Reduced.NumCols)

	restored := res.Postsolve([]float64{9})
	require.Equal(t, []float64{9, 2}, restored)
}

func TestRunEmptyColumnUnboundedCost(t *testing.T) {
	m := lpmodel.New(1, 2)
	m.Cost[1] = -5
	m.ColUpper[0], m.ColUpper[1] = math.Inf(1), math.Inf(1)
	require.NoError(t, m.A.Upsert(0, 0, 1))
	m.RowLower[0], m.RowUpper[0] = 0, math.Inf(1)

	res := Run(m, config.Default())
	require.Equal(t, Unbounded, res.Outcome)
}

func TestRunEmptyRowInfeasible(t *testing.T) {
	m := lpmodel.New(1, 1)
	m.ColUpper[0] = math.Inf(1)
	m.RowLower[0], m.RowUpper[0] = 5, math.Inf(1)

	res := Run(m, config.Default())
	require.Equal(t, Infeasible, res.Outcome)
}

func TestRunNotReduced(t *testing.T) {
	m := lpmodel.New(1, 1)
	m.ColUpper[0] = math.Inf(1)
	require.NoError(t, m.A.Upsert(0, 0, 1))
	m.RowLower[0], m.RowUpper[0] = 0, math.Inf(1)

	res := Run(m, config.Default())
	require.Equal(t, NotReduced, res.Outcome)
	require.Same(t, m, res.Reduced)

	restored := res.Postsolve([]float64{7})
	require.Equal(t, []float64{7}, restored)
}
