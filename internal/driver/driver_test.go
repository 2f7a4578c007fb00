package driver

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/dsimplex/internal/config"
	"github.com/edp1096/dsimplex/internal/lpmodel"
)

// TestSolveLPTrivialColumnBound covers the trivial one-column LP: presolve's
// empty-column reduction picks the cost-optimal finite bound directly, and
// SolveLP must report it without ever building an Engine.
func TestSolveLPTrivialColumnBound(t *testing.T) {
	m := lpmodel.New(0, 1)
	m.Cost[0] = 1
	m.ColLower[0], m.ColUpper[0] = 1, 10

	sol := SolveLP(m, config.Default())
	require.Equal(t, StatusOptimal, sol.Status)
	require.InDelta(t, 1.0, sol.Obj, 1e-9)
	require.InDelta(t, 1.0, sol.ColValue[0], 1e-9)
}

// TestSolveLPSingleRowLowerBound covers "min x s.t. x >= 2": presolve
// leaves the row untouched (it's an inequality, not a fixable singleton),
// so this exercises the full build/phase1/phase2 path through the engine,
// including the dual-feasibility check runPhase runs before trusting an
// StateOptimal result.
func TestSolveLPSingleRowLowerBound(t *testing.T) {
	m := lpmodel.New(1, 1)
	require.NoError(t, m.A.Upsert(0, 0, 1))
	m.Cost[0] = 1
	m.ColLower[0], m.ColUpper[0] = 0, math.Inf(1)
	m.RowLower[0], m.RowUpper[0] = 2, math.Inf(1)

	sol := SolveLP(m, config.Default())
	require.Equal(t, StatusOptimal, sol.Status)
	require.InDelta(t, 2.0, sol.Obj, 1e-9)
	require.InDelta(t, 2.0, sol.ColValue[0], 1e-9)
	require.InDelta(t, 2.0, sol.RowValue[0], 1e-9)
}

// TestSolveLPInfeasibleConflictingBounds forces the row's requirement
// (x >= 2) to conflict with the column's own upper bound (x <= 1): the first
// phase-1 pivot brings x to its row-mandated value, ignoring x's own bound
// (a dual-simplex pivot doesn't need the entering variable to stay within
// its own bound mid-solve), and the following iteration finds x itself
// infeasible against that upper bound with no viable entering column left,
// which CHUZC reports as dual-unbounded, i.e. primal infeasible.
func TestSolveLPInfeasibleConflictingBounds(t *testing.T) {
	m := lpmodel.New(1, 1)
	require.NoError(t, m.A.Upsert(0, 0, 1))
	m.ColLower[0], m.ColUpper[0] = 0, 1
	m.RowLower[0], m.RowUpper[0] = 2, math.Inf(1)

	sol := SolveLP(m, config.Default())
	require.Equal(t, StatusInfeasible, sol.Status)
}

// TestSolveLPUnboundedEmptyColumn covers "min -x, x >= 0": with no rows at
// all the column is empty, and presolve's emptyColumnValue reports
// unbounded directly since the cost points into the column's infinite
// direction.
func TestSolveLPUnboundedEmptyColumn(t *testing.T) {
	m := lpmodel.New(0, 1)
	m.Cost[0] = -1
	m.ColLower[0], m.ColUpper[0] = 0, math.Inf(1)

	sol := SolveLP(m, config.Default())
	require.Equal(t, StatusUnbounded, sol.Status)
}

// TestSolveLPEqualityRowFixesColumn covers an equality-constrained LP (x =
// 5) end to end: presolve's singleton-row substitution removes both the row
// and the column, reducing the model to empty, and SolveLP must still
// report the column's fixed value and the cost contribution FixedObjective
// recovers for a column that no longer exists in the reduced model.
func TestSolveLPEqualityRowFixesColumn(t *testing.T) {
	m := lpmodel.New(1, 1)
	require.NoError(t, m.A.Upsert(0, 0, 1))
	m.Cost[0] = 3
	m.ColLower[0], m.ColUpper[0] = 0, 10
	m.RowLower[0], m.RowUpper[0] = 5, 5

	sol := SolveLP(m, config.Default())
	require.Equal(t, StatusOptimal, sol.Status)
	require.InDelta(t, 15.0, sol.Obj, 1e-9)
	require.InDelta(t, 5.0, sol.ColValue[0], 1e-9)
}
