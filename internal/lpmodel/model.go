// Package lpmodel defines the LP data model and its assessment
// (canonicalization) pass. The struct-of-slices layout and the bound
// collapsing/promotion rules mirror the teacher's Circuit/Matrix
// separation of topology from numeric data
// (_examples/edp1096-sparse/model.go keeps dimension and value arrays
// apart from the working linked-list matrix); here the model is the
// analogous "problem data" layer sitting below the numerical engine.
package lpmodel

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/edp1096/dsimplex/internal/config"
	"github.com/edp1096/dsimplex/internal/sparse"
)

// Sense is the optimization direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// Model is the LP/MIP data described by spec.md §3: dimensions m (rows), n
// (columns), objective c, optional quadratic Q, column and row bounds,
// integrality tags, sense, and name.
type Model struct {
	Name string
	Sense Sense

	NumRows int
	NumCols int

	A *sparse.Matrix // column-major, NumRows x NumCols

	// Q is the optional symmetric positive semidefinite quadratic term,
	// stored dense via gonum since MIQP instances in this engine's scope
	// are small enough that a dense Hessian is the pragmatic choice (the
	// teacher's own numeric core is likewise dense per node, the MNA
	// matrix, despite the surrounding topology being sparse).
	Q *mat.SymDense

	Cost   []float64
	Offset float64

	ColLower []float64
	ColUpper []float64
	RowLower []float64
	RowUpper []float64

	// Integrality marks columns constrained to integer values (the I set
	// in spec.md §1); nil or all-false for a pure LP.
	Integrality []bool
}

// New allocates a Model with zeroed bound/cost slices of the given size.
func New(numRows, numCols int) *Model {
	return &Model{
		NumRows:     numRows,
		NumCols:     numCols,
		A:           sparse.New(numRows, numCols),
		Cost:        make([]float64, numCols),
		ColLower:    make([]float64, numCols),
		ColUpper:    make([]float64, numCols),
		RowLower:    make([]float64, numRows),
		RowUpper:    make([]float64, numRows),
		Integrality: make([]bool, numCols),
	}
}

// IsMIP reports whether any column is integer-constrained.
func (m *Model) IsMIP() bool {
	for _, b := range m.Integrality {
		if b {
			return true
		}
	}
	return false
}

// AssessOutcome reports what Assess found, mirroring the presolve outcome
// enum's sibling in spec.md §7.
type AssessOutcome int

const (
	AssessOK AssessOutcome = iota
	AssessInfeasibleBounds
	AssessWarningCollapsedBounds
)

var (
	// ErrInvalidInput is returned for structurally invalid data: NaNs,
	// mismatched dimensions, non-monotonic indices (spec.md §7 kind 1).
	ErrInvalidInput = errors.New("lpmodel: invalid input")
	// ErrInfeasibleBounds is returned when a bound gap exceeds tolerance
	// (spec.md §7 kind 2).
	ErrInfeasibleBounds = errors.New("lpmodel: infeasible bounds")
)

// Assess canonicalizes the model in place: promotes bound magnitudes at or
// beyond opts.InfiniteBound to signed infinity, collapses near-equal
// bounds to an exact midpoint (warning), rejects true infeasible gaps
// (error), clamps |cost| against opts.InfiniteCost, sets matrix entries
// with magnitude below SmallMatrixValue to zero (they stay stored as
// explicit zeros; the matrix is not compacted), and rejects an entry above
// LargeMatrixValue with ErrInvalidInput. It returns the outcome so the driver can decide
// whether to proceed, matching the quantified invariants in spec.md §8.
func Assess(m *Model, opts *config.Options) (AssessOutcome, error) {
	outcome := AssessOK

	for j := 0; j < m.NumCols; j++ {
		if math.IsNaN(m.Cost[j]) {
			return AssessOK, errors.Wrapf(ErrInvalidInput, "NaN cost at column %d", j)
		}
		if m.Cost[j] > opts.InfiniteCost {
			m.Cost[j] = opts.InfiniteCost
		} else if m.Cost[j] < -opts.InfiniteCost {
			m.Cost[j] = -opts.InfiniteCost
		}

		lo, up := m.ColLower[j], m.ColUpper[j]
		if math.IsNaN(lo) || math.IsNaN(up) {
			return AssessOK, errors.Wrapf(ErrInvalidInput, "NaN bound at column %d", j)
		}
		if lo <= -opts.InfiniteBound {
			lo = math.Inf(-1)
		}
		if up >= opts.InfiniteBound {
			up = math.Inf(1)
		}
		if lo > up {
			if lo-up < opts.PrimalFeasibilityTol {
				mid := (lo + up) / 2
				lo, up = mid, mid
				if outcome == AssessOK {
					outcome = AssessWarningCollapsedBounds
				}
			} else {
				return AssessOK, errors.Wrapf(ErrInfeasibleBounds, "column %d: lower %g > upper %g", j, lo, up)
			}
		}
		m.ColLower[j], m.ColUpper[j] = lo, up
	}

	for i := 0; i < m.NumRows; i++ {
		lo, up := m.RowLower[i], m.RowUpper[i]
		if math.IsNaN(lo) || math.IsNaN(up) {
			return AssessOK, errors.Wrapf(ErrInvalidInput, "NaN bound at row %d", i)
		}
		if lo <= -opts.InfiniteBound {
			lo = math.Inf(-1)
		}
		if up >= opts.InfiniteBound {
			up = math.Inf(1)
		}
		if lo > up {
			if lo-up < opts.PrimalFeasibilityTol {
				mid := (lo + up) / 2
				lo, up = mid, mid
				if outcome == AssessOK {
					outcome = AssessWarningCollapsedBounds
				}
			} else {
				return AssessOK, errors.Wrapf(ErrInfeasibleBounds, "row %d: lower %g > upper %g", i, lo, up)
			}
		}
		m.RowLower[i], m.RowUpper[i] = lo, up
	}

	// entries below small_matrix_value are treated as structural zeros;
	// left in place with value 0 rather than compacted, since removal
	// would require rebuilding Start and no caller depends on strict
	// no-explicit-zero here until presolve runs.
	for j := 0; j < m.NumCols; j++ {
		idx, val := m.A.Col(j)
		for k, v := range val {
			mag := math.Abs(v)
			if math.IsNaN(v) {
				return AssessOK, errors.Wrapf(ErrInvalidInput, "NaN matrix entry at row %d col %d", idx[k], j)
			}
			if mag > opts.LargeMatrixValue {
				return AssessOK, errors.Wrapf(ErrInvalidInput, "entry magnitude %g at row %d col %d exceeds large_matrix_value", mag, idx[k], j)
			}
			if mag > 0 && mag < opts.SmallMatrixValue {
				val[k] = 0
			}
		}
	}

	return outcome, nil
}
