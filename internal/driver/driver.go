// Package driver orchestrates presolve, phase-1/phase-2 LP solving, and
// postsolve on top of the simplex engine (component C5's LP half). The
// phase sequencing and status reporting follow the teacher's own
// top-level entry points (_examples/edp1096-sparse/factor.go's
// OrderAndFactor followed by solve.go's SolveMatrix): build once, then
// solve, surfacing a specific failure at the step it occurred rather than
// a single opaque error.
package driver

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/edp1096/dsimplex/internal/config"
	"github.com/edp1096/dsimplex/internal/factor"
	"github.com/edp1096/dsimplex/internal/lpmodel"
	"github.com/edp1096/dsimplex/internal/nla"
	"github.com/edp1096/dsimplex/internal/presolve"
	"github.com/edp1096/dsimplex/internal/simplex"
)

// Status is the top-level solver outcome reported to callers (spec.md §1,
// §6).
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusIterationLimit
	StatusTimeLimit
	StatusError
)

// Solution is the result of an LP solve: primal/dual values in the
// original variable space and the basis reached, or a diagnostic error.
type Solution struct {
	Status Status
	Obj    float64

	ColValue []float64
	ColDual  []float64
	RowValue []float64
	RowDual  []float64

	Basis *lpmodel.Basis

	Err error
}

// SolveLP runs presolve (if enabled) -> phase 1 -> phase 2 -> postsolve on
// an already-Assessed model, per spec.md §4.5.
func SolveLP(m *lpmodel.Model, opts *config.Options) *Solution {
	var pre *presolve.Result
	working := m
	if opts.Presolve {
		pre = presolve.Run(m, opts)
		switch pre.Outcome {
		case presolve.Infeasible:
			return &Solution{Status: StatusInfeasible}
		case presolve.Unbounded:
			return &Solution{Status: StatusUnbounded}
		case presolve.ReducedToEmpty:
			return &Solution{Status: StatusOptimal, ColValue: pre.Postsolve(nil), Obj: m.Offset + pre.FixedObjective()}
		}
		working = pre.Reduced
	}

	eng, err := buildEngine(working, opts)
	if err != nil {
		return &Solution{Status: StatusError, Err: err}
	}

	if st := runPhase(eng, opts, true); st != simplex.StateOK {
		return terminalSolution(st, eng)
	}
	if !feasible(eng, opts) {
		return &Solution{Status: StatusInfeasible}
	}

	if st := runPhase(eng, opts, false); st != simplex.StateOK {
		return terminalSolution(st, eng)
	}

	sol := extractSolution(eng, working)
	if opts.Presolve && pre.Outcome == presolve.Reduced {
		sol.Obj += pre.FixedObjective()
		sol.ColValue = pre.Postsolve(sol.ColValue)
	}
	sol.Status = StatusOptimal
	return sol
}

// buildEngine constructs a fresh Engine with an all-slack starting basis
// and a Build()'d factor over the logical columns (the identity basis
// matrix), always invertible.
func buildEngine(m *lpmodel.Model, opts *config.Options) (*simplex.Engine, error) {
	basis := lpmodel.NewBasis(m.NumCols, m.NumRows)
	f := factor.New(m.NumRows, opts.PivotTol, opts.UpdateLimit, opts.RefactorCostRatio)
	if err := f.Build(m.NumRows, identityColumns(m.NumRows)); err != nil {
		return nil, errors.Wrap(err, "driver: initial basis factor")
	}
	n := nla.New(f, nla.Identity(m.NumRows, m.NumCols))
	return newEngine(m, opts, basis, n)
}

func newEngine(m *lpmodel.Model, opts *config.Options, basis *lpmodel.Basis, n *nla.Nla) (*simplex.Engine, error) {
	eng := simplex.New(m, opts, basis, n)
	if err := eng.RecomputePrimal(); err != nil {
		return nil, err
	}
	if err := eng.RecomputeDual(); err != nil {
		return nil, err
	}
	return eng, nil
}

func identityColumns(dim int) factor.ColumnSource {
	return func(i int) ([]int, []float64) {
		return []int{i}, []float64{1}
	}
}

// basisColumnSource returns the ColumnSource for rebuilding a Factor around
// basis's current BaseIndex: structural basic columns come from m.A, and a
// basic logical column i contributes a unit column at row i (the +1
// convention _examples/original_source's Ax + s = 0 logical columns use
// throughout this package).
func basisColumnSource(m *lpmodel.Model, basis *lpmodel.Basis) factor.ColumnSource {
	return func(i int) ([]int, []float64) {
		bi := basis.BaseIndex[i]
		if bi < m.NumCols {
			return m.A.Col(bi)
		}
		return []int{bi - m.NumCols}, []float64{1}
	}
}

// runPhase pumps Step until optimal or a terminal condition, refactoring
// on demand (spec.md §4.4.4). When phase1 is true, all costs are
// temporarily set to zero (installPhase1Costs), so phase 1 pivots on
// primal infeasibility alone; no auxiliary infeasibility costs are used.
func runPhase(eng *simplex.Engine, opts *config.Options, phase1 bool) simplex.State {
	var restore func()
	if phase1 {
		restore = installPhase1Costs(eng)
		defer restore()
	}

	refactorRetries := 0
	for {
		if opts.IterationLimit > 0 && eng.Iterations() >= opts.IterationLimit {
			return simplex.StateIterationLimit
		}
		st := eng.Step()
		switch st {
		case simplex.StateOptimal:
			if err := checkDualFeasibility(eng, opts); err != nil {
				// Accumulated update-region rounding error is the only
				// expected cause (spec.md §4.4.2); one refactor rebuilds
				// the factorization from scratch and clears it.
				if rerr := refactor(eng); rerr != nil {
					return simplex.StateError
				}
				if err := checkDualFeasibility(eng, opts); err != nil {
					return simplex.StateError
				}
			}
			return simplex.StateOK
		case simplex.StateOK:
			continue
		case simplex.StateUnbounded, simplex.StateInfeasible:
			return st
		case simplex.StateRefactorNeeded:
			refactorRetries++
			if refactorRetries > eng.Model.NumRows {
				return simplex.StateError
			}
			if err := refactor(eng); err != nil {
				return simplex.StateError
			}
		default:
			// intermediate states are only observable mid-Step; reaching
			// here means Step returned without completing an iteration,
			// which is itself a bug were it possible, so retry as error.
			return simplex.StateError
		}
	}
}

func refactor(eng *simplex.Engine) error {
	if err := eng.Nla.Factor.Build(eng.Model.NumRows, basisColumnSource(eng.Model, eng.Basis)); err != nil {
		return err
	}
	eng.Nla.NotifyRefactor()
	if err := eng.RecomputePrimal(); err != nil {
		return err
	}
	return eng.RecomputeDual()
}

// WarmSession threads a single Nla (factor plus scaling, with its
// frozen-basis arena) and basis across a sequence of LP solves that only
// change column bounds between calls — branch-and-bound's node expansion
// (spec.md §4.5's "solve the LP relaxation, warm-started from the parent's
// frozen basis"). Reusing the same *factor.Factor across nodes means a
// child inherits its parent's LU factorization and product-form update
// region instead of rebuilding from an all-slack start at every node; only
// the column bounds differ between a parent model and its child.
type WarmSession struct {
	Nla   *nla.Nla
	Basis *lpmodel.Basis
}

// NewWarmSession builds a WarmSession with an all-slack starting basis and
// factor, the same cold start buildEngine uses for a single SolveLP call.
func NewWarmSession(numRows, numCols int, opts *config.Options) (*WarmSession, error) {
	basis := lpmodel.NewBasis(numCols, numRows)
	f := factor.New(numRows, opts.PivotTol, opts.UpdateLimit, opts.RefactorCostRatio)
	if err := f.Build(numRows, identityColumns(numRows)); err != nil {
		return nil, errors.Wrap(err, "driver: initial basis factor")
	}
	return &WarmSession{Nla: nla.New(f, nla.Identity(numRows, numCols)), Basis: basis}, nil
}

// Freeze snapshots the session's current basis status and factor
// update-region length, returning an id RestoreFrom can later rewind to.
func (s *WarmSession) Freeze() int { return s.Nla.Freeze(s.Basis.PackStatus()) }

// RestoreFrom rewinds the session to a checkpoint taken by Freeze: basis is
// the full basis (status, move, and base index) the caller kept alongside
// id from that same point, used here instead of the frozen slot's own
// packed status because nla's arena only stores VarStatus, not Move
// (Basis.Clone round-trips both). The frozen slot is consumed by this call
// per nla.Nla's reclamation policy; a node with more than one child must
// call Freeze once per child. If the factor was rebuilt from scratch since
// the freeze (ErrIncompatibleFreeze), the stored update region is no
// longer reachable and the factor is rebuilt fresh around basis instead of
// trusting a truncated update list.
func (s *WarmSession) RestoreFrom(id int, m *lpmodel.Model, basis *lpmodel.Basis) error {
	packed := basis.PackStatus()
	err := s.Nla.Unfreeze(id, &packed)
	s.Basis = basis.Clone()
	if err == nil {
		return nil
	}
	if err != nla.ErrIncompatibleFreeze {
		return err
	}
	if berr := s.Nla.Factor.Build(m.NumRows, basisColumnSource(m, s.Basis)); berr != nil {
		return berr
	}
	s.Nla.NotifyRefactor()
	return nil
}

// SolveNode solves m's LP relaxation starting from the session's current
// basis and factor instead of a fresh all-slack basis, then leaves the
// session's Basis mutated to the node's final basis so a later Freeze can
// checkpoint it for that node's own children. Presolve is not run here:
// each branch-and-bound node shares the same row/column structure as every
// other node (only bounds differ), so reusing one factor across nodes and
// re-presolving per node are incompatible — presolve is left to the root
// solve a caller runs separately via SolveLP.
func (s *WarmSession) SolveNode(m *lpmodel.Model, opts *config.Options) *Solution {
	eng, err := newEngine(m, opts, s.Basis, s.Nla)
	if err != nil {
		return &Solution{Status: StatusError, Err: err}
	}

	if st := runPhase(eng, opts, true); st != simplex.StateOK {
		return terminalSolution(st, eng)
	}
	if !feasible(eng, opts) {
		return &Solution{Status: StatusInfeasible}
	}
	if st := runPhase(eng, opts, false); st != simplex.StateOK {
		return terminalSolution(st, eng)
	}

	sol := extractSolution(eng, m)
	sol.Status = StatusOptimal
	return sol
}

// installPhase1Costs replaces the model's live cost vector with the
// phase-1 infeasibility-minimizing costs (0 for feasible nonbasic
// variables, ±1 pushing infeasible basics toward their nearer bound is
// handled implicitly by CHUZR/CHUZC operating on the true bounds; the
// phase-1 objective here zeroes all real costs so phase-1 pivots purely on
// feasibility) and returns a closure restoring the original costs.
func installPhase1Costs(eng *simplex.Engine) func() {
	m := eng.Model
	saved := append([]float64(nil), m.Cost...)
	for j := range m.Cost {
		m.Cost[j] = 0
	}
	_ = eng.RecomputeDual()
	return func() {
		copy(m.Cost, saved)
		_ = eng.RecomputeDual()
	}
}

// feasible reports whether every basic variable's current value lies
// within its bound at the end of phase 1. The per-row violation is
// max(lo-XB, XB-up, 0), computed with gonum/floats the way the
// mattia01017 pack repo builds its dense residual vectors; its sum of
// squares mirrors chooseRow's own infeasibility^2/edge_weight scoring and
// is logged as a diagnostic magnitude when the solve is rejected.
func feasible(eng *simplex.Engine, opts *config.Options) bool {
	tol := opts.PrimalFeasibilityTol
	n := len(eng.Basis.BaseIndex)
	lo := make([]float64, n)
	up := make([]float64, n)
	for i, bi := range eng.Basis.BaseIndex {
		lo[i], up[i] = boundOf(eng.Model, bi)
	}

	belowLower := append([]float64(nil), lo...)
	floats.Sub(belowLower, eng.XB) // belowLower[i] = lo[i] - XB[i]
	aboveUpper := append([]float64(nil), eng.XB...)
	floats.Sub(aboveUpper, up) // aboveUpper[i] = XB[i] - up[i]

	violated := make([]float64, n)
	maxViolation := 0.0
	for i := 0; i < n; i++ {
		v := belowLower[i]
		if aboveUpper[i] > v {
			v = aboveUpper[i]
		}
		if v > 0 {
			violated[i] = v
			if v > maxViolation {
				maxViolation = v
			}
		}
	}
	if maxViolation <= tol {
		return true
	}
	opts.Debugf("driver: primal infeasible after phase 1, sum-of-squares violation %g, max %g", floats.Dot(violated, violated), maxViolation)
	return false
}

func boundOf(m *lpmodel.Model, j int) (float64, float64) {
	if j < m.NumCols {
		return m.ColLower[j], m.ColUpper[j]
	}
	i := j - m.NumCols
	return m.RowLower[i], m.RowUpper[i]
}

func terminalSolution(st simplex.State, eng *simplex.Engine) *Solution {
	switch st {
	case simplex.StateUnbounded:
		return &Solution{Status: StatusUnbounded}
	case simplex.StateInfeasible:
		return &Solution{Status: StatusInfeasible}
	case simplex.StateIterationLimit:
		return &Solution{Status: StatusIterationLimit, Basis: eng.Basis.Clone()}
	case simplex.StateTimeLimit:
		return &Solution{Status: StatusTimeLimit, Basis: eng.Basis.Clone()}
	default:
		return &Solution{Status: StatusError, Err: errors.Errorf("driver: unexpected terminal state %v", st)}
	}
}

func extractSolution(eng *simplex.Engine, m *lpmodel.Model) *Solution {
	colValue := make([]float64, m.NumCols)
	colDual := make([]float64, m.NumCols)
	rowValue := make([]float64, m.NumRows)
	rowDual := make([]float64, m.NumRows)

	values := make([]float64, m.NumCols+m.NumRows)
	for i, bi := range eng.Basis.BaseIndex {
		values[bi] = eng.XB[i]
	}
	for j := 0; j < m.NumCols+m.NumRows; j++ {
		if eng.Basis.IsBasic(j) {
			continue
		}
		lo, up := boundOf(m, j)
		switch eng.Basis.Move[j] {
		case lpmodel.MoveUp:
			values[j] = lo
		case lpmodel.MoveDown:
			values[j] = up
		default:
			values[j] = 0
		}
	}
	for j := 0; j < m.NumCols; j++ {
		colValue[j] = values[j]
		colDual[j] = eng.DN[j]
	}
	for i := 0; i < m.NumRows; i++ {
		rowValue[i] = values[m.NumCols+i]
		rowDual[i] = -eng.DN[m.NumCols+i]
	}

	obj := m.Offset
	for j := 0; j < m.NumCols; j++ {
		obj += m.Cost[j] * colValue[j]
	}

	return &Solution{
		Obj:      obj,
		ColValue: colValue,
		ColDual:  colDual,
		RowValue: rowValue,
		RowDual:  rowDual,
		Basis:    eng.Basis.Clone(),
	}
}

// checkDualFeasibility implements the correctness invariant of spec.md
// §4.4.2 (every nonbasic reduced cost must satisfy move_j * d_j >= -T_d)
// and is called by runPhase at the point each phase reports convergence,
// before its caller trusts the result. A logical column's DN carries the
// opposite sign from a structural column's (extractSolution negates it the
// same way when reporting RowDual), so it is negated here before the
// move-sign check to compare like with like.
func checkDualFeasibility(eng *simplex.Engine, opts *config.Options) error {
	for j := 0; j < eng.Model.NumCols+eng.Model.NumRows; j++ {
		if eng.Basis.IsBasic(j) {
			continue
		}
		mv := float64(eng.Basis.Move[j])
		if mv == 0 {
			continue
		}
		d := eng.DN[j]
		if j >= eng.Model.NumCols {
			d = -d
		}
		if mv*d < -opts.DualFeasibilityTol {
			return errors.Errorf("driver: dual infeasibility at variable %d: move=%v d=%g", j, eng.Basis.Move[j], eng.DN[j])
		}
	}
	return nil
}
