package mip

import (
	"math"

	"gopkg.in/dnaeon/go-priorityqueue.v1"

	"github.com/edp1096/dsimplex/internal/config"
	"github.com/edp1096/dsimplex/internal/driver"
	"github.com/edp1096/dsimplex/internal/lpmodel"
)

// node is one open branch-and-bound node: bound overrides on top of the
// root model plus a dual bound from its parent's relaxation, mirroring
// the FixedSubsets/DualBound/PrimalSolution shape of
// _examples/mattia01017-Branch-and-bound-for-SCPCS's Node, generalized
// from "fixed subset flags" to "column bound overrides" for a general
// MIP. sol caches the relaxation solution computed while this node was
// still a lookahead child (see relaxationBound) so the main loop does not
// re-solve it a second time when it is later dequeued. parentFreezeID and
// parentBasis identify the frozen checkpoint of the parent's basis this
// node warm-starts from (spec.md §4.5); parentFreezeID is -1 for the root,
// which has no parent to warm-start from.
type node struct {
	colLower, colUpper []float64
	dualBound          float64
	depth              int

	sol            *driver.Solution
	parentFreezeID int
	parentBasis    *lpmodel.Basis
}

func rootNode(m *lpmodel.Model) *node {
	return &node{
		colLower:       append([]float64(nil), m.ColLower...),
		colUpper:       append([]float64(nil), m.ColUpper...),
		dualBound:      math.Inf(-1),
		parentFreezeID: -1,
	}
}

func (n *node) child(col int, newLower, newUpper *float64) *node {
	lo := append([]float64(nil), n.colLower...)
	up := append([]float64(nil), n.colUpper...)
	if newLower != nil {
		lo[col] = *newLower
	}
	if newUpper != nil {
		up[col] = *newUpper
	}
	return &node{colLower: lo, colUpper: up, dualBound: n.dualBound, depth: n.depth + 1, parentFreezeID: -1}
}

// Result is the outcome of a branch-and-bound solve.
type Result struct {
	Status   driver.Status
	Obj      float64
	ColValue []float64
	DualBound float64
	Nodes    int
}

// Solve runs pseudocost-branching branch-and-bound over m's integer
// columns, per spec.md §4.5. Every node's LP relaxation is solved through a
// single driver.WarmSession shared for the whole tree: a child's relaxation
// warm-starts from its parent's frozen basis and factor instead of an
// all-slack cold start, per spec.md §4.5's "solve the LP relaxation,
// warm-started from the parent's frozen basis". Only the root's relaxation
// runs cold, since it has no parent to warm-start from. Presolve is not run
// per node — every node shares the root's row/column structure and only
// differs in column bounds, which is incompatible with reusing one factor
// across nodes (see driver.WarmSession.SolveNode).
//
// m.Sense only affects the bound comparisons below; the session always
// minimizes m.Cost as given, so a caller solving a Maximize model must
// negate its own cost vector and negate Obj back on the way out (see
// DESIGN.md's "known limitations").
func Solve(m *lpmodel.Model, opts *config.Options) *Result {
	pc := NewPseudocost(m.NumCols, opts.MinReliable)

	session, err := driver.NewWarmSession(m.NumRows, m.NumCols, opts)
	if err != nil {
		return &Result{Status: driver.StatusError}
	}

	open := priorityqueue.New[*node, float64](priorityqueue.MinHeap)
	open.Put(rootNode(m), math.Inf(-1))

	best := &Result{Status: driver.StatusInfeasible, Obj: math.Inf(1)}
	sense := 1.0
	if m.Sense == lpmodel.Maximize {
		sense = -1.0
	}

	nodesExplored := 0
	for open.Len() > 0 {
		n := open.Get().Value

		nodesExplored++
		if best.Status == driver.StatusOptimal && n.dualBound*sense >= best.Obj*sense-opts.MipRelGap*(1+math.Abs(best.Obj)) {
			continue
		}

		sol := n.sol
		if sol == nil {
			// Only the root reaches here with no cached solution: every
			// other node was already solved as a lookahead child by
			// relaxationBound below.
			relaxed := boundedCopy(m, n.colLower, n.colUpper)
			sol = session.SolveNode(relaxed, opts)
		}
		switch sol.Status {
		case driver.StatusInfeasible:
			continue
		case driver.StatusUnbounded:
			return &Result{Status: driver.StatusUnbounded}
		case driver.StatusError:
			continue
		}

		fracCol, frac, integral := selectBranchingColumn(m, sol.ColValue, opts.IntegralityTol, pc)
		if integral {
			if sol.Obj*sense < best.Obj*sense {
				best = &Result{Status: driver.StatusOptimal, Obj: sol.Obj, ColValue: sol.ColValue, DualBound: sol.Obj}
			}
			continue
		}

		// Snapshot the just-solved basis once, then freeze it once per
		// child: Nla.Unfreeze always consumes/releases its slot, so a
		// single frozen id cannot serve both children.
		parentBasis := session.Basis.Clone()
		up := math.Ceil(frac)
		down := math.Floor(frac)
		upChild := n.child(fracCol, &up, nil)
		downChild := n.child(fracCol, nil, &down)
		upChild.parentFreezeID, upChild.parentBasis = session.Freeze(), parentBasis
		downChild.parentFreezeID, downChild.parentBasis = session.Freeze(), parentBasis

		upSol, upOK := relaxationBound(m, upChild, opts, session)
		downSol, downOK := relaxationBound(m, downChild, opts, session)
		if upOK {
			pc.AddObservation(fracCol, up-frac, math.Abs(upSol.Obj-sol.Obj))
			upChild.dualBound = upSol.Obj
			upChild.sol = upSol
			open.Put(upChild, upSol.Obj*sense)
		} else {
			pc.AddCutoffObservation(fracCol, true)
		}
		if downOK {
			pc.AddObservation(fracCol, down-frac, math.Abs(downSol.Obj-sol.Obj))
			downChild.dualBound = downSol.Obj
			downChild.sol = downSol
			open.Put(downChild, downSol.Obj*sense)
		} else {
			pc.AddCutoffObservation(fracCol, false)
		}
	}

	best.Nodes = nodesExplored
	best.DualBound = best.Obj
	return best
}

func boundedCopy(m *lpmodel.Model, lo, up []float64) *lpmodel.Model {
	c := *m
	c.ColLower = lo
	c.ColUpper = up
	return &c
}

// selectBranchingColumn picks the fractional integer column with the
// highest pseudocost score (spec.md §4.5).
func selectBranchingColumn(m *lpmodel.Model, x []float64, tol float64, pc *Pseudocost) (col int, frac float64, integral bool) {
	integral = true
	bestScore := math.Inf(-1)
	col = -1
	for j, isInt := range m.Integrality {
		if !isInt {
			continue
		}
		f := x[j] - math.Floor(x[j])
		dist := math.Min(f, 1-f)
		if dist <= tol {
			continue
		}
		integral = false
		s := pc.Score(j, x[j])
		if s > bestScore {
			bestScore = s
			col = j
			frac = x[j]
		}
	}
	return col, frac, integral
}

// relaxationBound solves the LP relaxation of a child node, warm-started
// from the parent basis frozen for it in Solve, to seed its dual bound and
// produce a pseudocost sample for the branch that created it. The returned
// Solution is cached on the node so Solve does not solve it again when the
// node is later dequeued. ok is false when the child is infeasible (a
// cutoff).
func relaxationBound(m *lpmodel.Model, n *node, opts *config.Options, session *driver.WarmSession) (*driver.Solution, bool) {
	relaxed := boundedCopy(m, n.colLower, n.colUpper)
	if n.parentFreezeID >= 0 {
		if err := session.RestoreFrom(n.parentFreezeID, relaxed, n.parentBasis); err != nil {
			return nil, false
		}
	}
	sol := session.SolveNode(relaxed, opts)
	if sol.Status != driver.StatusOptimal {
		return nil, false
	}
	return sol, true
}
