package simplex

import (
	"container/heap"
	"math"
)

// dualRow is the short-lived per-iteration ratio-test state (spec.md §9's
// "DualRow" cyclic-state resolution): it borrows the engine's row_p and
// reduced costs for the duration of one CHUZC call and is discarded
// immediately after, never retained across iterations.
type dualRow struct {
	e *Engine

	leavingRow int    // p
	moveOut    Move   // sign convention of the leaving variable's departure
	rowP       *sparseRow

	candidates []chuzcCandidate
}

// Move mirrors lpmodel.Move locally to avoid a cyclic import; +1/-1/0 with
// identical meaning.
type Move = int8

const (
	moveUp   Move = 1
	moveDown Move = -1
)

// sparseRow is a packed-sparse representation of row_p restricted to
// nonbasic columns, keyed by full variable index.
type sparseRow struct {
	idx []int
	val map[int]float64
}

func newSparseRow() *sparseRow { return &sparseRow{val: make(map[int]float64)} }

func (r *sparseRow) set(j int, v float64) {
	if v == 0 {
		return
	}
	if _, ok := r.val[j]; !ok {
		r.idx = append(r.idx, j)
	}
	r.val[j] = v
}

type chuzcCandidate struct {
	j     int
	alpha float64 // row_p[j] * moveOut * move_j
}

// chooseColumn runs the two-pass Harris/BFRT ratio test of spec.md §4.4.2,
// returning the entering variable index q, its alpha_q, and the dual step
// theta_dual = d_q/alpha_q (used to update every other nonbasic reduced
// cost; the caller derives the primal step separately from alpha_q and
// the leaving variable's infeasibility). ok is false when no candidate
// exists (dual unbounded, i.e. primal infeasible for the original
// problem).
func (d *dualRow) chooseColumn(deltaPrimal float64) (q int, alphaQ, thetaDual float64, flips []int, ok bool) {
	e := d.e

	if q, alphaQ, ok := d.freeVariableFastPath(); ok {
		theta := e.DN[q] / alphaQ
		return q, alphaQ, theta, nil, true
	}

	ta := tolerancePassA(e.Nla.Factor.UpdateCount())
	td := e.Opts.DualFeasibilityTol

	d.candidates = d.candidates[:0]
	for _, j := range d.rowP.idx {
		rowVal := d.rowP.val[j]
		mv := float64(e.Basis.Move[j])
		if mv == 0 {
			continue
		}
		alpha := rowVal * float64(d.moveOut) * mv
		if alpha > ta {
			d.candidates = append(d.candidates, chuzcCandidate{j: j, alpha: alpha})
		}
	}
	if len(d.candidates) == 0 {
		return 0, 0, 0, nil, false
	}

	theta := math.Inf(1)
	for _, c := range d.candidates {
		mv := float64(e.Basis.Move[c.j])
		t := (mv*e.DN[c.j] + td) / c.alpha
		if t < theta {
			theta = t
		}
	}

	absDelta := math.Abs(deltaPrimal)
	selectTheta := 10*theta + 1e-7
	var tight []chuzcCandidate
	for pass := 0; pass < 20; pass++ {
		tight = tight[:0]
		var sumRange float64
		for _, c := range d.candidates {
			mv := float64(e.Basis.Move[c.j])
			t := (mv*e.DN[c.j] + td) / c.alpha
			if t <= selectTheta {
				tight = append(tight, c)
				sumRange += c.alpha * e.Range[c.j]
			}
		}
		if sumRange >= absDelta || len(tight) == len(d.candidates) {
			break
		}
		selectTheta *= 10
	}
	if len(tight) == 0 {
		tight = d.candidates
	}

	ratio := func(c chuzcCandidate) float64 {
		mv := float64(e.Basis.Move[c.j])
		return (mv*e.DN[c.j] + td) / c.alpha
	}
	rangeOf := func(j int) float64 { return e.Range[j] }

	// Partition tight candidates into breakpoint groups in ascending-ratio
	// order (spec.md §4.4.2), stopping once the accumulated range-sum
	// covers the leaving variable's infeasibility — a group formed after
	// that point is never needed since chooseFinalLargeAlpha only walks
	// groups already formed. A heap-based grouping is used above the
	// candidate count threshold to match HEkkDualRow's
	// chooseFinalWorkGroupHeap versus chooseFinalWorkGroupQuad split; the
	// heap path pops candidates one at a time instead of rescanning the
	// full remainder on every pass.
	var partition func([]chuzcCandidate) [][]chuzcCandidate
	if len(tight) > 100 {
		partition = groupBreakpointsHeap(ratio, rangeOf, absDelta)
	} else {
		partition = groupBreakpointsQuad(ratio, rangeOf, absDelta)
	}
	groups := partition(tight)
	if len(groups) == 0 {
		return 0, 0, 0, nil, false
	}

	best, breakGroup := chooseFinalLargeAlpha(groups, e.numTotPermutation)

	for gi := 0; gi < breakGroup; gi++ {
		for _, c := range groups[gi] {
			flips = append(flips, c.j)
		}
	}

	thetaDual = e.DN[best.j] / best.alpha
	return best.j, best.alpha, thetaDual, flips, true
}

// groupBreakpointsQuad partitions candidates into ascending-ratio breakpoint
// groups via a quadratic rescan of the remainder on every pass, matching
// HEkkDualRow's chooseFinalWorkGroupQuad. Grouping stops once the
// accumulated range-sum reaches totalDelta; any candidates not yet grouped
// at that point are left out of the result.
func groupBreakpointsQuad(ratio func(chuzcCandidate) float64, rangeOf func(int) float64, totalDelta float64) func([]chuzcCandidate) [][]chuzcCandidate {
	return func(cands []chuzcCandidate) [][]chuzcCandidate {
		remaining := append([]chuzcCandidate(nil), cands...)
		threshold := math.Inf(1)
		for _, c := range remaining {
			if r := ratio(c); r < threshold {
				threshold = r
			}
		}

		var groups [][]chuzcCandidate
		var totalChange float64
		for len(remaining) > 0 {
			var grp, rest []chuzcCandidate
			nextThreshold := math.Inf(1)
			for _, c := range remaining {
				if r := ratio(c); r <= threshold*(1+1e-9)+1e-12 {
					grp = append(grp, c)
					totalChange += c.alpha * rangeOf(c.j)
				} else {
					rest = append(rest, c)
					if r < nextThreshold {
						nextThreshold = r
					}
				}
			}
			if len(grp) == 0 {
				// Every remaining candidate sits on the same threshold;
				// take them as one closing group instead of looping.
				grp, rest = rest, nil
			}
			groups = append(groups, grp)
			remaining = rest
			threshold = nextThreshold
			if totalChange >= totalDelta {
				break
			}
		}
		return groups
	}
}

// candHeap is a min-heap over chuzcCandidate keyed by ratio, used to pop
// breakpoints in ascending order one at a time.
type candHeap struct {
	c     []chuzcCandidate
	ratio func(chuzcCandidate) float64
}

func (h *candHeap) Len() int           { return len(h.c) }
func (h *candHeap) Less(i, j int) bool { return h.ratio(h.c[i]) < h.ratio(h.c[j]) }
func (h *candHeap) Swap(i, j int)      { h.c[i], h.c[j] = h.c[j], h.c[i] }
func (h *candHeap) Push(x interface{}) { h.c = append(h.c, x.(chuzcCandidate)) }
func (h *candHeap) Pop() interface{} {
	old := h.c
	n := len(old)
	item := old[n-1]
	h.c = old[:n-1]
	return item
}

// groupBreakpointsHeap partitions candidates into ascending-ratio breakpoint
// groups by popping a min-heap one entry at a time, matching HEkkDualRow's
// chooseFinalWorkGroupHeap (there implemented as a max-heapsort over
// dual/alpha ratios). Unlike groupBreakpointsQuad this never rescans the
// full remainder: each group boundary costs one heap pop. As in
// groupBreakpointsQuad, grouping stops once the range-sum target is met
// and the still-unpopped candidates are left out of the result.
func groupBreakpointsHeap(ratio func(chuzcCandidate) float64, rangeOf func(int) float64, totalDelta float64) func([]chuzcCandidate) [][]chuzcCandidate {
	return func(cands []chuzcCandidate) [][]chuzcCandidate {
		h := &candHeap{c: append([]chuzcCandidate(nil), cands...), ratio: ratio}
		heap.Init(h)

		var groups [][]chuzcCandidate
		var current []chuzcCandidate
		var totalChange float64
		haveThreshold := false
		var threshold float64

		for h.Len() > 0 {
			c := heap.Pop(h).(chuzcCandidate)
			r := ratio(c)
			if !haveThreshold {
				threshold = r
				haveThreshold = true
			}
			if r > threshold*(1+1e-9)+1e-12 {
				groups = append(groups, current)
				if totalChange >= totalDelta {
					return groups
				}
				current = nil
				threshold = r
			}
			current = append(current, c)
			totalChange += c.alpha * rangeOf(c.j)
		}
		if len(current) > 0 {
			groups = append(groups, current)
		}
		return groups
	}
}

// chooseFinalLargeAlpha walks breakpoint groups backward from the last one,
// matching HEkkDualRow's chooseFinalLargeAlpha: within each group it finds
// the candidate with the largest |alpha| (ties broken toward the lowest
// anti-cycling permutation index), and accepts the first such candidate
// (scanning from the end) whose alpha clears a numerical-stability floor —
// 10% of the largest alpha seen anywhere, capped at 1. Everything in a
// group before the accepted one is later flipped rather than pivoted on,
// which is why the pivot need not come from the earliest group.
func chooseFinalLargeAlpha(groups [][]chuzcCandidate, numTotPermutation []int) (pivot chuzcCandidate, groupIdx int) {
	var maxAlpha float64
	for _, g := range groups {
		for _, c := range g {
			if c.alpha > maxAlpha {
				maxAlpha = c.alpha
			}
		}
	}
	finalCompare := math.Min(0.1*maxAlpha, 1.0)

	bestInGroup := func(g []chuzcCandidate) chuzcCandidate {
		best := g[0]
		for _, c := range g[1:] {
			if c.alpha > best.alpha || (c.alpha == best.alpha && numTotPermutation[c.j] < numTotPermutation[best.j]) {
				best = c
			}
		}
		return best
	}

	groupIdx = -1
	for gi := len(groups) - 1; gi >= 0; gi-- {
		candidate := bestInGroup(groups[gi])
		if candidate.alpha > finalCompare {
			pivot = candidate
			groupIdx = gi
			break
		}
	}
	if groupIdx == -1 {
		// No group cleared the stability floor; take the single largest
		// alpha across every group so a pivot is still chosen.
		for gi, g := range groups {
			candidate := bestInGroup(g)
			if groupIdx == -1 || candidate.alpha > pivot.alpha ||
				(candidate.alpha == pivot.alpha && numTotPermutation[candidate.j] < numTotPermutation[pivot.j]) {
				pivot = candidate
				groupIdx = gi
			}
		}
	}
	return pivot, groupIdx
}

// freeVariableFastPath implements spec.md §4.4.3: prefer any nonbasic free
// variable with |alpha| above the pass-A tolerance, before running the
// general ratio test.
func (d *dualRow) freeVariableFastPath() (int, float64, bool) {
	e := d.e
	if len(e.freelist) == 0 {
		return 0, 0, false
	}
	ta := tolerancePassA(e.Nla.Factor.UpdateCount())
	for j := range e.freelist {
		v, ok := d.rowP.val[j]
		if !ok {
			continue
		}
		if math.Abs(v) > ta {
			return j, v, true
		}
	}
	return 0, 0, false
}

// tolerancePassA implements the decaying pass-A tolerance T_a of spec.md
// §4.4.2: 1e-9 at low update counts, 3e-8 mid, 1e-6 high.
func tolerancePassA(updateCount int) float64 {
	switch {
	case updateCount < 10:
		return 1e-9
	case updateCount < 50:
		return 3e-8
	default:
		return 1e-6
	}
}
