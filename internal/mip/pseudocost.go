// Package mip implements pseudocost-based branch-and-bound on top of the
// LP driver (component C5's MIP half). The pseudocost running-average
// bookkeeping is grounded on
// _examples/original_source/src/mip/HighsPseudocost.h, translated from
// per-column parallel slices with a Welford-style running mean into the
// same shape in Go; the branch-and-bound node/open-list structure is
// grounded on
// _examples/mattia01017-Branch-and-bound-for-SCPCS/src/scpcs/branch_and_bound.go's
// best-bound node ordering.
package mip

import "math"

// Pseudocost tracks per-column running averages of objective gain per
// unit fractional change, plus inference and cutoff observation counts,
// per spec.md §3 and §4.5.
type Pseudocost struct {
	pcUp, pcDown       []float64
	nSamplesUp         []int
	nSamplesDown       []int
	inferUp, inferDown []float64
	nInferUp           []int
	nInferDown         []int
	nCutoffUp          []int
	nCutoffDown        []int

	costTotal       float64
	nSamplesTotal   int
	inferTotal      float64
	nInferTotal     int
	nCutoffTotal    int

	minReliable int
}

// NewPseudocost allocates tracking for numCols columns.
func NewPseudocost(numCols, minReliable int) *Pseudocost {
	return &Pseudocost{
		pcUp:         make([]float64, numCols),
		pcDown:       make([]float64, numCols),
		nSamplesUp:   make([]int, numCols),
		nSamplesDown: make([]int, numCols),
		inferUp:      make([]float64, numCols),
		inferDown:    make([]float64, numCols),
		nInferUp:     make([]int, numCols),
		nInferDown:   make([]int, numCols),
		nCutoffUp:    make([]int, numCols),
		nCutoffDown:  make([]int, numCols),
		minReliable:  minReliable,
	}
}

// AddObservation records that branching column col by delta (positive for
// an up-branch, negative for a down-branch) changed the objective by
// objDelta >= 0, per HighsPseudocost::addObservation.
func (p *Pseudocost) AddObservation(col int, delta, objDelta float64) {
	var unitGain float64
	if delta > 0 {
		unitGain = objDelta / delta
		p.nSamplesUp[col]++
		p.pcUp[col] += (unitGain - p.pcUp[col]) / float64(p.nSamplesUp[col])
	} else {
		unitGain = -objDelta / delta
		p.nSamplesDown[col]++
		p.pcDown[col] += (unitGain - p.pcDown[col]) / float64(p.nSamplesDown[col])
	}
	p.nSamplesTotal++
	p.costTotal += (unitGain - p.costTotal) / float64(p.nSamplesTotal)
}

// AddCutoffObservation records that branching col in the given direction
// produced a node cut off by bound, without a usable objective delta.
func (p *Pseudocost) AddCutoffObservation(col int, upBranch bool) {
	p.nCutoffTotal++
	if upBranch {
		p.nCutoffUp[col]++
	} else {
		p.nCutoffDown[col]++
	}
}

// AddInferenceObservation records that branching col produced nInferences
// bound-tightening deductions during a follow-up presolve/propagation
// pass.
func (p *Pseudocost) AddInferenceObservation(col, nInferences int, upBranch bool) {
	p.nInferTotal++
	p.inferTotal += (float64(nInferences) - p.inferTotal) / float64(p.nInferTotal)
	if upBranch {
		p.nInferUp[col]++
		p.inferUp[col] += (float64(nInferences) - p.inferUp[col]) / float64(p.nInferUp[col])
	} else {
		p.nInferDown[col]++
		p.inferDown[col] += (float64(nInferences) - p.inferDown[col]) / float64(p.nInferDown[col])
	}
}

// blend returns the reliability-weighted pseudocost for one direction,
// per HighsPseudocost::getPseudocostUp/Down: an undersampled column's own
// average is blended with the global average using weightPs = 0.75 +
// 0.25*n/minReliable.
func blend(own float64, n, minReliable int, global float64) float64 {
	if n == 0 {
		return global
	}
	if n >= minReliable {
		return own
	}
	weightPs := 0.75 + 0.25*float64(n)/float64(minReliable)
	return weightPs*own + (1-weightPs)*global
}

// CostUp returns the estimated objective increase from branching col
// up given its current fractional value frac.
func (p *Pseudocost) CostUp(col int, frac float64) float64 {
	up := math.Ceil(frac) - frac
	return up * blend(p.pcUp[col], p.nSamplesUp[col], p.minReliable, p.costTotal)
}

// CostDown returns the estimated objective increase from branching col
// down given its current fractional value frac.
func (p *Pseudocost) CostDown(col int, frac float64) float64 {
	down := frac - math.Floor(frac)
	return down * blend(p.pcDown[col], p.nSamplesDown[col], p.minReliable, p.costTotal)
}

// mapScore squashes a nonnegative score into [0,1), per
// HighsPseudocost::getScore's mapScore lambda.
func mapScore(s float64) float64 { return 1 - 1/(1+s) }

// Score computes the branching-variable selection score of spec.md §4.5:
// a cost term dominates, with small (1e-4-weighted) tie-breaking
// contributions from cutoff-rate and inference-rate deviation from their
// running averages.
func (p *Pseudocost) Score(col int, frac float64) float64 {
	upCost := p.CostUp(col, frac)
	downCost := p.CostDown(col, frac)
	costScore := math.Sqrt(upCost*downCost) / math.Max(1e-6, p.costTotal)

	inferScore := math.Sqrt(p.inferUp[col]*p.inferDown[col]) / math.Max(1e-6, p.inferTotal)

	cutoffRateUp := float64(p.nCutoffUp[col]) / float64(maxInt(1, p.nCutoffUp[col]+p.nSamplesUp[col]))
	cutoffRateDown := float64(p.nCutoffDown[col]) / float64(maxInt(1, p.nCutoffDown[col]+p.nSamplesDown[col]))
	avgCutoffRate := float64(p.nCutoffTotal) / float64(maxInt(1, p.nSamplesTotal+p.nCutoffTotal))
	cutoffScore := math.Sqrt(cutoffRateUp*cutoffRateDown) / math.Max(1e-6, avgCutoffRate)

	return mapScore(costScore) + 1e-4*(mapScore(cutoffScore)+mapScore(inferScore))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Snapshot returns a deep copy suitable for a B&B node to carry forward,
// per spec.md §5's "all node state... must be copyable and mergeable".
func (p *Pseudocost) Snapshot() *Pseudocost {
	out := *p
	out.pcUp = append([]float64(nil), p.pcUp...)
	out.pcDown = append([]float64(nil), p.pcDown...)
	out.nSamplesUp = append([]int(nil), p.nSamplesUp...)
	out.nSamplesDown = append([]int(nil), p.nSamplesDown...)
	out.inferUp = append([]float64(nil), p.inferUp...)
	out.inferDown = append([]float64(nil), p.inferDown...)
	out.nInferUp = append([]int(nil), p.nInferUp...)
	out.nInferDown = append([]int(nil), p.nInferDown...)
	out.nCutoffUp = append([]int(nil), p.nCutoffUp...)
	out.nCutoffDown = append([]int(nil), p.nCutoffDown...)
	return &out
}

// Delta returns a copy of p whose per-column up/down pseudocost sums and
// sample counts have base's subtracted; the inference and cutoff data and
// the global averages are carried over from p unchanged. It mirrors
// HighsPseudocost::subtractBase
// so a future parallel B&B driver can merge per-node deltas back into a
// shared tracker instead of serializing on it.
func (p *Pseudocost) Delta(base *Pseudocost) *Pseudocost {
	d := p.Snapshot()
	for i := range d.pcUp {
		d.pcUp[i] -= base.pcUp[i]
		d.pcDown[i] -= base.pcDown[i]
		d.nSamplesUp[i] -= base.nSamplesUp[i]
		d.nSamplesDown[i] -= base.nSamplesDown[i]
	}
	return d
}
