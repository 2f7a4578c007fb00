package sparse

// HVector is a packed-sparse working vector of dimension Dim: Idx lists the
// positions believed nonzero, Val is the full dense array, and the
// invariant Val[i] != 0 => i in Idx must be restored by every mutator
// (spec §3). This mirrors the discipline the teacher applies to its
// Intermediate solve vector, generalized into an explicit reusable type
// instead of a bare []float64 the caller must remember to re-sparsify.
type HVector struct {
	Dim int
	Idx []int
	Val []float64
}

// NewHVector allocates a zeroed HVector of the given dimension.
func NewHVector(dim int) *HVector {
	return &HVector{Dim: dim, Val: make([]float64, dim)}
}

// Count returns the number of entries currently believed nonzero. This may
// be an over-count until Sanitize or Resparsify is called.
func (h *HVector) Count() int { return len(h.Idx) }

// Clear zeroes every entry named by Idx and empties the index list. This is
// cheaper than reallocating Val when the vector is reused across
// iterations, which is the common case in the simplex outer loop.
func (h *HVector) Clear() {
	for _, i := range h.Idx {
		h.Val[i] = 0
	}
	h.Idx = h.Idx[:0]
}

// Set assigns Val[i] = v and adds i to the index list if it is not already
// tracked as nonzero. Setting a tracked entry to zero removes i from the
// index list (a linear scan; callers building a vector from scratch
// should prefer SetFresh on an already-cleared vector to avoid it).
func (h *HVector) Set(i int, v float64) {
	if v == 0 {
		if h.Val[i] != 0 {
			h.Val[i] = 0
			for k, j := range h.Idx {
				if j == i {
					h.Idx = append(h.Idx[:k], h.Idx[k+1:]...)
					break
				}
			}
		}
		return
	}
	if h.Val[i] == 0 {
		h.Idx = append(h.Idx, i)
	}
	h.Val[i] = v
}

// SetFresh assigns Val[i] = v and appends i to the index list unconditionally.
// The caller must guarantee i has not already been set since the last Clear.
func (h *HVector) SetFresh(i int, v float64) {
	if v == 0 {
		return
	}
	h.Val[i] = v
	h.Idx = append(h.Idx, i)
}

// Sanitize drops entries with |value| <= eps from both Val and Idx.
func (h *HVector) Sanitize(eps float64) {
	kept := h.Idx[:0]
	for _, i := range h.Idx {
		v := h.Val[i]
		if v > eps || v < -eps {
			kept = append(kept, i)
		} else {
			h.Val[i] = 0
		}
	}
	h.Idx = kept
}

// Resparsify rebuilds the index list from scratch by scanning Val. It is
// the fallback path when Idx may have fallen out of sync (e.g. after a
// caller wrote directly into Val), restoring the packed-sparse invariant.
func (h *HVector) Resparsify() {
	h.Idx = h.Idx[:0]
	for i, v := range h.Val {
		if v != 0 {
			h.Idx = append(h.Idx, i)
		}
	}
}

// CopyFrom clears h and copies src's nonzeros into it.
func (h *HVector) CopyFrom(src *HVector) {
	h.Clear()
	for _, i := range src.Idx {
		h.SetFresh(i, src.Val[i])
	}
}

// Density returns Count()/Dim. Factor.Update compares an eta vector's
// density against 0.5 to report StatusDensityTooHigh; FTRAN and BTRAN do
// not read it and always run the same sweeps.
func (h *HVector) Density() float64 {
	if h.Dim == 0 {
		return 0
	}
	return float64(len(h.Idx)) / float64(h.Dim)
}
