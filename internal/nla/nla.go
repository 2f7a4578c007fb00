// Package nla implements the NLA layer (component C3): a thin wrapper
// around a factor.Factor adding implicit row/column scaling and a
// frozen-basis arena for checkpoint/restore. The arena replaces pointer
// links with integer indices per the redesign flag in spec.md ("Intrusive
// linked list (frozen bases)"), the same way _examples/edp1096-sparse
// avoids per-element allocation churn by reusing linked elements in place
// rather than reallocating on every factor.
package nla

import (
	"github.com/pkg/errors"

	"github.com/edp1096/dsimplex/internal/factor"
	"github.com/edp1096/dsimplex/internal/sparse"
)

// kNoLink marks the absence of a previous/next frozen slot, mirroring the
// arena redesign's sentinel (spec.md's redesign-flags section).
const kNoLink = -1

// ErrIncompatibleFreeze is returned by Unfreeze when the stored update
// region cannot be reinstalled without a refactor.
var ErrIncompatibleFreeze = errors.New("nla: frozen basis requires refactor")

// Scale holds row and column scale factors applied around every FTRAN and
// BTRAN, per spec.md §4.3: FTRAN inputs are multiplied by row scales
// before entering Factor and FTRAN outputs by column scales; BTRAN inputs
// are multiplied by column scales and BTRAN outputs by row scales.
type Scale struct {
	Row []float64
	Col []float64
}

// Identity returns a no-op Scale of the given row/column dimensions.
func Identity(numRows, numCols int) *Scale {
	s := &Scale{Row: make([]float64, numRows), Col: make([]float64, numCols)}
	for i := range s.Row {
		s.Row[i] = 1
	}
	for j := range s.Col {
		s.Col[j] = 1
	}
	return s
}

// frozenSlot is one entry in the freeze arena: a deep copy of the basis
// status vector plus the update-region generation it was captured against,
// linked into a doubly linked list via integer indices instead of
// pointers.
type frozenSlot struct {
	inUse       bool
	status      []int8
	generation  int64
	updateCount int
	prev, next  int
}

// Nla wraps a factor.Factor with scaling and the frozen-basis arena.
type Nla struct {
	Factor *factor.Factor
	Scale  *Scale

	generation int64

	slots      []frozenSlot
	freeHead   int
	usedHead   int
}

// New wraps an already-constructed Factor.
func New(f *factor.Factor, scale *Scale) *Nla {
	return &Nla{
		Factor:   f,
		Scale:    scale,
		freeHead: kNoLink,
		usedHead: kNoLink,
	}
}

// NotifyRefactor bumps the update-region generation counter; the driver
// calls this every time Factor.Build succeeds, invalidating any frozen
// slot captured against an earlier generation.
func (n *Nla) NotifyRefactor() { n.generation++ }

// FTRAN solves B x = rhs with the input multiplied by the row scales and
// the result multiplied by the column scales, per spec.md §4.3.
func (n *Nla) FTRAN(rhs *sparse.HVector) error {
	if n.Scale != nil {
		for _, i := range rhs.Idx {
			rhs.Val[i] *= n.Scale.Row[i]
		}
	}
	if err := n.Factor.FTRAN(rhs); err != nil {
		return err
	}
	if n.Scale != nil {
		for _, j := range rhs.Idx {
			rhs.Val[j] *= n.Scale.Col[j]
		}
	}
	return nil
}

// BTRAN solves B^T w = rhs with the input multiplied by the column scales
// and the result multiplied by the row scales, symmetric to FTRAN.
func (n *Nla) BTRAN(rhs *sparse.HVector) error {
	if n.Scale != nil {
		for _, j := range rhs.Idx {
			rhs.Val[j] *= n.Scale.Col[j]
		}
	}
	if err := n.Factor.BTRAN(rhs); err != nil {
		return err
	}
	if n.Scale != nil {
		for _, i := range rhs.Idx {
			rhs.Val[i] *= n.Scale.Row[i]
		}
	}
	return nil
}

// Freeze stores a deep copy of basis and the current update-region
// generation into a fresh slot, linking it at the head of the used list,
// and returns its id. Freezing is O(m + k): the copy of basis is O(m) and
// the generation/update-count capture is O(1). The update region itself
// (length k) is not copied — Factor.Update only ever appends, so Unfreeze
// can restore it later with a plain truncation back to the recorded
// length rather than needing a cloned eta list here.
func (n *Nla) Freeze(basis []int8) int {
	status := make([]int8, len(basis))
	copy(status, basis)

	slot := frozenSlot{
		inUse:       true,
		status:      status,
		generation:  n.generation,
		updateCount: n.Factor.UpdateCount(),
		prev:        kNoLink,
		next:        n.usedHead,
	}

	var id int
	if n.freeHead != kNoLink {
		id = n.freeHead
		n.freeHead = n.slots[id].next
		n.slots[id] = slot
	} else {
		id = len(n.slots)
		n.slots = append(n.slots, slot)
	}
	if n.usedHead != kNoLink {
		n.slots[n.usedHead].prev = id
	}
	n.usedHead = id
	return id
}

// Unfreeze overwrites basis with the slot's stored status vector and
// rewinds Factor's product-form update region back to the length it had at
// freeze time, undoing any updates applied while the slot sat frozen (the
// case a sibling branch-and-bound node explored between Freeze and this
// call). If the factor has been rebuilt since (generation mismatch) or has
// accumulated fewer updates than were present at freeze time, the stored
// update region is no longer reachable and ErrIncompatibleFreeze is
// returned so the driver can force a refactor before resuming; the update
// region is left untouched in that case since there is nothing valid to
// truncate to. The slot is reclaimed and pushed onto the free list in LIFO
// order relative to freeze order, matching spec.md §4.3's reclamation
// policy.
func (n *Nla) Unfreeze(id int, basis *[]int8) error {
	if id < 0 || id >= len(n.slots) || !n.slots[id].inUse {
		return errors.Errorf("nla: invalid frozen id %d", id)
	}
	slot := n.slots[id]

	incompatible := slot.generation != n.generation || n.Factor.UpdateCount() < slot.updateCount

	if cap(*basis) >= len(slot.status) {
		*basis = (*basis)[:len(slot.status)]
	} else {
		*basis = make([]int8, len(slot.status))
	}
	copy(*basis, slot.status)

	if !incompatible {
		n.Factor.TruncateUpdates(slot.updateCount)
	}

	n.release(id)

	if incompatible {
		return ErrIncompatibleFreeze
	}
	return nil
}

// release unlinks slot id from the used list and pushes it onto the free
// list, all via integer index rewiring — no allocation.
func (n *Nla) release(id int) {
	slot := &n.slots[id]
	if slot.prev != kNoLink {
		n.slots[slot.prev].next = slot.next
	} else {
		n.usedHead = slot.next
	}
	if slot.next != kNoLink {
		n.slots[slot.next].prev = slot.prev
	}
	slot.inUse = false
	slot.status = nil
	slot.next = n.freeHead
	slot.prev = kNoLink
	n.freeHead = id
}
