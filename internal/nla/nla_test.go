package nla

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/dsimplex/internal/factor"
	"github.com/edp1096/dsimplex/internal/sparse"
)

func diagonalColumns(diag []float64) factor.ColumnSource {
	return func(j int) ([]int, []float64) {
		return []int{j}, []float64{diag[j]}
	}
}

func newTestNla(t *testing.T) *Nla {
	t.Helper()
	f := factor.New(2, 1e-10, 100, 10)
	require.NoError(t, f.Build(2, diagonalColumns([]float64{2, 4})))
	return New(f, Identity(2, 2))
}

func TestNlaFTRANWithScale(t *testing.T) {
	f := factor.New(2, 1e-10, 100, 10)
	require.NoError(t, f.Build(2, diagonalColumns([]float64{2, 4})))
	scale := &Scale{Row: []float64{1, 2}, Col: []float64{3, 1}}
	n := New(f, scale)

	rhs := sparse.NewHVector(2)
	rhs.SetFresh(0, 4)
	rhs.SetFresh(1, 8)
	require.NoError(t, n.FTRAN(rhs))
	// row-scale in: [4*1, 8*2] = [4, 16]; solve diag(2,4): [2, 4];
	// col-scale out: [2*3, 4*1] = [6, 4]
	require.InDelta(t, 6.0, rhs.Val[0], 1e-9)
	require.InDelta(t, 4.0, rhs.Val[1], 1e-9)
}

func TestNlaFreezeUnfreezeRoundTrip(t *testing.T) {
	n := newTestNla(t)
	basis := []int8{1, 0}
	id := n.Freeze(basis)

	restored := []int8{9, 9}
	err := n.Unfreeze(id, &restored)
	require.NoError(t, err)
	require.Equal(t, []int8{1, 0}, restored)
}

func TestNlaUnfreezeAfterRefactorIsIncompatible(t *testing.T) {
	n := newTestNla(t)
	id := n.Freeze([]int8{1, 0})

	n.NotifyRefactor()

	var restored []int8
	err := n.Unfreeze(id, &restored)
	require.ErrorIs(t, err, ErrIncompatibleFreeze)
	require.Equal(t, []int8{1, 0}, restored) // status still copied out
}

func TestNlaUnfreezeInvalidID(t *testing.T) {
	n := newTestNla(t)
	var restored []int8
	err := n.Unfreeze(5, &restored)
	require.Error(t, err)
}

func TestNlaUnfreezeTruncatesUpdatesAccumulatedWhileFrozen(t *testing.T) {
	n := newTestNla(t)
	id := n.Freeze([]int8{1, 0})
	require.Equal(t, 0, n.Factor.UpdateCount())

	alphaQ := sparse.NewHVector(2)
	alphaQ.SetFresh(0, 1)
	alphaQ.SetFresh(1, 1)
	_, err := n.Factor.Update(0, alphaQ, 1e-10)
	require.NoError(t, err)
	require.Equal(t, 1, n.Factor.UpdateCount())

	restored := []int8{9, 9}
	require.NoError(t, n.Unfreeze(id, &restored))
	require.Equal(t, []int8{1, 0}, restored)
	require.Equal(t, 0, n.Factor.UpdateCount())
}

func TestNlaSlotReuseAfterRelease(t *testing.T) {
	n := newTestNla(t)
	id1 := n.Freeze([]int8{1, 0})
	var out []int8
	require.NoError(t, n.Unfreeze(id1, &out))

	id2 := n.Freeze([]int8{0, 1})
	require.Equal(t, id1, id2) // free list reused the reclaimed slot
}
