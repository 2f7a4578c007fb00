package lpmodel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/dsimplex/internal/config"
)

func TestAssessPromotesBoundsBeyondInfinite(t *testing.T) {
	m := New(0, 1)
	m.ColLower[0] = -1e30
	m.ColUpper[0] = 1e25
	opts := config.Default()

	outcome, err := Assess(m, opts)
	require.NoError(t, err)
	require.Equal(t, AssessOK, outcome)
	require.True(t, math.IsInf(m.ColLower[0], -1))
	require.True(t, math.IsInf(m.ColUpper[0], 1))
}

func TestAssessCollapsesNearEqualBounds(t *testing.T) {
	m := New(0, 1)
	m.ColLower[0] = 1.0
	m.ColUpper[0] = 1.0 - 1e-9
	opts := config.Default()

	outcome, err := Assess(m, opts)
	require.NoError(t, err)
	require.Equal(t, AssessWarningCollapsedBounds, outcome)
	require.Equal(t, m.ColLower[0], m.ColUpper[0])
}

func TestAssessRejectsTrueInfeasibleGap(t *testing.T) {
	m := New(0, 1)
	m.ColLower[0] = 5
	m.ColUpper[0] = 1
	opts := config.Default()

	_, err := Assess(m, opts)
	require.ErrorIs(t, err, ErrInfeasibleBounds)
}

func TestAssessRejectsNaNCost(t *testing.T) {
	m := New(0, 1)
	m.Cost[0] = math.NaN()
	opts := config.Default()

	_, err := Assess(m, opts)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAssessClampsCostMagnitude(t *testing.T) {
	m := New(0, 1)
	m.Cost[0] = 1e30
	m.ColUpper[0] = math.Inf(1)
	opts := config.Default()

	outcome, err := Assess(m, opts)
	require.NoError(t, err)
	require.Equal(t, AssessOK, outcome)
	require.Equal(t, opts.InfiniteCost, m.Cost[0])
}

func TestAssessZeroesTinyMatrixEntries(t *testing.T) {
	m := New(1, 1)
	require.NoError(t, m.A.Upsert(0, 0, 1e-12))
	m.ColUpper[0] = math.Inf(1)
	m.RowUpper[0] = math.Inf(1)
	opts := config.Default()

	_, err := Assess(m, opts)
	require.NoError(t, err)
	_, val := m.A.Col(0)
	require.Equal(t, 0.0, val[0])
}

func TestNewBasisAllLogical(t *testing.T) {
	b := NewBasis(3, 2)
	require.Len(t, b.BaseIndex, 2)
	for j := 0; j < 3; j++ {
		require.False(t, b.IsBasic(j))
	}
	for i := 0; i < 2; i++ {
		require.True(t, b.IsBasic(3+i))
	}
}

func TestBasisPackUnpackRoundTrip(t *testing.T) {
	b := NewBasis(2, 2)
	b.Status[0] = StatusUpper
	packed := b.PackStatus()

	restored := NewBasis(2, 2)
	restored.UnpackStatus(packed)
	require.Equal(t, b.Status, restored.Status)
	require.Equal(t, b.BaseIndex, restored.BaseIndex)
}
