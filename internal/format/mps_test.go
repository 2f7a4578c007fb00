package format

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleMPS = `NAME          TESTLP
ROWS
 N  COST
 L  LIM1
 G  LIM2
 E  MYEQN
COLUMNS
    X1        COST            1.0   LIM1            1.0
    X1        LIM2            1.0
    X2        COST            2.0   LIM1            1.0
    X2        MYEQN           1.0
RHS
    RHS       LIM1           10.0   LIM2            2.0
    RHS       MYEQN           7.0
BOUNDS
 UP BND       X1             20.0
ENDATA
`

func TestReadMPSBasic(t *testing.T) {
	m, err := ReadMPS(strings.NewReader(sampleMPS))
	require.NoError(t, err)
	require.Equal(t, "TESTLP", m.Name)
	require.Equal(t, 3, m.NumRows)
	require.Equal(t, 2, m.NumCols)
	require.Equal(t, []float64{1.0, 2.0}, m.Cost)

	require.Equal(t, 0.0, m.ColLower[0])
	require.Equal(t, 20.0, m.ColUpper[0])
	require.Equal(t, 0.0, m.ColLower[1])
	require.True(t, math.IsInf(m.ColUpper[1], 1))

	require.Equal(t, math.Inf(-1), m.RowLower[0])
	require.Equal(t, 10.0, m.RowUpper[0])
	require.Equal(t, 2.0, m.RowLower[1])
	require.True(t, math.IsInf(m.RowUpper[1], 1))
	require.Equal(t, 7.0, m.RowLower[2])
	require.Equal(t, 7.0, m.RowUpper[2])
}

const sampleMPSInteger = `NAME
ROWS
 N  COST
 L  LIM1
COLUMNS
    MARKER1                 'MARKER'                 'INTORG'
    X1        COST            1.0   LIM1            1.0
    MARKER2                 'MARKER'                 'INTEND'
RHS
    RHS       LIM1            5.0
ENDATA
`

func TestReadMPSIntegerMarkers(t *testing.T) {
	m, err := ReadMPS(strings.NewReader(sampleMPSInteger))
	require.NoError(t, err)
	require.True(t, m.Integrality[0])
	require.True(t, m.IsMIP())
}

func TestReadMPSUnknownRowError(t *testing.T) {
	bad := `ROWS
 N  COST
 L  LIM1
COLUMNS
    X1        COST            1.0   NOPE            1.0
ENDATA
`
	_, err := ReadMPS(strings.NewReader(bad))
	require.ErrorIs(t, err, ErrMalformedMPS)
}
