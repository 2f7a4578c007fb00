package format

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/dsimplex/internal/lpmodel"
)

func TestBasisRoundTrip(t *testing.T) {
	b := lpmodel.NewBasis(2, 3)
	b.Status[0] = lpmodel.StatusUpper
	b.Status[1] = lpmodel.StatusZero

	var buf bytes.Buffer
	require.NoError(t, WriteBasis(&buf, b))

	restored, err := ReadBasis(&buf, 2, 3)
	require.NoError(t, err)
	require.Equal(t, b.Status, restored.Status)
	require.Equal(t, b.BaseIndex, restored.BaseIndex)
}

func TestReadBasisRejectsDimensionMismatch(t *testing.T) {
	b := lpmodel.NewBasis(2, 3)
	var buf bytes.Buffer
	require.NoError(t, WriteBasis(&buf, b))

	_, err := ReadBasis(&buf, 5, 3)
	require.ErrorIs(t, err, ErrBasisMismatch)
}

func TestReadBasisRejectsBadHeader(t *testing.T) {
	buf := bytes.NewBufferString("not a header\n2 0\n")
	_, err := ReadBasis(buf, 2, 0)
	require.Error(t, err)
}
