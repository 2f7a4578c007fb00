package format

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/edp1096/dsimplex/internal/driver"
	"github.com/edp1096/dsimplex/internal/lpmodel"
)

// WritePretty writes a human-readable per-column and per-row listing with
// status letters and computed values, per spec.md §6.
func WritePretty(w io.Writer, m *lpmodel.Model, sol *driver.Solution) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Status: %s\n", statusName(sol.Status))
	if sol.Status == driver.StatusOptimal {
		fmt.Fprintf(bw, "Objective: %.10g\n\n", sol.Obj)
		fmt.Fprintln(bw, "Columns")
		for j := 0; j < m.NumCols; j++ {
			letter := statusLetter(sol.Basis, j)
			fmt.Fprintf(bw, "  %-12s %c  value=%14.8g  dual=%14.8g\n", columnName(j), letter, valOrZero(sol.ColValue, j), valOrZero(sol.ColDual, j))
		}
		fmt.Fprintln(bw, "Rows")
		for i := 0; i < m.NumRows; i++ {
			letter := statusLetter(sol.Basis, m.NumCols+i)
			fmt.Fprintf(bw, "  %-12s %c  value=%14.8g  dual=%14.8g\n", rowName(i), letter, valOrZero(sol.RowValue, i), valOrZero(sol.RowDual, i))
		}
	}
	return errors.Wrap(bw.Flush(), "format: write pretty solution")
}

func statusName(s driver.Status) string {
	switch s {
	case driver.StatusOptimal:
		return "optimal"
	case driver.StatusInfeasible:
		return "infeasible"
	case driver.StatusUnbounded:
		return "unbounded"
	case driver.StatusIterationLimit:
		return "iteration_limit"
	case driver.StatusTimeLimit:
		return "time_limit"
	default:
		return "error"
	}
}

func statusLetter(b *lpmodel.Basis, j int) byte {
	if b == nil {
		return '?'
	}
	switch b.Status[j] {
	case lpmodel.StatusBasic:
		return 'B'
	case lpmodel.StatusLower:
		return 'L'
	case lpmodel.StatusUpper:
		return 'U'
	case lpmodel.StatusZero:
		return 'F'
	default:
		return 'N'
	}
}

func columnName(j int) string { return fmt.Sprintf("c%d", j) }
func rowName(i int) string    { return fmt.Sprintf("r%d", i) }

// WriteMachine writes the machine-readable layout of spec.md §6: a header
// "num_col num_row" line, boolean flags for presence of primal/dual/basis,
// then num_col lines of column data and num_row lines of row data.
func WriteMachine(w io.Writer, m *lpmodel.Model, sol *driver.Solution) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", m.NumCols, m.NumRows)

	hasPrimal := sol.ColValue != nil
	hasDual := sol.ColDual != nil
	hasBasis := sol.Basis != nil
	fmt.Fprintf(bw, "%s %s %s\n", boolFlag(hasPrimal), boolFlag(hasDual), boolFlag(hasBasis))

	for j := 0; j < m.NumCols; j++ {
		fmt.Fprintf(bw, "%.17g %.17g %d\n", valOrZero(sol.ColValue, j), valOrZero(sol.ColDual, j), statusInt(sol.Basis, j))
	}
	for i := 0; i < m.NumRows; i++ {
		fmt.Fprintf(bw, "%.17g %.17g %d\n", valOrZero(sol.RowValue, i), valOrZero(sol.RowDual, i), statusInt(sol.Basis, m.NumCols+i))
	}
	return errors.Wrap(bw.Flush(), "format: write machine solution")
}

func boolFlag(b bool) string {
	if b {
		return "T"
	}
	return "F"
}

func valOrZero(v []float64, i int) float64 {
	if v == nil {
		return 0
	}
	return v[i]
}

func statusInt(b *lpmodel.Basis, j int) int {
	if b == nil {
		return -1
	}
	return int(b.Status[j])
}
