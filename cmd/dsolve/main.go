// Command dsolve wires the presolve->simplex->postsolve driver (and its
// branch-and-bound MIP layer) to an MPS file on disk, printing a pretty
// solution report. CLI parsing itself is out of scope for the core (per
// spec.md §1); this main is deliberately thin, mirroring the teacher's
// own cmd/ examples (_examples/edp1096-sparse/cmd/solve1) which do little
// more than open a file, call into the library, and print the result.
package main

import (
	"fmt"
	"os"

	"github.com/edp1096/dsimplex/internal/config"
	"github.com/edp1096/dsimplex/internal/driver"
	"github.com/edp1096/dsimplex/internal/format"
	"github.com/edp1096/dsimplex/internal/lpmodel"
	"github.com/edp1096/dsimplex/internal/mip"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: dsolve <model.mps>")
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, "dsolve:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := format.ReadMPS(f)
	if err != nil {
		return err
	}

	opts := config.Default()
	if outcome, err := lpmodel.Assess(m, opts); err != nil {
		return err
	} else if outcome == lpmodel.AssessWarningCollapsedBounds {
		opts.Warnf("model has collapsed bounds after assessment")
	}

	if m.IsMIP() {
		res := mip.Solve(m, opts)
		sol := &driver.Solution{Status: res.Status, Obj: res.Obj, ColValue: res.ColValue}
		return format.WritePretty(os.Stdout, m, sol)
	}

	sol := driver.SolveLP(m, opts)
	return format.WritePretty(os.Stdout, m, sol)
}
