package format

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/edp1096/dsimplex/internal/lpmodel"
)

// ErrMalformedMPS is returned for a structurally invalid MPS file.
var ErrMalformedMPS = errors.New("format: malformed MPS file")

// ReadMPS parses a free-format MPS file (whitespace-delimited fields,
// tolerant of the fixed-column variant since it never relies on column
// position) into an lpmodel.Model. Only the sections needed to populate
// spec.md §3's data model are recognized: NAME, ROWS, COLUMNS, RHS,
// RANGES, BOUNDS.
func ReadMPS(r io.Reader) (*lpmodel.Model, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var name string
	var rowNames []string
	rowSense := map[string]byte{}
	rowIndex := map[string]int{}
	var objRow string

	colOrder := []string{}
	colIndex := map[string]int{}
	colCost := map[string]float64{}
	colEntries := map[string]map[string]float64{}
	integerSection := false
	colIsInt := map[string]bool{}

	rowLower := map[string]float64{}
	rowUpper := map[string]float64{}
	colLower := map[string]float64{}
	colUpper := map[string]float64{}
	colBoundSet := map[string]bool{}

	section := ""
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "*") {
			continue
		}
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			fields := strings.Fields(line)
			section = strings.ToUpper(fields[0])
			if section == "NAME" && len(fields) > 1 {
				name = fields[1]
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch section {
		case "ROWS":
			if len(fields) < 2 {
				return nil, errors.Wrapf(ErrMalformedMPS, "malformed ROWS line %q", line)
			}
			sense, rname := fields[0], fields[1]
			switch strings.ToUpper(sense) {
			case "N":
				if objRow == "" {
					objRow = rname
				}
			case "L", "G", "E":
				rowIndex[rname] = len(rowNames)
				rowNames = append(rowNames, rname)
				rowSense[rname] = strings.ToUpper(sense)[0]
				rowLower[rname], rowUpper[rname] = defaultRowBounds(strings.ToUpper(sense)[0])
			default:
				return nil, errors.Wrapf(ErrMalformedMPS, "unrecognized row sense %q", sense)
			}

		case "COLUMNS":
			if len(fields) >= 3 && strings.EqualFold(fields[1], "'MARKER'") {
				if strings.Contains(strings.ToUpper(fields[2]), "INTORG") {
					integerSection = true
				} else if strings.Contains(strings.ToUpper(fields[2]), "INTEND") {
					integerSection = false
				}
				continue
			}
			if len(fields) < 3 || len(fields)%2 != 1 {
				return nil, errors.Wrapf(ErrMalformedMPS, "malformed COLUMNS line %q", line)
			}
			cname := fields[0]
			if _, ok := colIndex[cname]; !ok {
				colIndex[cname] = len(colOrder)
				colOrder = append(colOrder, cname)
				colEntries[cname] = map[string]float64{}
				colIsInt[cname] = integerSection
			}
			for k := 1; k+1 < len(fields); k += 2 {
				rname := fields[k]
				val, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, errors.Wrapf(err, "COLUMNS entry %q", line)
				}
				if rname == objRow {
					colCost[cname] = val
				} else {
					colEntries[cname][rname] = val
				}
			}

		case "RHS":
			if len(fields) < 3 {
				return nil, errors.Wrapf(ErrMalformedMPS, "malformed RHS line %q", line)
			}
			for k := 1; k+1 < len(fields); k += 2 {
				rname := fields[k]
				val, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, errors.Wrapf(err, "RHS entry %q", line)
				}
				applyRHS(rname, val, rowSense, rowLower, rowUpper)
			}

		case "RANGES":
			for k := 1; k+1 < len(fields); k += 2 {
				rname := fields[k]
				val, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, errors.Wrapf(err, "RANGES entry %q", line)
				}
				applyRange(rname, val, rowSense, rowLower, rowUpper)
			}

		case "BOUNDS":
			if len(fields) < 3 {
				return nil, errors.Wrapf(ErrMalformedMPS, "malformed BOUNDS line %q", line)
			}
			btype, cname := strings.ToUpper(fields[0]), fields[2]
			colBoundSet[cname] = true
			var val float64
			if len(fields) > 3 {
				v, err := strconv.ParseFloat(fields[3], 64)
				if err != nil {
					return nil, errors.Wrapf(err, "BOUNDS entry %q", line)
				}
				val = v
			}
			applyBound(btype, cname, val, colLower, colUpper)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "format: reading MPS")
	}

	m := lpmodel.New(len(rowNames), len(colOrder))
	m.Name = name
	m.Sense = lpmodel.Minimize

	for j, cname := range colOrder {
		m.Cost[j] = colCost[cname]
		lo, hasLo := colLower[cname]
		up, hasUp := colUpper[cname]
		switch {
		case !colBoundSet[cname]:
			lo, up = 0, math.Inf(1)
		default:
			if !hasLo {
				lo = 0
			}
			if !hasUp {
				up = math.Inf(1)
			}
		}
		m.ColLower[j] = lo
		m.ColUpper[j] = up
		m.Integrality[j] = colIsInt[cname]
		for rname, val := range colEntries[cname] {
			i, ok := rowIndex[rname]
			if !ok {
				return nil, errors.Wrapf(ErrMalformedMPS, "COLUMNS references unknown row %q", rname)
			}
			if err := m.A.Upsert(i, j, val); err != nil {
				return nil, err
			}
		}
	}
	for rname, i := range rowIndex {
		m.RowLower[i] = rowLower[rname]
		m.RowUpper[i] = rowUpper[rname]
	}
	return m, nil
}

func defaultRowBounds(sense byte) (float64, float64) {
	switch sense {
	case 'L':
		return math.Inf(-1), 0
	case 'G':
		return 0, math.Inf(1)
	default: // 'E'
		return 0, 0
	}
}

func applyRHS(rname string, val float64, sense map[string]byte, lo, up map[string]float64) {
	switch sense[rname] {
	case 'L':
		up[rname] = val
	case 'G':
		lo[rname] = val
	case 'E':
		lo[rname], up[rname] = val, val
	}
}

func applyRange(rname string, val float64, sense map[string]byte, lo, up map[string]float64) {
	r := math.Abs(val)
	switch sense[rname] {
	case 'L':
		lo[rname] = up[rname] - r
	case 'G':
		up[rname] = lo[rname] + r
	case 'E':
		if val >= 0 {
			up[rname] = lo[rname] + r
		} else {
			lo[rname] = up[rname] - r
		}
	}
}

func applyBound(btype, cname string, val float64, lo, up map[string]float64) {
	switch btype {
	case "UP":
		up[cname] = val
		if _, ok := lo[cname]; !ok && val < 0 {
			lo[cname] = math.Inf(-1)
		}
	case "LO":
		lo[cname] = val
	case "FX":
		lo[cname], up[cname] = val, val
	case "FR":
		lo[cname], up[cname] = math.Inf(-1), math.Inf(1)
	case "MI":
		lo[cname] = math.Inf(-1)
	case "PL":
		up[cname] = math.Inf(1)
	case "BV":
		lo[cname], up[cname] = 0, 1
	}
}
