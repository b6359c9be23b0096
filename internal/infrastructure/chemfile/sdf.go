package chemfile

import (
	"context"
	"io"
	"strings"

	"github.com/turtacn/BioDockViz/internal/domain/geometry"
	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

// SDFParser reads MDL molfiles and SD files in the V2000 layout. Only the
// first record of a multi-molecule SD file is loaded; the number of records
// is reported as ModelCount.
type SDFParser struct{}

// NewSDFParser returns a V2000 molfile parser.
func NewSDFParser() *SDFParser { return &SDFParser{} }

// mdlChargeCodes decodes the atom block charge column.
var mdlChargeCodes = map[int]float64{1: 3, 2: 2, 3: 1, 5: -1, 6: -2, 7: -3}

var mdlBondTypes = map[int]structure.BondType{
	1: structure.BondSingle,
	2: structure.BondDouble,
	3: structure.BondTriple,
	4: structure.BondAromatic,
}

// Parse implements Parser.
func (p *SDFParser) Parse(ctx context.Context, r io.Reader) (*ParseResult, error) {
	lr := newLineReader(ctx, r)
	res := &ParseResult{}

	var header []string
	for len(header) < 3 {
		line, ok := lr.next()
		if !ok {
			if err := lr.Err(); err != nil {
				return nil, err
			}
			return nil, errors.New(errors.ErrCodeParseFailed, "unexpected end of file in molfile header")
		}
		header = append(header, line)
	}
	res.Title = strings.TrimSpace(header[0])

	counts, ok := lr.next()
	if !ok {
		if err := lr.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New(errors.ErrCodeParseFailed, "missing molfile counts line")
	}
	if strings.Contains(counts, "V3000") {
		return nil, errors.New(errors.ErrCodeParseFailed, "V3000 molfiles are not supported")
	}
	nAtoms, errA := parseIntField(column(counts, 1, 3))
	nBonds, errB := parseIntField(column(counts, 4, 6))
	if errA != nil || errB != nil || nAtoms < 0 || nBonds < 0 {
		return nil, errors.Newf(errors.ErrCodeParseFailed, "invalid molfile counts line %q", counts)
	}

	res.Atoms = make([]structure.Atom, 0, nAtoms)
	for i := 0; i < nAtoms; i++ {
		line, ok := lr.next()
		if !ok {
			if err := lr.Err(); err != nil {
				return nil, err
			}
			return nil, errors.Newf(errors.ErrCodeParseFailed, "atom block truncated after %d of %d atoms", i, nAtoms)
		}
		a, ok := readMolAtom(line, i)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeParseFailed, "line %d: invalid atom line", lr.line)
		}
		res.Atoms = append(res.Atoms, a)
	}

	bonds := newBondSet()
	for i := 0; i < nBonds; i++ {
		line, ok := lr.next()
		if !ok {
			res.warnf("bond block truncated after %d of %d bonds", i, nBonds)
			break
		}
		readMolBond(res, bonds, line, lr.line)
	}
	res.Bonds = bonds.bonds

	// Properties block up to "M  END", then any further records.
	terminators := 0
	trailing := false
	inProps := true
	for {
		line, ok := lr.next()
		if !ok {
			break
		}
		switch {
		case inProps && strings.HasPrefix(line, "M  END"):
			inProps = false
		case inProps && strings.HasPrefix(line, "M  CHG"):
			readChargeProperty(res, line, lr.line)
		case strings.TrimSpace(line) == "$$$$":
			terminators++
			trailing = false
			inProps = false
		case strings.TrimSpace(line) != "":
			trailing = true
		}
	}
	if err := lr.Err(); err != nil {
		return nil, err
	}
	res.ModelCount = 1
	if terminators > 0 {
		res.ModelCount = terminators
		if trailing {
			res.ModelCount++
		}
	}
	if res.ModelCount > 1 {
		res.warnf("file contains %d molecules; only the first was loaded", res.ModelCount)
	}
	res.finish()
	return res, nil
}

// readMolAtom reads "xxxxx.xxxxyyyyy.yyyyzzzzz.zzzz aaaddcccsss...". Some
// writers drop the fixed widths, so whitespace-separated fields are tried
// when the columns do not parse.
func readMolAtom(line string, idx int) (structure.Atom, bool) {
	a := structure.Atom{
		Index:       idx,
		Serial:      idx + 1,
		ResidueName: LigandResidueName,
		ResidueSeq:  1,
		Occupancy:   1,
	}
	x, errX := parseFloatField(column(line, 1, 10))
	y, errY := parseFloatField(column(line, 11, 20))
	z, errZ := parseFloatField(column(line, 21, 30))
	symbol := column(line, 32, 34)
	chargeCol := column(line, 37, 39)
	if errX != nil || errY != nil || errZ != nil || symbol == "" {
		f := strings.Fields(line)
		if len(f) < 4 {
			return a, false
		}
		var err error
		if x, err = parseFloatField(f[0]); err != nil {
			return a, false
		}
		if y, err = parseFloatField(f[1]); err != nil {
			return a, false
		}
		if z, err = parseFloatField(f[2]); err != nil {
			return a, false
		}
		symbol = f[3]
		chargeCol = ""
		if len(f) > 5 {
			chargeCol = f[5]
		}
	}
	a.Position = geometry.V(x, y, z)
	a.Element = normalizeElement(symbol)
	a.Name = a.Element
	if code, err := parseIntField(chargeCol); err == nil {
		a.Charge = mdlChargeCodes[code]
	}
	return a, true
}

func readMolBond(res *ParseResult, bonds *bondSet, line string, lineNo int) {
	i, errI := parseIntField(column(line, 1, 3))
	j, errJ := parseIntField(column(line, 4, 6))
	code, errT := parseIntField(column(line, 7, 9))
	if errI != nil || errJ != nil || errT != nil {
		f := strings.Fields(line)
		if len(f) < 3 {
			res.warnf("line %d: invalid bond line", lineNo)
			return
		}
		i, errI = parseIntField(f[0])
		j, errJ = parseIntField(f[1])
		code, errT = parseIntField(f[2])
		if errI != nil || errJ != nil || errT != nil {
			res.warnf("line %d: invalid bond line", lineNo)
			return
		}
	}
	if i < 1 || j < 1 || i > len(res.Atoms) || j > len(res.Atoms) {
		res.warnf("line %d: bond references atom outside 1..%d", lineNo, len(res.Atoms))
		return
	}
	t, known := mdlBondTypes[code]
	if !known {
		res.warnf("line %d: query bond type %d read as single", lineNo, code)
		t = structure.BondSingle
	}
	bonds.add(res.Atoms, i-1, j-1, t)
}

// readChargeProperty applies "M  CHG  n aaa vvv ..." which supersedes the
// atom block charge codes.
func readChargeProperty(res *ParseResult, line string, lineNo int) {
	f := strings.Fields(line)
	if len(f) < 3 {
		return
	}
	n, err := parseIntField(f[2])
	if err != nil || len(f) < 3+2*n {
		res.warnf("line %d: invalid M  CHG property", lineNo)
		return
	}
	for k := 0; k < n; k++ {
		idx, errI := parseIntField(f[3+2*k])
		q, errQ := parseIntField(f[4+2*k])
		if errI != nil || errQ != nil || idx < 1 || idx > len(res.Atoms) {
			res.warnf("line %d: invalid M  CHG entry", lineNo)
			continue
		}
		res.Atoms[idx-1].Charge = float64(q)
	}
}
