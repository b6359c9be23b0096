package chemfile

import (
	"context"
	"io"
	"strings"
	"unicode"

	"github.com/turtacn/BioDockViz/internal/domain/geometry"
	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

// MOL2Parser reads Tripos MOL2 files. Only the first MOLECULE section is
// loaded; the number of MOLECULE sections is reported as ModelCount.
type MOL2Parser struct{}

// NewMOL2Parser returns a Tripos MOL2 parser.
func NewMOL2Parser() *MOL2Parser { return &MOL2Parser{} }

const (
	mol2Molecule = "@<TRIPOS>MOLECULE"
	mol2Atom     = "@<TRIPOS>ATOM"
	mol2Bond     = "@<TRIPOS>BOND"
)

var mol2BondTypes = map[string]structure.BondType{
	"1":  structure.BondSingle,
	"2":  structure.BondDouble,
	"3":  structure.BondTriple,
	"ar": structure.BondAromatic,
	"am": structure.BondSingle,
}

// Parse implements Parser.
func (p *MOL2Parser) Parse(ctx context.Context, r io.Reader) (*ParseResult, error) {
	lr := newLineReader(ctx, r)
	res := &ParseResult{}
	ids := make(map[int]int)
	bonds := newBondSet()

	section := ""
	molLine := 0
	molecules := 0
	for {
		line, ok := lr.next()
		if !ok {
			break
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "@<TRIPOS>") {
			section = strings.ToUpper(trimmed)
			if section == mol2Molecule {
				molecules++
				molLine = 0
			}
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || molecules > 1 {
			continue
		}
		switch section {
		case mol2Molecule:
			molLine++
			if molLine == 1 {
				res.Title = trimmed
			}
		case mol2Atom:
			readMol2Atom(res, ids, trimmed, lr.line)
		case mol2Bond:
			readMol2Bond(res, ids, bonds, trimmed, lr.line)
		}
	}
	if err := lr.Err(); err != nil {
		return nil, err
	}
	if molecules == 0 {
		return nil, errors.New(errors.ErrCodeParseFailed, "no @<TRIPOS>MOLECULE section found")
	}

	res.ModelCount = molecules
	if molecules > 1 {
		res.warnf("file contains %d molecules; only the first was loaded", molecules)
	}
	res.Bonds = bonds.bonds
	res.finish()
	return res, nil
}

// readMol2Atom reads "atom_id name x y z type [subst_id [subst_name [charge]]]".
func readMol2Atom(res *ParseResult, ids map[int]int, line string, lineNo int) {
	f := strings.Fields(line)
	if len(f) < 6 {
		res.warnf("line %d: atom line has %d fields, want at least 6", lineNo, len(f))
		return
	}
	id, err := parseIntField(f[0])
	if err != nil {
		res.warnf("line %d: invalid atom id %q", lineNo, f[0])
		return
	}
	x, errX := parseFloatField(f[2])
	y, errY := parseFloatField(f[3])
	z, errZ := parseFloatField(f[4])
	if errX != nil || errY != nil || errZ != nil {
		res.warnf("line %d: invalid coordinates", lineNo)
		return
	}
	a := structure.Atom{
		Index:       len(res.Atoms),
		Serial:      id,
		Name:        f[1],
		Position:    geometry.V(x, y, z),
		ResidueName: LigandResidueName,
		ResidueSeq:  1,
		Occupancy:   1,
	}

	a.Element = mol2Element(f[5])
	if !structure.ValidateElement(a.Element) {
		a.Element = elementFromName(a.Name)
	}
	if len(f) > 6 {
		if seq, err := parseIntField(f[6]); err == nil {
			a.ResidueSeq = seq
		}
	}
	if len(f) > 7 {
		if name := residueFromSubstName(f[7]); name != "" {
			a.ResidueName = name
		}
	}
	if len(f) > 8 {
		if q, err := parseFloatField(f[8]); err == nil {
			a.Charge = q
		}
	}

	if _, dup := ids[id]; dup {
		res.warnf("line %d: duplicate atom id %d", lineNo, id)
	} else {
		ids[id] = a.Index
	}
	res.Atoms = append(res.Atoms, a)
}

// readMol2Bond reads "bond_id origin target type".
func readMol2Bond(res *ParseResult, ids map[int]int, bonds *bondSet, line string, lineNo int) {
	f := strings.Fields(line)
	if len(f) < 4 {
		res.warnf("line %d: bond line has %d fields, want at least 4", lineNo, len(f))
		return
	}
	from, errF := parseIntField(f[1])
	to, errT := parseIntField(f[2])
	if errF != nil || errT != nil {
		res.warnf("line %d: invalid bond atoms", lineNo)
		return
	}
	i, okI := ids[from]
	j, okJ := ids[to]
	if !okI || !okJ {
		res.warnf("line %d: bond %d-%d references an unknown atom id", lineNo, from, to)
		return
	}
	kind := strings.ToLower(f[3])
	if kind == "nc" {
		return
	}
	t, known := mol2BondTypes[kind]
	if !known {
		res.warnf("line %d: bond type %q read as single", lineNo, f[3])
		t = structure.BondSingle
	}
	bonds.add(res.Atoms, i, j, t)
}

// mol2Element takes the element prefix of a SYBYL atom type ("C.ar" -> "C").
func mol2Element(sybyl string) string {
	if i := strings.IndexByte(sybyl, '.'); i >= 0 {
		sybyl = sybyl[:i]
	}
	return normalizeElement(sybyl)
}

// residueFromSubstName strips the trailing sequence number of a substructure
// name ("ASP45" -> "ASP", "Molecule_1" -> "Molecule").
func residueFromSubstName(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsDigit)
	s = strings.TrimRight(s, "_")
	if s == "" || strings.HasPrefix(s, "<") || s == "****" {
		return ""
	}
	return s
}
