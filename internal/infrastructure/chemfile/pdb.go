package chemfile

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/BioDockViz/internal/domain/geometry"
	"github.com/turtacn/BioDockViz/internal/domain/structure"
)

// PDBParser reads fixed-column PDB files. With pdbqt set it reads the
// AutoDock PDBQT variant, whose columns 71-76 carry a partial charge and
// 78-79 an AutoDock atom type instead of element and formal charge.
//
// Only the first MODEL is loaded; later models are counted. Alternate
// locations other than blank, "A" or "1" are skipped.
type PDBParser struct {
	pdbqt bool
}

// NewPDBParser returns a parser for .pdb files.
func NewPDBParser() *PDBParser { return &PDBParser{} }

// NewPDBQTParser returns a parser for AutoDock .pdbqt files.
func NewPDBQTParser() *PDBParser { return &PDBParser{pdbqt: true} }

// autodockElements maps AutoDock 4 atom types to elements.
var autodockElements = map[string]string{
	"A": "C", "C": "C", "N": "N", "NA": "N", "NS": "N", "OA": "O", "OS": "O",
	"SA": "S", "S": "S", "HD": "H", "HS": "H", "H": "H", "P": "P", "F": "F",
	"CL": "Cl", "Cl": "Cl", "BR": "Br", "Br": "Br", "I": "I", "MG": "Mg", "Mg": "Mg",
	"CA": "Ca", "Ca": "Ca", "MN": "Mn", "Mn": "Mn", "FE": "Fe", "Fe": "Fe", "ZN": "Zn", "Zn": "Zn",
	"G0": "C", "G1": "C", "G2": "C", "G3": "C", "CG0": "C", "CG1": "C", "CG2": "C", "CG3": "C",
	"W": "O",
}

type pdbState struct {
	res       *ParseResult
	serials   map[int]int
	conect    [][2]int
	models    int
	inModel   bool
	firstDone bool
	altSkips  int
	titles    []string
	header    string
}

// Parse implements Parser.
func (p *PDBParser) Parse(ctx context.Context, r io.Reader) (*ParseResult, error) {
	st := &pdbState{
		res:     &ParseResult{},
		serials: make(map[int]int),
	}
	lr := newLineReader(ctx, r)
	for {
		line, ok := lr.next()
		if !ok {
			break
		}
		record := strings.ToUpper(column(line, 1, 6))
		switch record {
		case "ATOM", "HETATM":
			if st.firstDone {
				continue
			}
			p.readAtom(st, line, lr.line)
		case "MODEL":
			st.models++
			st.inModel = true
		case "ENDMDL":
			if st.inModel {
				st.firstDone = true
			}
			st.inModel = false
		case "CONECT":
			readConect(st, line, lr.line)
		case "HEADER":
			st.header = column(line, 11, 50)
		case "TITLE":
			if t := column(line, 11, 80); t != "" {
				st.titles = append(st.titles, t)
			}
		case "EXPDTA":
			st.res.ExperimentalTechnique = column(line, 11, 79)
		case "REMARK":
			readResolution(st, line)
		}
	}
	if err := lr.Err(); err != nil {
		return nil, err
	}

	res := st.res
	switch {
	case len(st.titles) > 0:
		res.Title = strings.Join(st.titles, " ")
	default:
		res.Title = st.header
	}
	res.ModelCount = st.models
	if res.ModelCount == 0 && len(res.Atoms) > 0 {
		res.ModelCount = 1
	}
	if res.ModelCount > 1 {
		res.warnf("file contains %d models; only the first was loaded", res.ModelCount)
	}
	if st.altSkips > 0 {
		res.warnf("skipped %d atoms with alternate locations", st.altSkips)
	}

	bonds := newBondSet()
	for _, pair := range st.conect {
		i, okI := st.serials[pair[0]]
		j, okJ := st.serials[pair[1]]
		if !okI || !okJ {
			res.warnf("CONECT %d-%d references an unknown atom serial", pair[0], pair[1])
			continue
		}
		bonds.add(res.Atoms, i, j, structure.BondSingle)
	}
	res.Bonds = bonds.bonds
	res.finish()
	return res, nil
}

func (p *PDBParser) readAtom(st *pdbState, line string, lineNo int) {
	res := st.res
	if len(line) < 54 {
		res.warnf("line %d: atom record too short", lineNo)
		return
	}
	x, errX := parseFloatField(line[30:38])
	y, errY := parseFloatField(line[38:46])
	z, errZ := parseFloatField(line[46:54])
	if errX != nil || errY != nil || errZ != nil {
		res.warnf("line %d: invalid coordinates", lineNo)
		return
	}

	alt := column(line, 17, 17)
	if alt != "" && alt != "A" && alt != "1" {
		st.altSkips++
		return
	}

	rawName := ""
	if len(line) >= 16 {
		rawName = line[12:16]
	}
	a := structure.Atom{
		Index:         len(res.Atoms),
		Position:      geometry.V(x, y, z),
		Name:          strings.TrimSpace(rawName),
		AltLoc:        alt,
		ResidueName:   column(line, 18, 20),
		ChainID:       column(line, 22, 22),
		InsertionCode: column(line, 27, 27),
		Occupancy:     1,
	}
	if serial, err := parseIntField(column(line, 7, 11)); err == nil {
		a.Serial = serial
	} else {
		a.Serial = a.Index + 1
	}
	if seq, err := parseIntField(column(line, 23, 26)); err == nil {
		a.ResidueSeq = seq
	}
	if occ := column(line, 55, 60); occ != "" {
		if v, err := parseFloatField(occ); err == nil {
			a.Occupancy = v
		}
	}
	if tf := column(line, 61, 66); tf != "" {
		if v, err := parseFloatField(tf); err == nil {
			a.TempFactor = v
		}
	}

	if p.pdbqt {
		if q := column(line, 71, 76); q != "" {
			if v, err := parseFloatField(q); err == nil {
				a.Charge = v
			}
		}
		a.Element = autodockElements[column(line, 78, 79)]
	} else {
		a.Element = normalizeElement(column(line, 77, 78))
		a.Charge = formalCharge(column(line, 79, 80))
	}
	if a.Element == "" {
		a.Element = pdbElementFromName(rawName)
	}
	if a.Element == "" {
		res.warnf("line %d: cannot determine element of atom %q", lineNo, a.Name)
	}

	if _, dup := st.serials[a.Serial]; dup {
		res.warnf("line %d: duplicate atom serial %d", lineNo, a.Serial)
	} else {
		st.serials[a.Serial] = a.Index
	}
	res.Atoms = append(res.Atoms, a)
}

// pdbElementFromName applies the PDB naming convention: a name starting in
// column 13 begins with a two-letter element, one starting in column 14
// with a single-letter element.
func pdbElementFromName(raw string) string {
	if len(raw) < 2 {
		return elementFromName(raw)
	}
	first := rune(raw[0])
	if isASCIILetter(first) {
		if two := normalizeElement(raw[:2]); len(two) == 2 && structure.ValidateElement(two) {
			// Hydrogens such as "HG12" are written from column 13 too.
			if first != 'H' && first != 'h' {
				return two
			}
		}
		return strings.ToUpper(raw[:1])
	}
	letters := strings.TrimLeftFunc(raw, notASCIILetter)
	if letters == "" {
		return ""
	}
	return strings.ToUpper(letters[:1])
}

// formalCharge decodes the "2+" / "1-" charge column.
func formalCharge(s string) float64 {
	if len(s) != 2 {
		return 0
	}
	n, err := strconv.Atoi(s[:1])
	if err != nil {
		return 0
	}
	switch s[1] {
	case '+':
		return float64(n)
	case '-':
		return -float64(n)
	}
	return 0
}

func readConect(st *pdbState, line string, lineNo int) {
	src, err := parseIntField(column(line, 7, 11))
	if err != nil {
		st.res.warnf("line %d: invalid CONECT record", lineNo)
		return
	}
	for _, cols := range [][2]int{{12, 16}, {17, 21}, {22, 26}, {27, 31}} {
		field := column(line, cols[0], cols[1])
		if field == "" {
			continue
		}
		dst, err := parseIntField(field)
		if err != nil {
			st.res.warnf("line %d: invalid CONECT partner %q", lineNo, field)
			continue
		}
		st.conect = append(st.conect, [2]int{src, dst})
	}
}

// readResolution handles "REMARK   2 RESOLUTION.    2.00 ANGSTROMS.".
func readResolution(st *pdbState, line string) {
	fields := strings.Fields(line)
	if len(fields) < 4 || fields[1] != "2" || !strings.HasPrefix(fields[2], "RESOLUTION") {
		return
	}
	if v, err := strconv.ParseFloat(fields[3], 64); err == nil {
		st.res.Resolution = &v
	}
}
