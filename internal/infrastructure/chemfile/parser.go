// Package chemfile reads molecular structure files (PDB, PDBQT, SDF/MOL and
// MOL2) into the structure domain model.
//
// Parsers are lenient: a malformed record is skipped and reported in
// ParseResult.Warnings rather than failing the whole file. Only unreadable
// input or a broken file skeleton (for example a missing V2000 counts line)
// is returned as an error.
package chemfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/BioDockViz/internal/domain/geometry"
	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

const (
	// maxLineLength bounds a single input line.
	maxLineLength = 1024 * 1024

	// ctxCheckInterval is the number of lines read between context checks.
	ctxCheckInterval = 4096

	// maxWarnings caps the per-file warning list.
	maxWarnings = 50

	// LigandResidueName is assigned to atoms of small-molecule formats that
	// carry no residue information.
	LigandResidueName = "LIG"
)

// ParseResult is the outcome of parsing one file. Atoms are densely indexed
// from 0 and Bonds reference those indices in canonical order.
type ParseResult struct {
	Atoms                 []structure.Atom
	Bonds                 []structure.Bond
	ModelCount            int
	Title                 string
	ExperimentalTechnique string
	Resolution            *float64
	Warnings              []string

	suppressed int
}

// Metadata returns the file-level information of r in the form persisted
// with a structure.
func (r *ParseResult) Metadata() *structure.ParseMetadata {
	return &structure.ParseMetadata{
		Title:                 r.Title,
		ExperimentalTechnique: r.ExperimentalTechnique,
		Resolution:            r.Resolution,
		ModelCount:            r.ModelCount,
		Warnings:              append([]string(nil), r.Warnings...),
	}
}

func (r *ParseResult) warnf(format string, args ...interface{}) {
	if len(r.Warnings) >= maxWarnings {
		r.suppressed++
		return
	}
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// finish cuts atom labels to their column limits, sorts bonds and appends
// the suppressed-warning summary.
func (r *ParseResult) finish() {
	truncated := 0
	for i := range r.Atoms {
		if r.Atoms[i].TruncateLabels() {
			truncated++
		}
	}
	if truncated > 0 {
		r.warnf("%d atoms had names or residue labels truncated", truncated)
	}
	sort.Slice(r.Bonds, func(i, j int) bool {
		if r.Bonds[i].Atom1Index != r.Bonds[j].Atom1Index {
			return r.Bonds[i].Atom1Index < r.Bonds[j].Atom1Index
		}
		return r.Bonds[i].Atom2Index < r.Bonds[j].Atom2Index
	})
	if r.suppressed > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d further warnings suppressed", r.suppressed))
		r.suppressed = 0
	}
	if r.Atoms == nil {
		r.Atoms = []structure.Atom{}
	}
	if r.Bonds == nil {
		r.Bonds = []structure.Bond{}
	}
}

// Parser reads one structure file format.
type Parser interface {
	Parse(ctx context.Context, r io.Reader) (*ParseResult, error)
}

// ForFileType returns the parser registered for t. mmCIF files are
// recognised but have no parser.
func ForFileType(t structure.FileType) (Parser, error) {
	switch t {
	case structure.FileTypePDB:
		return NewPDBParser(), nil
	case structure.FileTypePDBQT:
		return NewPDBQTParser(), nil
	case structure.FileTypeSDF, structure.FileTypeSD, structure.FileTypeMOL:
		return NewSDFParser(), nil
	case structure.FileTypeMOL2:
		return NewMOL2Parser(), nil
	case structure.FileTypeMCIF, structure.FileTypeMMCIF:
		return nil, errors.Newf(errors.ErrCodeUnsupportedFileType, "%s files are not supported yet", t)
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedFileType, "no parser for file type %q", t)
	}
}

// Parse looks up the parser for t and runs it over r.
func Parse(ctx context.Context, t structure.FileType, r io.Reader) (*ParseResult, error) {
	p, err := ForFileType(t)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, r)
}

// ─────────────────────────────────────────────────────────────────────────────
// Line reading helpers
// ─────────────────────────────────────────────────────────────────────────────

// lineReader wraps bufio.Scanner with a line counter and periodic context
// checks.
type lineReader struct {
	ctx  context.Context
	sc   *bufio.Scanner
	line int
	err  error
}

func newLineReader(ctx context.Context, r io.Reader) *lineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineLength)
	return &lineReader{ctx: ctx, sc: sc}
}

func (lr *lineReader) next() (string, bool) {
	if lr.err != nil {
		return "", false
	}
	if lr.line%ctxCheckInterval == 0 {
		if err := lr.ctx.Err(); err != nil {
			lr.err = err
			return "", false
		}
	}
	if !lr.sc.Scan() {
		return "", false
	}
	lr.line++
	return strings.TrimRight(lr.sc.Text(), "\r"), true
}

// Err returns the first read or context error, wrapped as a parse failure.
func (lr *lineReader) Err() error {
	err := lr.err
	if err == nil {
		err = lr.sc.Err()
	}
	if err == nil {
		return nil
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return errors.Wrap(err, errors.ErrCodeTimeout, "structure parsing interrupted")
	}
	return errors.Wrap(err, errors.ErrCodeParseFailed, "failed to read structure file")
}

// column returns the 1-based inclusive column range [from, to] of line,
// trimmed. Missing columns yield "".
func column(line string, from, to int) string {
	if from > len(line) {
		return ""
	}
	if to > len(line) {
		to = len(line)
	}
	return strings.TrimSpace(line[from-1 : to])
}

func parseFloatField(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseIntField(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// normalizeElement turns symbols such as "FE", "cl" or "C1" into the
// periodic-table casing used by the threshold tables.
// Only ASCII letters count, so the byte offsets below never split a rune.
func normalizeElement(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimFunc(s, notASCIILetter)
	if i := strings.IndexFunc(s, notASCIILetter); i > 0 {
		s = s[:i]
	}
	if s == "" {
		return ""
	}
	if len(s) > 2 {
		s = s[:2]
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// elementFromName infers an element from an atom name when the file carries
// no explicit element column. A two-letter symbol wins only when it is a
// real element, so "CA" resolves to calcium but "CB" to carbon.
func elementFromName(name string) string {
	letters := strings.TrimLeftFunc(name, notASCIILetter)
	if letters == "" {
		return ""
	}
	if two := normalizeElement(letters); len(two) == 2 && structure.ValidateElement(two) {
		return two
	}
	return strings.ToUpper(letters[:1])
}

func isASCIILetter(r rune) bool { return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }

func notASCIILetter(r rune) bool { return !isASCIILetter(r) }

// bondSet deduplicates bonds by canonical atom pair.
type bondSet struct {
	seen  map[[2]int]struct{}
	bonds []structure.Bond
}

func newBondSet() *bondSet {
	return &bondSet{seen: make(map[[2]int]struct{})}
}

// add records the bond unless it is a self bond or already present.
func (s *bondSet) add(atoms []structure.Atom, i, j int, t structure.BondType) bool {
	if i == j {
		return false
	}
	b := structure.NewBond(i, j, t, geometry.Distance(atoms[i].Position, atoms[j].Position))
	key := [2]int{b.Atom1Index, b.Atom2Index}
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.bonds = append(s.bonds, b)
	return true
}
