package structure

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"path"
	"regexp"
	"strings"

	"github.com/turtacn/BioDockViz/internal/domain/geometry"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

// Upload and content limits.
const (
	MaxFileSize        = 100 * 1024 * 1024
	MaxAtoms           = 100000
	MaxFilenameLength  = 100
	MaxCoordinateValue = 1000.0
	MaxModels          = 100
	magicScanLines     = 10
)

// FileType is a supported structure file format, named by its extension.
type FileType string

const (
	FileTypePDB   FileType = "pdb"
	FileTypePDBQT FileType = "pdbqt"
	FileTypeSDF   FileType = "sdf"
	FileTypeSD    FileType = "sd"
	FileTypeMOL   FileType = "mol"
	FileTypeMOL2  FileType = "mol2"
	FileTypeMCIF  FileType = "mcif"
	FileTypeMMCIF FileType = "mmcif"
)

// SupportedFileTypes lists the formats that can be uploaded and parsed.
var SupportedFileTypes = []FileType{FileTypePDB, FileTypePDBQT, FileTypeSDF, FileTypeSD, FileTypeMOL, FileTypeMOL2}

var mimeTypes = map[FileType]string{
	FileTypePDB:   "chemical/x-pdb",
	FileTypePDBQT: "chemical/x-pdbqt",
	FileTypeSDF:   "chemical/x-mdl-sdfile",
	FileTypeSD:    "chemical/x-mdl-sdfile",
	FileTypeMOL:   "chemical/x-mdl-molfile",
	FileTypeMOL2:  "chemical/x-mol2",
	FileTypeMCIF:  "chemical/x-mmcif",
	FileTypeMMCIF: "chemical/x-mmcif",
}

var pdbRecordNames = map[string]struct{}{
	"HEADER": {}, "TITLE": {}, "COMPND": {}, "SOURCE": {}, "KEYWDS": {},
	"EXPDTA": {}, "AUTHOR": {}, "REVDAT": {}, "SPRSDE": {}, "JRNL": {},
	"REMARK": {}, "DBREF": {}, "SEQADV": {}, "SEQRES": {}, "MODRES": {},
	"HET": {}, "HETNAM": {}, "FORMUL": {}, "HELIX": {}, "SHEET": {}, "TURN": {},
	"ATOM": {}, "HETATM": {}, "ANISOU": {}, "TER": {}, "CONECT": {},
	"MASTER": {}, "END": {}, "ENDMDL": {}, "MODEL": {}, "CRYST1": {},
}

var maliciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)<\?php`),
	regexp.MustCompile(`<%`),
	regexp.MustCompile(`(?i)document\.cookie`),
	regexp.MustCompile(`(?i)window\.location`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)alert\s*\(`),
	regexp.MustCompile(`(?i)console\.log`),
}

var knownElements = func() map[string]struct{} {
	list := strings.Fields(`H He Li Be B C N O F Ne Na Mg Al Si P S Cl Ar K Ca
		Sc Ti V Cr Mn Fe Co Ni Cu Zn Ga Ge As Se Br Kr Rb Sr Y Zr Nb Mo Tc Ru Rh
		Pd Ag Cd In Sn Sb Te I Xe Cs Ba La Ce Pr Nd Pm Sm Eu Gd Tb Dy Ho Er Tm Yb
		Lu Hf Ta W Re Os Ir Pt Au Hg Tl Pb Bi Po At Rn Fr Ra Ac Th Pa U Np Pu Am
		Cm Bk Cf Es Fm Md No Lr Rf Db Sg Bh Hs Mt Rg Cn Fl Lv`)
	m := make(map[string]struct{}, len(list))
	for _, e := range list {
		m[e] = struct{}{}
	}
	return m
}()

// IsSupported reports whether files of type t can be parsed.
func (t FileType) IsSupported() bool {
	for _, s := range SupportedFileTypes {
		if s == t {
			return true
		}
	}
	return false
}

// IsPDBFamily reports whether t uses the fixed-column PDB record layout.
func (t FileType) IsPDBFamily() bool { return t == FileTypePDB || t == FileTypePDBQT }

// MIMEType returns the chemical MIME type registered for t.
func MIMEType(t FileType) string {
	if m, ok := mimeTypes[t]; ok {
		return m
	}
	return "application/octet-stream"
}

// FileTypeFromName derives the FileType from a file name's extension.
// Recognised but unparseable formats (mmCIF) are rejected too.
func FileTypeFromName(name string) (FileType, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return "", errors.New(errors.ErrCodeUnsupportedFileType, "file has no extension")
	}
	t := FileType(ext)
	if !t.IsSupported() {
		return "", errors.Newf(errors.ErrCodeUnsupportedFileType, "unsupported file type: .%s", ext)
	}
	return t, nil
}

// SanitizeFilename strips any directory component and keeps only letters,
// digits and "._-", truncated to MaxFilenameLength characters.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	var b strings.Builder
	n := 0
	for _, r := range name {
		if n >= MaxFilenameLength {
			break
		}
		if isAlnum(r) || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
			n++
		}
	}
	out := b.String()
	if out == "." || out == ".." {
		return ""
	}
	return out
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// ValidateContentType accepts an empty content type, any chemical/* type
// and application/octet-stream.
func ValidateContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "" || strings.HasPrefix(ct, "chemical/") ||
		ct == "application/octet-stream" || ct == "text/plain"
}

// ValidateContent checks raw file bytes before anything is stored: size
// limit, PDB record signature for PDB-family files and malicious payloads.
func ValidateContent(t FileType, content []byte) error {
	if len(content) == 0 {
		return errors.New(errors.ErrCodeInvalidContent, "file is empty")
	}
	if len(content) > MaxFileSize {
		return errors.Newf(errors.ErrCodeFileTooLarge, "file too large: %.2f MB (max: %.2f MB)",
			float64(len(content))/1024/1024, float64(MaxFileSize)/1024/1024)
	}
	if t.IsPDBFamily() && !hasPDBSignature(content) {
		return errors.New(errors.ErrCodeInvalidContent,
			"invalid PDB file format: no valid PDB records (HEADER, TITLE, ATOM, ...) in the first lines")
	}
	for _, p := range maliciousPatterns {
		if p.Match(content) {
			return errors.New(errors.ErrCodeMaliciousContent, "file contains potentially malicious code").
				WithDetail("pattern=" + p.String())
		}
	}
	return nil
}

func hasPDBSignature(content []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 4096), 1024*1024)
	for n := 0; n < magicScanLines && sc.Scan(); n++ {
		line := sc.Text()
		if len(line) > 6 {
			line = line[:6]
		}
		if _, ok := pdbRecordNames[strings.ToUpper(strings.TrimSpace(line))]; ok {
			return true
		}
	}
	return false
}

// ValidateCoordinates reports whether v is finite and within
// ±MaxCoordinateValue on every axis.
func ValidateCoordinates(v geometry.Vec3) bool {
	if !v.IsFinite() {
		return false
	}
	return math.Abs(v.X) <= MaxCoordinateValue &&
		math.Abs(v.Y) <= MaxCoordinateValue &&
		math.Abs(v.Z) <= MaxCoordinateValue
}

// ValidateElement reports whether symbol is a periodic table element.
func ValidateElement(symbol string) bool {
	_, ok := knownElements[symbol]
	return ok
}

// ValidateModelCount reports whether n is within [1, MaxModels].
func ValidateModelCount(n int) bool { return n >= 1 && n <= MaxModels }

// AtomValidation is the outcome of ValidateAtoms.
type AtomValidation struct {
	AtomCount          int   `json:"atom_count"`
	InvalidCoordinates []int `json:"invalid_coordinates,omitempty"`
	UnknownElements    []int `json:"unknown_elements,omitempty"`
	OversizedLabels    []int `json:"oversized_labels,omitempty"`
}

// Valid reports whether no atom failed validation.
func (v *AtomValidation) Valid() bool {
	return len(v.InvalidCoordinates) == 0 && len(v.OversizedLabels) == 0
}

// ValidateAtoms checks the atom array at the data model boundary: count in
// [1, maxAtoms], dense 0-based indices, valid coordinates and label lengths.
// Unknown elements are reported but tolerated. The returned AtomValidation is
// populated even when an error is returned for bad coordinates or labels.
func ValidateAtoms(atoms []Atom, maxAtoms int) (*AtomValidation, error) {
	if maxAtoms <= 0 {
		maxAtoms = MaxAtoms
	}
	res := &AtomValidation{AtomCount: len(atoms)}
	if len(atoms) == 0 {
		return res, errors.New(errors.ErrCodeNoAtoms, "no atoms found in structure")
	}
	if len(atoms) > maxAtoms {
		return res, errors.Newf(errors.ErrCodeAtomCountExceeded, "atom count %d exceeds maximum %d", len(atoms), maxAtoms)
	}
	for i := range atoms {
		if atoms[i].Index != i {
			return res, errors.Newf(errors.ErrCodeInvalidContent, "atom at position %d has index %d", i, atoms[i].Index)
		}
		if !ValidateCoordinates(atoms[i].Position) {
			res.InvalidCoordinates = append(res.InvalidCoordinates, i)
		}
		if !ValidateElement(atoms[i].Element) {
			res.UnknownElements = append(res.UnknownElements, i)
		}
		if atoms[i].HasOversizedLabel() {
			res.OversizedLabels = append(res.OversizedLabels, i)
		}
	}
	if len(res.InvalidCoordinates) > 0 {
		return res, errors.Newf(errors.ErrCodeInvalidCoordinates,
			"%d atoms have non-finite or out-of-range coordinates", len(res.InvalidCoordinates))
	}
	if len(res.OversizedLabels) > 0 {
		return res, errors.Newf(errors.ErrCodeInvalidContent,
			"%d atoms have labels longer than allowed", len(res.OversizedLabels))
	}
	return res, nil
}

// ContentHash returns the hex SHA-256 digest of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
