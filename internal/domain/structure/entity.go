// Package structure holds the BioDockViz domain model for molecular
// structures and the interaction analysis engine that runs over them: a
// uniform spatial hash grid, a covalent bond detector and a non-covalent
// interaction classifier.
package structure

import (
	"time"
	"unicode/utf8"

	"github.com/turtacn/BioDockViz/internal/domain/geometry"
)

// ─────────────────────────────────────────────────────────────────────────────
// Atom
// ─────────────────────────────────────────────────────────────────────────────

// Atom is one atom of a loaded structure. Atoms are immutable once loaded and
// Index is dense and 0-based within the structure.
type Atom struct {
	Index         int           `json:"index"`
	Position      geometry.Vec3 `json:"position"`
	Element       string        `json:"element"`
	ResidueName   string        `json:"res_name"`
	ResidueSeq    int           `json:"res_seq"`
	ChainID       string        `json:"chain_id,omitempty"`
	Serial        int           `json:"serial,omitempty"`
	Name          string        `json:"name,omitempty"`
	AltLoc        string        `json:"alt_loc,omitempty"`
	InsertionCode string        `json:"i_code,omitempty"`
	Occupancy     float64       `json:"occupancy"`
	TempFactor    float64       `json:"temp_factor"`
	Charge        float64       `json:"charge"`
}

// Atom label limits, in characters.
const (
	MaxAtomNameLength      = 8
	MaxResidueNameLength   = 5
	MaxChainIDLength       = 1
	MaxAltLocLength        = 1
	MaxInsertionCodeLength = 1
)

func (a *Atom) labels() []struct {
	value *string
	max   int
} {
	return []struct {
		value *string
		max   int
	}{
		{&a.Name, MaxAtomNameLength},
		{&a.ResidueName, MaxResidueNameLength},
		{&a.ChainID, MaxChainIDLength},
		{&a.AltLoc, MaxAltLocLength},
		{&a.InsertionCode, MaxInsertionCodeLength},
	}
}

// HasOversizedLabel reports whether any text label of a exceeds its limit.
func (a *Atom) HasOversizedLabel() bool {
	for _, l := range a.labels() {
		if utf8.RuneCountInString(*l.value) > l.max {
			return true
		}
	}
	return false
}

// TruncateLabels cuts every text label of a to its limit and reports whether
// anything was cut.
func (a *Atom) TruncateLabels() bool {
	cut := false
	for _, l := range a.labels() {
		if utf8.RuneCountInString(*l.value) <= l.max {
			continue
		}
		r := []rune(*l.value)
		*l.value = string(r[:l.max])
		cut = true
	}
	return cut
}

// Positions returns the coordinates of atoms in index order.
func Positions(atoms []Atom) []geometry.Vec3 {
	out := make([]geometry.Vec3, len(atoms))
	for i := range atoms {
		out[i] = atoms[i].Position
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Bond
// ─────────────────────────────────────────────────────────────────────────────

// BondType classifies a covalent bond.
type BondType string

const (
	BondSingle   BondType = "single"
	BondDouble   BondType = "double"
	BondTriple   BondType = "triple"
	BondAromatic BondType = "aromatic"
)

// Order returns the conventional bond order for t.
func (t BondType) Order() float64 {
	switch t {
	case BondDouble:
		return 2
	case BondTriple:
		return 3
	case BondAromatic:
		return 1.5
	default:
		return 1
	}
}

// IsValid reports whether t is a known bond type.
func (t BondType) IsValid() bool {
	switch t {
	case BondSingle, BondDouble, BondTriple, BondAromatic:
		return true
	}
	return false
}

// Bond is a covalent bond between two atoms. Atom1Index < Atom2Index.
type Bond struct {
	Atom1Index int      `json:"atom1_index"`
	Atom2Index int      `json:"atom2_index"`
	Type       BondType `json:"type"`
	Order      float64  `json:"order"`
	Distance   float64  `json:"distance"`
}

// NewBond builds a Bond with the pair in canonical order.
func NewBond(i, j int, t BondType, distance float64) Bond {
	if j < i {
		i, j = j, i
	}
	return Bond{Atom1Index: i, Atom2Index: j, Type: t, Order: t.Order(), Distance: distance}
}

// ─────────────────────────────────────────────────────────────────────────────
// Interaction
// ─────────────────────────────────────────────────────────────────────────────

// InteractionKind names a non-covalent interaction rule.
type InteractionKind string

const (
	KindHydrogenBond InteractionKind = "hydrogen_bond"
	KindSaltBridge   InteractionKind = "salt_bridge"
	KindVdWContact   InteractionKind = "vdw_contact"
)

// AllInteractionKinds lists the kinds in reporting order.
var AllInteractionKinds = []InteractionKind{KindHydrogenBond, KindSaltBridge, KindVdWContact}

// ParseInteractionKind accepts the canonical names plus the plural forms used
// by the result document ("hydrogen_bonds", "vdw_contacts", ...).
func ParseInteractionKind(s string) (InteractionKind, bool) {
	switch s {
	case "hydrogen_bond", "hydrogen_bonds", "hbond":
		return KindHydrogenBond, true
	case "salt_bridge", "salt_bridges":
		return KindSaltBridge, true
	case "vdw_contact", "vdw_contacts", "vdw":
		return KindVdWContact, true
	}
	return "", false
}

// Interaction is one detected non-covalent contact. Atom1Index < Atom2Index.
// Angle is only meaningful for hydrogen bonds and is currently never set.
type Interaction struct {
	Kind            InteractionKind `json:"type"`
	Atom1Index      int             `json:"atom1_index"`
	Atom2Index      int             `json:"atom2_index"`
	Distance        float64         `json:"distance"`
	Angle           *float64        `json:"angle"`
	Atom1Residue    string          `json:"atom1_residue"`
	Atom1ResidueSeq int             `json:"atom1_residue_seq"`
	Atom2Residue    string          `json:"atom2_residue"`
	Atom2ResidueSeq int             `json:"atom2_residue_seq"`
	Confidence      float64         `json:"confidence"`
	IsPredicted     bool            `json:"is_predicted"`
}

// InteractionSet groups detected interactions by kind, each list in
// discovery order.
type InteractionSet struct {
	HydrogenBonds []Interaction `json:"hydrogen_bonds"`
	SaltBridges   []Interaction `json:"salt_bridges"`
	VdWContacts   []Interaction `json:"vdw_contacts"`
}

// NewInteractionSet returns a set with empty, non-nil lists.
func NewInteractionSet() InteractionSet {
	return InteractionSet{
		HydrogenBonds: []Interaction{},
		SaltBridges:   []Interaction{},
		VdWContacts:   []Interaction{},
	}
}

// Total returns the number of interactions across all kinds.
func (s InteractionSet) Total() int {
	return len(s.HydrogenBonds) + len(s.SaltBridges) + len(s.VdWContacts)
}

// ByKind returns the list for kind, nil for an unknown kind.
func (s InteractionSet) ByKind(kind InteractionKind) []Interaction {
	switch kind {
	case KindHydrogenBond:
		return s.HydrogenBonds
	case KindSaltBridge:
		return s.SaltBridges
	case KindVdWContact:
		return s.VdWContacts
	}
	return nil
}

// All flattens the set in reporting order.
func (s InteractionSet) All() []Interaction {
	out := make([]Interaction, 0, s.Total())
	out = append(out, s.HydrogenBonds...)
	out = append(out, s.SaltBridges...)
	return append(out, s.VdWContacts...)
}

// Counts returns the per-kind sizes.
func (s InteractionSet) Counts() map[InteractionKind]int {
	return map[InteractionKind]int{
		KindHydrogenBond: len(s.HydrogenBonds),
		KindSaltBridge:   len(s.SaltBridges),
		KindVdWContact:   len(s.VdWContacts),
	}
}

// GroupInteractions rebuilds an InteractionSet from a flat list.
func GroupInteractions(list []Interaction) InteractionSet {
	set := NewInteractionSet()
	for _, in := range list {
		switch in.Kind {
		case KindHydrogenBond:
			set.HydrogenBonds = append(set.HydrogenBonds, in)
		case KindSaltBridge:
			set.SaltBridges = append(set.SaltBridges, in)
		case KindVdWContact:
			set.VdWContacts = append(set.VdWContacts, in)
		}
	}
	return set
}

// ─────────────────────────────────────────────────────────────────────────────
// Analysis result
// ─────────────────────────────────────────────────────────────────────────────

// Algorithm labels reported in AnalysisMetadata.
const (
	AlgorithmSpatialHash = "O(n) spatial hash grid"
	AlgorithmSkipped     = "skipped"
)

// AnalysisMetadata summarises one engine run.
type AnalysisMetadata struct {
	ProcessingTimeMs float64                   `json:"processing_time_ms"`
	AtomCount        int                       `json:"atom_count"`
	BondCount        int                       `json:"bond_count"`
	Algorithm        string                    `json:"algorithm"`
	CellSize         float64                   `json:"cell_size,omitempty"`
	Thresholds       map[string]map[string]any `json:"thresholds"`
}

// AnalysisResult is the output of Engine.Analyze.
type AnalysisResult struct {
	Bonds        []Bond           `json:"bonds"`
	Interactions InteractionSet   `json:"interactions"`
	Metadata     AnalysisMetadata `json:"metadata"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Structure aggregate
// ─────────────────────────────────────────────────────────────────────────────

// Stage tracks how far a stored structure has progressed.
type Stage string

const (
	StageUploaded Stage = "uploaded"
	StageParsing  Stage = "parsing"
	StageParsed   Stage = "parsed"
	StageAnalyzed Stage = "analyzed"
	StageFailed   Stage = "failed"
)

// ParseMetadata is the file-level information extracted by a parser.
type ParseMetadata struct {
	Title                 string   `json:"title,omitempty"`
	ExperimentalTechnique string   `json:"experimental_technique,omitempty"`
	Resolution            *float64 `json:"resolution,omitempty"`
	ModelCount            int      `json:"model_count"`
	Warnings              []string `json:"warnings,omitempty"`
}

// AnalysisSummary is the persisted digest of the last analysis.
type AnalysisSummary struct {
	Metadata          AnalysisMetadata        `json:"metadata"`
	InteractionCounts map[InteractionKind]int `json:"interaction_counts"`
	AnalyzedAt        time.Time               `json:"analyzed_at"`
}

// Structure is an uploaded structure file and its processing state. Atoms,
// bonds and interactions are stored separately and addressed by ID.
type Structure struct {
	ID          string           `json:"id"`
	FileName    string           `json:"file_name"`
	FileType    FileType         `json:"file_type"`
	FileSize    int64            `json:"file_size"`
	FileHash    string           `json:"file_hash"`
	ContentType string           `json:"content_type"`
	StorageKey  string           `json:"storage_key"`
	Stage       Stage            `json:"stage"`
	Metadata    *ParseMetadata   `json:"metadata,omitempty"`
	AtomCount   int              `json:"atom_count"`
	BondCount   int              `json:"bond_count"`
	Analysis    *AnalysisSummary `json:"analysis,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// IsParsed reports whether atoms for the structure are available.
func (s *Structure) IsParsed() bool {
	return s.Stage == StageParsed || s.Stage == StageAnalyzed
}
