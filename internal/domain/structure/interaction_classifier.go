package structure

import (
	"github.com/turtacn/BioDockViz/internal/domain/geometry"
)

// Confidence assigned to every rule-derived interaction.
const ruleConfidence = 1.0

// InteractionClassifier tests every unique neighbouring atom pair against the
// hydrogen bond, salt bridge and van der Waals rules in one traversal. A pair
// may satisfy several rules.
type InteractionClassifier struct {
	th *Thresholds
}

// NewInteractionClassifier returns a classifier using th, or the defaults
// when th is nil.
func NewInteractionClassifier(th *Thresholds) *InteractionClassifier {
	if th == nil {
		th = DefaultThresholds()
	}
	return &InteractionClassifier{th: th}
}

// Classify builds a spatial index over atoms and classifies all pairs.
// bonds is accepted for callers that already hold them; the current rules do
// not consult it.
func (c *InteractionClassifier) Classify(atoms []Atom, bonds []Bond) InteractionSet {
	if len(atoms) < 2 {
		return NewInteractionSet()
	}
	idx := newSpatialIndex(atoms, c.th.Grid.MinCellSize, c.th.Grid.AtomsPerCellAxis)
	return c.ClassifyWithIndex(atoms, bonds, idx)
}

// ClassifyWithIndex classifies all pairs using a prebuilt index.
func (c *InteractionClassifier) ClassifyWithIndex(atoms []Atom, _ []Bond, idx *SpatialIndex) InteractionSet {
	set := NewInteractionSet()
	if len(atoms) < 2 || idx == nil {
		return set
	}
	for i := range atoms {
		a := &atoms[i]
		for _, j := range idx.NeighborCandidates(i) {
			if j <= i {
				continue
			}
			b := &atoms[j]
			d := geometry.Distance(a.Position, b.Position)

			if c.IsHydrogenBond(a, b, d) {
				set.HydrogenBonds = append(set.HydrogenBonds, newInteraction(KindHydrogenBond, a, b, i, j, d))
			}
			if c.IsSaltBridge(a, b, d) {
				set.SaltBridges = append(set.SaltBridges, newInteraction(KindSaltBridge, a, b, i, j, d))
			}
			if c.IsVdWContact(a, b, d) {
				set.VdWContacts = append(set.VdWContacts, newInteraction(KindVdWContact, a, b, i, j, d))
			}
		}
	}
	return set
}

func newInteraction(kind InteractionKind, a, b *Atom, i, j int, d float64) Interaction {
	return Interaction{
		Kind:            kind,
		Atom1Index:      i,
		Atom2Index:      j,
		Distance:        d,
		Atom1Residue:    a.ResidueName,
		Atom1ResidueSeq: a.ResidueSeq,
		Atom2Residue:    b.ResidueName,
		Atom2ResidueSeq: b.ResidueSeq,
		Confidence:      ruleConfidence,
	}
}

// IsHydrogenBond reports whether d lies in the hydrogen bond window and at
// least one of the atoms is a hydrogen.
func (c *InteractionClassifier) IsHydrogenBond(a, b *Atom, d float64) bool {
	if d < c.th.HydrogenBond.MinDistance || d > c.th.HydrogenBond.MaxDistance {
		return false
	}
	return a.Element == "H" || b.Element == "H"
}

// IsSaltBridge reports whether d is within the salt bridge cutoff and the two
// residues carry opposite charges.
func (c *InteractionClassifier) IsSaltBridge(a, b *Atom, d float64) bool {
	if d > c.th.SaltBridge.MaxDistance {
		return false
	}
	pos1, neg1 := c.th.IsPositiveResidue(a.ResidueName), c.th.IsNegativeResidue(a.ResidueName)
	pos2, neg2 := c.th.IsPositiveResidue(b.ResidueName), c.th.IsNegativeResidue(b.ResidueName)
	return (pos1 && neg2) || (pos2 && neg1)
}

// IsVdWContact reports whether d lies within [MinRatio, MaxRatio] times the
// summed van der Waals radii.
func (c *InteractionClassifier) IsVdWContact(a, b *Atom, d float64) bool {
	sum := c.th.VdWRadius(a.Element) + c.th.VdWRadius(b.Element)
	return d >= c.th.VdW.MinRatio*sum && d <= c.th.VdW.MaxRatio*sum
}
