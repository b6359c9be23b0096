package structure

import (
	"sort"

	"github.com/turtacn/BioDockViz/internal/domain/geometry"
)

// Bond order ratio cutoffs (distance / covalent radius sum).
const (
	tripleBondMaxRatio   = 0.90
	doubleBondMaxRatio   = 0.95
	aromaticBondMinRatio = 1.00
	aromaticBondMaxRatio = 1.10
)

// BondDetector infers covalent bonds from inter-atomic distances and
// covalent radii.
type BondDetector struct {
	th *Thresholds
}

// NewBondDetector returns a detector using th, or the defaults when th is nil.
func NewBondDetector(th *Thresholds) *BondDetector {
	if th == nil {
		th = DefaultThresholds()
	}
	return &BondDetector{th: th}
}

// Detect builds a spatial index over atoms and returns the detected bonds.
func (d *BondDetector) Detect(atoms []Atom) []Bond {
	if len(atoms) < 2 {
		return []Bond{}
	}
	return d.DetectWithIndex(atoms, newSpatialIndex(atoms, d.th.Grid.MinCellSize, d.th.Grid.AtomsPerCellAxis))
}

// DetectWithIndex returns the bonds among atoms using a prebuilt index. The
// result is sorted by (Atom1Index, Atom2Index) and holds each pair once.
func (d *BondDetector) DetectWithIndex(atoms []Atom, idx *SpatialIndex) []Bond {
	bonds := []Bond{}
	if len(atoms) < 2 || idx == nil {
		return bonds
	}
	for i := range atoms {
		for _, j := range idx.NeighborCandidates(i) {
			if j <= i {
				continue
			}
			if b, ok := d.pair(atoms[i], atoms[j], i, j); ok {
				bonds = append(bonds, b)
			}
		}
	}
	sort.Slice(bonds, func(a, b int) bool {
		if bonds[a].Atom1Index != bonds[b].Atom1Index {
			return bonds[a].Atom1Index < bonds[b].Atom1Index
		}
		return bonds[a].Atom2Index < bonds[b].Atom2Index
	})
	return bonds
}

func (d *BondDetector) pair(a, b Atom, i, j int) (Bond, bool) {
	dist := geometry.Distance(a.Position, b.Position)
	sum := d.th.CovalentRadius(a.Element) + d.th.CovalentRadius(b.Element)
	if dist <= d.th.Bond.MinDistance || dist > sum+d.th.Bond.Tolerance {
		return Bond{}, false
	}
	t, order := ClassifyBond(dist, sum)
	return Bond{Atom1Index: i, Atom2Index: j, Type: t, Order: order, Distance: dist}, true
}

// ClassifyBond maps a bond length to a type and order from its ratio to the
// covalent radius sum. Ratios in (0.95, 1.00) fall through to single.
func ClassifyBond(distance, covalentSum float64) (BondType, float64) {
	ratio := geometry.SafeDivide(distance, covalentSum, 1)
	switch {
	case ratio <= tripleBondMaxRatio:
		return BondTriple, 3
	case ratio <= doubleBondMaxRatio:
		return BondDouble, 2
	case ratio >= aromaticBondMinRatio && ratio <= aromaticBondMaxRatio:
		return BondAromatic, 1.5
	default:
		return BondSingle, 1
	}
}
