package structure

import (
	"strings"

	"github.com/turtacn/BioDockViz/pkg/errors"
)

// Fallback radii for elements missing from the tables.
const (
	DefaultCovalentRadius = 0.76
	DefaultVdWRadius      = 1.70
)

// HydrogenBondThresholds bounds the H...acceptor distance. AngleMin and the
// donor/acceptor lists are reported but not yet applied.
type HydrogenBondThresholds struct {
	MinDistance float64
	MaxDistance float64
	AngleMin    float64
	Donors      []string
	Acceptors   []string
}

// SaltBridgeThresholds bounds oppositely charged residue contacts.
type SaltBridgeThresholds struct {
	MaxDistance      float64
	PositiveResidues []string
	NegativeResidues []string
}

// VdWThresholds bounds contacts as a ratio of the summed vdW radii.
type VdWThresholds struct {
	MinRatio float64
	MaxRatio float64
}

// BondThresholds bounds covalent bond detection.
type BondThresholds struct {
	Tolerance   float64
	MinDistance float64
}

// GridThresholds sizes the spatial index.
type GridThresholds struct {
	MinCellSize      float64
	AtomsPerCellAxis int
}

// Thresholds is the immutable parameter set of the engine. Build it once
// with NewThresholds and share it by pointer; nothing mutates it afterwards.
type Thresholds struct {
	HydrogenBond HydrogenBondThresholds
	SaltBridge   SaltBridgeThresholds
	VdW          VdWThresholds
	Bond         BondThresholds
	Grid         GridThresholds

	covalentRadii map[string]float64
	vdwRadii      map[string]float64
}

var hbondElements = []string{"N", "O", "S", "F", "Cl", "Br", "I"}

func defaultCovalentRadii() map[string]float64 {
	return map[string]float64{
		"H": 0.31, "C": 0.76, "N": 0.71, "O": 0.66,
		"F": 0.57, "P": 1.07, "S": 1.05, "Cl": 1.02,
		"Br": 1.20, "I": 1.39, "Fe": 1.32, "Mg": 1.30,
		"Ca": 1.67, "Mn": 1.39, "Zn": 1.31,
	}
}

func defaultVdWRadii() map[string]float64 {
	return map[string]float64{
		"H": 1.20, "C": 1.70, "N": 1.55, "O": 1.52,
		"F": 1.47, "P": 1.80, "S": 1.80, "Cl": 1.75,
		"Br": 1.85, "I": 1.98, "Fe": 2.00, "Mg": 1.73,
		"Ca": 2.31, "Mn": 2.00, "Zn": 1.39,
	}
}

// ThresholdOption overrides one parameter of the default set.
type ThresholdOption func(*Thresholds)

// WithHydrogenBondRange sets the accepted H-bond distance window.
func WithHydrogenBondRange(min, max float64) ThresholdOption {
	return func(t *Thresholds) {
		t.HydrogenBond.MinDistance = min
		t.HydrogenBond.MaxDistance = max
	}
}

// WithSaltBridgeMaxDistance sets the salt-bridge cutoff.
func WithSaltBridgeMaxDistance(d float64) ThresholdOption {
	return func(t *Thresholds) { t.SaltBridge.MaxDistance = d }
}

// WithVdWRatio sets the van der Waals window as fractions of the radius sum.
func WithVdWRatio(min, max float64) ThresholdOption {
	return func(t *Thresholds) {
		t.VdW.MinRatio = min
		t.VdW.MaxRatio = max
	}
}

// WithBondTolerance sets the slack added to the covalent radius sum.
func WithBondTolerance(tol float64) ThresholdOption {
	return func(t *Thresholds) { t.Bond.Tolerance = tol }
}

// WithMinCellSize sets the lower bound of the grid cell edge.
func WithMinCellSize(size float64) ThresholdOption {
	return func(t *Thresholds) { t.Grid.MinCellSize = size }
}

// WithCovalentRadius adds or replaces one covalent radius.
func WithCovalentRadius(element string, r float64) ThresholdOption {
	return func(t *Thresholds) { t.covalentRadii[element] = r }
}

// WithVdWRadius adds or replaces one van der Waals radius.
func WithVdWRadius(element string, r float64) ThresholdOption {
	return func(t *Thresholds) { t.vdwRadii[element] = r }
}

// DefaultThresholds returns the literature-derived parameter set.
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		HydrogenBond: HydrogenBondThresholds{
			MinDistance: 1.5,
			MaxDistance: 2.5,
			AngleMin:    120,
			Donors:      append([]string(nil), hbondElements...),
			Acceptors:   append([]string(nil), hbondElements...),
		},
		SaltBridge: SaltBridgeThresholds{
			MaxDistance:      4.0,
			PositiveResidues: []string{"LYS", "ARG", "HIS", "LYS+", "ARG+", "HIS+"},
			NegativeResidues: []string{"ASP", "GLU", "ASP-", "GLU-"},
		},
		VdW:  VdWThresholds{MinRatio: 0.7, MaxRatio: 1.1},
		Bond: BondThresholds{Tolerance: 0.2, MinDistance: 0.5},
		Grid: GridThresholds{MinCellSize: 5.0, AtomsPerCellAxis: 1000},

		covalentRadii: defaultCovalentRadii(),
		vdwRadii:      defaultVdWRadii(),
	}
}

// NewThresholds applies opts to the defaults and validates the result.
func NewThresholds(opts ...ThresholdOption) (*Thresholds, error) {
	t := DefaultThresholds()
	for _, opt := range opts {
		opt(t)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks that every window is well-formed.
func (t *Thresholds) Validate() error {
	switch {
	case t.HydrogenBond.MinDistance < 0 || t.HydrogenBond.MinDistance > t.HydrogenBond.MaxDistance:
		return errors.Newf(errors.ErrCodeInvalidThresholds,
			"hydrogen bond range [%g, %g] is invalid", t.HydrogenBond.MinDistance, t.HydrogenBond.MaxDistance)
	case t.SaltBridge.MaxDistance <= 0:
		return errors.Newf(errors.ErrCodeInvalidThresholds,
			"salt bridge distance %g must be positive", t.SaltBridge.MaxDistance)
	case t.VdW.MinRatio < 0 || t.VdW.MinRatio > t.VdW.MaxRatio:
		return errors.Newf(errors.ErrCodeInvalidThresholds,
			"vdw ratio range [%g, %g] is invalid", t.VdW.MinRatio, t.VdW.MaxRatio)
	case t.Bond.Tolerance < 0:
		return errors.Newf(errors.ErrCodeInvalidThresholds, "bond tolerance %g is negative", t.Bond.Tolerance)
	case t.Grid.MinCellSize <= 0:
		return errors.Newf(errors.ErrCodeInvalidThresholds, "min cell size %g must be positive", t.Grid.MinCellSize)
	case t.Grid.AtomsPerCellAxis < 1:
		return errors.Newf(errors.ErrCodeInvalidThresholds, "atoms per cell axis %d must be >= 1", t.Grid.AtomsPerCellAxis)
	}
	for el, r := range t.covalentRadii {
		if r <= 0 {
			return errors.Newf(errors.ErrCodeInvalidThresholds, "covalent radius of %s must be positive", el)
		}
	}
	for el, r := range t.vdwRadii {
		if r <= 0 {
			return errors.Newf(errors.ErrCodeInvalidThresholds, "vdw radius of %s must be positive", el)
		}
	}
	return nil
}

// CovalentRadius returns the covalent radius of element, or
// DefaultCovalentRadius when the element is unknown.
func (t *Thresholds) CovalentRadius(element string) float64 {
	if r, ok := t.covalentRadii[element]; ok {
		return r
	}
	return DefaultCovalentRadius
}

// VdWRadius returns the van der Waals radius of element, or
// DefaultVdWRadius when the element is unknown.
func (t *Thresholds) VdWRadius(element string) float64 {
	if r, ok := t.vdwRadii[element]; ok {
		return r
	}
	return DefaultVdWRadius
}

// IsPositiveResidue reports whether name starts with a positive residue name.
func (t *Thresholds) IsPositiveResidue(name string) bool {
	return hasAnyPrefix(name, t.SaltBridge.PositiveResidues)
}

// IsNegativeResidue reports whether name starts with a negative residue name.
func (t *Thresholds) IsNegativeResidue(name string) bool {
	return hasAnyPrefix(name, t.SaltBridge.NegativeResidues)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// MetadataMap renders the thresholds in the shape reported with every
// analysis result.
func (t *Thresholds) MetadataMap() map[string]map[string]any {
	return map[string]map[string]any{
		"hydrogen_bond": {
			"min":       t.HydrogenBond.MinDistance,
			"max":       t.HydrogenBond.MaxDistance,
			"angle_min": t.HydrogenBond.AngleMin,
			"donors":    append([]string(nil), t.HydrogenBond.Donors...),
			"acceptors": append([]string(nil), t.HydrogenBond.Acceptors...),
		},
		"salt_bridge": {
			"distance_max":      t.SaltBridge.MaxDistance,
			"positive_residues": append([]string(nil), t.SaltBridge.PositiveResidues...),
			"negative_residues": append([]string(nil), t.SaltBridge.NegativeResidues...),
		},
		"vdw": {
			"min": t.VdW.MinRatio,
			"max": t.VdW.MaxRatio,
		},
	}
}
