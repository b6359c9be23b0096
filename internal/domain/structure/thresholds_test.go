package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioDockViz/pkg/errors"
)

func TestDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()

	assert.Equal(t, 1.5, th.HydrogenBond.MinDistance)
	assert.Equal(t, 2.5, th.HydrogenBond.MaxDistance)
	assert.Equal(t, 120.0, th.HydrogenBond.AngleMin)
	assert.Equal(t, []string{"N", "O", "S", "F", "Cl", "Br", "I"}, th.HydrogenBond.Donors)
	assert.Equal(t, 4.0, th.SaltBridge.MaxDistance)
	assert.Equal(t, 0.7, th.VdW.MinRatio)
	assert.Equal(t, 1.1, th.VdW.MaxRatio)
	assert.Equal(t, 0.2, th.Bond.Tolerance)
	assert.Equal(t, 5.0, th.Grid.MinCellSize)
	require.NoError(t, th.Validate())
}

func TestThresholds_Radii(t *testing.T) {
	th := DefaultThresholds()

	assert.Equal(t, 0.31, th.CovalentRadius("H"))
	assert.Equal(t, 1.39, th.CovalentRadius("I"))
	assert.Equal(t, DefaultCovalentRadius, th.CovalentRadius("Xx"))
	assert.Equal(t, 2.31, th.VdWRadius("Ca"))
	assert.Equal(t, DefaultVdWRadius, th.VdWRadius(""))
}

func TestThresholds_InstancesAreIndependent(t *testing.T) {
	custom, err := NewThresholds(WithCovalentRadius("Se", 1.20))
	require.NoError(t, err)

	assert.Equal(t, 1.20, custom.CovalentRadius("Se"))
	assert.Equal(t, DefaultCovalentRadius, DefaultThresholds().CovalentRadius("Se"))
}

func TestNewThresholds_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  ThresholdOption
	}{
		{"inverted hbond range", WithHydrogenBondRange(3, 2)},
		{"zero salt bridge", WithSaltBridgeMaxDistance(0)},
		{"inverted vdw ratio", WithVdWRatio(1.2, 0.8)},
		{"negative tolerance", WithBondTolerance(-0.1)},
		{"zero cell", WithMinCellSize(0)},
		{"zero radius", WithVdWRadius("C", 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th, err := NewThresholds(tt.opt)
			assert.Nil(t, th)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidThresholds))
		})
	}
}

func TestThresholds_ResidueCharge(t *testing.T) {
	th := DefaultThresholds()
	assert.True(t, th.IsPositiveResidue("ARG"))
	assert.True(t, th.IsPositiveResidue("HIS+"))
	assert.False(t, th.IsPositiveResidue("ASP"))
	assert.True(t, th.IsNegativeResidue("GLU-"))
	assert.False(t, th.IsNegativeResidue(""))
}

func TestThresholds_MetadataMap(t *testing.T) {
	m := DefaultThresholds().MetadataMap()

	require.Len(t, m, 3)
	assert.Equal(t, 1.5, m["hydrogen_bond"]["min"])
	assert.Equal(t, 120.0, m["hydrogen_bond"]["angle_min"])
	assert.Equal(t, 4.0, m["salt_bridge"]["distance_max"])
	assert.Equal(t, []string{"ASP", "GLU", "ASP-", "GLU-"}, m["salt_bridge"]["negative_residues"])
	assert.Equal(t, 0.7, m["vdw"]["min"])
	assert.Equal(t, 1.1, m["vdw"]["max"])
}
