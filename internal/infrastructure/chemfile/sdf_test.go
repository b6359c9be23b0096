package chemfile

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

func molAtom(x, y, z float64, symbol string, chargeCode int) string {
	return fmt.Sprintf("%10.4f%10.4f%10.4f %-3s 0%3d  0  0  0  0  0  0  0  0  0  0", x, y, z, symbol, chargeCode)
}

func molBond(i, j, t int) string {
	return fmt.Sprintf("%3d%3d%3d  0", i, j, t)
}

func ethanolBlock(extra ...string) []string {
	lines := []string{
		"ethanol",
		"  BioDockViz test",
		"",
		"  3  2  0  0  0  0  0  0  0  0999 V2000",
		molAtom(0, 0, 0, "C", 0),
		molAtom(1.54, 0, 0, "C", 0),
		molAtom(2.0, 1.3, 0, "O", 5),
		molBond(1, 2, 1),
		molBond(2, 3, 2),
	}
	lines = append(lines, extra...)
	return append(lines, "M  END")
}

func TestSDFParser_Parse(t *testing.T) {
	lines := ethanolBlock()
	lines = append(lines, "> <ID>", "EtOH", "", "$$$$")
	lines = append(lines, ethanolBlock()...)
	lines = append(lines, "$$$$")

	res, err := NewSDFParser().Parse(context.Background(), strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)

	assert.Equal(t, "ethanol", res.Title)
	require.Len(t, res.Atoms, 3)
	assert.Equal(t, "C", res.Atoms[0].Element)
	assert.Equal(t, "O", res.Atoms[2].Element)
	assert.Equal(t, -1.0, res.Atoms[2].Charge)
	for i, a := range res.Atoms {
		assert.Equal(t, i, a.Index)
		assert.Equal(t, i+1, a.Serial)
		assert.Equal(t, LigandResidueName, a.ResidueName)
		assert.Equal(t, 1, a.ResidueSeq)
	}

	require.Len(t, res.Bonds, 2)
	assert.Equal(t, structure.BondSingle, res.Bonds[0].Type)
	assert.InDelta(t, 1.54, res.Bonds[0].Distance, 1e-9)
	assert.Equal(t, 1, res.Bonds[1].Atom1Index)
	assert.Equal(t, 2, res.Bonds[1].Atom2Index)
	assert.Equal(t, structure.BondDouble, res.Bonds[1].Type)
	assert.Equal(t, 2.0, res.Bonds[1].Order)

	assert.Equal(t, 2, res.ModelCount)
	assert.Contains(t, strings.Join(res.Warnings, "\n"), "2 molecules")
}

func TestSDFParser_SingleMolfile(t *testing.T) {
	lines := ethanolBlock("M  CHG  1   1   1")
	res, err := NewSDFParser().Parse(context.Background(), strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ModelCount)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 1.0, res.Atoms[0].Charge)
}

func TestSDFParser_AromaticAndQueryBonds(t *testing.T) {
	lines := []string{
		"ring", "", "",
		"  3  3  0  0  0  0  0  0  0  0999 V2000",
		molAtom(0, 0, 0, "C", 0),
		molAtom(1.39, 0, 0, "C", 0),
		molAtom(0.7, 1.2, 0, "N", 0),
		molBond(1, 2, 4),
		molBond(2, 3, 8),
		molBond(3, 7, 1),
		"M  END",
	}
	res, err := NewSDFParser().Parse(context.Background(), strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	require.Len(t, res.Bonds, 2)
	assert.Equal(t, structure.BondAromatic, res.Bonds[0].Type)
	assert.Equal(t, structure.BondSingle, res.Bonds[1].Type)

	joined := strings.Join(res.Warnings, "\n")
	assert.Contains(t, joined, "query bond type 8")
	assert.Contains(t, joined, "outside 1..3")
}

func TestSDFParser_WhitespaceSeparatedAtoms(t *testing.T) {
	lines := []string{
		"loose", "", "",
		"  2  1  0  0  0  0  0  0  0  0999 V2000",
		"0.0 0.0 0.0 Cl 0 0",
		"1.8 0.0 0.0 C 0 0",
		"1 2 1",
		"M  END",
	}
	res, err := NewSDFParser().Parse(context.Background(), strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	require.Len(t, res.Atoms, 2)
	assert.Equal(t, "Cl", res.Atoms[0].Element)
	assert.InDelta(t, 1.8, res.Atoms[1].Position.X, 1e-9)
	require.Len(t, res.Bonds, 1)
	assert.InDelta(t, 1.8, res.Bonds[0].Distance, 1e-9)
}

func TestSDFParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"header only", "a\nb\nc\n"},
		{"v3000", "a\nb\nc\n  0  0  0     0  0            999 V3000\n"},
		{"bad counts", "a\nb\nc\nxyz\n"},
		{"truncated atoms", "a\nb\nc\n  3  0  0  0  0  0  0  0  0  0999 V2000\n" + molAtom(0, 0, 0, "C", 0) + "\n"},
		{"garbage atom", "a\nb\nc\n  1  0  0  0  0  0  0  0  0  0999 V2000\nnot an atom\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSDFParser().Parse(context.Background(), strings.NewReader(tt.content))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeParseFailed), err.Error())
		})
	}
}
