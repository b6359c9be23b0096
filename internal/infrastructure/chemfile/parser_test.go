package chemfile

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

func TestForFileType(t *testing.T) {
	tests := []struct {
		fileType structure.FileType
		want     interface{}
	}{
		{structure.FileTypePDB, &PDBParser{}},
		{structure.FileTypePDBQT, &PDBParser{pdbqt: true}},
		{structure.FileTypeSDF, &SDFParser{}},
		{structure.FileTypeSD, &SDFParser{}},
		{structure.FileTypeMOL, &SDFParser{}},
		{structure.FileTypeMOL2, &MOL2Parser{}},
	}
	for _, tt := range tests {
		p, err := ForFileType(tt.fileType)
		require.NoError(t, err, tt.fileType)
		assert.Equal(t, tt.want, p, tt.fileType)
	}

	for _, ft := range []structure.FileType{structure.FileTypeMCIF, structure.FileTypeMMCIF, "xyz"} {
		p, err := ForFileType(ft)
		assert.Nil(t, p)
		assert.True(t, errors.IsCode(err, errors.ErrCodeUnsupportedFileType), ft)
	}
}

func TestParse_Dispatches(t *testing.T) {
	res, err := Parse(context.Background(), structure.FileTypeMOL2,
		strings.NewReader("@<TRIPOS>MOLECULE\nwater\n@<TRIPOS>ATOM\n1 O1 0 0 0 O.3\n"))
	require.NoError(t, err)
	assert.Equal(t, "water", res.Title)
	require.Len(t, res.Atoms, 1)

	_, err = Parse(context.Background(), structure.FileTypeMMCIF, strings.NewReader("data_x"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnsupportedFileType))
}

func TestParse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, ft := range []structure.FileType{structure.FileTypePDB, structure.FileTypeSDF, structure.FileTypeMOL2} {
		_, err := Parse(ctx, ft, strings.NewReader(samplePDB()))
		require.Error(t, err, ft)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout), ft)
	}
}

func TestParseResult_Metadata(t *testing.T) {
	resolution := 2.1
	res := &ParseResult{
		Title:                 "t",
		ExperimentalTechnique: "NMR",
		Resolution:            &resolution,
		ModelCount:            3,
		Warnings:              []string{"w"},
	}
	md := res.Metadata()
	assert.Equal(t, "t", md.Title)
	assert.Equal(t, "NMR", md.ExperimentalTechnique)
	assert.Equal(t, &resolution, md.Resolution)
	assert.Equal(t, 3, md.ModelCount)
	assert.Equal(t, []string{"w"}, md.Warnings)

	md.Warnings[0] = "changed"
	assert.Equal(t, "w", res.Warnings[0])
}

func TestParseResult_WarningsCapped(t *testing.T) {
	res := &ParseResult{}
	for i := 0; i < maxWarnings+7; i++ {
		res.warnf("warning %d", i)
	}
	res.finish()
	require.Len(t, res.Warnings, maxWarnings+1)
	assert.Equal(t, "7 further warnings suppressed", res.Warnings[maxWarnings])
}

func TestNormalizeElement(t *testing.T) {
	tests := map[string]string{
		"FE":   "Fe",
		" cl ": "Cl",
		"C1":   "C",
		"1H":   "H",
		"Zn2+": "Zn",
		"":     "",
		"12":   "",
		"CAL":  "Ca",
		"Ä":    "",
		"Feé":  "Fe",
		"éFe":  "Fe",
		"Aé":   "A",
	}
	for in, want := range tests {
		got := normalizeElement(in)
		assert.Equal(t, want, got, in)
		assert.True(t, utf8.ValidString(got), in)
	}
}

func TestElementFromName(t *testing.T) {
	assert.Equal(t, "Ca", elementFromName("CA"))
	assert.Equal(t, "C", elementFromName("CB"))
	assert.Equal(t, "Cl", elementFromName("Cl3"))
	assert.Equal(t, "O", elementFromName("O12"))
	assert.Equal(t, "", elementFromName("42"))
	assert.Equal(t, "", elementFromName("ñ"))
	assert.Equal(t, "N", elementFromName("ÑN1"))
}

func TestColumn(t *testing.T) {
	assert.Equal(t, "ATOM", column("ATOM  ", 1, 6))
	assert.Equal(t, "", column("ATOM", 7, 11))
	assert.Equal(t, "M", column("ATOM M", 5, 20))
}
