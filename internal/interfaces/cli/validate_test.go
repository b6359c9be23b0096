package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioDockViz/pkg/errors"
)

func TestValidate_ValidFile(t *testing.T) {
	path := writeSaltBridgePDB(t)
	out, _, err := execute(t, "validate", path, "-o", "json")
	require.NoError(t, err)

	var report ValidateReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Valid)
	assert.Equal(t, "pdb", report.FileType)
	assert.Equal(t, 2, report.AtomCount)
	assert.Empty(t, report.InvalidCoordinates)
	assert.Empty(t, report.Errors)
}

func TestValidate_InvalidContent(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		errText string
	}{
		{"no pdb records", "notes.pdb", "just some text\nwithout records\n", "STRUCT_004"},
		{"script payload", "evil.pdb", "HEADER    X\n<script>alert(1)</script>\n", "STRUCT_005"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			out, _, err := execute(t, "validate", path, "-o", "json")
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

			var report ValidateReport
			require.NoError(t, json.Unmarshal([]byte(out), &report))
			assert.False(t, report.Valid)
			require.NotEmpty(t, report.Errors)
			assert.Contains(t, report.Errors[0], tt.errText)
		})
	}
}

func TestValidate_TextOutput(t *testing.T) {
	path := writeSaltBridgePDB(t)
	out, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Status:    valid")
	assert.Contains(t, out, "Atoms:     2")
}

func TestValidate_MissingFile(t *testing.T) {
	_, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "absent.pdb"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
