package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

// errValidationFailed gives a failing validate run a non-zero exit status
// after the report has been printed.
var errValidationFailed = errors.New(errors.ErrCodeValidation, "structure failed validation")

func NewValidateCmd() *cobra.Command {
	var fileType string
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Run the upload and atom checks of the service on a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], fileType)
		},
	}
	cmd.Flags().StringVar(&fileType, "file-type", "", "file type; inferred from the extension when empty")
	return cmd
}

func runValidate(cmd *cobra.Command, path, fileType string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	report := &ValidateReport{
		File:               filepath.Base(path),
		InvalidCoordinates: []int{},
		UnknownElements:    []int{},
	}

	loaded, err := loadStructureFile(ctx, path, fileType, cliCtx.Config.Upload.MaxFileSize)
	if err == nil && !extensionAllowed(cliCtx.Config.Upload.AllowedExtensions, loaded.FileType) {
		err = errors.Newf(errors.ErrCodeUnsupportedFileType, "file type .%s is not accepted", loaded.FileType)
	}
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return err
		}
		report.Errors = append(report.Errors, err.Error())
		return finishValidate(cmd, report)
	}

	report.FileType = string(loaded.FileType)
	report.ModelCount = loaded.Parsed.ModelCount
	report.Warnings = loaded.Parsed.Warnings

	res, verr := structure.ValidateAtoms(loaded.Parsed.Atoms, cliCtx.Config.Analysis.MaxAtoms)
	report.AtomCount = res.AtomCount
	if res.InvalidCoordinates != nil {
		report.InvalidCoordinates = res.InvalidCoordinates
	}
	if res.UnknownElements != nil {
		report.UnknownElements = res.UnknownElements
	}
	if verr != nil {
		report.Errors = append(report.Errors, verr.Error())
	}
	return finishValidate(cmd, report)
}

func finishValidate(cmd *cobra.Command, report *ValidateReport) error {
	report.Valid = len(report.Errors) == 0
	if err := PrintResult(cmd, report); err != nil {
		return err
	}
	if !report.Valid {
		return errValidationFailed
	}
	return nil
}

func extensionAllowed(allowed []string, t structure.FileType) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, ext := range allowed {
		if structure.FileType(ext) == t {
			return true
		}
	}
	return false
}

// ValidateReport is the output of the validate command.
type ValidateReport struct {
	File               string   `json:"file"`
	FileType           string   `json:"file_type,omitempty"`
	Valid              bool     `json:"valid"`
	AtomCount          int      `json:"atom_count"`
	ModelCount         int      `json:"model_count,omitempty"`
	InvalidCoordinates []int    `json:"invalid_coordinates"`
	UnknownElements    []int    `json:"unknown_elements"`
	Warnings           []string `json:"warnings,omitempty"`
	Errors             []string `json:"errors,omitempty"`
}

func (r *ValidateReport) RenderText(w io.Writer) error {
	status := "valid"
	if !r.Valid {
		status = "INVALID"
	}
	fmt.Fprintf(w, "File:      %s\n", r.File)
	if r.FileType != "" {
		fmt.Fprintf(w, "Type:      %s\n", r.FileType)
	}
	fmt.Fprintf(w, "Status:    %s\n", status)
	fmt.Fprintf(w, "Atoms:     %d\n", r.AtomCount)
	if len(r.InvalidCoordinates) > 0 {
		fmt.Fprintf(w, "Invalid coordinates at atoms: %v\n", r.InvalidCoordinates)
	}
	if len(r.UnknownElements) > 0 {
		warnf(w, "Unknown elements at atoms: %v\n", r.UnknownElements)
	}
	for _, warn := range r.Warnings {
		warnf(w, "Warning: %s\n", warn)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "Error: %s\n", e)
	}
	return nil
}
