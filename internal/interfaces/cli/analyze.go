package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/BioDockViz/internal/application/analysis"
	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/internal/infrastructure/chemfile"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

type analyzeOptions struct {
	hbondMax      float64
	saltBridgeMax float64
	minCellSize   float64
	bondTolerance float64
	fileType      string
	kind          string
}

// NewAnalyzeCmd parses a local file and runs the interaction engine on it
// without touching any infrastructure.
func NewAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Detect bonds and non-covalent interactions in a structure file",
		Example: `  biodockviz analyze complex.pdb
  biodockviz analyze ligand.mol2 -o table --type salt_bridge
  biodockviz analyze 1abc.pdb --hbond-max 3.2 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.hbondMax, "hbond-max", 0, "maximum hydrogen bond distance in angstrom (default 2.5)")
	f.Float64Var(&opts.saltBridgeMax, "saltbridge-max", 0, "maximum salt bridge distance in angstrom (default 4.0)")
	f.Float64Var(&opts.minCellSize, "min-cell-size", 0, "minimum spatial grid cell edge in angstrom (default 5.0)")
	f.Float64Var(&opts.bondTolerance, "bond-tolerance", 0, "covalent bond tolerance in angstrom (default 0.2)")
	f.StringVar(&opts.fileType, "file-type", "", "file type (pdb, pdbqt, sdf, sd, mol, mol2); inferred from the extension when empty")
	f.StringVar(&opts.kind, "type", "", "list only one interaction kind in table output (hydrogen_bond, salt_bridge, vdw_contact)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, path string, opts *analyzeOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	acfg := cliCtx.Config.Analysis
	overrides := []struct {
		flag string
		val  float64
		dst  *float64
	}{
		{"hbond-max", opts.hbondMax, &acfg.HBondMaxDistance},
		{"saltbridge-max", opts.saltBridgeMax, &acfg.SaltBridgeMax},
		{"min-cell-size", opts.minCellSize, &acfg.MinCellSize},
		{"bond-tolerance", opts.bondTolerance, &acfg.BondTolerance},
	}
	for _, o := range overrides {
		if !cmd.Flags().Changed(o.flag) {
			continue
		}
		if o.val <= 0 {
			return errors.Newf(errors.ErrCodeInvalidThresholds, "--%s must be positive, got %g", o.flag, o.val)
		}
		*o.dst = o.val
	}
	th, err := analysis.ThresholdsFromConfig(acfg)
	if err != nil {
		return err
	}

	var kind structure.InteractionKind
	if opts.kind != "" {
		k, ok := structure.ParseInteractionKind(opts.kind)
		if !ok {
			return errors.Newf(errors.ErrCodeUnknownInteraction, "unknown interaction type %q", opts.kind)
		}
		kind = k
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	loaded, err := loadStructureFile(ctx, path, opts.fileType, 0)
	if err != nil {
		return err
	}
	if _, err := structure.ValidateAtoms(loaded.Parsed.Atoms, acfg.MaxAtoms); err != nil {
		return err
	}

	result := structure.NewEngine(th).Analyze(loaded.Parsed.Atoms, loaded.Parsed.Bonds)
	cliCtx.Logger.Debug("Structure analyzed",
		logging.String("file", path),
		logging.Int("atoms", len(loaded.Parsed.Atoms)),
		logging.Int("bonds", len(result.Bonds)),
		logging.Int("interactions", result.Interactions.Total()),
		logging.Float64("processing_time_ms", result.Metadata.ProcessingTimeMs))

	return PrintResult(cmd, &AnalyzeReport{
		File:       filepath.Base(path),
		FileType:   string(loaded.FileType),
		Title:      loaded.Parsed.Title,
		AtomCount:  len(loaded.Parsed.Atoms),
		ModelCount: loaded.Parsed.ModelCount,
		Warnings:   loaded.Parsed.Warnings,
		Result:     result,
		atoms:      loaded.Parsed.Atoms,
		kind:       kind,
	})
}

// loadedStructure is a local file that passed content validation and was
// parsed.
type loadedStructure struct {
	FileType structure.FileType
	Size     int
	Parsed   *chemfile.ParseResult
}

// loadStructureFile applies the upload checks of the service (file type,
// size, content signature and malicious patterns) and parses the file.
// maxSize <= 0 keeps the built-in limit.
func loadStructureFile(ctx context.Context, path, fileType string, maxSize int64) (*loadedStructure, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrCodeNotFound, "file %s does not exist", path)
		}
		return nil, errors.Wrapf(err, errors.ErrCodeBadRequest, "cannot read %s", path)
	}

	var t structure.FileType
	if fileType != "" {
		t = structure.FileType(strings.ToLower(strings.TrimPrefix(fileType, ".")))
		if !t.IsSupported() {
			return nil, errors.Newf(errors.ErrCodeUnsupportedFileType, "unsupported file type: %s", fileType)
		}
	} else if t, err = structure.FileTypeFromName(filepath.Base(path)); err != nil {
		return nil, err
	}

	if maxSize > 0 && int64(len(content)) > maxSize {
		return nil, errors.Newf(errors.ErrCodeFileTooLarge, "file too large: %d bytes (max: %d)", len(content), maxSize)
	}
	if err := structure.ValidateContent(t, content); err != nil {
		return nil, err
	}

	parsed, err := chemfile.Parse(ctx, t, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return &loadedStructure{FileType: t, Size: len(content), Parsed: parsed}, nil
}

// AnalyzeReport is the output of the analyze command.
type AnalyzeReport struct {
	File       string                    `json:"file"`
	FileType   string                    `json:"file_type"`
	Title      string                    `json:"title,omitempty"`
	AtomCount  int                       `json:"atom_count"`
	ModelCount int                       `json:"model_count"`
	Warnings   []string                  `json:"warnings,omitempty"`
	Result     *structure.AnalysisResult `json:"result"`

	atoms []structure.Atom
	kind  structure.InteractionKind
}

func (r *AnalyzeReport) RenderText(w io.Writer) error {
	res := r.Result
	fmt.Fprintf(w, "File:            %s (%s)\n", r.File, r.FileType)
	if r.Title != "" {
		fmt.Fprintf(w, "Title:           %s\n", r.Title)
	}
	fmt.Fprintf(w, "Atoms:           %d\n", r.AtomCount)
	fmt.Fprintf(w, "Bonds:           %d\n", len(res.Bonds))
	fmt.Fprintf(w, "Hydrogen bonds:  %d\n", len(res.Interactions.HydrogenBonds))
	fmt.Fprintf(w, "Salt bridges:    %d\n", len(res.Interactions.SaltBridges))
	fmt.Fprintf(w, "VdW contacts:    %d\n", len(res.Interactions.VdWContacts))
	if res.Metadata.CellSize > 0 {
		fmt.Fprintf(w, "Grid cell:       %.2f A\n", res.Metadata.CellSize)
	}
	fmt.Fprintf(w, "Algorithm:       %s\n", res.Metadata.Algorithm)
	fmt.Fprintf(w, "Processing time: %.3f ms\n", res.Metadata.ProcessingTimeMs)
	for _, warn := range r.Warnings {
		warnf(w, "Warning: %s\n", warn)
	}
	return nil
}

func (r *AnalyzeReport) TableHeaders() []string {
	return []string{"Type", "Atom 1", "Residue 1", "Atom 2", "Residue 2", "Distance", "Angle"}
}

func (r *AnalyzeReport) TableRows() [][]string {
	interactions := r.Result.Interactions.All()
	if r.kind != "" {
		interactions = r.Result.Interactions.ByKind(r.kind)
	}
	rows := make([][]string, 0, len(interactions))
	for _, in := range interactions {
		angle := "-"
		if in.Angle != nil {
			angle = fmt.Sprintf("%.1f", *in.Angle)
		}
		rows = append(rows, []string{
			string(in.Kind),
			r.atomLabel(in.Atom1Index),
			fmt.Sprintf("%s%d", in.Atom1Residue, in.Atom1ResidueSeq),
			r.atomLabel(in.Atom2Index),
			fmt.Sprintf("%s%d", in.Atom2Residue, in.Atom2ResidueSeq),
			fmt.Sprintf("%.2f", in.Distance),
			angle,
		})
	}
	return rows
}

// atomLabel renders an atom as "<index>:<name>".
func (r *AnalyzeReport) atomLabel(i int) string {
	if i < 0 || i >= len(r.atoms) {
		return fmt.Sprintf("%d", i)
	}
	name := r.atoms[i].Name
	if name == "" {
		name = r.atoms[i].Element
	}
	return fmt.Sprintf("%d:%s", i, truncate(name, 8))
}
