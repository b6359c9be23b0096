package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/turtacn/BioDockViz/pkg/errors"
)

// Vec3 is a Cartesian position in angstroms.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Atom struct {
	Index         int     `json:"index"`
	Position      Vec3    `json:"position"`
	Element       string  `json:"element"`
	ResidueName   string  `json:"res_name"`
	ResidueSeq    int     `json:"res_seq"`
	ChainID       string  `json:"chain_id,omitempty"`
	Serial        int     `json:"serial,omitempty"`
	Name          string  `json:"name,omitempty"`
	AltLoc        string  `json:"alt_loc,omitempty"`
	InsertionCode string  `json:"i_code,omitempty"`
	Occupancy     float64 `json:"occupancy"`
	TempFactor    float64 `json:"temp_factor"`
	Charge        float64 `json:"charge"`
}

type Bond struct {
	Atom1Index int     `json:"atom1_index"`
	Atom2Index int     `json:"atom2_index"`
	Type       string  `json:"type"`
	Order      float64 `json:"order"`
	Distance   float64 `json:"distance"`
}

// Interaction is one non-covalent contact. Type is hydrogen_bond,
// salt_bridge or vdw_contact.
type Interaction struct {
	Type            string   `json:"type"`
	Atom1Index      int      `json:"atom1_index"`
	Atom2Index      int      `json:"atom2_index"`
	Distance        float64  `json:"distance"`
	Angle           *float64 `json:"angle"`
	Atom1Residue    string   `json:"atom1_residue"`
	Atom1ResidueSeq int      `json:"atom1_residue_seq"`
	Atom2Residue    string   `json:"atom2_residue"`
	Atom2ResidueSeq int      `json:"atom2_residue_seq"`
	Confidence      float64  `json:"confidence"`
	IsPredicted     bool     `json:"is_predicted"`
}

type InteractionSet struct {
	HydrogenBonds []Interaction `json:"hydrogen_bonds"`
	SaltBridges   []Interaction `json:"salt_bridges"`
	VdWContacts   []Interaction `json:"vdw_contacts"`
}

// Total counts interactions of every kind.
func (s InteractionSet) Total() int {
	return len(s.HydrogenBonds) + len(s.SaltBridges) + len(s.VdWContacts)
}

type AnalysisMetadata struct {
	ProcessingTimeMs float64                   `json:"processing_time_ms"`
	AtomCount        int                       `json:"atom_count"`
	BondCount        int                       `json:"bond_count"`
	Algorithm        string                    `json:"algorithm"`
	CellSize         float64                   `json:"cell_size,omitempty"`
	Thresholds       map[string]map[string]any `json:"thresholds"`
}

// AnalysisResult is the engine output. StructureID is empty for ad hoc
// analyses.
type AnalysisResult struct {
	StructureID  string           `json:"structure_id,omitempty"`
	Cached       bool             `json:"cached"`
	Bonds        []Bond           `json:"bonds"`
	Interactions InteractionSet   `json:"interactions"`
	Metadata     AnalysisMetadata `json:"metadata"`
}

type ParseMetadata struct {
	Title                 string   `json:"title,omitempty"`
	ExperimentalTechnique string   `json:"experimental_technique,omitempty"`
	Resolution            *float64 `json:"resolution,omitempty"`
	ModelCount            int      `json:"model_count"`
	Warnings              []string `json:"warnings,omitempty"`
}

type AnalysisSummary struct {
	Metadata          AnalysisMetadata `json:"metadata"`
	InteractionCounts map[string]int   `json:"interaction_counts"`
	AnalyzedAt        time.Time        `json:"analyzed_at"`
}

// Structure is a stored structure file. Stage is uploaded, parsing, parsed,
// analyzed or failed.
type Structure struct {
	ID          string           `json:"id"`
	FileName    string           `json:"file_name"`
	FileType    string           `json:"file_type"`
	FileSize    int64            `json:"file_size"`
	FileHash    string           `json:"file_hash"`
	ContentType string           `json:"content_type"`
	StorageKey  string           `json:"storage_key"`
	Stage       string           `json:"stage"`
	Metadata    *ParseMetadata   `json:"metadata,omitempty"`
	AtomCount   int              `json:"atom_count"`
	BondCount   int              `json:"bond_count"`
	Analysis    *AnalysisSummary `json:"analysis,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type UploadResult struct {
	Structure    *Structure `json:"structure"`
	Deduplicated bool       `json:"deduplicated"`
	Warnings     []string   `json:"warnings,omitempty"`
}

type ParseResult struct {
	StructureID     string         `json:"structure_id"`
	AtomCount       int            `json:"atom_count"`
	BondCount       int            `json:"bond_count"`
	UnknownElements int            `json:"unknown_elements"`
	Metadata        *ParseMetadata `json:"metadata"`
}

type ValidationResult struct {
	StructureID        string   `json:"structure_id"`
	Valid              bool     `json:"valid"`
	AtomCount          int      `json:"atom_count"`
	InvalidCoordinates []int    `json:"invalid_coordinates"`
	UnknownElements    []int    `json:"unknown_elements"`
	OversizedLabels    []int    `json:"oversized_labels,omitempty"`
	Errors             []string `json:"errors,omitempty"`
}

type AtomList struct {
	StructureID string `json:"structure_id"`
	Atoms       []Atom `json:"atoms"`
	Total       int    `json:"total"`
}

type InteractionList struct {
	StructureID  string        `json:"structure_id"`
	Type         string        `json:"type,omitempty"`
	Interactions []Interaction `json:"interactions"`
	Total        int           `json:"total"`
}

type StructureList struct {
	Structures []*Structure `json:"structures"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

// ListOptions filters ListStructures. Zero values are omitted.
type ListOptions struct {
	Page     int
	PageSize int
	FileType string
	Stage    string
}

// QueuedAnalysis acknowledges an asynchronous analysis request.
type QueuedAnalysis struct {
	StructureID string `json:"structure_id"`
	Status      string `json:"status"`
}

// StructuresClient calls the /structures endpoints.
type StructuresClient struct {
	client *Client
}

// Upload sends a structure file. The file type is taken from the extension
// of fileName.
func (s *StructuresClient) Upload(ctx context.Context, fileName string, content io.Reader) (*UploadResult, error) {
	if fileName == "" {
		return nil, errors.New(errors.ErrCodeValidation, "file name is required")
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read structure file")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filepath.Base(fileName)+`"`)
	hdr.Set("Content-Type", "chemical/x-"+fileTypeOf(fileName))
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build upload form")
	}
	if _, err := part.Write(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build upload form")
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build upload form")
	}
	form := buf.Bytes()

	var out UploadResult
	err = s.client.do(ctx, request{
		method:      http.MethodPost,
		path:        "/structures",
		contentType: mw.FormDataContentType(),
		body:        func() (io.Reader, error) { return bytes.NewReader(form), nil },
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func fileTypeOf(name string) string {
	ext := filepath.Ext(name)
	if len(ext) > 1 {
		return ext[1:]
	}
	return "structure"
}

func (s *StructuresClient) Get(ctx context.Context, id string) (*Structure, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	var out Structure
	if err := s.client.do(ctx, request{method: http.MethodGet, path: structurePath(id, "")}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StructuresClient) List(ctx context.Context, opts *ListOptions) (*StructureList, error) {
	q := url.Values{}
	if opts != nil {
		if opts.Page > 0 {
			q.Set("page", strconv.Itoa(opts.Page))
		}
		if opts.PageSize > 0 {
			q.Set("page_size", strconv.Itoa(opts.PageSize))
		}
		if opts.FileType != "" {
			q.Set("file_type", opts.FileType)
		}
		if opts.Stage != "" {
			q.Set("stage", opts.Stage)
		}
	}
	var out StructureList
	if err := s.client.do(ctx, request{method: http.MethodGet, path: "/structures", query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StructuresClient) Delete(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	return s.client.do(ctx, request{method: http.MethodDelete, path: structurePath(id, "")}, nil)
}

func (s *StructuresClient) Parse(ctx context.Context, id string) (*ParseResult, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	var out ParseResult
	if err := s.client.do(ctx, request{method: http.MethodPost, path: structurePath(id, "/parse")}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StructuresClient) Validate(ctx context.Context, id string) (*ValidationResult, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	var out ValidationResult
	if err := s.client.do(ctx, request{method: http.MethodPost, path: structurePath(id, "/validate")}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StructuresClient) Atoms(ctx context.Context, id string) (*AtomList, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	var out AtomList
	if err := s.client.do(ctx, request{method: http.MethodGet, path: structurePath(id, "/atoms")}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analyze runs the analysis synchronously.
func (s *StructuresClient) Analyze(ctx context.Context, id string) (*AnalysisResult, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	var out AnalysisResult
	if err := s.client.do(ctx, request{method: http.MethodPost, path: structurePath(id, "/analyze")}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeAsync queues the analysis on the worker. reanalyze forces a run for
// structures that were already analyzed.
func (s *StructuresClient) AnalyzeAsync(ctx context.Context, id string, reanalyze bool) (*QueuedAnalysis, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	q := url.Values{"async": {"true"}}
	if reanalyze {
		q.Set("reanalyze", "true")
	}
	var out QueuedAnalysis
	if err := s.client.do(ctx, request{method: http.MethodPost, path: structurePath(id, "/analyze"), query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Interactions lists stored interactions; kind may be empty for all kinds.
func (s *StructuresClient) Interactions(ctx context.Context, id, kind string) (*InteractionList, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	q := url.Values{}
	if kind != "" {
		q.Set("type", kind)
	}
	var out InteractionList
	if err := s.client.do(ctx, request{method: http.MethodGet, path: structurePath(id, "/interactions"), query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadURL returns a presigned URL for the original file.
func (s *StructuresClient) DownloadURL(ctx context.Context, id string) (string, error) {
	if err := requireID(id); err != nil {
		return "", err
	}
	var out struct {
		URL string `json:"url"`
	}
	q := url.Values{"redirect": {"false"}}
	if err := s.client.do(ctx, request{method: http.MethodGet, path: structurePath(id, "/download"), query: q}, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// AnalyzeAtoms analyzes an atom list without storing it.
func (s *StructuresClient) AnalyzeAtoms(ctx context.Context, atoms []Atom, bonds []Bond) (*AnalysisResult, error) {
	if len(atoms) == 0 {
		return nil, errors.New(errors.ErrCodeNoAtoms, "at least one atom is required")
	}
	body, err := jsonBody(struct {
		Atoms []Atom `json:"atoms"`
		Bonds []Bond `json:"bonds,omitempty"`
	}{atoms, bonds})
	if err != nil {
		return nil, err
	}
	var out AnalysisResult
	err = s.client.do(ctx, request{
		method:      http.MethodPost,
		path:        "/analyze",
		contentType: "application/json",
		body:        body,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func requireID(id string) error {
	if id == "" {
		return errors.New(errors.ErrCodeValidation, "structure id is required")
	}
	return nil
}

func structurePath(id, suffix string) string {
	return "/structures/" + url.PathEscape(id) + suffix
}
