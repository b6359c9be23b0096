package handlers

import (
	stdliberrors "errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/BioDockViz/internal/application/analysis"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// StructureHandler exposes analysis.Service over HTTP.
type StructureHandler struct {
	service     analysis.Service
	logger      logging.Logger
	maxFileSize int64
}

func NewStructureHandler(service analysis.Service, logger logging.Logger, maxFileSize int64) *StructureHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &StructureHandler{service: service, logger: logger.Named("structure_handler"), maxFileSize: maxFileSize}
}

// RegisterRoutes mounts the structure routes on r. r is expected to be the
// /api/v1 sub-router.
func (h *StructureHandler) RegisterRoutes(r chi.Router) {
	r.Route("/structures", func(r chi.Router) {
		r.Post("/", h.Upload)
		r.Get("/", h.List)
		r.Route("/{structureID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Delete)
			r.Post("/parse", h.Parse)
			r.Post("/validate", h.Validate)
			r.Get("/atoms", h.Atoms)
			r.Post("/analyze", h.Analyze)
			r.Get("/interactions", h.Interactions)
			r.Get("/download", h.Download)
		})
	})
	r.Post("/analyze", h.AnalyzeAtoms)
}

// Upload accepts a multipart form with the structure in field "file".
func (h *StructureHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Warn("Rejected upload form", logging.Err(err))
		writeAppError(w, r, uploadFormError(err))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeAppError(w, r, uploadFormError(err))
		return
	}

	out, err := h.service.Upload(r.Context(), &analysis.UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	status := http.StatusCreated
	switch {
	case out.Deduplicated:
		status = http.StatusOK
	case out.Structure != nil && !out.Structure.IsParsed():
		status = http.StatusAccepted
	}
	writeJSON(w, status, out)
}

func uploadFormError(err error) error {
	var maxErr *http.MaxBytesError
	if stdliberrors.As(err, &maxErr) {
		return errors.Newf(errors.ErrCodeFileTooLarge, "file exceeds %d bytes", maxErr.Limit-multipartOverhead)
	}
	if stdliberrors.Is(err, multipart.ErrMessageTooLarge) {
		return errors.New(errors.ErrCodeFileTooLarge, "multipart form too large")
	}
	if stdliberrors.Is(err, http.ErrMissingFile) || stdliberrors.Is(err, http.ErrNotMultipart) {
		return errors.New(errors.ErrCodeBadRequest, "multipart field \"file\" is required")
	}
	return errors.Wrap(err, errors.ErrCodeBadRequest, "invalid multipart upload")
}

func (h *StructureHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	q := r.URL.Query()
	out, err := h.service.ListStructures(r.Context(), &analysis.ListInput{
		Page:     page,
		PageSize: pageSize,
		FileType: q.Get("file_type"),
		Stage:    q.Get("stage"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *StructureHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.GetStructure(r.Context(), chi.URLParam(r, "structureID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *StructureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteStructure(r.Context(), chi.URLParam(r, "structureID")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StructureHandler) Parse(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Parse(r.Context(), chi.URLParam(r, "structureID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *StructureHandler) Validate(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Validate(r.Context(), chi.URLParam(r, "structureID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *StructureHandler) Atoms(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.GetAtoms(r.Context(), chi.URLParam(r, "structureID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type analysisQueuedResponse struct {
	StructureID string `json:"structure_id"`
	Status      string `json:"status"`
}

// Analyze runs the engine inline, or queues a job with ?async=true.
// ?reanalyze=true bypasses the already-analyzed check of queued jobs.
func (h *StructureHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "structureID")
	if parseBool(r, "async") {
		if err := h.service.RequestAnalysis(r.Context(), id, parseBool(r, "reanalyze")); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, analysisQueuedResponse{StructureID: id, Status: "queued"})
		return
	}

	out, err := h.service.Analyze(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *StructureHandler) Interactions(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.GetInteractions(r.Context(), chi.URLParam(r, "structureID"), r.URL.Query().Get("type"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type downloadResponse struct {
	StructureID string `json:"structure_id"`
	URL         string `json:"url"`
}

// Download redirects to a presigned object URL, or returns it as JSON with
// ?redirect=false.
func (h *StructureHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "structureID")
	url, err := h.service.DownloadURL(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if r.URL.Query().Get("redirect") == "false" {
		writeJSON(w, http.StatusOK, downloadResponse{StructureID: id, URL: url})
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// AnalyzeAtoms analyzes a posted atom list without storing anything.
func (h *StructureHandler) AnalyzeAtoms(w http.ResponseWriter, r *http.Request) {
	var in analysis.AdHocInput
	if err := decodeJSON(r, &in); err != nil {
		writeAppError(w, r, err)
		return
	}
	out, err := h.service.AnalyzeAtoms(r.Context(), &in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
