package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/raggae/internal/config"
	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/ports"
	"github.com/kirillkom/raggae/internal/observability/metrics"
)

const (
	userIDHeader = "X-User-Id"

	maxUploadBytes    = 64 << 20
	maxMultipartInMem = 16 << 20
	maxJSONBodyBytes  = 1 << 20

	backpressureQueueWait = 2 * time.Second
	metricsService        = "api"
)

// Services groups the inbound ports the router dispatches to.
type Services struct {
	Projects  ports.ProjectService
	Ingest    ports.DocumentIngestor
	Documents ports.DocumentReader
	Processor ports.DocumentProcessor
	Reindexer ports.ProjectReindexer
	Query     ports.QueryService
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, services Services) *Router {
	return &Router{cfg: cfg, services: services}
}

// WithMetrics instruments every route and exposes GET /metrics.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/projects", rt.createProject)
	mux.HandleFunc("GET /v1/projects", rt.listProjects)
	mux.HandleFunc("GET /v1/projects/{projectID}", rt.getProject)
	mux.HandleFunc("PUT /v1/projects/{projectID}", rt.updateProject)

	mux.HandleFunc("POST /v1/projects/{projectID}/documents", rt.uploadDocuments)
	mux.HandleFunc("GET /v1/projects/{projectID}/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/projects/{projectID}/documents/{documentID}", rt.getDocument)
	mux.HandleFunc("DELETE /v1/projects/{projectID}/documents/{documentID}", rt.deleteDocument)
	mux.HandleFunc("GET /v1/projects/{projectID}/documents/{documentID}/chunks", rt.listChunks)
	mux.HandleFunc("POST /v1/projects/{projectID}/documents/{documentID}/reindex", rt.reindexDocument)

	mux.HandleFunc("POST /v1/projects/{projectID}/query", rt.query)
	mux.HandleFunc("POST /v1/projects/{projectID}/reindex", rt.reindexProject)
	mux.HandleFunc("POST /v1/projects/{projectID}/reindex/reset", rt.resetReindex)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(metricsService, handler)
	}
	return chain(handler,
		withRequestID,
		withAccessLog,
		withRateLimit(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst),
		withBackpressure(rt.cfg.APIMaxInFlight, backpressureQueueWait),
	)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createProject(w http.ResponseWriter, r *http.Request) {
	var input domain.ProjectInput
	if !decodeJSON(w, r, &input) {
		return
	}
	project, err := rt.services.Projects.CreateProject(r.Context(), callerID(r), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (rt *Router) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := rt.services.Projects.ListProjects(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (rt *Router) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := rt.services.Projects.GetProject(r.Context(), callerID(r), r.PathValue("projectID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (rt *Router) updateProject(w http.ResponseWriter, r *http.Request) {
	var input domain.ProjectInput
	if !decodeJSON(w, r, &input) {
		return
	}
	project, err := rt.services.Projects.UpdateProject(r.Context(), callerID(r), r.PathValue("projectID"), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartInMem); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form with field 'file' is required"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}

	files := make([]domain.UploadFile, 0, len(headers))
	for _, header := range headers {
		file, err := readUploadFile(header)
		if err != nil {
			writeError(w, r, err)
			return
		}
		files = append(files, file)
	}

	results, err := rt.services.Ingest.Upload(r.Context(), callerID(r), r.PathValue("projectID"), files)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		for _, result := range results {
			rt.metrics.RecordUploadedFile(metricsService, uploadOutcome(result))
		}
	}

	status := http.StatusCreated
	if domain.ParseProcessingMode(rt.cfg.ProcessingMode) == domain.ProcessingAsync {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]any{"results": results})
}

func readUploadFile(header *multipart.FileHeader) (domain.UploadFile, error) {
	file, err := header.Open()
	if err != nil {
		return domain.UploadFile{}, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return domain.UploadFile{}, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}
	return domain.UploadFile{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

func uploadOutcome(result domain.UploadResult) string {
	switch {
	case result.ErrorCode != "":
		return strings.ToLower(result.ErrorCode)
	case result.Document != nil:
		return string(result.Document.Status)
	default:
		return "unknown"
	}
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.services.Documents.ListDocuments(r.Context(), callerID(r), r.PathValue("projectID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.services.Documents.GetDocument(r.Context(), callerID(r), r.PathValue("projectID"), r.PathValue("documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	err := rt.services.Documents.DeleteDocument(r.Context(), callerID(r), r.PathValue("projectID"), r.PathValue("documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := rt.services.Documents.ListChunks(r.Context(), callerID(r), r.PathValue("projectID"), r.PathValue("documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if chunks == nil {
		chunks = []domain.DocumentChunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

func (rt *Router) reindexDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.services.Processor.ReindexDocument(r.Context(), callerID(r), r.PathValue("projectID"), r.PathValue("documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	var q domain.Query
	if !decodeJSON(w, r, &q) {
		return
	}
	q.ProjectID = r.PathValue("projectID")
	q.UserID = callerID(r)

	result, err := rt.services.Query.Query(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordQuery(metricsService, string(result.ResolvedStrategy), result.Reranked, len(result.Chunks))
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) reindexProject(w http.ResponseWriter, r *http.Request) {
	result, err := rt.services.Reindexer.Reindex(r.Context(), callerID(r), r.PathValue("projectID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) resetReindex(w http.ResponseWriter, r *http.Request) {
	project, err := rt.services.Reindexer.ResetReindex(r.Context(), callerID(r), r.PathValue("projectID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func callerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid json: %v", err)})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
