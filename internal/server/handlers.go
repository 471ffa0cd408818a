package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hyperjump/legaleagle/internal/models"
	"github.com/hyperjump/legaleagle/internal/storage"
	"go.uber.org/zap"
)

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// IngestRequest is the body of POST /api/v1/ingest.
type IngestRequest struct {
	Paths []string `json:"paths"`
	Force bool     `json:"force,omitempty"`
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Contracts      int64                  `json:"contracts"`
	Chunks         int64                  `json:"chunks"`
	IndexSize      int                    `json:"index_size"`
	Backend        string                 `json:"backend"`
	DiskUsageBytes int64                  `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("question", req.Question), zap.Int("top_k", req.TopK))
	res, err := s.querier.Query(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Paths) == 0 {
		s.respondError(w, http.StatusBadRequest, "paths is required")
		return
	}
	s.ingest(w, r, req.Paths, req.Force)
}

// handleUpload saves the multipart "files" parts under the upload directory and ingests them.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files uploaded (use form field \"files\")")
		return
	}
	dir := filepath.Join(s.config.Server.UploadDir, uuid.New().String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("create upload dir failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	var paths []string
	for _, fh := range headers {
		name := filepath.Base(filepath.Clean("/" + fh.Filename))
		if name == "/" || name == "." {
			s.respondError(w, http.StatusBadRequest, "invalid file name")
			return
		}
		dst := filepath.Join(dir, name)
		if err := saveUpload(fh, dst); err != nil {
			s.logger.Error("saving upload failed", zap.String("file", name), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
		paths = append(paths, dst)
	}
	force, _ := strconv.ParseBool(r.FormValue("force"))
	s.ingest(w, r, paths, force)
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ingest responds 200 when every file succeeded or was skipped, and 207 with the
// per-file breakdown when some failed.
func (s *Server) ingest(w http.ResponseWriter, r *http.Request, paths []string, force bool) {
	res, err := s.ingester.Ingest(r.Context(), paths, force)
	if res == nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		s.logger.Warn("ingest finished with errors", zap.Int("failed", res.Failed()), zap.Error(err))
		status = http.StatusMultiStatus
		if res.Failed() == len(res.Files) {
			status = http.StatusUnprocessableEntity
		}
	}
	s.respondJSON(w, status, res)
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	offset, limit := 0, 100
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 1000 {
		limit = v
	}
	contracts, err := s.registry.ListContracts(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list contracts failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	if contracts == nil {
		contracts = []*models.Contract{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"contracts": contracts})
}

func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	c, err := s.registry.GetContract(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contracts, err := s.registry.CountContracts(ctx)
	if err != nil {
		s.logger.Error("status: count contracts failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	chunks, err := s.registry.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	size, err := s.index.Count(ctx)
	if err != nil {
		s.logger.Error("status: count index failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	resp := StatusResponse{
		Contracts: contracts,
		Chunks:    chunks,
		IndexSize: size,
		Backend:   s.index.Backend(),
		Config: map[string]interface{}{
			"chunk_size":          s.config.Chunking.ChunkSize,
			"chunk_overlap":       s.config.Chunking.Overlap(),
			"top_k":               s.config.Retrieval.TopK,
			"engine":              s.config.Index.Engine,
			"embedding_provider":  s.config.Embedding.Provider,
			"embedding_model":     s.config.Embedding.Model,
			"generation_provider": s.config.Generation.Provider,
			"generation_model":    s.config.Generation.Model,
			"database_path":       s.config.Storage.DatabasePath,
		},
	}
	paths := []string{s.config.Storage.DatabasePath}
	if resp.Backend == "local" {
		resp.Config["index_path"] = s.config.Index.Path
		paths = append(paths, s.config.Index.Path)
	} else {
		resp.Config["remote_url"] = s.config.Index.Remote.URL
		resp.Config["remote_name"] = s.config.Index.Remote.Name
	}
	if n, err := storage.DiskUsageBytes(paths...); err == nil {
		resp.DiskUsageBytes = n
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var cfgErr *models.ConfigurationError
	var retErr *models.RetrievalError
	var ingErr *models.IngestionError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrIndexNotReady):
		return http.StatusConflict
	case errors.As(err, &retErr):
		return http.StatusBadGateway
	case errors.As(err, &ingErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	s.respondError(w, statusFor(err), strings.TrimSpace(err.Error()))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
