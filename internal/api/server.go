package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxsplit/voxsplit/internal/domain"
	"github.com/voxsplit/voxsplit/internal/separation"
	"github.com/voxsplit/voxsplit/internal/storage"
	"github.com/voxsplit/voxsplit/internal/store"
)

type Server struct {
	logger        *log.Logger
	processor     separationProcessor
	artifacts     storage.Store
	jobs          store.JobStore
	publicBaseURL string
	rateLimiter   RateLimiter
	metrics       *metrics
	tracer        trace.Tracer
	mux           *http.ServeMux
}

type separationProcessor interface {
	Process(ctx context.Context, upload separation.Upload) (separation.Outcome, error)
}

type Options struct {
	// PublicBaseURL overrides the request Host when building artifact
	// URLs, for deployments behind a proxy.
	PublicBaseURL string
	RateLimiter   RateLimiter
}

func NewServer(logger *log.Logger, processor separationProcessor, artifacts storage.Store, jobs store.JobStore, opts Options) *Server {
	s := &Server{
		logger:        logger,
		processor:     processor,
		artifacts:     artifacts,
		jobs:          jobs,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/"),
		rateLimiter:   opts.RateLimiter,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("voxsplit/api"),
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.withTracing(s.metrics.withHTTPMetrics(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("POST /separate", s.handleSeparate)
	s.mux.HandleFunc("GET /files/{job_id}/{filename}", s.handleGetFile)
	s.mux.HandleFunc("DELETE /files/{job_id}", s.handleDeleteJob)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSeparate(w http.ResponseWriter, r *http.Request) {
	upload, err := extractUpload(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	startedAt := time.Now()
	s.metrics.separationsInFlight.Inc()
	defer s.metrics.separationsInFlight.Dec()

	outcome, err := s.processor.Process(r.Context(), upload)

	status := domain.JobStatusSucceeded
	if err != nil {
		status = domain.JobStatusFailed
	}
	s.metrics.separationsTotal.WithLabelValues(status).Inc()
	s.metrics.separationDuration.WithLabelValues(status).Observe(time.Since(startedAt).Seconds())

	if err != nil {
		s.logger.Printf("separation failed filename=%q err=%v", upload.Filename, err)
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}

	base := s.baseURL(r)
	writeJSON(w, http.StatusOK, map[string]string{
		"speech_url":     base + "/files/" + outcome.JobID + "/" + outcome.Speech,
		"background_url": base + "/files/" + outcome.JobID + "/" + outcome.Background,
	})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	filename := r.PathValue("filename")

	reader, err := s.artifacts.Open(r.Context(), jobID, filename)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
			return
		}
		s.logger.Printf("open file failed job_id=%s filename=%s err=%v", jobID, filename, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read file"})
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "audio/wav")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Printf("stream file failed job_id=%s filename=%s err=%v", jobID, filename, err)
	}
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	job, ok, err := s.jobs.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Printf("fetch job failed job_id=%s err=%v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		return
	}
	if ok && job.Status == domain.JobStatusProcessing {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job is still processing"})
		return
	}

	if err := s.artifacts.Delete(r.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		s.logger.Printf("delete job failed job_id=%s err=%v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete job"})
		return
	}

	if err := s.jobs.Delete(r.Context(), jobID); err != nil && !errors.Is(err, store.ErrJobNotFound) {
		s.logger.Printf("delete job record failed job_id=%s err=%v", jobID, err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

const maxUploadMemory = 32 << 20

// extractUpload pulls the "file" part out of the multipart body. A part
// uploaded without a filename is parsed by net/http as a plain form value,
// so both shapes are accepted.
func extractUpload(r *http.Request) (separation.Upload, error) {
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()

		data, readErr := io.ReadAll(file)
		if readErr != nil {
			return separation.Upload{}, errors.New("failed to read upload")
		}
		return separation.Upload{
			Data:        data,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
		}, nil
	}

	if parseErr := r.ParseMultipartForm(maxUploadMemory); parseErr == nil && r.MultipartForm != nil {
		if values := r.MultipartForm.Value["file"]; len(values) > 0 {
			return separation.Upload{Data: []byte(values[0])}, nil
		}
	}

	return separation.Upload{}, errors.New("multipart field 'file' is required")
}

func (s *Server) baseURL(r *http.Request) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func statusForError(err error) int {
	var (
		providerErr *domain.ProviderError
		engineErr   *domain.EngineError
	)
	if errors.As(err, &providerErr) || errors.As(err, &engineErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
