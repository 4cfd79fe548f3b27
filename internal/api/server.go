package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/Milan232323/watermarking1/internal/usecase"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Server exposes the pipeline over HTTP. Job blobs never travel through it:
// uploads and downloads go straight to object storage via presigned URLs, the
// API only hands out the URLs and kicks off work.
type Server struct {
	runPipeline *usecase.RunPipeline
	split       *usecase.SplitVideo
	relocate    *usecase.RelocateWatermark
	progress    *usecase.GetProgress
	cleanup     *usecase.Cleanup
	storage     port.ObjectStore
	logger      *zap.Logger
	expiry      time.Duration
	httpServer  *http.Server
}

func NewServer(
	runPipeline *usecase.RunPipeline,
	split *usecase.SplitVideo,
	relocate *usecase.RelocateWatermark,
	progress *usecase.GetProgress,
	cleanup *usecase.Cleanup,
	storage port.ObjectStore,
	logger *zap.Logger,
	port string,
	presignExpiry time.Duration,
) *Server {
	s := &Server{
		runPipeline: runPipeline,
		split:       split,
		relocate:    relocate,
		progress:    progress,
		cleanup:     cleanup,
		storage:     storage,
		logger:      logger,
		expiry:      presignExpiry,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /run-pipeline", s.handleRunPipeline)
	mux.HandleFunc("POST /split", s.handleSplit)
	mux.HandleFunc("POST /relocate-watermark", s.handleRelocateWatermark)
	mux.HandleFunc("GET /progress", s.handleProgress)
	mux.HandleFunc("GET /download-url", s.handleDownloadURL)
	mux.HandleFunc("GET /upload-url", s.handleUploadURL)
	mux.HandleFunc("GET /cleanup", s.handleCleanup)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.httpServer = &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // split runs inline on /run-pipeline
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("api server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type runPipelineRequest struct {
	VideoRef  string `json:"video_ref"`
	ImageRef  string `json:"image_ref"`
	ChunkSize int    `json:"chunk_size"`
}

func (s *Server) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	var req runPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err))
		return
	}

	jobID, err := s.runPipeline.Execute(r.Context(), req.VideoRef, req.ImageRef, req.ChunkSize)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID.String()})
}

type splitRequest struct {
	JobID     string `json:"job_id"`
	VideoRef  string `json:"video_ref"`
	ChunkSize int    `json:"chunk_size"`
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err))
		return
	}
	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: bad job_id", entity.ErrInvalidInput))
		return
	}

	if err := s.split.Execute(r.Context(), jobID, req.VideoRef, req.ChunkSize); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID.String()})
}

type relocateRequest struct {
	JobID    string `json:"job_id"`
	ImageRef string `json:"image_ref"`
}

func (s *Server) handleRelocateWatermark(w http.ResponseWriter, r *http.Request) {
	var req relocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err))
		return
	}
	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: bad job_id", entity.ErrInvalidInput))
		return
	}

	if err := s.relocate.Execute(r.Context(), jobID, req.ImageRef); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	progress, err := s.progress.Execute(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	artifactType, err := entity.ParseArtifactType(r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !artifactType.Downloadable() {
		s.writeError(w, fmt.Errorf("%w: artifact type %s is not downloadable", entity.ErrInvalidInput, artifactType))
		return
	}

	url, err := s.storage.PresignedGetURL(r.Context(), entity.NewArtifactRef(jobID, artifactType), s.expiry)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.writeError(w, fmt.Errorf("%w: missing name", entity.ErrInvalidInput))
		return
	}

	object := uuid.NewString() + "_" + name
	putURL, err := s.storage.PresignedPutURL(r.Context(), object, s.expiry)
	if err != nil {
		s.writeError(w, err)
		return
	}
	getURL, err := s.storage.PresignedUploadGetURL(r.Context(), object, s.expiry)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"put_url": putURL,
		"get_url": getURL,
		"object":  object,
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	deleted, err := s.cleanup.Execute(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func jobIDParam(r *http.Request) (uuid.UUID, error) {
	raw := r.URL.Query().Get("job_id")
	jobID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad job_id %q", entity.ErrInvalidInput, raw)
	}
	return jobID, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrAlreadyExists):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
