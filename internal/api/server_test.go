package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/infra/memory"
	"github.com/Milan232323/watermarking1/internal/usecase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubStorage implements the storage port without real blobs; API handlers
// only need presigned URLs and prefix deletes.
type stubStorage struct {
	mu      sync.Mutex
	deleted []uuid.UUID
}

func (s *stubStorage) Upload(context.Context, entity.ArtifactRef, string) error   { return nil }
func (s *stubStorage) Download(context.Context, entity.ArtifactRef, string) error { return nil }
func (s *stubStorage) Delete(context.Context, entity.ArtifactRef) error           { return nil }

func (s *stubStorage) DeleteJobFiles(_ context.Context, jobID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, jobID)
	return 4, nil
}

func (s *stubStorage) FetchExternal(_ context.Context, url string, _ string) error {
	return fmt.Errorf("fetch %s: %w", url, entity.ErrNotFound)
}

func (s *stubStorage) PresignedGetURL(_ context.Context, ref entity.ArtifactRef, _ time.Duration) (string, error) {
	key, err := ref.Key()
	if err != nil {
		return "", err
	}
	return "https://blob.test/get/" + key, nil
}

func (s *stubStorage) PresignedPutURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "https://blob.test/put/" + objectName, nil
}

func (s *stubStorage) PresignedUploadGetURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "https://blob.test/uploads/" + objectName, nil
}

func newTestServer(t *testing.T) (*Server, *memory.JobStore, *stubStorage) {
	t.Helper()
	store := memory.NewJobStore()
	storage := &stubStorage{}
	logger := zap.NewNop()
	tempDir := t.TempDir()

	relocate := usecase.NewRelocateWatermark(storage, logger, tempDir)
	progress := usecase.NewGetProgress(store)
	cleanup := usecase.NewCleanup(storage, logger)

	srv := NewServer(nil, nil, relocate, progress, cleanup, storage, logger, "0", 15*time.Minute)
	return srv, store, storage
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProgressEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	jobID := uuid.New()
	require.NoError(t, store.Create(context.Background(), entity.NewJob(jobID)))
	_, err := store.FinalizeTotal(context.Background(), jobID, 2)
	require.NoError(t, err)
	_, err = store.MarkChunkDone(context.Background(), jobID, entity.ChunkStageWatermark, 0)
	require.NoError(t, err)

	rec := doRequest(t, srv, http.MethodGet, "/progress?job_id="+jobID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var p usecase.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, jobID, p.JobID)
	assert.Equal(t, 20, p.Percent)
	assert.Equal(t, 2, p.TotalChunks)
}

func TestProgressUnknownJobIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/progress?job_id="+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressBadJobIDIs400(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/progress?job_id=not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadURL(t *testing.T) {
	srv, _, _ := newTestServer(t)
	jobID := uuid.New()

	rec := doRequest(t, srv, http.MethodGet, "/download-url?job_id="+jobID.String()+"&type=output_video", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://blob.test/get/"+jobID.String()+"_output_video.mp4", resp["url"])
}

func TestDownloadURLRejectsInternalArtifacts(t *testing.T) {
	srv, _, _ := newTestServer(t)
	jobID := uuid.NewString()

	for _, artifactType := range []string{"video_chunk_orig", "watermark", "thumbnail", "bogus"} {
		rec := doRequest(t, srv, http.MethodGet, "/download-url?job_id="+jobID+"&type="+artifactType, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "type %s", artifactType)
	}
}

func TestUploadURL(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/upload-url?name=input.mp4", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasSuffix(resp["object"], "_input.mp4"))
	assert.Equal(t, "https://blob.test/put/"+resp["object"], resp["put_url"])
	assert.Equal(t, "https://blob.test/uploads/"+resp["object"], resp["get_url"])
}

func TestUploadURLMissingName(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/upload-url", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCleanupEndpoint(t *testing.T) {
	srv, _, storage := newTestServer(t)
	jobID := uuid.New()

	rec := doRequest(t, srv, http.MethodGet, "/cleanup?job_id="+jobID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp["deleted"])
	require.Len(t, storage.deleted, 1)
	assert.Equal(t, jobID, storage.deleted[0])
}

func TestRelocateWatermarkBadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/relocate-watermark", "{bad json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/relocate-watermark", `{"job_id":"nope","image_ref":"https://x/y"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := fmt.Sprintf(`{"job_id":%q,"image_ref":""}`, uuid.NewString())
	rec = doRequest(t, srv, http.MethodPost, "/relocate-watermark", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
