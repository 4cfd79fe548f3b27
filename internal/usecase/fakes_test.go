package usecase

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/google/uuid"
)

// fakeStorage keeps blobs in a map keyed by the artifact object name.
type fakeStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	external map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects:  make(map[string][]byte),
		external: make(map[string][]byte),
	}
}

func (f *fakeStorage) seed(ref entity.ArtifactRef, data []byte) {
	key, err := ref.Key()
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeStorage) get(ref entity.ArtifactRef) ([]byte, bool) {
	key, err := ref.Key()
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

func (f *fakeStorage) Upload(_ context.Context, ref entity.ArtifactRef, srcPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	key, err := ref.Key()
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = bytes.Clone(data)
	return nil
}

func (f *fakeStorage) Download(_ context.Context, ref entity.ArtifactRef, destPath string) error {
	key, err := ref.Key()
	if err != nil {
		return err
	}
	f.mu.Lock()
	data, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("download %s: %w", key, entity.ErrNotFound)
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (f *fakeStorage) Delete(_ context.Context, ref entity.ArtifactRef) error {
	key, err := ref.Key()
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) DeleteJobFiles(_ context.Context, jobID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deleted := 0
	for key := range f.objects {
		if strings.HasPrefix(key, jobID.String()) {
			delete(f.objects, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeStorage) FetchExternal(_ context.Context, url string, destPath string) error {
	f.mu.Lock()
	data, ok := f.external[url]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("fetch %s: %w", url, entity.ErrNotFound)
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (f *fakeStorage) PresignedGetURL(_ context.Context, ref entity.ArtifactRef, _ time.Duration) (string, error) {
	key, err := ref.Key()
	if err != nil {
		return "", err
	}
	return "https://blob.test/get/" + key, nil
}

func (f *fakeStorage) PresignedPutURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "https://blob.test/put/" + objectName, nil
}

func (f *fakeStorage) PresignedUploadGetURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "https://blob.test/uploads/" + objectName, nil
}

// fakeTransform fabricates media operations on plain byte files so the
// handlers can be exercised without ffmpeg.
type fakeTransform struct {
	frames  int
	failOps map[string]error
}

func newFakeTransform(frames int) *fakeTransform {
	return &fakeTransform{frames: frames, failOps: make(map[string]error)}
}

func (f *fakeTransform) CountFrames(context.Context, string) (int, error) {
	if err := f.failOps["count"]; err != nil {
		return 0, err
	}
	return f.frames, nil
}

func (f *fakeTransform) SplitChunks(_ context.Context, _ string, outputDir string, chunkSize int) ([]string, error) {
	if err := f.failOps["split"]; err != nil {
		return nil, err
	}
	n := (f.frames + chunkSize - 1) / chunkSize
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("%s/chunk_%06d.mp4", outputDir, i)
		if err := os.WriteFile(path, []byte(fmt.Sprintf("chunk-%d;", i)), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (f *fakeTransform) WatermarkChunk(_ context.Context, videoPath, _, outputPath string, _ float64) error {
	if err := f.failOps["watermark"]; err != nil {
		return err
	}
	data, err := os.ReadFile(videoPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append([]byte("wm:"), data...), 0o644)
}

func (f *fakeTransform) ExtractThumbnail(_ context.Context, videoPath, outputPath string, _ int) error {
	if err := f.failOps["thumbnail"]; err != nil {
		return err
	}
	data, err := os.ReadFile(videoPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append([]byte("th:"), data...), 0o644)
}

func (f *fakeTransform) ConcatVideos(_ context.Context, chunkPaths []string, outputPath string) error {
	if err := f.failOps["concat"]; err != nil {
		return err
	}
	return concatFiles(chunkPaths, outputPath)
}

func (f *fakeTransform) TileImages(_ context.Context, imagePaths []string, outputPath string) error {
	if err := f.failOps["tile"]; err != nil {
		return err
	}
	return concatFiles(imagePaths, outputPath)
}

func concatFiles(paths []string, outputPath string) error {
	var buf bytes.Buffer
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return os.WriteFile(outputPath, buf.Bytes(), 0o644)
}

// fakePublisher records every published message.
type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMsg
}

type publishedMsg struct {
	queue string
	body  []byte
}

func (f *fakePublisher) Publish(_ context.Context, queue string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, publishedMsg{queue: queue, body: bytes.Clone(body)})
	return nil
}

// flakyPublisher fails a set number of publishes to one queue, then delegates.
type flakyPublisher struct {
	*fakePublisher
	failMu    sync.Mutex
	failQueue string
	failures  int
}

func (f *flakyPublisher) Publish(ctx context.Context, queue string, body []byte) error {
	f.failMu.Lock()
	if queue == f.failQueue && f.failures > 0 {
		f.failures--
		f.failMu.Unlock()
		return fmt.Errorf("publish to %s: connection reset", queue)
	}
	f.failMu.Unlock()
	return f.fakePublisher.Publish(ctx, queue, body)
}

func (f *fakePublisher) onQueue(queue string) []publishedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedMsg
	for _, m := range f.messages {
		if m.queue == queue {
			out = append(out, m)
		}
	}
	return out
}

type fakeDLQ struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeDLQ) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, reason)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) NotifyFailure(_ context.Context, _, jobID, stage, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, jobID+"/"+stage)
	return nil
}
