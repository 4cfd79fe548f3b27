package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/Milan232323/watermarking1/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ConcatThumbnails runs once per job, after the thumbnail barrier fires. It
// tiles the per-chunk thumbnails into one horizontal strip, left to right in
// chunk order, and flips the job's thumbnail flag.
type ConcatThumbnails struct {
	store     port.JobStore
	storage   port.ObjectStore
	transform port.MediaTransform
	failures  *FailureReporter
	logger    *zap.Logger
	tempDir   string
}

func NewConcatThumbnails(
	store port.JobStore,
	storage port.ObjectStore,
	transform port.MediaTransform,
	failures *FailureReporter,
	logger *zap.Logger,
	tempDir string,
) *ConcatThumbnails {
	return &ConcatThumbnails{
		store:     store,
		storage:   storage,
		transform: transform,
		failures:  failures,
		logger:    logger,
		tempDir:   tempDir,
	}
}

func (uc *ConcatThumbnails) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ConcatThumbnails.Execute")
	defer span.End()

	start := time.Now()

	var signal entity.StageDoneSignal
	if err := json.Unmarshal(rawMsg, &signal); err != nil {
		uc.logger.Error("failed to unmarshal stage done signal", zap.Error(err), zap.ByteString("body", rawMsg))
		uc.failures.poison(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}
	if signal.ExpectedCount <= 0 {
		uc.failures.poison(ctx, rawMsg, fmt.Sprintf("invalid expected_count %d", signal.ExpectedCount))
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", signal.JobID.String()),
		attribute.Int("job.total_chunks", signal.ExpectedCount),
	)
	log := uc.logger.With(zap.String("job_id", signal.JobID.String()))

	workDir, err := scratchDir(uc.tempDir)
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	imagePaths := make([]string, 0, signal.ExpectedCount)
	for i := 0; i < signal.ExpectedCount; i++ {
		path := filepath.Join(workDir, fmt.Sprintf("thumb_%06d.jpg", i))
		if err := uc.storage.Download(ctx, entity.NewChunkRef(signal.JobID, entity.ArtifactThumbnail, i), path); err != nil {
			return fmt.Errorf("download thumbnail %d: %w", i, err)
		}
		imagePaths = append(imagePaths, path)
	}

	outputPath := scratchFile(workDir, ".jpg")
	if err := uc.transform.TileImages(ctx, imagePaths, outputPath); err != nil {
		return fmt.Errorf("tile thumbnails: %w", err)
	}

	if err := uc.storage.Upload(ctx, entity.NewArtifactRef(signal.JobID, entity.ArtifactOutputThumbnail), outputPath); err != nil {
		return fmt.Errorf("upload thumbnail strip: %w", err)
	}

	done := true
	if err := uc.store.Merge(ctx, signal.JobID, entity.JobUpdate{ThumbnailConcatenated: &done}); err != nil {
		return fmt.Errorf("record thumbnails concatenated: %w", err)
	}

	if err := finishIfDone(ctx, uc.store, signal.JobID, log); err != nil {
		return err
	}

	metrics.StageDuration.WithLabelValues(entity.StageConcatThumbnails.String()).Observe(time.Since(start).Seconds())
	log.Info("thumbnail strip assembled", zap.Int("chunks", signal.ExpectedCount))
	return nil
}
