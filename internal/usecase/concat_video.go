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
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ConcatVideo runs once per job, after the watermark barrier fires. It pulls
// every watermarked chunk in index order, stream-copies them into the final
// video, and flips the job's video flag. The handler is idempotent: the output
// upload overwrites and the flag merge is a plain set.
type ConcatVideo struct {
	store     port.JobStore
	storage   port.ObjectStore
	transform port.MediaTransform
	failures  *FailureReporter
	logger    *zap.Logger
	tempDir   string
}

func NewConcatVideo(
	store port.JobStore,
	storage port.ObjectStore,
	transform port.MediaTransform,
	failures *FailureReporter,
	logger *zap.Logger,
	tempDir string,
) *ConcatVideo {
	return &ConcatVideo{
		store:     store,
		storage:   storage,
		transform: transform,
		failures:  failures,
		logger:    logger,
		tempDir:   tempDir,
	}
}

func (uc *ConcatVideo) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ConcatVideo.Execute")
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

	chunkPaths := make([]string, 0, signal.ExpectedCount)
	for i := 0; i < signal.ExpectedCount; i++ {
		path := filepath.Join(workDir, fmt.Sprintf("chunk_%06d.mp4", i))
		if err := uc.storage.Download(ctx, entity.NewChunkRef(signal.JobID, entity.ArtifactChunkModified, i), path); err != nil {
			return fmt.Errorf("download watermarked chunk %d: %w", i, err)
		}
		chunkPaths = append(chunkPaths, path)
	}

	outputPath := scratchFile(workDir, ".mp4")
	if err := uc.transform.ConcatVideos(ctx, chunkPaths, outputPath); err != nil {
		return fmt.Errorf("concat video: %w", err)
	}

	if err := uc.storage.Upload(ctx, entity.NewArtifactRef(signal.JobID, entity.ArtifactOutputVideo), outputPath); err != nil {
		return fmt.Errorf("upload output video: %w", err)
	}

	done := true
	if err := uc.store.Merge(ctx, signal.JobID, entity.JobUpdate{VideoConcatenated: &done}); err != nil {
		return fmt.Errorf("record video concatenated: %w", err)
	}

	if err := finishIfDone(ctx, uc.store, signal.JobID, log); err != nil {
		return err
	}

	metrics.StageDuration.WithLabelValues(entity.StageConcatVideo.String()).Observe(time.Since(start).Seconds())
	log.Info("output video assembled", zap.Int("chunks", signal.ExpectedCount))
	return nil
}

// finishIfDone promotes the job to COMPLETED once both concat flags are set.
// Both fan-in handlers call it after their own flag merge; whichever runs
// second sees Done and closes the job. A repeated completion merge is
// harmless.
func finishIfDone(ctx context.Context, store port.JobStore, jobID uuid.UUID, log *zap.Logger) error {
	job, err := store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("reload job: %w", err)
	}
	if !job.Done() || job.Status == entity.JobStatusCompleted {
		return nil
	}

	status := entity.JobStatusCompleted
	now := time.Now().UTC()
	if err := store.Merge(ctx, jobID, entity.JobUpdate{Status: &status, CompletedAt: &now}); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	metrics.JobsTotal.WithLabelValues("completed").Inc()
	log.Info("job completed")
	return nil
}
