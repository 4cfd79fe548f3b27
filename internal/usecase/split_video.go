package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/Milan232323/watermarking1/internal/infra/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SplitVideo downloads the source video, cuts it into fixed-frame-count
// chunks, uploads each one, and fans out one watermark task and one thumbnail
// task per chunk. Tasks for chunk k are enqueued as soon as the chunk is
// uploaded, before the total is known; FinalizeTotal closes the resulting
// race by re-checking both barriers at the write that publishes the total.
type SplitVideo struct {
	store     port.JobStore
	storage   port.ObjectStore
	transform port.MediaTransform
	publisher port.TaskPublisher
	logger    *zap.Logger
	tempDir   string
}

func NewSplitVideo(
	store port.JobStore,
	storage port.ObjectStore,
	transform port.MediaTransform,
	publisher port.TaskPublisher,
	logger *zap.Logger,
	tempDir string,
) *SplitVideo {
	return &SplitVideo{
		store:     store,
		storage:   storage,
		transform: transform,
		publisher: publisher,
		logger:    logger,
		tempDir:   tempDir,
	}
}

func (uc *SplitVideo) Execute(ctx context.Context, jobID uuid.UUID, videoRef string, chunkSize int) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "SplitVideo.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", jobID.String()),
		attribute.Int("job.chunk_size", chunkSize),
	)

	start := time.Now()
	log := uc.logger.With(zap.String("job_id", jobID.String()))

	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", entity.ErrInvalidInput)
	}

	status := entity.JobStatusProcessing
	if err := uc.store.Merge(ctx, jobID, entity.JobUpdate{Status: &status}); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}

	workDir, err := scratchDir(uc.tempDir)
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	videoPath := scratchFile(workDir, ".mp4")
	if err := uc.storage.FetchExternal(ctx, videoRef, videoPath); err != nil {
		return fmt.Errorf("fetch source video: %w", err)
	}

	chunkPaths, err := uc.transform.SplitChunks(ctx, videoPath, workDir, chunkSize)
	if err != nil {
		return fmt.Errorf("split video: %w", err)
	}

	for i, chunkPath := range chunkPaths {
		ref := entity.NewChunkRef(jobID, entity.ArtifactChunkOriginal, i)
		if err := uc.storage.Upload(ctx, ref, chunkPath); err != nil {
			return fmt.Errorf("upload chunk %d: %w", i, err)
		}

		uploaded := i + 1
		if err := uc.store.Merge(ctx, jobID, entity.JobUpdate{ChunkUploaded: &uploaded}); err != nil {
			log.Warn("could not record chunk upload", zap.Int("chunk", i), zap.Error(err))
		}

		if err := uc.enqueueChunkTasks(ctx, jobID, i); err != nil {
			return err
		}
		os.Remove(chunkPath)
	}

	total := len(chunkPaths)
	snapshot, err := uc.store.FinalizeTotal(ctx, jobID, total)
	if err != nil {
		return fmt.Errorf("finalize chunk total: %w", err)
	}

	// Workers that finished before the total was visible read total=0 and
	// could not recognize themselves as last; whoever's conditional write
	// observed the completed barrier first owns the trigger, and here that
	// may be us.
	if snapshot.WatermarkDone() == total {
		if err := publishStageDone(ctx, uc.publisher, jobID, entity.ChunkStageWatermark, total); err != nil {
			return err
		}
	}
	if snapshot.ThumbnailDone() == total {
		if err := publishStageDone(ctx, uc.publisher, jobID, entity.ChunkStageThumbnail, total); err != nil {
			return err
		}
	}

	metrics.StageDuration.WithLabelValues(entity.StageSplit.String()).Observe(time.Since(start).Seconds())
	log.Info("video split complete",
		zap.Int("total_chunks", total),
		zap.Int("chunk_size", chunkSize),
	)
	return nil
}

func (uc *SplitVideo) enqueueChunkTasks(ctx context.Context, jobID uuid.UUID, index int) error {
	task := entity.ChunkTask{JobID: jobID, ChunkIndex: index}
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal chunk task: %w", err)
	}

	for _, queue := range []string{entity.QueueWatermarkChunk, entity.QueueThumbnailChunk} {
		if err := uc.publisher.Publish(ctx, queue, body); err != nil {
			return fmt.Errorf("enqueue chunk %d on %s: %w", index, queue, err)
		}
	}
	return nil
}
