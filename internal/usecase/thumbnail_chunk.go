package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/Milan232323/watermarking1/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ThumbnailChunk consumes one ChunkTask from the thumbnail queue: extract the
// chunk's first frame at a fixed height and upload it, then record completion
// under the same barrier protocol as the watermark track.
type ThumbnailChunk struct {
	store     port.JobStore
	storage   port.ObjectStore
	transform port.MediaTransform
	publisher port.TaskPublisher
	failures  *FailureReporter
	logger    *zap.Logger
	tempDir   string
	height    int
}

func NewThumbnailChunk(
	store port.JobStore,
	storage port.ObjectStore,
	transform port.MediaTransform,
	publisher port.TaskPublisher,
	failures *FailureReporter,
	logger *zap.Logger,
	tempDir string,
	height int,
) *ThumbnailChunk {
	return &ThumbnailChunk{
		store:     store,
		storage:   storage,
		transform: transform,
		publisher: publisher,
		failures:  failures,
		logger:    logger,
		tempDir:   tempDir,
		height:    height,
	}
}

func (uc *ThumbnailChunk) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ThumbnailChunk.Execute")
	defer span.End()

	start := time.Now()

	var task entity.ChunkTask
	if err := json.Unmarshal(rawMsg, &task); err != nil {
		uc.logger.Error("failed to unmarshal chunk task", zap.Error(err), zap.ByteString("body", rawMsg))
		uc.failures.poison(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", task.JobID.String()),
		attribute.Int("job.chunk_index", task.ChunkIndex),
	)
	log := uc.logger.With(
		zap.String("job_id", task.JobID.String()),
		zap.Int("chunk_index", task.ChunkIndex),
	)

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if _, err := uc.store.AtomicIncrement(ctx, task.JobID, entity.FieldThumbnailBusy); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			log.Warn("chunk task for unknown job, dropping", zap.Error(err))
			uc.failures.poison(ctx, rawMsg, "unknown_job: "+task.JobID.String())
			return nil
		}
		return fmt.Errorf("increment thumbnail busy: %w", err)
	}

	workDir, err := scratchDir(uc.tempDir)
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	chunkPath := scratchFile(workDir, ".mp4")
	if err := uc.storage.Download(ctx, entity.NewChunkRef(task.JobID, entity.ArtifactChunkOriginal, task.ChunkIndex), chunkPath); err != nil {
		return fmt.Errorf("download chunk: %w", err)
	}

	thumbPath := scratchFile(workDir, ".jpg")
	if err := uc.transform.ExtractThumbnail(ctx, chunkPath, thumbPath, uc.height); err != nil {
		return fmt.Errorf("extract thumbnail for chunk %d: %w", task.ChunkIndex, err)
	}

	if err := uc.storage.Upload(ctx, entity.NewChunkRef(task.JobID, entity.ArtifactThumbnail, task.ChunkIndex), thumbPath); err != nil {
		return fmt.Errorf("upload thumbnail: %w", err)
	}

	res, err := uc.store.MarkChunkDone(ctx, task.JobID, entity.ChunkStageThumbnail, task.ChunkIndex)
	if err != nil {
		return fmt.Errorf("mark thumbnail done: %w", err)
	}
	if !res.WasNew {
		log.Info("chunk already counted, redelivery treated as no-op")
	}

	// Complete, not Reached: a redelivered final chunk re-emits the signal
	// in case the first publish failed after the count committed. The strip
	// assembler is idempotent, so a duplicate signal is harmless.
	if res.Complete() {
		if err := publishStageDone(ctx, uc.publisher, task.JobID, entity.ChunkStageThumbnail, res.Total); err != nil {
			return err
		}
		log.Info("thumbnail stage complete, strip assembly triggered",
			zap.Int("total_chunks", res.Total),
			zap.Bool("reemitted", !res.WasNew),
		)
	}

	metrics.ChunksProcessedTotal.WithLabelValues(entity.StageThumbnailChunk.String()).Inc()
	metrics.StageDuration.WithLabelValues(entity.StageThumbnailChunk.String()).Observe(time.Since(start).Seconds())
	log.Info("chunk thumbnailed", zap.Int("done", res.Count))
	return nil
}
