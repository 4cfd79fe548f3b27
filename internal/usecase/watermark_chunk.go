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

// WatermarkChunk consumes one ChunkTask from the watermark queue: fetch the
// original chunk and the watermark image, composite, upload the result, then
// record completion. The done-set write is the last action, so a failed run
// never advances the barrier and redelivery simply re-does the work.
type WatermarkChunk struct {
	store     port.JobStore
	storage   port.ObjectStore
	transform port.MediaTransform
	publisher port.TaskPublisher
	failures  *FailureReporter
	logger    *zap.Logger
	tempDir   string
	alpha     float64
}

func NewWatermarkChunk(
	store port.JobStore,
	storage port.ObjectStore,
	transform port.MediaTransform,
	publisher port.TaskPublisher,
	failures *FailureReporter,
	logger *zap.Logger,
	tempDir string,
	alpha float64,
) *WatermarkChunk {
	return &WatermarkChunk{
		store:     store,
		storage:   storage,
		transform: transform,
		publisher: publisher,
		failures:  failures,
		logger:    logger,
		tempDir:   tempDir,
		alpha:     alpha,
	}
}

func (uc *WatermarkChunk) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "WatermarkChunk.Execute")
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

	// Informational only; correctness rests on the done-set, not this.
	if _, err := uc.store.AtomicIncrement(ctx, task.JobID, entity.FieldWatermarkBusy); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			log.Warn("chunk task for unknown job, dropping", zap.Error(err))
			uc.failures.poison(ctx, rawMsg, "unknown_job: "+task.JobID.String())
			return nil
		}
		return fmt.Errorf("increment watermark busy: %w", err)
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

	watermarkPath := scratchFile(workDir, ".jpg")
	if err := uc.storage.Download(ctx, entity.NewArtifactRef(task.JobID, entity.ArtifactWatermark), watermarkPath); err != nil {
		return fmt.Errorf("download watermark: %w", err)
	}

	outputPath := scratchFile(workDir, ".mp4")
	if err := uc.transform.WatermarkChunk(ctx, chunkPath, watermarkPath, outputPath, uc.alpha); err != nil {
		return fmt.Errorf("watermark chunk %d: %w", task.ChunkIndex, err)
	}

	if err := uc.storage.Upload(ctx, entity.NewChunkRef(task.JobID, entity.ArtifactChunkModified, task.ChunkIndex), outputPath); err != nil {
		return fmt.Errorf("upload watermarked chunk: %w", err)
	}

	res, err := uc.store.MarkChunkDone(ctx, task.JobID, entity.ChunkStageWatermark, task.ChunkIndex)
	if err != nil {
		return fmt.Errorf("mark watermark done: %w", err)
	}
	if !res.WasNew {
		log.Info("chunk already counted, redelivery treated as no-op")
	}

	// Complete, not Reached: a redelivered final chunk re-emits the signal
	// in case the first publish failed after the count committed. The concat
	// handler is idempotent, so a duplicate signal is harmless.
	if res.Complete() {
		if err := publishStageDone(ctx, uc.publisher, task.JobID, entity.ChunkStageWatermark, res.Total); err != nil {
			return err
		}
		log.Info("watermark stage complete, concat triggered",
			zap.Int("total_chunks", res.Total),
			zap.Bool("reemitted", !res.WasNew),
		)
	}

	metrics.ChunksProcessedTotal.WithLabelValues(entity.StageWatermarkChunk.String()).Inc()
	metrics.StageDuration.WithLabelValues(entity.StageWatermarkChunk.String()).Observe(time.Since(start).Seconds())
	log.Info("chunk watermarked", zap.Int("done", res.Count))
	return nil
}
