package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/Milan232323/watermarking1/internal/infra/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RunPipeline is the single entry point for a new job: create the record,
// relocate the watermark image, split the video and fan out the chunk tasks.
// Everything after the split is driven by the queues. If any step fails the
// job is marked FAILED rather than left half-scheduled.
type RunPipeline struct {
	store     port.JobStore
	relocate  *RelocateWatermark
	split     *SplitVideo
	failures  *FailureReporter
	logger    *zap.Logger
	chunkSize int
}

func NewRunPipeline(
	store port.JobStore,
	relocate *RelocateWatermark,
	split *SplitVideo,
	failures *FailureReporter,
	logger *zap.Logger,
	chunkSize int,
) *RunPipeline {
	return &RunPipeline{
		store:     store,
		relocate:  relocate,
		split:     split,
		failures:  failures,
		logger:    logger,
		chunkSize: chunkSize,
	}
}

// Execute starts the pipeline and returns the new job's id. A zero chunkSize
// selects the configured default.
func (uc *RunPipeline) Execute(ctx context.Context, videoRef, imageRef string, chunkSize int) (uuid.UUID, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "RunPipeline.Execute")
	defer span.End()

	start := time.Now()

	if videoRef == "" {
		return uuid.Nil, fmt.Errorf("%w: empty video ref", entity.ErrInvalidInput)
	}
	if imageRef == "" {
		return uuid.Nil, fmt.Errorf("%w: empty image ref", entity.ErrInvalidInput)
	}
	if chunkSize == 0 {
		chunkSize = uc.chunkSize
	}
	if chunkSize < 0 {
		return uuid.Nil, fmt.Errorf("%w: negative chunk_size", entity.ErrInvalidInput)
	}

	jobID := uuid.New()
	span.SetAttributes(attribute.String("job.id", jobID.String()))
	log := uc.logger.With(zap.String("job_id", jobID.String()))

	if err := uc.store.Create(ctx, entity.NewJob(jobID)); err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}
	metrics.JobsTotal.WithLabelValues("created").Inc()

	if err := uc.relocate.Execute(ctx, jobID, imageRef); err != nil {
		uc.failures.failJob(ctx, jobID, entity.StageSplit, err.Error())
		return jobID, err
	}

	if err := uc.split.Execute(ctx, jobID, videoRef, chunkSize); err != nil {
		uc.failures.failJob(ctx, jobID, entity.StageSplit, err.Error())
		return jobID, err
	}

	log.Info("pipeline started",
		zap.Int("chunk_size", chunkSize),
		zap.Duration("setup_took", time.Since(start)),
	)
	return jobID, nil
}
