package usecase

import (
	"context"
	"fmt"
	"os"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RelocateWatermark copies the watermark image from a client-provided URL into
// internal storage under the job's key, so chunk workers never touch external
// URLs. Must finish before the first watermark task can run.
type RelocateWatermark struct {
	storage port.ObjectStore
	logger  *zap.Logger
	tempDir string
}

func NewRelocateWatermark(storage port.ObjectStore, logger *zap.Logger, tempDir string) *RelocateWatermark {
	return &RelocateWatermark{storage: storage, logger: logger, tempDir: tempDir}
}

func (uc *RelocateWatermark) Execute(ctx context.Context, jobID uuid.UUID, imageRef string) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "RelocateWatermark.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID.String()))

	if imageRef == "" {
		return fmt.Errorf("%w: empty image ref", entity.ErrInvalidInput)
	}

	workDir, err := scratchDir(uc.tempDir)
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	imagePath := scratchFile(workDir, ".jpg")
	if err := uc.storage.FetchExternal(ctx, imageRef, imagePath); err != nil {
		return fmt.Errorf("fetch watermark image: %w", err)
	}

	if err := uc.storage.Upload(ctx, entity.NewArtifactRef(jobID, entity.ArtifactWatermark), imagePath); err != nil {
		return fmt.Errorf("upload watermark image: %w", err)
	}

	uc.logger.Info("watermark relocated", zap.String("job_id", jobID.String()))
	return nil
}
