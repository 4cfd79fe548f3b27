package usecase

import (
	"context"
	"fmt"

	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cleanup deletes every stored blob carrying the job's prefix: chunks,
// thumbnails, the relocated watermark, and the final outputs. The job record
// itself is kept for audit.
type Cleanup struct {
	storage port.ObjectStore
	logger  *zap.Logger
}

func NewCleanup(storage port.ObjectStore, logger *zap.Logger) *Cleanup {
	return &Cleanup{storage: storage, logger: logger}
}

func (uc *Cleanup) Execute(ctx context.Context, jobID uuid.UUID) (int, error) {
	deleted, err := uc.storage.DeleteJobFiles(ctx, jobID)
	if err != nil {
		return deleted, fmt.Errorf("delete job files: %w", err)
	}
	uc.logger.Info("job files removed",
		zap.String("job_id", jobID.String()),
		zap.Int("deleted", deleted),
	)
	return deleted, nil
}
