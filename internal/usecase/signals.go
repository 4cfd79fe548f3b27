package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/Milan232323/watermarking1/internal/infra/metrics"
	"github.com/google/uuid"
)

// publishStageDone emits the single fan-in trigger for a chunk stage. Callers
// must hold the barrier decision (port.BarrierResult.Reached or the
// splitter's finalize snapshot) before calling.
func publishStageDone(ctx context.Context, pub port.TaskPublisher, jobID uuid.UUID, stage entity.ChunkStage, total int) error {
	signal := entity.StageDoneSignal{JobID: jobID, ExpectedCount: total}
	body, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("marshal stage done signal: %w", err)
	}
	if err := pub.Publish(ctx, stage.DoneQueue(), body); err != nil {
		return fmt.Errorf("emit %s done: %w", stage, err)
	}
	metrics.BarrierTriggersTotal.WithLabelValues(stage.String()).Inc()
	return nil
}
