package usecase

import (
	"context"
	"encoding/json"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/Milan232323/watermarking1/internal/infra/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FailureReporter centralizes what happens when a job dies for good: the job
// record gets a terminal FAILED status with the reason, the triggering
// message is parked on the DLQ, and someone is told.
type FailureReporter struct {
	store    port.JobStore
	dlq      port.DLQPublisher
	notifier port.FailureNotifier
	notifyTo string
	logger   *zap.Logger
}

func NewFailureReporter(store port.JobStore, dlq port.DLQPublisher, notifier port.FailureNotifier, notifyTo string, logger *zap.Logger) *FailureReporter {
	return &FailureReporter{store: store, dlq: dlq, notifier: notifier, notifyTo: notifyTo, logger: logger}
}

// poison parks a message that can never succeed (bad JSON, unknown job).
func (f *FailureReporter) poison(ctx context.Context, rawMsg []byte, reason string) {
	if err := f.dlq.PublishToDLQ(ctx, rawMsg, reason); err != nil {
		f.logger.Error("failed to publish to DLQ", zap.String("reason", reason), zap.Error(err))
	}
	metrics.JobsTotal.WithLabelValues("dlq").Inc()
}

// RetriesExhausted marks the owning job FAILED once a message's delivery
// attempts ran out. The consumer has already parked the message on the DLQ;
// both pipeline message types carry the job id under the same JSON key.
func (f *FailureReporter) RetriesExhausted(ctx context.Context, rawMsg []byte, stage entity.Stage, cause error) {
	var envelope struct {
		JobID uuid.UUID `json:"job_id"`
	}
	if err := json.Unmarshal(rawMsg, &envelope); err != nil || envelope.JobID == uuid.Nil {
		f.logger.Error("exhausted message carries no job id", zap.ByteString("body", rawMsg))
		return
	}
	f.failJob(ctx, envelope.JobID, stage, cause.Error())
}

// failJob marks the job FAILED and notifies. Used when a stage error is
// permanent rather than worth redelivery.
func (f *FailureReporter) failJob(ctx context.Context, jobID uuid.UUID, stage entity.Stage, errMsg string) {
	status := entity.JobStatusFailed
	update := entity.JobUpdate{Status: &status, ErrorMessage: &errMsg}
	if err := f.store.Merge(ctx, jobID, update); err != nil {
		f.logger.Error("failed to mark job FAILED",
			zap.String("job_id", jobID.String()),
			zap.Error(err),
		)
	}
	metrics.JobsTotal.WithLabelValues("failed").Inc()

	if f.notifier != nil && f.notifyTo != "" {
		_ = f.notifier.NotifyFailure(ctx, f.notifyTo, jobID.String(), stage.String(), errMsg)
	}
}
