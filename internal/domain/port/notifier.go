package port

import "context"

// FailureNotifier tells someone a job failed permanently.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, userEmail string, jobID string, stage string, errorMsg string) error
}
