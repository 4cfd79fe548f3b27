package usecase

import (
	"context"
	"fmt"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/google/uuid"
)

// Progress is the client-facing snapshot of a job. Percent weights the two
// chunk tracks at 40 points each and the two concat stages at 10 each, so a
// fully processed but unassembled job reads 80.
type Progress struct {
	JobID        uuid.UUID        `json:"job_id"`
	Status       entity.JobStatus `json:"status"`
	Percent      int              `json:"percent"`
	Done         bool             `json:"done"`
	TotalChunks  int              `json:"total_chunks"`
	Watermarked  int              `json:"watermarked_chunks"`
	Thumbnailed  int              `json:"thumbnailed_chunks"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// GetProgress reads the job record and derives the progress view. Read-only.
type GetProgress struct {
	store port.JobStore
}

func NewGetProgress(store port.JobStore) *GetProgress {
	return &GetProgress{store: store}
}

func (uc *GetProgress) Execute(ctx context.Context, jobID uuid.UUID) (Progress, error) {
	job, err := uc.store.Get(ctx, jobID)
	if err != nil {
		return Progress{}, fmt.Errorf("load job: %w", err)
	}

	p := Progress{
		JobID:        job.ID,
		Status:       job.Status,
		Done:         job.Done(),
		TotalChunks:  job.TotalChunks,
		Watermarked:  job.WatermarkDone(),
		Thumbnailed:  job.ThumbnailDone(),
		ErrorMessage: job.ErrorMessage,
	}

	// Until the splitter finalizes the total the chunk tracks contribute
	// nothing; only the concat flags could move the needle, and they cannot
	// be set yet.
	if job.TotalChunks > 0 {
		p.Percent += 40 * job.WatermarkDone() / job.TotalChunks
		p.Percent += 40 * job.ThumbnailDone() / job.TotalChunks
	}
	if job.VideoConcatenated {
		p.Percent += 10
	}
	if job.ThumbnailConcatenated {
		p.Percent += 10
	}
	return p, nil
}
