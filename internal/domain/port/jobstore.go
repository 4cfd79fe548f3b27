package port

import (
	"context"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/google/uuid"
)

// BarrierResult is the state observed by a successful conditional write, the
// only state a fan-in decision may be based on. Count and Total are the
// stage's done count and the chunk total as of that write.
type BarrierResult struct {
	Count  int
	Total  int
	WasNew bool
}

// Complete reports that the done-set covers the whole chunk total as of this
// write. Unlike Reached it also holds on redelivery of an already counted
// chunk, which lets a handler re-emit a fan-in signal whose first publish
// failed after the count committed.
func (r BarrierResult) Complete() bool {
	return r.Total > 0 && r.Count == r.Total
}

// Reached reports whether this write is the unique one that completed the
// stage: the barrier fires at most once per job and stage because the writes
// are serialized by the revision token.
func (r BarrierResult) Reached() bool {
	return r.WasNew && r.Complete()
}

// JobStore is the durable per-job record with optimistic-concurrency updates.
type JobStore interface {
	// Create inserts a zero-initialized record; entity.ErrAlreadyExists on
	// id reuse.
	Create(ctx context.Context, job *entity.Job) error

	// Get returns a snapshot including its revision; entity.ErrNotFound if
	// the job does not exist.
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)

	// Merge writes only the fields the update sets, each owned by a single
	// writer. Unset fields are never touched, so concurrent merges of
	// different fields cannot clobber each other.
	Merge(ctx context.Context, id uuid.UUID, update entity.JobUpdate) error

	// AtomicIncrement bumps a counter through a read/conditional-write loop
	// and returns the post-increment value. Revision conflicts are retried
	// internally without bound.
	AtomicIncrement(ctx context.Context, id uuid.UUID, field entity.CounterField) (int, error)

	// MarkChunkDone records a chunk index in the stage's done-set under the
	// same conditional-write loop. Re-recording a counted index is a no-op
	// with WasNew=false, which makes redelivered tasks harmless.
	MarkChunkDone(ctx context.Context, id uuid.UUID, stage entity.ChunkStage, index int) (BarrierResult, error)

	// FinalizeTotal sets TotalChunks conditionally and returns the post-write
	// snapshot, so the splitter can detect a barrier that was already
	// satisfied before the total became known.
	FinalizeTotal(ctx context.Context, id uuid.UUID, total int) (*entity.Job, error)
}
