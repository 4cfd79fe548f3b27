package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/google/uuid"
)

// JobStore keeps jobs in process memory with the same revision semantics as
// the Postgres store: every write bumps the revision, and the conditional
// primitives retry on mismatch. Used by unit tests and single-node runs.
type JobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*entity.Job
}

var _ port.JobStore = (*JobStore)(nil)

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]*entity.Job)}
}

func (s *JobStore) Create(_ context.Context, job *entity.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("create job %s: %w", job.ID, entity.ErrAlreadyExists)
	}
	stored := job.Clone()
	stored.Revision = 1
	s.jobs[job.ID] = stored
	job.Revision = stored.Revision
	return nil
}

func (s *JobStore) Get(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(id)
}

func (s *JobStore) Merge(_ context.Context, id uuid.UUID, update entity.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("merge job %s: %w", id, entity.ErrNotFound)
	}
	update.Apply(job)
	job.Revision++
	return nil
}

func (s *JobStore) AtomicIncrement(ctx context.Context, id uuid.UUID, field entity.CounterField) (int, error) {
	for {
		snap, err := s.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		value := field.Bump(snap)
		if err := s.compareAndSwap(snap); err != nil {
			if err == entity.ErrConflict {
				continue
			}
			return 0, err
		}
		return value, nil
	}
}

func (s *JobStore) MarkChunkDone(ctx context.Context, id uuid.UUID, stage entity.ChunkStage, index int) (port.BarrierResult, error) {
	for {
		snap, err := s.Get(ctx, id)
		if err != nil {
			return port.BarrierResult{}, err
		}
		count, wasNew := snap.RecordChunkDone(stage, index)
		if !wasNew {
			return port.BarrierResult{Count: count, Total: snap.TotalChunks, WasNew: false}, nil
		}
		if err := s.compareAndSwap(snap); err != nil {
			if err == entity.ErrConflict {
				continue
			}
			return port.BarrierResult{}, err
		}
		return port.BarrierResult{Count: count, Total: snap.TotalChunks, WasNew: true}, nil
	}
}

func (s *JobStore) FinalizeTotal(ctx context.Context, id uuid.UUID, total int) (*entity.Job, error) {
	for {
		snap, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		snap.TotalChunks = total
		if err := s.compareAndSwap(snap); err != nil {
			if err == entity.ErrConflict {
				continue
			}
			return nil, err
		}
		return snap, nil
	}
}

// compareAndSwap installs the mutated snapshot if its revision still matches
// the stored record, mirroring an etag-conditioned table update.
func (s *JobStore) compareAndSwap(snap *entity.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[snap.ID]
	if !ok {
		return fmt.Errorf("cas job %s: %w", snap.ID, entity.ErrNotFound)
	}
	if current.Revision != snap.Revision {
		return entity.ErrConflict
	}
	stored := snap.Clone()
	stored.Revision++
	s.jobs[snap.ID] = stored
	snap.Revision = stored.Revision
	return nil
}

func (s *JobStore) snapshot(id uuid.UUID) (*entity.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get job %s: %w", id, entity.ErrNotFound)
	}
	return job.Clone(), nil
}
