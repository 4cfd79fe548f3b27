package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/Milan232323/watermarking1/internal/domain/port"
	"github.com/Milan232323/watermarking1/internal/infra/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// JobStore persists jobs in Postgres. The revision column serializes the
// conditional writes: an UPDATE guarded by the revision read earlier affects
// zero rows when another writer got there first, and the caller's loop
// re-reads and retries.
type JobStore struct {
	pool *pgxpool.Pool
}

var _ port.JobStore = (*JobStore)(nil)

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

const jobColumns = `
	id, status, chunk_uploaded, total_chunks,
	watermark_busy, thumbnail_busy,
	watermarked_chunks, thumbnailed_chunks,
	video_concatenated, thumbnail_concatenated,
	error_message, created_at, updated_at, completed_at, revision`

func (s *JobStore) Create(ctx context.Context, job *entity.Job) error {
	query := `
		INSERT INTO watermark_jobs (` + jobColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,1)`

	_, err := s.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.ChunkUploaded, job.TotalChunks,
		job.WatermarkBusy, job.ThumbnailBusy,
		intArray(job.WatermarkedChunks), intArray(job.ThumbnailedChunks),
		job.VideoConcatenated, job.ThumbnailConcatenated,
		job.ErrorMessage, job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("insert job %s: %w", job.ID, entity.ErrAlreadyExists)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	job.Revision = 1
	return nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM watermark_jobs WHERE id=$1`

	job := &entity.Job{}
	var status string
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &status, &job.ChunkUploaded, &job.TotalChunks,
		&job.WatermarkBusy, &job.ThumbnailBusy,
		&job.WatermarkedChunks, &job.ThumbnailedChunks,
		&job.VideoConcatenated, &job.ThumbnailConcatenated,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
		&job.Revision,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get job %s: %w", id, entity.ErrNotFound)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}

// Merge writes only the columns the update sets. The two fan-in handlers
// merge their concat flags concurrently; a single-statement UPDATE that never
// names the sibling's column cannot clobber it, stale snapshot or not.
func (s *JobStore) Merge(ctx context.Context, id uuid.UUID, update entity.JobUpdate) error {
	assignments, args := mergeAssignments(update)
	if len(assignments) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE watermark_jobs
		SET %s, updated_at=now(), revision=revision+1
		WHERE id=$1`, strings.Join(assignments, ", "))

	tag, err := s.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("merge job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merge job %s: %w", id, entity.ErrNotFound)
	}
	return nil
}

// mergeAssignments renders SET clauses for the update's non-nil fields only.
// Placeholders start at $2; $1 is the job id.
func mergeAssignments(update entity.JobUpdate) ([]string, []any) {
	var set []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s=$%d", column, len(args)+1))
	}
	if update.Status != nil {
		add("status", string(*update.Status))
	}
	if update.ChunkUploaded != nil {
		add("chunk_uploaded", *update.ChunkUploaded)
	}
	if update.VideoConcatenated != nil {
		add("video_concatenated", *update.VideoConcatenated)
	}
	if update.ThumbnailConcatenated != nil {
		add("thumbnail_concatenated", *update.ThumbnailConcatenated)
	}
	if update.ErrorMessage != nil {
		add("error_message", *update.ErrorMessage)
	}
	if update.CompletedAt != nil {
		add("completed_at", *update.CompletedAt)
	}
	return set, args
}

func (s *JobStore) AtomicIncrement(ctx context.Context, id uuid.UUID, field entity.CounterField) (int, error) {
	column, err := counterColumn(field)
	if err != nil {
		return 0, err
	}

	for {
		job, err := s.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		value := field.Bump(job)

		query := fmt.Sprintf(`
			UPDATE watermark_jobs
			SET %s=$2, updated_at=now(), revision=revision+1
			WHERE id=$1 AND revision=$3`, column)

		tag, err := s.pool.Exec(ctx, query, id, value, job.Revision)
		if err != nil {
			return 0, fmt.Errorf("increment %s: %w", column, err)
		}
		if tag.RowsAffected() == 0 {
			metrics.RevisionConflictsTotal.Inc()
			continue // revision moved, retry from the read
		}
		return value, nil
	}
}

func (s *JobStore) MarkChunkDone(ctx context.Context, id uuid.UUID, stage entity.ChunkStage, index int) (port.BarrierResult, error) {
	column := "watermarked_chunks"
	if stage == entity.ChunkStageThumbnail {
		column = "thumbnailed_chunks"
	}

	for {
		job, err := s.Get(ctx, id)
		if err != nil {
			return port.BarrierResult{}, err
		}
		count, wasNew := job.RecordChunkDone(stage, index)
		if !wasNew {
			return port.BarrierResult{Count: count, Total: job.TotalChunks, WasNew: false}, nil
		}

		query := fmt.Sprintf(`
			UPDATE watermark_jobs
			SET %s=$2, updated_at=now(), revision=revision+1
			WHERE id=$1 AND revision=$3`, column)

		tag, err := s.pool.Exec(ctx, query, id, intArray(job.RecordedSet(stage)), job.Revision)
		if err != nil {
			return port.BarrierResult{}, fmt.Errorf("mark %s chunk done: %w", stage, err)
		}
		if tag.RowsAffected() == 0 {
			metrics.RevisionConflictsTotal.Inc()
			continue
		}
		return port.BarrierResult{Count: count, Total: job.TotalChunks, WasNew: true}, nil
	}
}

func (s *JobStore) FinalizeTotal(ctx context.Context, id uuid.UUID, total int) (*entity.Job, error) {
	for {
		job, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		job.TotalChunks = total

		tag, err := s.pool.Exec(ctx, `
			UPDATE watermark_jobs
			SET total_chunks=$2, updated_at=now(), revision=revision+1
			WHERE id=$1 AND revision=$3`, id, total, job.Revision)
		if err != nil {
			return nil, fmt.Errorf("finalize total: %w", err)
		}
		if tag.RowsAffected() == 0 {
			metrics.RevisionConflictsTotal.Inc()
			continue
		}
		job.Revision++
		return job, nil
	}
}

func counterColumn(field entity.CounterField) (string, error) {
	switch field {
	case entity.FieldWatermarkBusy:
		return "watermark_busy", nil
	case entity.FieldThumbnailBusy:
		return "thumbnail_busy", nil
	}
	return "", fmt.Errorf("%w: unknown counter field %q", entity.ErrInvalidInput, field)
}

// intArray keeps empty sets as empty int4[] instead of NULL.
func intArray(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
