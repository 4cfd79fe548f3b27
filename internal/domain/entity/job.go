package entity

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Job is the shared per-job record. It is created once, mutated concurrently
// by the stage handlers, and only ever updated through the store's merge and
// conditional-write primitives. Revision changes on every write and backs the
// optimistic concurrency protocol.
type Job struct {
	ID            uuid.UUID
	Status        JobStatus
	ChunkUploaded int
	TotalChunks   int // 0 until the splitter finalizes the count

	WatermarkBusy int
	ThumbnailBusy int

	// Chunk indices already counted per stage, kept sorted. Recording an
	// index instead of bumping a bare counter keeps redelivered chunk tasks
	// from advancing the barrier twice.
	WatermarkedChunks []int
	ThumbnailedChunks []int

	VideoConcatenated     bool
	ThumbnailConcatenated bool

	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time

	Revision int64
}

func NewJob(id uuid.UUID) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WatermarkDone is the number of chunks whose watermarking has been counted.
func (j *Job) WatermarkDone() int { return len(j.WatermarkedChunks) }

// ThumbnailDone is the number of chunks whose thumbnail has been counted.
func (j *Job) ThumbnailDone() int { return len(j.ThumbnailedChunks) }

// Done reports externally visible completion: both fan-in stages finished.
func (j *Job) Done() bool { return j.VideoConcatenated && j.ThumbnailConcatenated }

func (j *Job) ChunkCounted(stage ChunkStage, index int) bool {
	_, found := slices.BinarySearch(j.doneSet(stage), index)
	return found
}

// RecordChunkDone adds index to the stage's done-set. It returns the new
// count and whether the index was newly recorded. Callers must persist the
// mutation under a revision check for the count to be trustworthy.
func (j *Job) RecordChunkDone(stage ChunkStage, index int) (count int, wasNew bool) {
	set := j.doneSet(stage)
	pos, found := slices.BinarySearch(set, index)
	if found {
		return len(set), false
	}
	set = slices.Insert(set, pos, index)
	j.setDoneSet(stage, set)
	return len(set), true
}

// RecordedSet exposes the stage's done-set for persistence adapters.
func (j *Job) RecordedSet(stage ChunkStage) []int {
	return j.doneSet(stage)
}

func (j *Job) doneSet(stage ChunkStage) []int {
	if stage == ChunkStageWatermark {
		return j.WatermarkedChunks
	}
	return j.ThumbnailedChunks
}

func (j *Job) setDoneSet(stage ChunkStage, set []int) {
	if stage == ChunkStageWatermark {
		j.WatermarkedChunks = set
	} else {
		j.ThumbnailedChunks = set
	}
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) MarkCompleted() {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy so store snapshots cannot alias live state.
func (j *Job) Clone() *Job {
	c := *j
	c.WatermarkedChunks = slices.Clone(j.WatermarkedChunks)
	c.ThumbnailedChunks = slices.Clone(j.ThumbnailedChunks)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// JobUpdate is a partial merge write. Nil fields are left untouched. Merge
// writes skip the revision check and are only safe for fields with a single
// writer identity: the splitter owns ChunkUploaded, each fan-in handler owns
// its own concat flag.
type JobUpdate struct {
	Status                *JobStatus
	ChunkUploaded         *int
	VideoConcatenated     *bool
	ThumbnailConcatenated *bool
	ErrorMessage          *string
	CompletedAt           *time.Time
}

// Apply copies the set fields onto the job and stamps UpdatedAt.
func (u JobUpdate) Apply(j *Job) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.ChunkUploaded != nil {
		j.ChunkUploaded = *u.ChunkUploaded
	}
	if u.VideoConcatenated != nil {
		j.VideoConcatenated = *u.VideoConcatenated
	}
	if u.ThumbnailConcatenated != nil {
		j.ThumbnailConcatenated = *u.ThumbnailConcatenated
	}
	if u.ErrorMessage != nil {
		j.ErrorMessage = *u.ErrorMessage
	}
	if u.CompletedAt != nil {
		j.CompletedAt = u.CompletedAt
	}
	j.UpdatedAt = time.Now().UTC()
}

// CounterField names the informational counters that go through the raw
// atomic-increment primitive. The done counts are not here: they advance only
// through the per-chunk done-sets.
type CounterField string

const (
	FieldWatermarkBusy CounterField = "watermark_busy"
	FieldThumbnailBusy CounterField = "thumbnail_busy"
)

// Bump applies the counter to an in-memory job and returns the new value.
func (f CounterField) Bump(j *Job) int {
	switch f {
	case FieldWatermarkBusy:
		j.WatermarkBusy++
		return j.WatermarkBusy
	case FieldThumbnailBusy:
		j.ThumbnailBusy++
		return j.ThumbnailBusy
	}
	return 0
}
