package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRecordChunkDone(t *testing.T) {
	job := NewJob(uuid.New())

	count, wasNew := job.RecordChunkDone(ChunkStageWatermark, 2)
	assert.Equal(t, 1, count)
	assert.True(t, wasNew)

	count, wasNew = job.RecordChunkDone(ChunkStageWatermark, 0)
	assert.Equal(t, 2, count)
	assert.True(t, wasNew)

	// Duplicate index is a no-op.
	count, wasNew = job.RecordChunkDone(ChunkStageWatermark, 2)
	assert.Equal(t, 2, count)
	assert.False(t, wasNew)

	assert.Equal(t, []int{0, 2}, job.WatermarkedChunks, "set stays sorted")
	assert.Equal(t, 0, job.ThumbnailDone(), "tracks are independent")

	assert.True(t, job.ChunkCounted(ChunkStageWatermark, 0))
	assert.False(t, job.ChunkCounted(ChunkStageWatermark, 1))
	assert.False(t, job.ChunkCounted(ChunkStageThumbnail, 0))
}

func TestJobDone(t *testing.T) {
	job := NewJob(uuid.New())
	assert.False(t, job.Done())

	job.VideoConcatenated = true
	assert.False(t, job.Done())

	job.ThumbnailConcatenated = true
	assert.True(t, job.Done())
}

func TestJobUpdateApply(t *testing.T) {
	job := NewJob(uuid.New())
	before := job.UpdatedAt

	status := JobStatusProcessing
	uploaded := 4
	JobUpdate{Status: &status, ChunkUploaded: &uploaded}.Apply(job)

	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, 4, job.ChunkUploaded)
	assert.False(t, job.UpdatedAt.Before(before))

	// Unset fields stay untouched.
	JobUpdate{}.Apply(job)
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, 4, job.ChunkUploaded)
}

func TestCloneIsDeep(t *testing.T) {
	job := NewJob(uuid.New())
	job.RecordChunkDone(ChunkStageWatermark, 0)

	clone := job.Clone()
	clone.RecordChunkDone(ChunkStageWatermark, 1)
	clone.MarkCompleted()

	assert.Equal(t, 1, job.WatermarkDone())
	assert.Equal(t, 2, clone.WatermarkDone())
	assert.Nil(t, job.CompletedAt)
	assert.NotNil(t, clone.CompletedAt)
}

func TestCounterFieldBump(t *testing.T) {
	job := NewJob(uuid.New())

	assert.Equal(t, 1, FieldWatermarkBusy.Bump(job))
	assert.Equal(t, 2, FieldWatermarkBusy.Bump(job))
	assert.Equal(t, 1, FieldThumbnailBusy.Bump(job))
	assert.Equal(t, 2, job.WatermarkBusy)
	assert.Equal(t, 1, job.ThumbnailBusy)
}
