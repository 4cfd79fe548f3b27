package postgres

import (
	"testing"
	"time"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeAssignmentsRendersOnlySetFields(t *testing.T) {
	video := true
	set, args := mergeAssignments(entity.JobUpdate{VideoConcatenated: &video})

	require.Equal(t, []string{"video_concatenated=$2"}, set,
		"one fan-in handler's merge must never name the sibling's column")
	require.Equal(t, []any{true}, args)
}

func TestMergeAssignmentsEmptyUpdate(t *testing.T) {
	set, args := mergeAssignments(entity.JobUpdate{})
	assert.Empty(t, set)
	assert.Empty(t, args)
}

func TestMergeAssignmentsFailureUpdate(t *testing.T) {
	status := entity.JobStatusFailed
	msg := "encoder crashed"
	set, args := mergeAssignments(entity.JobUpdate{Status: &status, ErrorMessage: &msg})

	require.Equal(t, []string{"status=$2", "error_message=$3"}, set)
	require.Equal(t, []any{"FAILED", "encoder crashed"}, args)
}

func TestMergeAssignmentsCompletionUpdate(t *testing.T) {
	status := entity.JobStatusCompleted
	thumb := true
	now := time.Now().UTC()
	set, args := mergeAssignments(entity.JobUpdate{
		Status:                &status,
		ThumbnailConcatenated: &thumb,
		CompletedAt:           &now,
	})

	require.Equal(t, []string{"status=$2", "thumbnail_concatenated=$3", "completed_at=$4"}, set)
	require.Equal(t, []any{"COMPLETED", true, now}, args)
}

func TestCounterColumn(t *testing.T) {
	col, err := counterColumn(entity.FieldWatermarkBusy)
	require.NoError(t, err)
	assert.Equal(t, "watermark_busy", col)

	col, err = counterColumn(entity.FieldThumbnailBusy)
	require.NoError(t, err)
	assert.Equal(t, "thumbnail_busy", col)

	_, err = counterColumn(entity.CounterField("bogus"))
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}
