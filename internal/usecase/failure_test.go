package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetriesExhaustedMarksJobFailed(t *testing.T) {
	env := newPipelineEnv(t, 3)
	jobID := uuid.New()
	require.NoError(t, env.store.Create(context.Background(), entity.NewJob(jobID)))

	env.failures.RetriesExhausted(context.Background(),
		chunkTaskBody(t, jobID, 0), entity.StageWatermarkChunk, fmt.Errorf("encoder crashed"))

	job, err := env.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "encoder crashed")
	assert.Len(t, env.notifier.calls, 1)
}

func TestRetriesExhaustedWithoutJobID(t *testing.T) {
	env := newPipelineEnv(t, 3)

	env.failures.RetriesExhausted(context.Background(),
		[]byte("{not json"), entity.StageWatermarkChunk, fmt.Errorf("boom"))

	assert.Empty(t, env.notifier.calls, "no job to fail, logged only")
}
