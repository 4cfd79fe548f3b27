package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func stageDoneBody(t *testing.T, jobID uuid.UUID, total int) []byte {
	t.Helper()
	body, err := json.Marshal(entity.StageDoneSignal{JobID: jobID, ExpectedCount: total})
	require.NoError(t, err)
	return body
}

func (env *pipelineEnv) concatVideoUsecase() *ConcatVideo {
	return NewConcatVideo(env.store, env.storage, env.transform, env.failures, zap.NewNop(), env.tempDir)
}

func (env *pipelineEnv) concatThumbnailsUsecase() *ConcatThumbnails {
	return NewConcatThumbnails(env.store, env.storage, env.transform, env.failures, zap.NewNop(), env.tempDir)
}

func TestConcatVideoAssemblesChunksInOrder(t *testing.T) {
	env := newPipelineEnv(t, 3)
	jobID := uuid.New()
	require.NoError(t, env.store.Create(context.Background(), entity.NewJob(jobID)))

	env.storage.seed(entity.NewChunkRef(jobID, entity.ArtifactChunkModified, 0), []byte("A;"))
	env.storage.seed(entity.NewChunkRef(jobID, entity.ArtifactChunkModified, 1), []byte("B;"))
	env.storage.seed(entity.NewChunkRef(jobID, entity.ArtifactChunkModified, 2), []byte("C;"))

	require.NoError(t, env.concatVideoUsecase().Execute(context.Background(), stageDoneBody(t, jobID, 3)))

	output, ok := env.storage.get(entity.NewArtifactRef(jobID, entity.ArtifactOutputVideo))
	require.True(t, ok)
	assert.Equal(t, "A;B;C;", string(output), "chunks must concatenate in index order")

	job, err := env.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.True(t, job.VideoConcatenated)
	assert.False(t, job.Done(), "thumbnail strip still pending")
	assert.NotEqual(t, entity.JobStatusCompleted, job.Status)
}

func TestSecondConcatCompletesJob(t *testing.T) {
	env := newPipelineEnv(t, 2)
	jobID := uuid.New()
	require.NoError(t, env.store.Create(context.Background(), entity.NewJob(jobID)))

	for i := 0; i < 2; i++ {
		env.storage.seed(entity.NewChunkRef(jobID, entity.ArtifactChunkModified, i), []byte("v"))
		env.storage.seed(entity.NewChunkRef(jobID, entity.ArtifactThumbnail, i), []byte("t"))
	}

	require.NoError(t, env.concatVideoUsecase().Execute(context.Background(), stageDoneBody(t, jobID, 2)))
	require.NoError(t, env.concatThumbnailsUsecase().Execute(context.Background(), stageDoneBody(t, jobID, 2)))

	job, err := env.store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.True(t, job.Done())
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)

	_, ok := env.storage.get(entity.NewArtifactRef(jobID, entity.ArtifactOutputThumbnail))
	assert.True(t, ok)
}

func TestConcatMissingChunkFails(t *testing.T) {
	env := newPipelineEnv(t, 3)
	jobID := uuid.New()
	require.NoError(t, env.store.Create(context.Background(), entity.NewJob(jobID)))

	env.storage.seed(entity.NewChunkRef(jobID, entity.ArtifactChunkModified, 0), []byte("A;"))
	// Chunk 1 missing.

	err := env.concatVideoUsecase().Execute(context.Background(), stageDoneBody(t, jobID, 2))
	require.Error(t, err)

	_, ok := env.storage.get(entity.NewArtifactRef(jobID, entity.ArtifactOutputVideo))
	assert.False(t, ok)
}

func TestConcatPoisonSignalGoesToDLQ(t *testing.T) {
	env := newPipelineEnv(t, 1)

	require.NoError(t, env.concatVideoUsecase().Execute(context.Background(), []byte("nope")))
	require.Len(t, env.dlq.messages, 1)

	require.NoError(t, env.concatThumbnailsUsecase().Execute(context.Background(), stageDoneBody(t, uuid.New(), 0)))
	require.Len(t, env.dlq.messages, 2)
	assert.Contains(t, env.dlq.messages[1], "expected_count")
}
