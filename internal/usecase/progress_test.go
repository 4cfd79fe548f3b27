package usecase

import (
	"context"
	"testing"

	"github.com/Milan232323/watermarking1/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProgressPercent(t *testing.T) {
	env := newPipelineEnv(t, 4)
	jobID := uuid.New()
	require.NoError(t, env.store.Create(context.Background(), entity.NewJob(jobID)))
	uc := NewGetProgress(env.store)

	p, err := uc.Execute(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Percent)
	assert.False(t, p.Done)
	assert.Equal(t, entity.JobStatusPending, p.Status)

	_, err = env.store.FinalizeTotal(context.Background(), jobID, 4)
	require.NoError(t, err)

	// Two of four chunks watermarked, one thumbnailed: 40*2/4 + 40*1/4.
	for i := 0; i < 2; i++ {
		_, err = env.store.MarkChunkDone(context.Background(), jobID, entity.ChunkStageWatermark, i)
		require.NoError(t, err)
	}
	_, err = env.store.MarkChunkDone(context.Background(), jobID, entity.ChunkStageThumbnail, 0)
	require.NoError(t, err)

	p, err = uc.Execute(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 30, p.Percent)
	assert.Equal(t, 2, p.Watermarked)
	assert.Equal(t, 1, p.Thumbnailed)

	for i := 2; i < 4; i++ {
		_, err = env.store.MarkChunkDone(context.Background(), jobID, entity.ChunkStageWatermark, i)
		require.NoError(t, err)
	}
	for i := 1; i < 4; i++ {
		_, err = env.store.MarkChunkDone(context.Background(), jobID, entity.ChunkStageThumbnail, i)
		require.NoError(t, err)
	}

	p, err = uc.Execute(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 80, p.Percent, "all chunks processed but nothing assembled")
	assert.False(t, p.Done)

	flag := true
	require.NoError(t, env.store.Merge(context.Background(), jobID, entity.JobUpdate{VideoConcatenated: &flag}))
	p, err = uc.Execute(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 90, p.Percent)

	require.NoError(t, env.store.Merge(context.Background(), jobID, entity.JobUpdate{ThumbnailConcatenated: &flag}))
	p, err = uc.Execute(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 100, p.Percent)
	assert.True(t, p.Done)
}

func TestProgressUnknownJob(t *testing.T) {
	env := newPipelineEnv(t, 1)
	_, err := NewGetProgress(env.store).Execute(context.Background(), uuid.New())
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestCleanupRemovesJobBlobs(t *testing.T) {
	env := newPipelineEnv(t, 2)
	jobID := uuid.New()
	other := uuid.New()

	env.storage.seed(entity.NewArtifactRef(jobID, entity.ArtifactWatermark), []byte("w"))
	env.storage.seed(entity.NewChunkRef(jobID, entity.ArtifactChunkOriginal, 0), []byte("c"))
	env.storage.seed(entity.NewArtifactRef(jobID, entity.ArtifactOutputVideo), []byte("o"))
	env.storage.seed(entity.NewArtifactRef(other, entity.ArtifactWatermark), []byte("w"))

	deleted, err := NewCleanup(env.storage, zap.NewNop()).Execute(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	_, ok := env.storage.get(entity.NewArtifactRef(other, entity.ArtifactWatermark))
	assert.True(t, ok, "other jobs' blobs must survive")
}
