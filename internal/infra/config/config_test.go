package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "watermark.pipeline", cfg.RabbitMQExchange)
	assert.Equal(t, 150, cfg.ChunkSize)
	assert.Equal(t, 120, cfg.ThumbnailHeight)
	assert.InDelta(t, 0.5, cfg.WatermarkAlpha, 1e-9)
	assert.Equal(t, "internal", cfg.MinIOInternalBucket)
	assert.Equal(t, "downloads", cfg.MinIODownloadsBucket)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "50")
	t.Setenv("WATERMARK_ALPHA", "0.8")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.ChunkSize)
	assert.InDelta(t, 0.8, cfg.WatermarkAlpha, 1e-9)
	assert.Equal(t, "debug", cfg.LogLevel)
}
