package port

import "context"

// MediaTransform is the external media-processing capability. All paths are
// local scratch files owned by the calling handler.
type MediaTransform interface {
	// CountFrames probes the video's frame count.
	CountFrames(ctx context.Context, videoPath string) (int, error)

	// SplitChunks cuts the video into chunks of chunkSize frames (last one
	// may be shorter) and returns the chunk paths in index order.
	SplitChunks(ctx context.Context, videoPath, outputDir string, chunkSize int) ([]string, error)

	// WatermarkChunk alpha-blends the watermark image, scaled to half the
	// frame width and centered, over every frame.
	WatermarkChunk(ctx context.Context, videoPath, watermarkPath, outputPath string, alpha float64) error

	// ExtractThumbnail writes the first frame resized to the given height,
	// preserving aspect ratio.
	ExtractThumbnail(ctx context.Context, videoPath, outputPath string, height int) error

	// ConcatVideos stream-copies the chunks into one video, in order.
	ConcatVideos(ctx context.Context, chunkPaths []string, outputPath string) error

	// TileImages concatenates the images horizontally into one strip,
	// heights normalized to the first image's height.
	TileImages(ctx context.Context, imagePaths []string, outputPath string) error
}
