package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"os/exec"

	"github.com/Milan232323/watermarking1/internal/domain/port"
	"go.uber.org/zap"
)

// Transform shells out to ffmpeg/ffprobe for the video work. Image tiling is
// implemented in Go (tiler.go) so it stays testable without the binaries.
type Transform struct {
	logger *zap.Logger
}

var _ port.MediaTransform = (*Transform)(nil)

func NewTransform(logger *zap.Logger) *Transform {
	return &Transform{logger: logger}
}

func (t *Transform) CountFrames(ctx context.Context, videoPath string) (int, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-count_frames",
		"-select_streams", "v:0",
		"-show_entries", "stream=nb_read_frames",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	frames, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return 0, fmt.Errorf("parse frame count: %w", err)
	}
	return frames, nil
}

func (t *Transform) SplitChunks(ctx context.Context, videoPath, outputDir string, chunkSize int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	total, err := t.CountFrames(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, fmt.Errorf("no frames in video %s", videoPath)
	}

	boundaries := chunkBoundaries(total, chunkSize)
	pattern := filepath.Join(outputDir, "chunk_%04d.mp4")

	args := []string{
		"-i", videoPath,
		"-an",
		"-f", "segment",
		"-reset_timestamps", "1",
		"-y",
	}
	if boundaries != "" {
		args = append(args, "-segment_frames", boundaries)
	}
	args = append(args, pattern)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg segment: %w, output: %s", err, string(output))
	}

	chunks, err := filepath.Glob(filepath.Join(outputDir, "chunk_*.mp4"))
	if err != nil {
		return nil, fmt.Errorf("glob chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks produced from %s", videoPath)
	}
	sort.Strings(chunks)

	t.logger.Info("video split",
		zap.Int("total_frames", total),
		zap.Int("chunk_size", chunkSize),
		zap.Int("chunks", len(chunks)),
	)
	return chunks, nil
}

// chunkBoundaries builds the segment_frames list: "4,8" for 10 frames at
// chunk size 4. Empty when the video fits in a single chunk.
func chunkBoundaries(totalFrames, chunkSize int) string {
	var cuts []string
	for f := chunkSize; f < totalFrames; f += chunkSize {
		cuts = append(cuts, strconv.Itoa(f))
	}
	return strings.Join(cuts, ",")
}

func (t *Transform) WatermarkChunk(ctx context.Context, videoPath, watermarkPath, outputPath string, alpha float64) error {
	// Watermark scaled to half the frame width, centered, alpha-blended
	// over every frame.
	filter := fmt.Sprintf(
		"[1:v][0:v]scale2ref=w=main_w*0.5:h=ow/mdar[wm][base];"+
			"[wm]format=rgba,colorchannelmixer=aa=%g[wma];"+
			"[base][wma]overlay=(main_w-overlay_w)/2:(main_h-overlay_h)/2",
		alpha,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-i", watermarkPath,
		"-filter_complex", filter,
		"-an",
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg watermark: %w, output: %s", err, string(output))
	}
	return nil
}

func (t *Transform) ExtractThumbnail(ctx context.Context, videoPath, outputPath string, height int) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vf", fmt.Sprintf("scale=-2:%d", height),
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg thumbnail: %w, output: %s", err, string(output))
	}
	return nil
}

func (t *Transform) ConcatVideos(ctx context.Context, chunkPaths []string, outputPath string) error {
	if len(chunkPaths) == 0 {
		return fmt.Errorf("no chunks to concatenate")
	}

	listPath, err := writeConcatList(chunkPaths)
	if err != nil {
		return err
	}
	defer os.Remove(listPath)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w, output: %s", err, string(output))
	}
	return nil
}

// writeConcatList writes the demuxer file list and returns its path.
func writeConcatList(chunkPaths []string) (string, error) {
	f, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}

	var b strings.Builder
	for _, p := range chunkPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("resolve chunk path %s: %w", p, err)
		}
		fmt.Fprintf(&b, "file '%s'\n", abs)
	}

	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write concat list: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close concat list: %w", err)
	}
	return f.Name(), nil
}
