package ffmpeg

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"os"
)

// TileImages horizontally concatenates the thumbnails into one strip. Heights
// are normalized to the first image's height; total width is the sum of the
// individual widths.
func (t *Transform) TileImages(ctx context.Context, imagePaths []string, outputPath string) error {
	if len(imagePaths) == 0 {
		return fmt.Errorf("no images to tile")
	}

	imgs := make([]image.Image, 0, len(imagePaths))
	for _, p := range imagePaths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		img, err := readImage(p)
		if err != nil {
			return err
		}
		imgs = append(imgs, img)
	}

	strip := tile(imgs)

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create strip file: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, strip, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("encode strip: %w", err)
	}
	return nil
}

// tile lays the images side by side on a canvas of the first image's height.
// Images taller than the canvas are cropped, shorter ones leave black below,
// matching a fixed-height thumbnail strip.
func tile(imgs []image.Image) *image.RGBA {
	height := imgs[0].Bounds().Dy()
	width := 0
	for _, img := range imgs {
		width += img.Bounds().Dx()
	}

	strip := image.NewRGBA(image.Rect(0, 0, width, height))
	x := 0
	for _, img := range imgs {
		w := img.Bounds().Dx()
		dst := image.Rect(x, 0, x+w, height)
		draw.Draw(strip, dst, img, img.Bounds().Min, draw.Src)
		x += w
	}
	return strip
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}
