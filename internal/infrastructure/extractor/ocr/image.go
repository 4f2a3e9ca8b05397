package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

func (e *Extractor) extractImage(ctx context.Context, data []byte, workDir string) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	path := filepath.Join(workDir, "prepared.png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create prepared image: %w", err)
	}
	if err := png.Encode(f, prepare(src, e.cfg.MinWidth)); err != nil {
		f.Close()
		return "", fmt.Errorf("encode prepared image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close prepared image: %w", err)
	}

	return e.tesseract(ctx, path)
}

// prepare converts to grayscale and upscales images narrower than minWidth,
// keeping the aspect ratio.
func prepare(src image.Image, minWidth int) *image.Gray {
	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)

	if minWidth <= 0 || b.Dx() == 0 || b.Dx() >= minWidth {
		return gray
	}

	scale := float64(minWidth) / float64(b.Dx())
	height := int(math.Round(float64(b.Dy()) * scale))
	if height < 1 {
		height = 1
	}
	out := image.NewGray(image.Rect(0, 0, minWidth, height))
	draw.CatmullRom.Scale(out, out.Bounds(), gray, gray.Bounds(), draw.Src, nil)
	return out
}
