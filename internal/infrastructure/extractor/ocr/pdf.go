package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

func (e *Extractor) extractPDF(ctx context.Context, logger *slog.Logger, data []byte, path, workDir string) string {
	layer, err := textLayer(data)
	if err != nil {
		logger.Warn("pdf_text_layer_failed", "error", err)
	}
	if len(strings.TrimSpace(layer)) >= e.cfg.MinTextLayer {
		return layer
	}

	scanned, err := e.ocrPDF(ctx, logger, path, workDir)
	if err != nil {
		logger.Warn("pdf_ocr_failed", "error", err)
	}
	if strings.TrimSpace(scanned) != "" {
		return scanned
	}
	return layer
}

// textLayer reads embedded text. The reader panics on some malformed files.
func textLayer(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read text layer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("copy text layer: %w", err)
	}
	return buf.String(), nil
}

// ocrPDF rasterises and recognises every page concurrently. Pages are joined in
// order with one line break each; a failed or blank page leaves an empty line.
func (e *Extractor) ocrPDF(ctx context.Context, logger *slog.Logger, path, workDir string) (string, error) {
	pages, err := e.pageCount(path)
	if err != nil {
		return "", fmt.Errorf("count pages: %w", err)
	}
	if pages <= 0 {
		return "", nil
	}

	texts := make([]string, pages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.PageConcurrency)
	for i := 1; i <= pages; i++ {
		page := i
		g.Go(func() error {
			text, err := e.ocrPage(gctx, path, workDir, page)
			if err != nil {
				logger.Warn("ocr_page_failed", "page", page, "error", err)
				return nil
			}
			texts[page-1] = strings.TrimSpace(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	return strings.Join(texts, "\n"), nil
}

func (e *Extractor) ocrPage(ctx context.Context, path, workDir string, page int) (string, error) {
	prefix := filepath.Join(workDir, fmt.Sprintf("page-%d", page))
	n := strconv.Itoa(page)
	// pdftoppm -r <dpi> -png -f N -l N -singlefile <in.pdf> <prefix> writes <prefix>.png
	_, errb, err := e.runner.Run(ctx, e.cfg.PdftoppmPath,
		"-r", strconv.Itoa(e.cfg.DPI), "-png", "-f", n, "-l", n, "-singlefile", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm page %d: %w: %s", page, err, truncate(string(errb), 512))
	}
	return e.tesseract(ctx, prefix+".png")
}

func (e *Extractor) tesseract(ctx context.Context, imagePath string) (string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.TesseractPath, imagePath, "stdout", "-l", e.cfg.Lang)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
