// Package ocr turns stored invoices into raw text: the PDF text layer first, then
// page-by-page OCR through tesseract. It never fails the pipeline; every error
// degrades to empty text and a warning.
package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

type Config struct {
	TesseractPath   string
	PdftoppmPath    string
	Lang            string
	DPI             int
	PageConcurrency int
	// MinWidth upscales narrower images before recognition.
	MinWidth int
	// MinTextLayer is the trimmed length at which the PDF text layer is trusted.
	MinTextLayer int
}

func (c Config) normalize() Config {
	if c.TesseractPath == "" {
		c.TesseractPath = "tesseract"
	}
	if c.PdftoppmPath == "" {
		c.PdftoppmPath = "pdftoppm"
	}
	if c.Lang == "" {
		c.Lang = "eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.PageConcurrency <= 0 {
		c.PageConcurrency = 4
	}
	if c.MinWidth < 0 {
		c.MinWidth = 0
	}
	if c.MinTextLayer <= 0 {
		c.MinTextLayer = 30
	}
	return c
}

type Extractor struct {
	storage   ports.ObjectStorage
	cfg       Config
	runner    Runner
	pageCount func(path string) (int, error)
	logger    *slog.Logger
}

type Option func(*Extractor)

func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func WithPageCounter(fn func(path string) (int, error)) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.pageCount = fn
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewExtractor(storage ports.ObjectStorage, cfg Config, opts ...Option) *Extractor {
	e := &Extractor{
		storage:   storage,
		cfg:       cfg.normalize(),
		runner:    execRunner{},
		pageCount: api.PageCountFile,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) string {
	logger := e.logger.With("document_id", doc.ID, "filename", doc.Filename)

	kind, ok := domain.FileKindOf(doc.Filename)
	if !ok {
		logger.Warn("extract_unsupported_kind")
		return ""
	}

	workDir, err := os.MkdirTemp("", "docflow-ocr-*")
	if err != nil {
		logger.Warn("extract_failed", "stage", "workdir", "error", err)
		return ""
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("extract_cleanup_failed", "path", workDir, "error", err)
		}
	}()

	data, sourcePath, err := e.download(ctx, doc, workDir)
	if err != nil {
		logger.Warn("extract_failed", "stage", "download", "error", err)
		return ""
	}

	switch kind {
	case domain.FileKindPDF:
		return e.extractPDF(ctx, logger, data, sourcePath, workDir)
	case domain.FileKindImage:
		text, err := e.extractImage(ctx, data, workDir)
		if err != nil {
			logger.Warn("extract_failed", "stage", "image_ocr", "error", err)
			return ""
		}
		return text
	default:
		return ""
	}
}

// download copies the stored object into workDir; the external tools need a path.
func (e *Extractor) download(ctx context.Context, doc *domain.Document, workDir string) ([]byte, string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("read source document: %w", err)
	}

	path := filepath.Join(workDir, "source"+strings.ToLower(filepath.Ext(doc.Filename)))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, "", fmt.Errorf("write work copy: %w", err)
	}
	return data, path, nil
}
