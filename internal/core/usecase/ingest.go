package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	scheduler ports.PipelineScheduler
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	scheduler ports.PipelineScheduler,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:      repo,
		storage:   storage,
		scheduler: scheduler,
	}
}

// Upload stores the file, creates a pending record at step 1 and schedules extraction.
// The returned document has no extracted fields yet.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if _, ok := domain.FileKindOf(filename); !ok {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"upload document",
			fmt.Errorf("only invoices and credit notes (pdf, png, jpg, jpeg) are accepted: %q", filename),
		)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      domain.StatusPending,
		CurrentStep: domain.FirstStep,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.scheduler.Submit(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("schedule extraction: %w", err)
	}

	return doc, nil
}

func (uc *IngestDocumentUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *IngestDocumentUseCase) List(ctx context.Context, page domain.Page) ([]domain.Document, error) {
	return uc.repo.List(ctx, normalizePage(page, 50, 500))
}

func normalizePage(page domain.Page, defaultLimit, maxLimit int) domain.Page {
	if page.Skip < 0 {
		page.Skip = 0
	}
	if page.Limit <= 0 {
		page.Limit = defaultLimit
	}
	if page.Limit > maxLimit {
		page.Limit = maxLimit
	}
	return page
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
