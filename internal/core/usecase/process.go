package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

type ParseSource string

const (
	ParseSourceEmpty      ParseSource = "empty"
	ParseSourcePatterns   ParseSource = "patterns"
	ParseSourceCompletion ParseSource = "completion"
)

// shortTextThreshold only drives a diagnostic; short text is still parsed.
const shortTextThreshold = 10

// PipelineObserver receives the outcome of each committed pipeline pass.
type PipelineObserver interface {
	ObservePipeline(source string, duplicate bool)
}

type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	tx         ports.Transactor
	extractor  ports.TextExtractor
	parser     ports.FieldParser
	completer  ports.FieldCompleter
	classifier DuplicateClassifier
	observer   PipelineObserver
	logger     *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	tx ports.Transactor,
	extractor ports.TextExtractor,
	parser ports.FieldParser,
	completer ports.FieldCompleter,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:      repo,
		tx:        tx,
		extractor: extractor,
		parser:    parser,
		completer: completer,
		logger:    logger,
	}
}

// WithObserver attaches an outcome observer, typically the worker metrics.
func (uc *ProcessDocumentUseCase) WithObserver(observer PipelineObserver) *ProcessDocumentUseCase {
	uc.observer = observer
	return uc
}

// ProcessByID runs one pipeline pass for a document. All writes commit in a single
// transaction; on error nothing is persisted and the error is returned to the scheduler.
// A missing document is a logged no-op.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	text := uc.extractText(ctx, doc)
	fields, source, rules := uc.parseFields(ctx, doc.ID, text)

	var (
		duplicate bool
		rule      DuplicateRule
		missing   bool
	)
	err = uc.tx.WithinTx(ctx, func(ctx context.Context, tx ports.DocumentTx) error {
		current, err := tx.GetForUpdate(ctx, documentID)
		if err != nil {
			if domain.IsKind(err, domain.ErrDocumentNotFound) {
				missing = true
				return nil
			}
			return fmt.Errorf("lock document: %w", err)
		}

		applyExtraction(current, text, fields)

		duplicate, rule, err = uc.classifier.Classify(ctx, tx, current)
		if err != nil {
			return fmt.Errorf("classify duplicate: %w", err)
		}
		if duplicate {
			current.IsDuplicate = true
		}

		if err := tx.SaveExtraction(ctx, current); err != nil {
			return fmt.Errorf("save extraction: %w", err)
		}
		return nil
	})
	if err != nil {
		uc.logger.Error("pipeline_rolled_back", "document_id", documentID, "error", err)
		return fmt.Errorf("process document %s: %w", documentID, err)
	}
	if missing {
		uc.logger.Warn("pipeline_document_missing", "document_id", documentID, "stage", "commit")
		return nil
	}

	if uc.observer != nil {
		uc.observer.ObservePipeline(string(source), duplicate)
	}
	uc.logger.Info("pipeline_completed",
		"document_id", documentID,
		"text_chars", len(text),
		"parse_source", string(source),
		"parse_rules", rules,
		"duplicate", duplicate,
		"duplicate_rule", string(rule),
	)
	return nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			uc.logger.Warn("pipeline_document_missing", "document_id", documentID, "stage", "load")
			return nil, nil
		}
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) string {
	text := uc.extractor.Extract(ctx, doc)
	if len(strings.TrimSpace(text)) < shortTextThreshold {
		uc.logger.Warn("pipeline_text_short", "document_id", doc.ID, "text_chars", len(text))
	}
	return text
}

// parseFields returns matched pattern rules only for the cascade.
func (uc *ProcessDocumentUseCase) parseFields(ctx context.Context, documentID, text string) (domain.FieldSet, ParseSource, []string) {
	if strings.TrimSpace(text) == "" {
		return domain.FieldSet{}, ParseSourceEmpty, nil
	}

	if uc.completer != nil && uc.completer.Available() {
		fields, err := uc.completer.Complete(ctx, text)
		if err == nil {
			return fields, ParseSourceCompletion, nil
		}
		uc.logger.Warn("completion_fallback", "document_id", documentID, "error", err)
	}

	fields, rules := uc.parser.Parse(text)
	return fields, ParseSourcePatterns, rules
}

// applyExtraction never overwrites an existing field with an absent value.
func applyExtraction(doc *domain.Document, text string, fields domain.FieldSet) {
	doc.RawText = text

	if v := trimmedValue(fields.Vendor); v != "" {
		doc.Vendor = &v
	}
	if v := trimmedValue(fields.InvoiceNumber); v != "" {
		doc.InvoiceNumber = &v
	}
	if fields.Amount != nil {
		amount := *fields.Amount
		doc.Amount = &amount
	}
	if fields.VAT != nil {
		vat := *fields.VAT
		doc.VAT = &vat
	}
	if doc.VAT == nil && doc.Amount != nil {
		if vat, ok := domain.DeriveVAT(*doc.Amount); ok {
			doc.VAT = &vat
		}
	}
	if raw := trimmedValue(fields.Date); raw != "" {
		if date, ok := domain.ParseInvoiceDate(raw); ok {
			doc.Date = &date
		}
	}
}

func trimmedValue(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
