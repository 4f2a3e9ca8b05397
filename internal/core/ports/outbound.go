package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// DocumentRepository persists and reads document state outside of a unit of work.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, page domain.Page) ([]domain.Document, error)
	ListApprovals(ctx context.Context, documentID string) ([]domain.Approval, error)
	Report(ctx context.Context, filter domain.ReportFilter, page domain.Page) ([]domain.Document, error)
}

// DuplicateLookup answers duplicate questions against committed rows, excluding the candidate itself.
type DuplicateLookup interface {
	ExistsByInvoiceNumber(ctx context.Context, invoiceNumber, excludeID string) (bool, error)
	ExistsByVendorAmount(ctx context.Context, vendor string, amount float64, excludeID string) (bool, error)
}

// DocumentTx is the set of writes that must commit together.
type DocumentTx interface {
	DuplicateLookup

	// GetForUpdate locks the row where the dialect supports it.
	GetForUpdate(ctx context.Context, id string) (*domain.Document, error)
	SaveExtraction(ctx context.Context, doc *domain.Document) error
	// UpdateWorkflow writes status/step if doc.Version is still current and bumps the version.
	UpdateWorkflow(ctx context.Context, doc *domain.Document) error
	AppendApproval(ctx context.Context, approval *domain.Approval) error
}

// Transactor runs fn in one transaction; a returned error rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx DocumentTx) error) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// PipelineScheduler hands a document to the background pipeline. There is no result channel.
type PipelineScheduler interface {
	Submit(ctx context.Context, documentID string) error
}

// TextExtractor turns a stored document into raw text. Failures degrade to "".
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) string
}

// FieldParser runs the pattern cascade. The second result names the rules that matched.
type FieldParser interface {
	Parse(text string) (domain.FieldSet, []string)
}

// FieldCompleter is the optional completion-service override.
type FieldCompleter interface {
	Available() bool
	Complete(ctx context.Context, text string) (domain.FieldSet, error)
}

// ReportRenderer writes report rows in a downloadable format.
type ReportRenderer interface {
	ContentType() string
	FileExtension() string
	Render(w io.Writer, rows []domain.ReportRow) error
}
