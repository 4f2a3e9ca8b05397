package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, page domain.Page) ([]domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// ApprovalWorkflow drives the fixed three-step approval.
type ApprovalWorkflow interface {
	Act(ctx context.Context, documentID string, actor domain.Actor, action domain.ApprovalAction, comment string) (domain.WorkflowState, error)
	ListApprovals(ctx context.Context, documentID string) ([]domain.Approval, error)
}

// ReportService exposes read-only aggregates over documents.
type ReportService interface {
	SpendSummary(ctx context.Context, filter domain.ReportFilter) (*domain.SpendSummary, error)
	VendorAnalysis(ctx context.Context, filter domain.ReportFilter) (*domain.VendorAnalysis, error)
	TaxVAT(ctx context.Context, filter domain.ReportFilter) (*domain.TaxVATReport, error)
	List(ctx context.Context, filter domain.ReportFilter, page domain.Page) ([]domain.ReportRow, error)
	Insights(ctx context.Context, filter domain.ReportFilter, granularity domain.TrendGranularity) (*domain.Insights, error)
	Export(ctx context.Context, filter domain.ReportFilter, format domain.ExportFormat) (*domain.ExportFile, error)
}
