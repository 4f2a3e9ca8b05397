package usecase

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

const (
	topVendorLimit   = 10
	reportListLimit  = 100
	reportListMax    = 1000
	maxAnomalies     = 20
	anomalySigmaBand = 2.0
)

type ReportUseCase struct {
	repo      ports.DocumentRepository
	renderers map[domain.ExportFormat]ports.ReportRenderer
}

func NewReportUseCase(repo ports.DocumentRepository, renderers map[domain.ExportFormat]ports.ReportRenderer) *ReportUseCase {
	return &ReportUseCase{repo: repo, renderers: renderers}
}

func (uc *ReportUseCase) SpendSummary(ctx context.Context, filter domain.ReportFilter) (*domain.SpendSummary, error) {
	docs, err := uc.load(ctx, filter, domain.Page{})
	if err != nil {
		return nil, err
	}

	summary := &domain.SpendSummary{Count: len(docs)}
	for _, doc := range docs {
		summary.Total += amountOrZero(doc.Amount)
	}
	summary.TopVendors = topN(spendByVendor(docs), topVendorLimit)
	return summary, nil
}

// VendorAnalysis honours only the date range and status.
func (uc *ReportUseCase) VendorAnalysis(ctx context.Context, filter domain.ReportFilter) (*domain.VendorAnalysis, error) {
	scoped := domain.ReportFilter{CreatedFrom: filter.CreatedFrom, CreatedTo: filter.CreatedTo, Status: filter.Status}
	docs, err := uc.load(ctx, scoped, domain.Page{})
	if err != nil {
		return nil, err
	}
	return &domain.VendorAnalysis{Vendors: spendByVendor(docs)}, nil
}

// TaxVAT honours only the date range and vendor.
func (uc *ReportUseCase) TaxVAT(ctx context.Context, filter domain.ReportFilter) (*domain.TaxVATReport, error) {
	scoped := domain.ReportFilter{CreatedFrom: filter.CreatedFrom, CreatedTo: filter.CreatedTo, Vendor: filter.Vendor}
	docs, err := uc.load(ctx, scoped, domain.Page{})
	if err != nil {
		return nil, err
	}

	report := &domain.TaxVATReport{Items: make([]domain.TaxVATItem, 0, len(docs))}
	for _, doc := range docs {
		report.TotalAmount += amountOrZero(doc.Amount)
		report.TotalVAT += amountOrZero(doc.VAT)
		report.Items = append(report.Items, domain.TaxVATItem{
			Vendor:        doc.Vendor,
			InvoiceNumber: doc.InvoiceNumber,
			Amount:        doc.Amount,
			VAT:           doc.VAT,
		})
	}
	return report, nil
}

func (uc *ReportUseCase) List(ctx context.Context, filter domain.ReportFilter, page domain.Page) ([]domain.ReportRow, error) {
	docs, err := uc.load(ctx, filter, normalizePage(page, reportListLimit, reportListMax))
	if err != nil {
		return nil, err
	}
	return toReportRows(docs), nil
}

func (uc *ReportUseCase) Export(ctx context.Context, filter domain.ReportFilter, format domain.ExportFormat) (*domain.ExportFile, error) {
	renderer, ok := uc.renderers[format]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "export report", fmt.Errorf("unsupported format %q", format))
	}

	docs, err := uc.load(ctx, filter, domain.Page{})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := renderer.Render(&buf, toReportRows(docs)); err != nil {
		return nil, fmt.Errorf("render %s report: %w", format, err)
	}
	return &domain.ExportFile{
		Filename:    "report." + renderer.FileExtension(),
		ContentType: renderer.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

func (uc *ReportUseCase) load(ctx context.Context, filter domain.ReportFilter, page domain.Page) ([]domain.Document, error) {
	docs, err := uc.repo.Report(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("query report documents: %w", err)
	}
	return docs, nil
}

func toReportRows(docs []domain.Document) []domain.ReportRow {
	rows := make([]domain.ReportRow, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, domain.ReportRow{
			ID:            doc.ID,
			Filename:      doc.Filename,
			Vendor:        doc.Vendor,
			InvoiceNumber: doc.InvoiceNumber,
			Date:          doc.Date,
			Amount:        doc.Amount,
			VAT:           doc.VAT,
			Status:        doc.Status,
		})
	}
	return rows
}

// spendByVendor sums amounts per vendor, largest first. Ties keep first-seen order.
func spendByVendor(docs []domain.Document) []domain.VendorSpend {
	index := make(map[string]int)
	out := make([]domain.VendorSpend, 0)
	for _, doc := range docs {
		vendor := vendorOrUnknown(doc.Vendor)
		i, ok := index[vendor]
		if !ok {
			i = len(out)
			index[vendor] = i
			out = append(out, domain.VendorSpend{Vendor: vendor})
		}
		out[i].Total += amountOrZero(doc.Amount)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Total > out[b].Total })
	return out
}

func topN(items []domain.VendorSpend, n int) []domain.VendorSpend {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func vendorOrUnknown(v *string) string {
	if v == nil || *v == "" {
		return domain.UnknownVendor
	}
	return *v
}

func amountOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
