package domain

import "time"

const UnknownVendor = "Unknown"

// ReportFilter narrows report queries. Zero values mean "no constraint".
type ReportFilter struct {
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Vendor      string
	Status      DocumentStatus
	AmountMin   *float64
	AmountMax   *float64
}

type VendorSpend struct {
	Vendor string  `json:"vendor"`
	Total  float64 `json:"total"`
}

type SpendSummary struct {
	Total      float64       `json:"total"`
	Count      int           `json:"count"`
	TopVendors []VendorSpend `json:"top_vendors"`
}

type VendorAnalysis struct {
	Vendors []VendorSpend `json:"vendors"`
}

type TaxVATItem struct {
	Vendor        *string  `json:"vendor"`
	InvoiceNumber *string  `json:"invoice_number"`
	Amount        *float64 `json:"amount"`
	VAT           *float64 `json:"vat"`
}

type TaxVATReport struct {
	TotalAmount float64      `json:"total_amount"`
	TotalVAT    float64      `json:"total_vat"`
	Items       []TaxVATItem `json:"items"`
}

type ReportRow struct {
	ID            string         `json:"id"`
	Filename      string         `json:"filename"`
	Vendor        *string        `json:"vendor"`
	InvoiceNumber *string        `json:"invoice_number"`
	Date          *time.Time     `json:"date"`
	Amount        *float64       `json:"amount"`
	VAT           *float64       `json:"vat"`
	Status        DocumentStatus `json:"status"`
}

type TrendGranularity string

const (
	GranularityMonth  TrendGranularity = "month"
	GranularityDay    TrendGranularity = "day"
	GranularityHour   TrendGranularity = "hour"
	GranularityMinute TrendGranularity = "minute"
)

// ParseGranularity falls back to day for unknown values.
func ParseGranularity(raw string) TrendGranularity {
	switch g := TrendGranularity(raw); g {
	case GranularityMonth, GranularityDay, GranularityHour, GranularityMinute:
		return g
	default:
		return GranularityDay
	}
}

// BucketKey returns a sortable period key.
func (g TrendGranularity) BucketKey(t time.Time) string {
	switch g {
	case GranularityMinute:
		return t.Format("2006-01-02 15:04")
	case GranularityHour:
		return t.Format("2006-01-02 15:00")
	case GranularityMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

type StatusCount struct {
	Name   string         `json:"name"`
	Value  int            `json:"value"`
	Status DocumentStatus `json:"status"`
}

type TrendPoint struct {
	Period    string             `json:"period"`
	Documents int                `json:"documents"`
	Spend     float64            `json:"spend"`
	PerDoc    map[string]float64 `json:"per_document"`
}

type DocumentSeries struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type Anomaly struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Vendor   *string `json:"vendor"`
	Amount   float64 `json:"amount"`
}

type SpendingInsights struct {
	TotalSpend    float64                    `json:"total_spend"`
	DocumentCount int                        `json:"document_count"`
	AverageAmount float64                    `json:"average_amount"`
	TopVendors    []VendorSpend              `json:"top_vendors"`
	ByStatus      map[DocumentStatus]float64 `json:"by_status"`
}

type Insights struct {
	DocumentsUploaded int              `json:"documents_uploaded"`
	Pending           int              `json:"pending"`
	Approved          int              `json:"approved"`
	Rejected          int              `json:"rejected"`
	Duplicates        int              `json:"duplicates"`
	StatusCounts      []StatusCount    `json:"status_counts"`
	Trends            []TrendPoint     `json:"trends"`
	DocumentSeries    []DocumentSeries `json:"document_series"`
	Anomalies         []Anomaly        `json:"anomalies"`
	Spending          SpendingInsights `json:"spending_insights"`
}

type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
