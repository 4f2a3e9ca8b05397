package usecase

import (
	"context"
	"math"
	"sort"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// Insights honours only the date range of the filter.
func (uc *ReportUseCase) Insights(ctx context.Context, filter domain.ReportFilter, granularity domain.TrendGranularity) (*domain.Insights, error) {
	scoped := domain.ReportFilter{CreatedFrom: filter.CreatedFrom, CreatedTo: filter.CreatedTo}
	docs, err := uc.load(ctx, scoped, domain.Page{})
	if err != nil {
		return nil, err
	}
	return buildInsights(docs, domain.ParseGranularity(string(granularity))), nil
}

func buildInsights(docs []domain.Document, granularity domain.TrendGranularity) *domain.Insights {
	out := &domain.Insights{DocumentsUploaded: len(docs)}
	for _, doc := range docs {
		switch doc.Status {
		case domain.StatusPending:
			out.Pending++
		case domain.StatusApproved:
			out.Approved++
		case domain.StatusRejected:
			out.Rejected++
		}
		if doc.IsDuplicate {
			out.Duplicates++
		}
	}
	out.StatusCounts = []domain.StatusCount{
		{Name: "Pending", Value: out.Pending, Status: domain.StatusPending},
		{Name: "Approved", Value: out.Approved, Status: domain.StatusApproved},
		{Name: "Rejected", Value: out.Rejected, Status: domain.StatusRejected},
	}

	out.Trends, out.DocumentSeries = buildTrends(docs, granularity)
	out.Anomalies, out.Spending = buildSpending(docs)
	return out
}

func buildTrends(docs []domain.Document, granularity domain.TrendGranularity) ([]domain.TrendPoint, []domain.DocumentSeries) {
	points := make(map[string]*domain.TrendPoint)
	series := make([]domain.DocumentSeries, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))

	for _, doc := range docs {
		if doc.CreatedAt.IsZero() {
			continue
		}
		period := granularity.BucketKey(doc.CreatedAt.UTC())
		point, ok := points[period]
		if !ok {
			point = &domain.TrendPoint{Period: period, PerDoc: map[string]float64{}}
			points[period] = point
		}
		amount := amountOrZero(doc.Amount)
		key := "doc_" + doc.ID
		point.Documents++
		point.Spend += amount
		point.PerDoc[key] = domain.RoundTo(amount, 2)

		if _, dup := seen[doc.ID]; !dup {
			seen[doc.ID] = struct{}{}
			name := doc.Filename
			if name == "" {
				name = "Doc " + doc.ID
			}
			series = append(series, domain.DocumentSeries{Key: key, Name: name})
		}
	}

	periods := make([]string, 0, len(points))
	for period := range points {
		periods = append(periods, period)
	}
	sort.Strings(periods)

	trends := make([]domain.TrendPoint, 0, len(periods))
	for _, period := range periods {
		point := points[period]
		point.Spend = domain.RoundTo(point.Spend, 2)
		for _, s := range series {
			if _, ok := point.PerDoc[s.Key]; !ok {
				point.PerDoc[s.Key] = 0
			}
		}
		trends = append(trends, *point)
	}
	return trends, series
}

// buildSpending flags amounts above mean + 2σ (population σ over non-null amounts).
// No anomaly is reported when σ is zero.
func buildSpending(docs []domain.Document) ([]domain.Anomaly, domain.SpendingInsights) {
	amounts := make([]float64, 0, len(docs))
	for _, doc := range docs {
		if doc.Amount != nil {
			amounts = append(amounts, *doc.Amount)
		}
	}

	var total float64
	for _, a := range amounts {
		total += a
	}
	var mean, variance float64
	if n := float64(len(amounts)); n > 0 {
		mean = total / n
		for _, a := range amounts {
			variance += (a - mean) * (a - mean)
		}
		variance /= n
	}
	std := math.Sqrt(variance)

	anomalies := make([]domain.Anomaly, 0)
	if std > 0 {
		threshold := mean + anomalySigmaBand*std
		for _, doc := range docs {
			if doc.Amount == nil || *doc.Amount == 0 || *doc.Amount <= threshold {
				continue
			}
			anomalies = append(anomalies, domain.Anomaly{
				ID:       doc.ID,
				Filename: doc.Filename,
				Vendor:   doc.Vendor,
				Amount:   *doc.Amount,
			})
			if len(anomalies) == maxAnomalies {
				break
			}
		}
	}

	byStatus := make(map[domain.DocumentStatus]float64)
	for _, doc := range docs {
		byStatus[doc.Status] += amountOrZero(doc.Amount)
	}

	return anomalies, domain.SpendingInsights{
		TotalSpend:    total,
		DocumentCount: len(amounts),
		AverageAmount: domain.RoundTo(mean, 2),
		TopVendors:    topN(spendByVendor(docs), topVendorLimit),
		ByStatus:      byStatus,
	}
}
