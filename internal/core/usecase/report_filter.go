package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// ReportQuery is the raw, string-typed filter as it arrives from a caller.
type ReportQuery struct {
	Start     string
	End       string
	Vendor    string
	Status    string
	AmountMin string
	AmountMax string
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// BuildReportFilter validates a raw query. A date-only end bound covers the whole day;
// unknown statuses are ignored.
func BuildReportFilter(q ReportQuery) (domain.ReportFilter, error) {
	var filter domain.ReportFilter

	if s := strings.TrimSpace(q.Start); s != "" {
		start, _, err := parseISOTime(s)
		if err != nil {
			return filter, domain.WrapError(domain.ErrInvalidInput, "report filter", fmt.Errorf("start: %w", err))
		}
		filter.CreatedFrom = &start
	}
	if s := strings.TrimSpace(q.End); s != "" {
		end, dateOnly, err := parseISOTime(s)
		if err != nil {
			return filter, domain.WrapError(domain.ErrInvalidInput, "report filter", fmt.Errorf("end: %w", err))
		}
		if dateOnly {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		filter.CreatedTo = &end
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedFrom.After(*filter.CreatedTo) {
		return filter, domain.WrapError(domain.ErrInvalidInput, "report filter", fmt.Errorf("start is after end"))
	}

	filter.Vendor = strings.TrimSpace(q.Vendor)
	if status, ok := domain.ParseDocumentStatus(q.Status); ok {
		filter.Status = status
	}

	var err error
	if filter.AmountMin, err = parseOptionalFloat("amount_min", q.AmountMin); err != nil {
		return filter, err
	}
	if filter.AmountMax, err = parseOptionalFloat("amount_max", q.AmountMax); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseISOTime(raw string) (time.Time, bool, error) {
	for _, layout := range isoLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			return parsed.UTC(), layout == time.DateOnly, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("invalid ISO date %q", raw)
}

func parseOptionalFloat(name, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "report filter", fmt.Errorf("%s: %w", name, err))
	}
	return &v, nil
}
