// Package export renders report rows as CSV or XLSX downloads.
package export

import (
	"strconv"

	"github.com/kirillkom/docflow/internal/core/domain"
)

var headers = []string{"vendor", "invoice_number", "date", "amount", "vat", "status"}

func textCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func dateCell(row domain.ReportRow) string {
	if row.Date == nil {
		return ""
	}
	return row.Date.Format("2006-01-02")
}

func numberText(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
