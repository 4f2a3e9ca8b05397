package sqlstore

import (
	"fmt"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// buildReportQuery returns documents matching the filter in creation order.
func buildReportQuery(d Dialect, filter domain.ReportFilter, page domain.Page) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.CreatedFrom != nil {
		add("created_at >= $%d", d.timeArg(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		add("created_at <= $%d", d.timeArg(*filter.CreatedTo))
	}
	if v := strings.TrimSpace(filter.Vendor); v != "" {
		add("LOWER(vendor) LIKE $%d", "%"+strings.ToLower(v)+"%")
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.AmountMin != nil {
		add("amount >= $%d", *filter.AmountMin)
	}
	if filter.AmountMax != nil {
		add("amount <= $%d", *filter.AmountMax)
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	return d.pagedQuery(query, args, page)
}
