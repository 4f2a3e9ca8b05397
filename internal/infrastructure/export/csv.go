package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/kirillkom/docflow/internal/core/domain"
)

type CSV struct{}

func (CSV) ContentType() string   { return "text/csv" }
func (CSV) FileExtension() string { return "csv" }

func (CSV) Render(w io.Writer, rows []domain.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			textCell(row.Vendor),
			textCell(row.InvoiceNumber),
			dateCell(row),
			numberText(row.Amount),
			numberText(row.VAT),
			string(row.Status),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
