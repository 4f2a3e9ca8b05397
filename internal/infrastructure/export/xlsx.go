package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docflow/internal/core/domain"
)

const reportSheet = "Report"

type XLSX struct{}

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSX) FileExtension() string { return "xlsx" }

// Render writes one sheet; amounts stay numeric so spreadsheets can sum them.
func (XLSX) Render(w io.Writer, rows []domain.ReportRow) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(reportSheet, cell, h); err != nil {
			return fmt.Errorf("write header %s: %w", h, err)
		}
	}

	for i, row := range rows {
		line := i + 2
		values := []any{
			textCell(row.Vendor),
			textCell(row.InvoiceNumber),
			dateCell(row),
			numberCell(row.Amount),
			numberCell(row.VAT),
			string(row.Status),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, line)
			if err := f.SetCellValue(reportSheet, cell, v); err != nil {
				return fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	_ = f.SetColWidth(reportSheet, "A", "A", 28)
	_ = f.SetColWidth(reportSheet, "B", "C", 16)
	_ = f.SetColWidth(reportSheet, "D", "E", 14)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func numberCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
