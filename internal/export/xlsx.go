// Package export renders report rows as an xlsx workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"profitcalc/internal/core"
)

// ContentType is the MIME type of WriteWorkbook's output.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName is the worksheet title used for a month.
func SheetName(month string) string {
	if month == "" {
		return "Report"
	}
	return month
}

// WriteWorkbook writes one sheet named after month: a bold, frozen header
// of display labels followed by one row per period.
func WriteWorkbook(w io.Writer, month string, rows []core.ReportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(month)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header, values := core.ReportTable(rows)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, line := range values {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := styleSheet(f, sheet, header, len(values)); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func styleSheet(f *excelize.File, sheet string, header []string, rows int) error {
	cols := len(header)
	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	if rows > 0 && cols > 2 {
		amount, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
		if err != nil {
			return fmt.Errorf("amount style: %w", err)
		}
		first, _ := excelize.CoordinatesToCellName(3, 2)
		last, _ := excelize.CoordinatesToCellName(cols, rows+1)
		if err := f.SetCellStyle(sheet, first, last, amount); err != nil {
			return fmt.Errorf("apply amount style: %w", err)
		}

		// change columns carry fractional percentages
		percentFmt := "0.0"
		percent, err := f.NewStyle(&excelize.Style{CustomNumFmt: &percentFmt})
		if err != nil {
			return fmt.Errorf("percent style: %w", err)
		}
		for i, label := range header {
			if label != core.LabelSalesChange && label != core.LabelProfitChange {
				continue
			}
			top, _ := excelize.CoordinatesToCellName(i+1, 2)
			bottom, _ := excelize.CoordinatesToCellName(i+1, rows+1)
			if err := f.SetCellStyle(sheet, top, bottom, percent); err != nil {
				return fmt.Errorf("apply percent style: %w", err)
			}
		}
	}

	lastCol, err := excelize.ColumnNumberToName(max(cols, 1))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 16); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
