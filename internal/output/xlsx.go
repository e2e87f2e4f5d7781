package output

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/utkarsh5026/batchrun/pool"
)

const (
	resultsSheet = "results"
	summarySheet = "summary"
)

// XLSXFormatter writes a workbook with a results sheet and a summary sheet.
type XLSXFormatter struct{}

func (f *XLSXFormatter) Format(w io.Writer, results []pool.Result) error {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if err := book.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := book.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}

	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	headers := []any{"index", "kind", "status", "worker", "duration", "value", "error"}
	if err := book.SetSheetRow(resultsSheet, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := book.SetRowStyle(resultsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, row := range Rows(results) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{row.Index, row.Kind, row.Status, row.Worker, row.Duration, cellValue(row.Value), row.Error}
		if err := book.SetSheetRow(resultsSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row.Index, err)
		}
	}

	s := pool.Summarize(results)
	summary := [][]any{
		{"total", s.Total},
		{"ok", s.OK},
		{"skipped", s.Skipped},
		{"aborted", s.Aborted},
		{"pending", s.Pending},
	}
	for i, pair := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(summarySheet, cell, &pair); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if err := book.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// cellValue keeps numbers, bools and strings native and renders
// everything else as a one-line string.
func cellValue(v any) any {
	switch v.(type) {
	case nil, string, bool, int, int64, float64:
		return v
	default:
		return formatValue(v)
	}
}
