// Package report renders a batch response as an XLSX workbook for people
// who review posting runs in a spreadsheet.
//
// The workbook has two sheets:
//   - Summary: job duration and result count
//   - Results: one row per result, failures first-class (kind + messages)
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/warp/sage-poster/poster"
)

const (
	SummarySheet = "Summary"
	ResultsSheet = "Results"
)

// ResultColumns is the header row of the Results sheet.
var ResultColumns = []string{
	"#", "Outcome", "Kind", "Post OK", "Rows Affected",
	"Name", "Customer/Vendor", "Invoice Number", "Journal ID",
	"Part Code", "Account Number", "Total", "Messages",
}

// Build creates the workbook. The caller owns the returned file and must
// Close it.
func Build(resp *poster.BatchResponse) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if err := writeSummary(f, resp); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(ResultsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create results sheet: %w", err)
	}
	if err := writeResults(f, resp.Responses); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write renders the workbook to w.
func Write(w io.Writer, resp *poster.BatchResponse) error {
	f, err := Build(resp)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Save renders the workbook to a file.
func Save(path string, resp *poster.BatchResponse) error {
	f, err := Build(resp)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeSummary(f *excelize.File, resp *poster.BatchResponse) error {
	failed := 0
	for _, r := range resp.Responses {
		if !r.OK() {
			failed++
		}
	}
	rows := [][]any{
		{"Job Duration", resp.JobDuration},
		{"Total Requests", resp.TotalRequests},
		{"Failed", failed},
	}
	for i, row := range rows {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func writeResults(f *excelize.File, results []*poster.Result) error {
	header := make([]any, len(ResultColumns))
	for i, c := range ResultColumns {
		header[i] = c
	}
	if err := setRow(f, ResultsSheet, 1, header); err != nil {
		return err
	}

	for i, r := range results {
		outcome := "OK"
		if !r.OK() {
			outcome = "FAILED"
		}
		row := []any{
			i + 1, outcome, string(r.Kind()), boolCell(r.PostOK), rowsCell(r.RowsAffected),
			text(r.Name), text(r.CusVenName), text(r.InvoiceNumber), text(r.JournalID),
			text(r.PartCode), text(r.AccountNumber), text(r.Total),
			strings.Join(r.Messages, "; "),
		}
		if err := setRow(f, ResultsSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boolCell(b *bool) any {
	if b == nil {
		return ""
	}
	return *b
}

func rowsCell(n *int64) any {
	if n == nil {
		return ""
	}
	return *n
}
