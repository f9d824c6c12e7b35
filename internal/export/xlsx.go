package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/edge-shortlister/internal/scoring"
)

const (
	shortlistSheet = "Shortlist"
	summarySheet   = "Summary"
)

var columnWidths = map[string]float64{
	"Name":          28,
	"Score":         8,
	"Justification": 60,
	"Notes":         70,
	"Resume Link":   45,
	"Country":       14,
	"Gender":        10,
	"Email":         30,
}

// WriteXLSX writes a workbook with the ranked shortlist and a run summary sheet.
func WriteXLSX(w io.Writer, list *scoring.Shortlist, opts Options) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", shortlistSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := writeShortlist(f, list, opts, headerStyle); err != nil {
		return fmt.Errorf("writing shortlist sheet: %w", err)
	}
	if err := writeSummary(f, list, headerStyle); err != nil {
		return fmt.Errorf("writing summary sheet: %w", err)
	}

	f.SetActiveSheet(0)
	_, err = f.WriteTo(w)
	return err
}

func writeShortlist(f *excelize.File, list *scoring.Shortlist, opts Options, headerStyle int) error {
	columns := Columns(opts)

	header := make([]any, len(columns))
	for i, name := range columns {
		header[i] = name
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(shortlistSheet, col, col, columnWidths[name]); err != nil {
			return err
		}
	}
	if err := f.SetSheetRow(shortlistSheet, "A1", &header); err != nil {
		return err
	}

	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(shortlistSheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, r := range list.Entries {
		cells := Row(r, opts)
		row := make([]any, len(cells))
		for j, cell := range cells {
			row[j] = cell
		}
		// Keep the score numeric so the sheet can be re-sorted.
		row[1] = r.Score

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(shortlistSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(f *excelize.File, list *scoring.Shortlist, headerStyle int) error {
	rows := [][]any{
		{"Shortlist Report", ""},
		{"Opportunity:", list.Opportunity},
		{"Generated:", time.Now().Format("2006-01-02 15:04:05")},
		{"Candidates:", list.Total},
		{"Evaluated:", list.Evaluated},
		{"Disqualified:", list.Disqualified},
		{"Classifier errors:", list.AIErrors},
		{"Passed threshold:", list.Passed},
		{"Shortlisted:", len(list.Entries)},
		{"Limit:", list.Limit},
		{"Duration:", list.Duration.Round(time.Second).String()},
	}

	if err := f.SetColWidth(summarySheet, "A", "A", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 40); err != nil {
		return err
	}

	for i, values := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := values
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetCellStyle(summarySheet, "A1", "B1", headerStyle)
}
