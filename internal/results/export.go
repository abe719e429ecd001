package results

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Queries"

var exportHeaders = []string{"ID", "Vendor", "Clause/Section", "Category", "Question", "Answer", "Status", "Intervention", "Note"}

// WriteXLSX writes records as a single-sheet workbook.
func WriteXLSX(w io.Writer, records []QueryRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
		_ = f.SetCellStyle(exportSheet, "A1", last, style)
	}

	for i, r := range records {
		row := i + 2
		intervention := "No"
		if r.InterventionFlag {
			intervention = "Yes"
		}
		values := []any{r.ID, r.VendorLabel, r.ClauseOrSection, string(r.Category), r.QuestionText, r.AnswerText, string(r.StatusMarker), intervention, r.InternalNote}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
