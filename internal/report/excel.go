// Package report renders student records as a spreadsheet: one sheet,
// one row per record, fixed column order, no aggregation.
package report

import (
	"fmt"
	"io"

	"classquiz-service/internal/domain"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Records"

var columns = []string{"ID", "Student Name", "Student Email", "Quiz Title", "Submitted At", "Score", "Total", "Percentage"}

// WriteXLSX streams the full record list to w as an xlsx workbook.
func WriteXLSX(records []domain.StudentRecord, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for col, header := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, record := range records {
		values := []interface{}{
			record.ID,
			record.StudentName,
			record.StudentEmail,
			record.QuizTitle,
			record.SubmittedAt.Format("2006-01-02 15:04:05"),
			record.Score,
			record.Total,
			record.Percentage,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("write record row %d: %w", i+1, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
