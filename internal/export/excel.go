// Package export renders stored result snapshots as an Excel workbook for
// faculty download.
package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
)

const sheetName = "Results"

var header = []string{"Reg No", "Name", "Email", "Max Semester", "Last Notified Semester", "Overall CGPA", "Notifications", "Last Updated"}

// Snapshots renders one row per stored snapshot and returns the workbook
// bytes.
func Snapshots(ctx context.Context, snapshots []model.ResultSnapshot) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := file.SetCellValue(sheetName, cell, title); err != nil {
			return nil, err
		}
	}

	for i, snapshot := range snapshots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		overall := "N/A"
		if snapshot.OverallCGPA != nil {
			overall = fmt.Sprintf("%.2f", *snapshot.OverallCGPA)
		}

		row := []interface{}{
			snapshot.RegNo,
			snapshot.Name,
			snapshot.Email,
			snapshot.CurrentMaxSemester,
			snapshot.LastNotifiedSemester,
			overall,
			len(snapshot.NotificationHistory),
			snapshot.LastUpdated.Format("2006-01-02 15:04:05"),
		}

		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := file.SetCellValue(sheetName, cell, value); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	return buf.Bytes(), nil
}
