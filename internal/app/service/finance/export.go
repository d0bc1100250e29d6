package finance

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/fatflowers/repairdesk/internal/models"
)

const exportSheet = "Ledger"

var exportHeaders = []string{"Recorded At", "Type", "Amount", "Description", "Service Number", "Customer"}

// Export renders every record matching f into a workbook, newest first, with
// a summary block under the rows.
func (s *Service) Export(ctx context.Context, f ListFilter) (*excelize.File, error) {
	var records []models.FinancialRecord
	err := s.filtered(ctx, f).
		Preload("Service.Customer").
		Order("recorded_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load financial records: %w", err)
	}
	summary, err := s.summarize(ctx, f)
	if err != nil {
		return nil, err
	}

	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	headerStyle, _ := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		file.SetCellValue(exportSheet, cell, h)
		file.SetCellStyle(exportSheet, cell, cell, headerStyle)
	}

	row := 2
	for _, rec := range records {
		amount, _ := rec.Amount.Float64()
		file.SetCellValue(exportSheet, fmt.Sprintf("A%d", row), rec.RecordedAt.Format("2006-01-02 15:04"))
		file.SetCellValue(exportSheet, fmt.Sprintf("B%d", row), string(rec.Type))
		file.SetCellValue(exportSheet, fmt.Sprintf("C%d", row), amount)
		if rec.Description != nil {
			file.SetCellValue(exportSheet, fmt.Sprintf("D%d", row), *rec.Description)
		}
		if rec.Service != nil {
			file.SetCellValue(exportSheet, fmt.Sprintf("E%d", row), rec.Service.ServiceNumber)
			if rec.Service.Customer != nil {
				file.SetCellValue(exportSheet, fmt.Sprintf("F%d", row), rec.Service.Customer.Name)
			}
		}
		row++
	}

	summaryStyle, _ := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	row++
	for _, line := range []struct {
		label string
		value float64
	}{
		{"Income", summary.Income.InexactFloat64()},
		{"Expense", summary.Expense.InexactFloat64()},
		{"Net", summary.Net.InexactFloat64()},
	} {
		file.SetCellValue(exportSheet, fmt.Sprintf("B%d", row), line.label)
		file.SetCellValue(exportSheet, fmt.Sprintf("C%d", row), line.value)
		file.SetCellStyle(exportSheet, fmt.Sprintf("B%d", row), fmt.Sprintf("C%d", row), summaryStyle)
		row++
	}

	for i, w := range []float64{18, 10, 12, 40, 22, 24} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		file.SetColWidth(exportSheet, col, col, w)
	}
	return file, nil
}
