// Package ffe renders a room's FFE schedule as an .xlsx workbook.
package ffe

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"atelier/internal/domain"
)

var exportHeader = []string{
	"Item",
	"Vendor",
	"SKU",
	"Category",
	"Status",
	"Qty",
	"Unit Price",
	"Line Total",
	"Lead Time (wk)",
	"Notes",
}

var columnWidths = []float64{30, 20, 16, 16, 12, 6, 12, 12, 14, 40}

// Export writes one sheet named after the room with a bold frozen header,
// a row per product and a totals row. Prices come in as cents and are
// written as whole currency units.
func Export(roomName string, products []domain.Product) ([]byte, error) {
	f := excelize.NewFile()

	sheet := "FFE Schedule"
	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#EFEAE3"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := setCell(f, sheet, 1, 1, roomName); err != nil {
		f.Close()
		return nil, err
	}
	for col, h := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("style header %s: %w", cell, err)
		}
	}
	for i, w := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			f.Close()
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	var totalCents int64
	row := 3
	for _, p := range products {
		lineCents := p.UnitPriceCents * int64(p.Quantity)
		totalCents += lineCents
		values := []any{
			p.Name,
			p.Vendor,
			p.SKU,
			p.Category,
			p.Status,
			p.Quantity,
			cents(p.UnitPriceCents),
			cents(lineCents),
		}
		if p.LeadTimeWeeks != nil {
			values = append(values, *p.LeadTimeWeeks)
		} else {
			values = append(values, "")
		}
		values = append(values, p.Notes)
		for col, v := range values {
			if v == "" {
				continue
			}
			if err := setCell(f, sheet, col+1, row, v); err != nil {
				f.Close()
				return nil, err
			}
		}
		row++
	}
	if err := setCell(f, sheet, 7, row, "Total"); err != nil {
		f.Close()
		return nil, err
	}
	if err := setCell(f, sheet, 8, row, cents(totalCents)); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      2,
		TopLeftCell: "A3",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

func cents(c int64) float64 {
	return float64(c) / 100
}
