package ffe

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"atelier/internal/domain"
)

func TestExport(t *testing.T) {
	lead := 6
	products := []domain.Product{
		{Name: "Linen Sofa", Vendor: "Fernhill", SKU: "FH-220", Category: "Seating",
			UnitPriceCents: 185000, Quantity: 1, Status: "approved", LeadTimeWeeks: &lead},
		{Name: "Side Table", Vendor: "Oak & Co", UnitPriceCents: 24000, Quantity: 2, Status: "proposed"},
	}
	data, err := Export("Living Room", products)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	got, err := f.GetCellValue("FFE Schedule", "A1")
	if err != nil || got != "Living Room" {
		t.Fatalf("A1 = %q, err %v", got, err)
	}
	got, _ = f.GetCellValue("FFE Schedule", "A3")
	if got != "Linen Sofa" {
		t.Fatalf("A3 = %q", got)
	}
	got, _ = f.GetCellValue("FFE Schedule", "H4")
	if got != "480" {
		t.Fatalf("H4 = %q", got)
	}
	got, _ = f.GetCellValue("FFE Schedule", "H5")
	if got != "2330" {
		t.Fatalf("total = %q", got)
	}
}

func TestExportEmptyRoom(t *testing.T) {
	data, err := Export("Study", nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	got, _ := f.GetCellValue("FFE Schedule", "G3")
	if got != "Total" {
		t.Fatalf("G3 = %q", got)
	}
}
