package calendar

import (
	"testing"

	"atelier/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestCollectBucketsAndSorts(t *testing.T) {
	stages := []domain.Stage{
		{ID: "st-1", RoomID: "rm-1", Phase: "drawings", Status: "in_progress", DueDate: strPtr("2026-03-10")},
		{ID: "st-2", RoomID: "rm-1", Phase: "ffe", Status: "complete", DueDate: strPtr("2026-03-10")},
		{ID: "st-3", RoomID: "rm-2", Phase: "concept", Status: "pending", DueDate: strPtr("2026-04-01")},
	}
	invoices := []domain.Invoice{
		{ID: "inv-1", ProjectID: "pr-1", Number: "AT-0001", Status: "sent", DueDate: strPtr("2026-03-10")},
		{ID: "inv-2", ProjectID: "pr-1", Number: "AT-0002", Status: "paid", DueDate: strPtr("2026-03-12")},
	}
	projects := []domain.Project{
		{ID: "pr-1", Name: "Harbor Loft", StartDate: strPtr("2026-03-01"), InstallDate: strPtr("2026-05-20")},
	}

	days := Collect("2026-03-01", "2026-03-31", stages, invoices, projects)
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d: %+v", len(days), days)
	}
	if days[0].Date != "2026-03-01" || len(days[0].Entries) != 1 {
		t.Fatalf("unexpected first day: %+v", days[0])
	}
	if days[0].Entries[0].Kind != "project_start" {
		t.Fatalf("expected project_start, got %s", days[0].Entries[0].Kind)
	}
	if days[1].Date != "2026-03-10" || len(days[1].Entries) != 2 {
		t.Fatalf("unexpected second day: %+v", days[1])
	}
}

func TestCollectSkipsDoneAndOutOfRange(t *testing.T) {
	stages := []domain.Stage{
		{ID: "st-1", Phase: "ffe", Status: "not_applicable", DueDate: strPtr("2026-03-05")},
		{ID: "st-2", Phase: "concept", Status: "pending"},
	}
	invoices := []domain.Invoice{
		{ID: "inv-1", Number: "AT-0003", Status: "void", DueDate: strPtr("2026-03-05")},
	}
	days := Collect("2026-03-01", "2026-03-31", stages, invoices, nil)
	if len(days) != 0 {
		t.Fatalf("expected no days, got %+v", days)
	}
}

func TestCollectStageLabelUsesPhaseLabel(t *testing.T) {
	stages := []domain.Stage{
		{ID: "st-1", Phase: "three_d", Status: "pending", DueDate: strPtr("2026-03-02")},
	}
	days := Collect("2026-03-01", "2026-03-31", stages, nil, nil)
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	if got := days[0].Entries[0].Label; got != "3D Rendering due" {
		t.Fatalf("unexpected label %q", got)
	}
}
