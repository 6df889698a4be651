// Package calendar buckets studio deadlines by day: stage due dates,
// invoice due dates and project milestones.
package calendar

import (
	"sort"

	"atelier/internal/domain"
	"atelier/internal/phase"
)

// Entry is one dated item on the studio calendar. Kind is one of
// stage_due, invoice_due, project_start, project_install.
type Entry struct {
	Date    string `json:"date" format:"date"`
	Kind    string `json:"kind" enum:"stage_due,invoice_due,project_start,project_install"`
	Label   string `json:"label"`
	RoomID  string `json:"room_id,omitempty"`
	StageID string `json:"stage_id,omitempty"`

	ProjectID string `json:"project_id,omitempty"`
	InvoiceID string `json:"invoice_id,omitempty"`
}

// Day groups every entry sharing a date.
type Day struct {
	Date    string  `json:"date" format:"date"`
	Entries []Entry `json:"entries"`
}

// Collect buckets the given records into days, inclusive of both bounds.
// Dates are YYYY-MM-DD strings, so plain string comparison orders them.
// Records without a date, or dated outside [from, to], are skipped.
func Collect(from, to string, stages []domain.Stage, invoices []domain.Invoice, projects []domain.Project) []Day {
	var entries []Entry
	add := func(date string, e Entry) {
		if date == "" || date < from || date > to {
			return
		}
		e.Date = date
		entries = append(entries, e)
	}
	for _, s := range stages {
		if s.DueDate == nil || s.Status == "complete" || s.Status == "not_applicable" {
			continue
		}
		add(*s.DueDate, Entry{
			Kind:    "stage_due",
			Label:   phase.Label(s.Phase) + " due",
			RoomID:  s.RoomID,
			StageID: s.ID,
		})
	}
	for _, inv := range invoices {
		if inv.DueDate == nil || inv.Status == "paid" || inv.Status == "void" {
			continue
		}
		add(*inv.DueDate, Entry{
			Kind:      "invoice_due",
			Label:     "Invoice " + inv.Number + " due",
			ProjectID: inv.ProjectID,
			InvoiceID: inv.ID,
		})
	}
	for _, p := range projects {
		if p.StartDate != nil {
			add(*p.StartDate, Entry{Kind: "project_start", Label: p.Name + " starts", ProjectID: p.ID})
		}
		if p.InstallDate != nil {
			add(*p.InstallDate, Entry{Kind: "project_install", Label: p.Name + " install", ProjectID: p.ID})
		}
	}

	byDate := map[string][]Entry{}
	for _, e := range entries {
		byDate[e.Date] = append(byDate[e.Date], e)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	days := make([]Day, 0, len(dates))
	for _, d := range dates {
		days = append(days, Day{Date: d, Entries: byDate[d]})
	}
	return days
}
