package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"atelier/internal/billing"
	"atelier/internal/calendar"
	"atelier/internal/domain"
	"atelier/internal/engine"
	"atelier/internal/repo"
)

func registerProposals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-proposal",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/proposals",
		Summary:       "Create proposal",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      CreateProposalRequest
	}) (*struct {
		Body ProposalResponse
	}, error) {
		items := make([]domain.ProposalItem, 0, len(input.Body.Items))
		for _, it := range input.Body.Items {
			items = append(items, domain.ProposalItem{
				Description:    it.Description,
				UnitPriceCents: it.UnitPriceCents,
				Quantity:       it.Quantity,
				Taxable:        it.Taxable,
			})
		}
		schedule := make([]domain.ScheduleSplit, 0, len(input.Body.Schedule))
		for _, s := range input.Body.Schedule {
			schedule = append(schedule, domain.ScheduleSplit{Label: s.Label, PercentBP: s.PercentBP})
		}
		p, err := e.CreateProposal(ctx, engine.ProposalCreateOptions{
			ProjectID:      input.ProjectID,
			Title:          input.Body.Title,
			TaxRateBP:      input.Body.TaxRateBP,
			DesignFeeCents: input.Body.DesignFeeCents,
			Items:          items,
			Schedule:       schedule,
			ActorID:        actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body ProposalResponse }{Body: proposalResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-proposals",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/proposals",
		Summary:     "List proposals",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []ProposalResponse
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListProposals(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]ProposalResponse, 0, len(items))
		for _, p := range items {
			out = append(out, proposalResponse(p))
		}
		return &struct{ Body []ProposalResponse }{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-proposal",
		Method:      http.MethodGet,
		Path:        "/proposals/{proposal_id}",
		Summary:     "Get proposal with computed totals",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProposalID string `path:"proposal_id"`
	}) (*struct {
		Body ProposalResponse
	}, error) {
		p, err := e.Repo.GetProposal(ctx, input.ProposalID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body ProposalResponse }{Body: proposalResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-proposal-status",
		Method:      http.MethodPost,
		Path:        "/proposals/{proposal_id}/status",
		Summary:     "Advance a proposal's status",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProposalID string `path:"proposal_id"`
		Body       SetStatusRequest
	}) (*struct {
		Body ProposalResponse
	}, error) {
		p, err := e.SetProposalStatus(ctx, input.ProposalID, input.Body.Status, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body ProposalResponse }{Body: proposalResponse(p)}, nil
	})
}

func registerInvoices(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-invoice",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/invoices",
		Summary:       "Create invoice",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      CreateInvoiceRequest
	}) (*struct {
		Body domain.Invoice
	}, error) {
		inv, err := e.CreateInvoice(ctx, engine.InvoiceCreateOptions{
			ProjectID:      input.ProjectID,
			ProposalID:     input.Body.ProposalID,
			AmountDueCents: input.Body.AmountDueCents,
			DueDate:        input.Body.DueDate,
			ActorID:        actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Invoice }{Body: inv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-invoices",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/invoices",
		Summary:     "List invoices",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.Invoice
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListInvoices(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.Invoice }{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-invoice",
		Method:      http.MethodGet,
		Path:        "/invoices/{invoice_id}",
		Summary:     "Get invoice",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InvoiceID string `path:"invoice_id"`
	}) (*struct {
		Body domain.Invoice
	}, error) {
		inv, err := e.Repo.GetInvoice(ctx, input.InvoiceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Invoice }{Body: inv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-invoice-status",
		Method:      http.MethodPost,
		Path:        "/invoices/{invoice_id}/status",
		Summary:     "Advance an invoice's status",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		InvoiceID string `path:"invoice_id"`
		Body      SetStatusRequest
	}) (*struct {
		Body domain.Invoice
	}, error) {
		inv, err := e.SetInvoiceStatus(ctx, input.InvoiceID, input.Body.Status, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Invoice }{Body: inv}, nil
	})
}

func registerCalendar(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "calendar",
		Method:      http.MethodGet,
		Path:        "/calendar",
		Summary:     "Studio calendar",
		Description: "Stage due dates, invoice due dates and project milestones, bucketed by day.",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		From string `query:"from" format:"date"`
		To   string `query:"to" format:"date"`
	}) (*struct {
		Body CalendarResponse
	}, error) {
		from, to := input.From, input.To
		if from == "" {
			from = time.Now().UTC().Format("2006-01-02")
		}
		if to == "" {
			to = time.Now().UTC().AddDate(0, 1, 0).Format("2006-01-02")
		}
		if from > to {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "from must not be after to", nil)
		}
		stages, err := e.Repo.ListStagesDueBetween(ctx, from, to)
		if err != nil {
			return nil, handleError(err)
		}
		invoices, err := e.Repo.ListInvoicesDueBetween(ctx, from, to)
		if err != nil {
			return nil, handleError(err)
		}
		projects, err := e.Repo.ListProjects(ctx, repo.ProjectFilters{})
		if err != nil {
			return nil, handleError(err)
		}
		days := calendar.Collect(from, to, stages, invoices, projects)
		return &struct{ Body CalendarResponse }{Body: calendarResponse(from, to, days)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Latest events",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" minimum:"1" maximum:"500"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body []domain.Event
	}, error) {
		limit := input.Limit
		if limit == 0 {
			limit = 50
		}
		items, err := e.Repo.LatestEvents(ctx, limit, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.Event }{Body: items}, nil
	})
}

func proposalResponse(p domain.Proposal) ProposalResponse {
	return ProposalResponse{Proposal: p, Totals: billing.ComputeTotals(p)}
}

func calendarResponse(from, to string, days []calendar.Day) CalendarResponse {
	out := CalendarResponse{From: from, To: to, Days: make([]CalendarDayResponse, 0, len(days))}
	for _, d := range days {
		day := CalendarDayResponse{Date: d.Date, Entries: make([]CalendarEntryResponse, 0, len(d.Entries))}
		for _, entry := range d.Entries {
			day.Entries = append(day.Entries, CalendarEntryResponse{
				Kind:      entry.Kind,
				Label:     entry.Label,
				RoomID:    entry.RoomID,
				StageID:   entry.StageID,
				ProjectID: entry.ProjectID,
				InvoiceID: entry.InvoiceID,
			})
		}
		out.Days = append(out.Days, day)
	}
	return out
}
