package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"atelier/internal/billing"
	"atelier/internal/domain"
	"atelier/internal/events"
)

// --- proposals ---

type ProposalCreateOptions struct {
	ProjectID      string
	Title          string
	TaxRateBP      *int
	DesignFeeCents int64
	Items          []domain.ProposalItem
	Schedule       []domain.ScheduleSplit
	ActorID        string
}

func (e Engine) CreateProposal(ctx context.Context, opts ProposalCreateOptions) (domain.Proposal, error) {
	if opts.Title == "" {
		return domain.Proposal{}, errors.New("title is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Proposal{}, err
	}
	if len(opts.Schedule) > 0 {
		if err := billing.ValidateSchedule(opts.Schedule); err != nil {
			return domain.Proposal{}, err
		}
	}
	taxRate := 0
	if opts.TaxRateBP != nil {
		taxRate = *opts.TaxRateBP
	} else if e.Config != nil {
		taxRate = e.Config.Billing.DefaultTaxRateBP
	}
	if taxRate < 0 {
		return domain.Proposal{}, errors.New("tax rate must not be negative")
	}
	now := e.nowRFC3339()
	p := domain.Proposal{
		ID:             uuid.New().String(),
		ProjectID:      opts.ProjectID,
		Title:          opts.Title,
		Status:         "draft",
		TaxRateBP:      taxRate,
		DesignFeeCents: opts.DesignFeeCents,
		Schedule:       opts.Schedule,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, item := range opts.Items {
		if item.Quantity <= 0 {
			return domain.Proposal{}, fmt.Errorf("item %q: quantity must be positive", item.Description)
		}
		item.ID = uuid.New().String()
		item.ProposalID = p.ID
		p.Items = append(p.Items, item)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proposal{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProposal(ctx, tx, p); err != nil {
		return domain.Proposal{}, fmt.Errorf("insert proposal: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "proposal.created", "proposal", p.ID, opts.ActorID, events.EventPayload{
		"project_id": p.ProjectID,
		"title":      p.Title,
	}); err != nil {
		return domain.Proposal{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Proposal{}, err
	}
	return p, nil
}

func ensureProposalTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "draft":
		if newStatus == "sent" {
			return nil
		}
	case "sent":
		if newStatus == "approved" || newStatus == "declined" {
			return nil
		}
	}
	return fmt.Errorf("invalid proposal status transition %s -> %s", oldStatus, newStatus)
}

func (e Engine) SetProposalStatus(ctx context.Context, id, status, actorID string) (domain.Proposal, error) {
	p, err := e.Repo.GetProposal(ctx, id)
	if err != nil {
		return p, err
	}
	if err := ensureProposalTransition(p.Status, status); err != nil {
		return p, err
	}
	now := e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateProposalStatus(ctx, tx, id, status, now); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "proposal.status", "proposal", id, actorID, events.EventPayload{"from": p.Status, "to": status}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	p.Status = status
	p.UpdatedAt = now
	return p, nil
}

// --- invoices ---

type InvoiceCreateOptions struct {
	ProjectID      string
	ProposalID     string
	AmountDueCents int64
	DueDate        string
	ActorID        string
}

// CreateInvoice numbers the invoice from the configured prefix and a
// running counter. With a proposal and no explicit amount, the amount
// falls out of the proposal's computed grand total.
func (e Engine) CreateInvoice(ctx context.Context, opts InvoiceCreateOptions) (domain.Invoice, error) {
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Invoice{}, err
	}
	amount := opts.AmountDueCents
	var proposalID *string
	if opts.ProposalID != "" {
		p, err := e.Repo.GetProposal(ctx, opts.ProposalID)
		if err != nil {
			return domain.Invoice{}, err
		}
		if p.ProjectID != opts.ProjectID {
			return domain.Invoice{}, fmt.Errorf("proposal %s not in project %s", opts.ProposalID, opts.ProjectID)
		}
		proposalID = &opts.ProposalID
		if amount == 0 {
			amount = billing.ComputeTotals(p).GrandTotalCents
		}
	}
	if amount <= 0 {
		return domain.Invoice{}, errors.New("amount is required")
	}

	prefix := "INV"
	dueDays := 0
	if e.Config != nil {
		if e.Config.Billing.NumberPrefix != "" {
			prefix = e.Config.Billing.NumberPrefix
		}
		dueDays = e.Config.Billing.InvoiceDueDays
	}
	dueDate := opts.DueDate
	if dueDate == "" && dueDays > 0 {
		dueDate = e.now().UTC().AddDate(0, 0, dueDays).Format("2006-01-02")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Invoice{}, err
	}
	defer tx.Rollback()
	// The number comes from a count taken inside the insert transaction,
	// so two concurrent creates cannot land on the same sequence value.
	count, err := e.Repo.CountInvoices(ctx, tx)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv := domain.Invoice{
		ID:             uuid.New().String(),
		ProjectID:      opts.ProjectID,
		ProposalID:     proposalID,
		Number:         fmt.Sprintf("%s-%04d", prefix, count+1),
		Status:         "draft",
		AmountDueCents: amount,
		DueDate:        optionalString(dueDate),
		CreatedAt:      e.nowRFC3339(),
	}
	if err := e.Repo.InsertInvoice(ctx, tx, inv); err != nil {
		return domain.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "invoice.created", "invoice", inv.ID, opts.ActorID, events.EventPayload{
		"project_id": inv.ProjectID,
		"number":     inv.Number,
		"amount":     inv.AmountDueCents,
	}); err != nil {
		return domain.Invoice{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

func ensureInvoiceTransition(oldStatus, newStatus string) error {
	if newStatus == "void" && oldStatus != "paid" && oldStatus != "void" {
		return nil
	}
	switch oldStatus {
	case "draft":
		if newStatus == "sent" {
			return nil
		}
	case "sent":
		if newStatus == "paid" {
			return nil
		}
	}
	return fmt.Errorf("invalid invoice status transition %s -> %s", oldStatus, newStatus)
}

func (e Engine) SetInvoiceStatus(ctx context.Context, id, status, actorID string) (domain.Invoice, error) {
	inv, err := e.Repo.GetInvoice(ctx, id)
	if err != nil {
		return inv, err
	}
	if err := ensureInvoiceTransition(inv.Status, status); err != nil {
		return inv, err
	}
	old := inv.Status
	now := e.nowRFC3339()
	inv.Status = status
	switch status {
	case "sent":
		inv.SentAt = &now
	case "paid":
		inv.PaidAt = &now
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return inv, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateInvoice(ctx, tx, inv); err != nil {
		return inv, err
	}
	if err := e.Events.Append(ctx, tx, "invoice.status", "invoice", inv.ID, actorID, events.EventPayload{"from": old, "to": status}); err != nil {
		return inv, err
	}
	if err := tx.Commit(); err != nil {
		return inv, err
	}
	return inv, nil
}

// --- products ---

func (e Engine) CreateProduct(ctx context.Context, p domain.Product, actorID string) (domain.Product, error) {
	if p.Name == "" {
		return domain.Product{}, errors.New("name is required")
	}
	if p.Quantity <= 0 {
		return domain.Product{}, errors.New("quantity must be positive")
	}
	if _, err := e.Repo.GetRoom(ctx, p.RoomID); err != nil {
		return domain.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = "proposed"
	}
	now := e.nowRFC3339()
	p.CreatedAt = now
	p.UpdatedAt = now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProduct(ctx, tx, p); err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "product.created", "product", p.ID, actorID, events.EventPayload{"room_id": p.RoomID, "name": p.Name}); err != nil {
		return p, err
	}
	return p, tx.Commit()
}

func ensureProductTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "proposed":
		if newStatus == "approved" {
			return nil
		}
	case "approved":
		if newStatus == "ordered" || newStatus == "proposed" {
			return nil
		}
	case "ordered":
		if newStatus == "delivered" {
			return nil
		}
	}
	return fmt.Errorf("invalid product status transition %s -> %s", oldStatus, newStatus)
}

func (e Engine) SetProductStatus(ctx context.Context, id, status, actorID string) (domain.Product, error) {
	p, err := e.Repo.GetProduct(ctx, id)
	if err != nil {
		return p, err
	}
	if err := ensureProductTransition(p.Status, status); err != nil {
		return p, err
	}
	old := p.Status
	p.Status = status
	p.UpdatedAt = e.nowRFC3339()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateProduct(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "product.status", "product", p.ID, actorID, events.EventPayload{"from": old, "to": status}); err != nil {
		return p, err
	}
	return p, tx.Commit()
}
