package server

import (
	"atelier/internal/billing"
	"atelier/internal/domain"
	"atelier/internal/notify"
)

// Request payloads

type CreateClientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type CreateProjectRequest struct {
	ClientID    string `json:"client_id"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	StartDate   string `json:"start_date,omitempty" format:"date"`
	InstallDate string `json:"install_date,omitempty" format:"date"`
}

type UpdateProjectRequest struct {
	Status      string  `json:"status,omitempty" enum:"active,on_hold,archived"`
	Address     *string `json:"address,omitempty"`
	StartDate   *string `json:"start_date,omitempty" format:"date"`
	InstallDate *string `json:"install_date,omitempty" format:"date"`
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

// StageActionRequest submits one action against one stage. member_id is
// only read by assign, due_date by set_due_date, notify_confirmed by
// complete.
type StageActionRequest struct {
	Action          string  `json:"action" enum:"start,complete,reopen,mark_not_applicable,mark_applicable,assign,set_due_date"`
	MemberID        *string `json:"member_id,omitempty"`
	DueDate         *string `json:"due_date,omitempty" format:"date"`
	NotifyConfirmed *bool   `json:"notify_confirmed,omitempty"`
}

type SetDueDateRequest struct {
	DueDate *string `json:"due_date" format:"date"`
}

type BulkAssignRequest struct {
	MemberID *string `json:"member_id"`
}

type CreateMemberRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

type CreateProductRequest struct {
	Name           string `json:"name"`
	Vendor         string `json:"vendor,omitempty"`
	SKU            string `json:"sku,omitempty"`
	Category       string `json:"category,omitempty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	LeadTimeWeeks  *int   `json:"lead_time_weeks,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

type ProposalItemRequest struct {
	Description    string `json:"description"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	Taxable        bool   `json:"taxable"`
}

type ScheduleSplitRequest struct {
	Label     string `json:"label"`
	PercentBP int    `json:"percent_bp"`
}

type CreateProposalRequest struct {
	Title          string                 `json:"title"`
	TaxRateBP      *int                   `json:"tax_rate_bp,omitempty"`
	DesignFeeCents int64                  `json:"design_fee_cents,omitempty"`
	Items          []ProposalItemRequest  `json:"items,omitempty"`
	Schedule       []ScheduleSplitRequest `json:"schedule,omitempty"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

type CreateInvoiceRequest struct {
	ProposalID     string `json:"proposal_id,omitempty"`
	AmountDueCents int64  `json:"amount_due_cents,omitempty"`
	DueDate        string `json:"due_date,omitempty" format:"date"`
}

// Response payloads

type StageResponse struct {
	ID          string  `json:"id"`
	RoomID      string  `json:"room_id"`
	Phase       string  `json:"phase"`
	PhaseLabel  string  `json:"phase_label"`
	Status      string  `json:"status" enum:"pending,in_progress,complete,not_applicable"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	StartedAt   *string `json:"started_at,omitempty" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
	DueDate     *string `json:"due_date,omitempty" format:"date"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type RoomResponse struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Name      string          `json:"name"`
	CreatedAt string          `json:"created_at" format:"date-time"`
	Stages    []StageResponse `json:"stages,omitempty"`
}

type NotificationOutcomeResponse struct {
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Summary string   `json:"summary"`
	Errors  []string `json:"errors,omitempty"`
}

type StageActionResponse struct {
	Stage         StageResponse               `json:"stage"`
	Room          RoomResponse                `json:"room"`
	Notifications NotificationOutcomeResponse `json:"notifications"`
}

type ProposalResponse struct {
	domain.Proposal
	Totals billing.Totals `json:"totals"`
}

type CalendarResponse struct {
	From string                `json:"from" format:"date"`
	To   string                `json:"to" format:"date"`
	Days []CalendarDayResponse `json:"days"`
}

type CalendarDayResponse struct {
	Date    string                  `json:"date" format:"date"`
	Entries []CalendarEntryResponse `json:"entries"`
}

type CalendarEntryResponse struct {
	Kind      string `json:"kind"`
	Label     string `json:"label"`
	RoomID    string `json:"room_id,omitempty"`
	StageID   string `json:"stage_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	InvoiceID string `json:"invoice_id,omitempty"`
}

// Converters

func stageResponse(s domain.Stage, label string) StageResponse {
	return StageResponse{
		ID:          s.ID,
		RoomID:      s.RoomID,
		Phase:       s.Phase,
		PhaseLabel:  label,
		Status:      s.Status,
		AssigneeID:  s.AssigneeID,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		DueDate:     s.DueDate,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func outcomeResponse(o notify.Outcome) NotificationOutcomeResponse {
	return NotificationOutcomeResponse{
		Sent:    o.Sent,
		Failed:  o.Failed,
		Summary: o.String(),
		Errors:  o.Errors,
	}
}
