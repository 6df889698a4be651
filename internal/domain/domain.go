package domain

type Client struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          string  `json:"id"`
	ClientID    string  `json:"client_id"`
	Name        string  `json:"name"`
	Status      string  `json:"status" enum:"active,on_hold,archived"`
	Address     string  `json:"address,omitempty"`
	StartDate   *string `json:"start_date,omitempty" format:"date"`
	InstallDate *string `json:"install_date,omitempty" format:"date"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type Room struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Stage is the persisted backing record for one phase of one room.
type Stage struct {
	ID          string  `json:"id"`
	RoomID      string  `json:"room_id"`
	Phase       string  `json:"phase"`
	Status      string  `json:"status" enum:"pending,in_progress,complete,not_applicable"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	StartedAt   *string `json:"started_at,omitempty" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
	DueDate     *string `json:"due_date,omitempty" format:"date"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type TeamMember struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Product is one FFE line item specified for a room.
type Product struct {
	ID             string `json:"id"`
	RoomID         string `json:"room_id"`
	Name           string `json:"name"`
	Vendor         string `json:"vendor,omitempty"`
	SKU            string `json:"sku,omitempty"`
	Category       string `json:"category,omitempty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	Status         string `json:"status" enum:"proposed,approved,ordered,delivered"`
	LeadTimeWeeks  *int   `json:"lead_time_weeks,omitempty"`
	Notes          string `json:"notes,omitempty"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

type Proposal struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"project_id"`
	Title          string          `json:"title"`
	Status         string          `json:"status" enum:"draft,sent,approved,declined"`
	TaxRateBP      int             `json:"tax_rate_bp"`
	DesignFeeCents int64           `json:"design_fee_cents"`
	Items          []ProposalItem  `json:"items,omitempty"`
	Schedule       []ScheduleSplit `json:"schedule,omitempty"`
	CreatedAt      string          `json:"created_at" format:"date-time"`
	UpdatedAt      string          `json:"updated_at" format:"date-time"`
}

type ProposalItem struct {
	ID             string `json:"id"`
	ProposalID     string `json:"proposal_id"`
	Description    string `json:"description"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	Taxable        bool   `json:"taxable"`
}

// ScheduleSplit is one payment milestone; percents are basis points.
type ScheduleSplit struct {
	Label     string `json:"label"`
	PercentBP int    `json:"percent_bp"`
}

type Invoice struct {
	ID             string  `json:"id"`
	ProjectID      string  `json:"project_id"`
	ProposalID     *string `json:"proposal_id,omitempty"`
	Number         string  `json:"number"`
	Status         string  `json:"status" enum:"draft,sent,paid,void"`
	AmountDueCents int64   `json:"amount_due_cents"`
	DueDate        *string `json:"due_date,omitempty" format:"date"`
	SentAt         *string `json:"sent_at,omitempty" format:"date-time"`
	PaidAt         *string `json:"paid_at,omitempty" format:"date-time"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
