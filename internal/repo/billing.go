package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"atelier/internal/domain"
)

// --- proposals ---

func (r Repo) InsertProposal(ctx context.Context, tx *sql.Tx, p domain.Proposal) error {
	schedule, err := marshalSchedule(p.Schedule)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO proposals(id,project_id,title,status,tax_rate_bp,design_fee_cents,schedule_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ProjectID, p.Title, p.Status, p.TaxRateBP, p.DesignFeeCents, schedule, p.CreatedAt, p.UpdatedAt); err != nil {
		return err
	}
	for _, item := range p.Items {
		if _, err := tx.ExecContext(ctx, `INSERT INTO proposal_items(id,proposal_id,description,unit_price_cents,quantity,taxable) VALUES (?,?,?,?,?,?)`,
			item.ID, p.ID, item.Description, item.UnitPriceCents, item.Quantity, boolToInt(item.Taxable)); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetProposal(ctx context.Context, id string) (domain.Proposal, error) {
	var p domain.Proposal
	var schedule sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,title,status,tax_rate_bp,design_fee_cents,schedule_json,created_at,updated_at FROM proposals WHERE id=?`, id).
		Scan(&p.ID, &p.ProjectID, &p.Title, &p.Status, &p.TaxRateBP, &p.DesignFeeCents, &schedule, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if schedule.Valid && schedule.String != "" {
		if err := json.Unmarshal([]byte(schedule.String), &p.Schedule); err != nil {
			return p, err
		}
	}
	items, err := r.listProposalItems(ctx, p.ID)
	if err != nil {
		return p, err
	}
	p.Items = items
	return p, nil
}

func (r Repo) listProposalItems(ctx context.Context, proposalID string) ([]domain.ProposalItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,proposal_id,description,unit_price_cents,quantity,taxable FROM proposal_items WHERE proposal_id=? ORDER BY rowid ASC`, proposalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProposalItem
	for rows.Next() {
		var item domain.ProposalItem
		var taxable int
		if err := rows.Scan(&item.ID, &item.ProposalID, &item.Description, &item.UnitPriceCents, &item.Quantity, &taxable); err != nil {
			return nil, err
		}
		item.Taxable = taxable != 0
		res = append(res, item)
	}
	return res, rows.Err()
}

func (r Repo) ListProposals(ctx context.Context, projectID string) ([]domain.Proposal, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,title,status,tax_rate_bp,design_fee_cents,schedule_json,created_at,updated_at FROM proposals WHERE project_id=? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Proposal
	for rows.Next() {
		var p domain.Proposal
		var schedule sql.NullString
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Title, &p.Status, &p.TaxRateBP, &p.DesignFeeCents, &schedule, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if schedule.Valid && schedule.String != "" {
			if err := json.Unmarshal([]byte(schedule.String), &p.Schedule); err != nil {
				return nil, err
			}
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProposalStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE proposals SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- invoices ---

func (r Repo) InsertInvoice(ctx context.Context, tx *sql.Tx, inv domain.Invoice) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO invoices(id,project_id,proposal_id,number,status,amount_due_cents,due_date,sent_at,paid_at,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		inv.ID, inv.ProjectID, nullableStringPtr(inv.ProposalID), inv.Number, inv.Status, inv.AmountDueCents,
		nullableStringPtr(inv.DueDate), nullableStringPtr(inv.SentAt), nullableStringPtr(inv.PaidAt), inv.CreatedAt)
	return err
}

func scanInvoice(scan func(dest ...any) error) (domain.Invoice, error) {
	var inv domain.Invoice
	var proposalID, dueDate, sentAt, paidAt sql.NullString
	err := scan(&inv.ID, &inv.ProjectID, &proposalID, &inv.Number, &inv.Status, &inv.AmountDueCents, &dueDate, &sentAt, &paidAt, &inv.CreatedAt)
	if err != nil {
		return inv, err
	}
	if proposalID.Valid {
		inv.ProposalID = &proposalID.String
	}
	if dueDate.Valid {
		inv.DueDate = &dueDate.String
	}
	if sentAt.Valid {
		inv.SentAt = &sentAt.String
	}
	if paidAt.Valid {
		inv.PaidAt = &paidAt.String
	}
	return inv, nil
}

const invoiceColumns = `id,project_id,proposal_id,number,status,amount_due_cents,due_date,sent_at,paid_at,created_at`

func (r Repo) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	inv, err := scanInvoice(r.DB.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return inv, ErrNotFound
	}
	return inv, err
}

func (r Repo) ListInvoices(ctx context.Context, projectID string) ([]domain.Invoice, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE project_id=? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}

func (r Repo) ListInvoicesDueBetween(ctx context.Context, from, to string) ([]domain.Invoice, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE due_date IS NOT NULL AND due_date >= ? AND due_date <= ? AND status != 'void' ORDER BY due_date ASC, id ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}

func (r Repo) UpdateInvoice(ctx context.Context, tx *sql.Tx, inv domain.Invoice) error {
	res, err := tx.ExecContext(ctx, `UPDATE invoices SET status=?, amount_due_cents=?, due_date=?, sent_at=?, paid_at=? WHERE id=?`,
		inv.Status, inv.AmountDueCents, nullableStringPtr(inv.DueDate), nullableStringPtr(inv.SentAt), nullableStringPtr(inv.PaidAt), inv.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountInvoices(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM invoices`).Scan(&n)
	return n, err
}

func marshalSchedule(s []domain.ScheduleSplit) (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
