package repo

import (
	"context"
	"database/sql"

	"atelier/internal/domain"
)

const productColumns = `id,room_id,name,vendor,sku,category,unit_price_cents,quantity,status,lead_time_weeks,notes,created_at,updated_at`

func (r Repo) InsertProduct(ctx context.Context, tx *sql.Tx, p domain.Product) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO products(`+productColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.RoomID, p.Name, nullable(p.Vendor), nullable(p.SKU), nullable(p.Category),
		p.UnitPriceCents, p.Quantity, p.Status, nullableIntPtr(p.LeadTimeWeeks), nullable(p.Notes),
		p.CreatedAt, p.UpdatedAt)
	return err
}

func scanProduct(scan func(dest ...any) error) (domain.Product, error) {
	var p domain.Product
	var vendor, sku, category, notes sql.NullString
	var leadTime sql.NullInt64
	err := scan(&p.ID, &p.RoomID, &p.Name, &vendor, &sku, &category, &p.UnitPriceCents, &p.Quantity, &p.Status, &leadTime, &notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.Vendor = vendor.String
	p.SKU = sku.String
	p.Category = category.String
	p.Notes = notes.String
	if leadTime.Valid {
		weeks := int(leadTime.Int64)
		p.LeadTimeWeeks = &weeks
	}
	return p, nil
}

func (r Repo) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(r.DB.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListProducts(ctx context.Context, roomID string) ([]domain.Product, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE room_id=? ORDER BY category ASC, name ASC, id ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProduct(ctx context.Context, tx *sql.Tx, p domain.Product) error {
	res, err := tx.ExecContext(ctx, `UPDATE products SET name=?, vendor=?, sku=?, category=?, unit_price_cents=?, quantity=?, status=?, lead_time_weeks=?, notes=?, updated_at=? WHERE id=?`,
		p.Name, nullable(p.Vendor), nullable(p.SKU), nullable(p.Category), p.UnitPriceCents, p.Quantity,
		p.Status, nullableIntPtr(p.LeadTimeWeeks), nullable(p.Notes), p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProduct(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM products WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
