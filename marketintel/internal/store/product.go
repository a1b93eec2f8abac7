// CLAUDE:SUMMARY Product CRUD, active/scrapable listings and counts.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

const productColumns = `id, company_id, name, category, external_id, url, config_json, active, created_at, updated_at`

// InsertProduct adds a product.
func (s *Store) InsertProduct(ctx context.Context, p *Product) error {
	now := nowMs()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.ConfigJSON == "" {
		p.ConfigJSON = "{}"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CompanyID, p.Name, p.Category, p.ExternalID, p.URL, p.ConfigJSON,
		boolInt(p.Active), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetProduct retrieves a product by ID, active or not.
func (s *Store) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

// ListProducts returns products, optionally restricted to one company and to active ones.
func (s *Store) ListProducts(ctx context.Context, companyID string, activeOnly bool) ([]*Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE 1 = 1`
	var args []any
	if companyID != "" {
		q += ` AND company_id = ?`
		args = append(args, companyID)
	}
	if activeOnly {
		q += ` AND active = 1`
	}
	q += ` ORDER BY name, id`
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// ListScrapableProducts returns active products that have a source URL.
func (s *Store) ListScrapableProducts(ctx context.Context) ([]*Product, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE active = 1 AND url != '' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// UpdateProduct rewrites the mutable fields of a product.
func (s *Store) UpdateProduct(ctx context.Context, p *Product) error {
	p.UpdatedAt = nowMs()
	if p.ConfigJSON == "" {
		p.ConfigJSON = "{}"
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE products SET company_id = ?, name = ?, category = ?, external_id = ?, url = ?,
		config_json = ?, active = ?, updated_at = ? WHERE id = ?`,
		p.CompanyID, p.Name, p.Category, p.ExternalID, p.URL, p.ConfigJSON,
		boolInt(p.Active), p.UpdatedAt, p.ID,
	)
	return err
}

// SetProductActive flips the active flag. Observations are kept either way.
func (s *Store) SetProductActive(ctx context.Context, id string, active bool) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE products SET active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), nowMs(), id)
	return err
}

// CountActiveProducts returns the number of active products.
func (s *Store) CountActiveProducts(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE active = 1`).Scan(&n)
	return n, err
}

// CountProductsByCompany returns how many products reference a company.
func (s *Store) CountProductsByCompany(ctx context.Context, companyID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE company_id = ?`, companyID).Scan(&n)
	return n, err
}

func scanProduct(row *sql.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Category, &p.ExternalID, &p.URL,
		&p.ConfigJSON, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &p, nil
}

func collectProducts(rows *sql.Rows) ([]*Product, error) {
	var result []*Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Category, &p.ExternalID, &p.URL,
			&p.ConfigJSON, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}
