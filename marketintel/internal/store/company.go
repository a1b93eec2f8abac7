// CLAUDE:SUMMARY Company CRUD, soft deactivation and competitor lookups.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

const companyColumns = `id, name, domain, industry, competitor_to, active, created_at, updated_at`

// InsertCompany adds a company.
func (s *Store) InsertCompany(ctx context.Context, c *Company) error {
	now := nowMs()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO companies (`+companyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Domain, c.Industry, nullString(c.CompetitorTo),
		boolInt(c.Active), c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetCompany retrieves a company by ID, active or not.
func (s *Store) GetCompany(ctx context.Context, id string) (*Company, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = ?`, id)
	return scanCompany(row)
}

// ListCompanies returns companies ordered by name.
func (s *Store) ListCompanies(ctx context.Context, activeOnly bool) ([]*Company, error) {
	q := `SELECT ` + companyColumns + ` FROM companies`
	if activeOnly {
		q += ` WHERE active = 1`
	}
	q += ` ORDER BY name, id`
	rows, err := s.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCompanies(rows)
}

// ListCompetitors returns every company whose competitor_to is companyID.
func (s *Store) ListCompetitors(ctx context.Context, companyID string) ([]*Company, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE competitor_to = ? ORDER BY name, id`,
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCompanies(rows)
}

// UpdateCompany rewrites the mutable fields of a company.
func (s *Store) UpdateCompany(ctx context.Context, c *Company) error {
	c.UpdatedAt = nowMs()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE companies SET name = ?, domain = ?, industry = ?, competitor_to = ?,
		active = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Domain, c.Industry, nullString(c.CompetitorTo),
		boolInt(c.Active), c.UpdatedAt, c.ID,
	)
	return err
}

// SetCompanyActive flips the active flag. Companies are never hard-deleted.
func (s *Store) SetCompanyActive(ctx context.Context, id string, active bool) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE companies SET active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), nowMs(), id)
	return err
}

// CountActiveCompanies returns the number of active companies.
func (s *Store) CountActiveCompanies(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies WHERE active = 1`).Scan(&n)
	return n, err
}

func scanCompany(row *sql.Row) (*Company, error) {
	var c Company
	var competitorTo sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Domain, &c.Industry, &competitorTo,
		&c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan company: %w", err)
	}
	c.CompetitorTo = competitorTo.String
	return &c, nil
}

func collectCompanies(rows *sql.Rows) ([]*Company, error) {
	var result []*Company
	for rows.Next() {
		var c Company
		var competitorTo sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Domain, &c.Industry, &competitorTo,
			&c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		c.CompetitorTo = competitorTo.String
		result = append(result, &c)
	}
	return result, rows.Err()
}
