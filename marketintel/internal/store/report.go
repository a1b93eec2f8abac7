// CLAUDE:SUMMARY Report persistence: find-or-create per period, lifecycle transitions, listing.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

const reportColumns = `id, title, kind, company_id, period_key, window_days, content_json, format,
	status, error, generated_at, scheduled_for, created_at, updated_at`

// CreateReportIfAbsent inserts r unless a report with the same company, kind
// and non-empty period key exists. It returns the stored report and whether
// it was created by this call.
func (s *Store) CreateReportIfAbsent(ctx context.Context, r *Report) (*Report, bool, error) {
	now := nowMs()
	if r.CreatedAt == 0 {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = StatusPending
	}
	if r.Format == "" {
		r.Format = "json"
	}

	res, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Kind, r.CompanyID, r.PeriodKey, r.WindowDays, r.ContentJSON, r.Format,
		r.Status, r.Error, r.GeneratedAt, r.ScheduledFor, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 1 {
		return r, true, nil
	}

	existing, err := s.FindReportForPeriod(ctx, r.CompanyID, r.Kind, r.PeriodKey)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("insert report %s: ignored without a period match", r.ID)
	}
	return existing, false, nil
}

// FindReportForPeriod returns the report covering periodKey, or nil.
func (s *Store) FindReportForPeriod(ctx context.Context, companyID, kind, periodKey string) (*Report, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports
		WHERE company_id = ? AND kind = ? AND period_key = ? AND period_key != ''`,
		companyID, kind, periodKey)
	return scanReport(row)
}

// GetReport retrieves a report by ID.
func (s *Store) GetReport(ctx context.Context, id string) (*Report, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	return scanReport(row)
}

// ListReports returns reports newest first, optionally filtered by company and kind.
func (s *Store) ListReports(ctx context.Context, companyID, kind string, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + reportColumns + ` FROM reports WHERE 1 = 1`
	var args []any
	if companyID != "" {
		q += ` AND company_id = ?`
		args = append(args, companyID)
	}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, kind)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Report
	for rows.Next() {
		r, err := scanReportRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// MarkReportProcessing moves a pending report to processing. It reports false
// when the report was not pending.
func (s *Store) MarkReportProcessing(ctx context.Context, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE reports SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusProcessing, nowMs(), id, StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CompleteReport attaches content and the generation timestamp.
func (s *Store) CompleteReport(ctx context.Context, id, title, contentJSON string, generatedAt int64) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE reports SET status = ?, title = ?, content_json = ?, generated_at = ?, error = '',
		updated_at = ? WHERE id = ?`,
		StatusCompleted, title, contentJSON, generatedAt, nowMs(), id)
	return err
}

// FailReport marks a report failed. Content and generation time stay empty.
func (s *Store) FailReport(ctx context.Context, id, reason string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE reports SET status = ?, content_json = NULL, generated_at = NULL, error = ?,
		updated_at = ? WHERE id = ?`,
		StatusFailed, reason, nowMs(), id)
	return err
}

// ResetReport returns a report to pending, clearing content, generation time
// and error. windowDays > 0 overrides the stored window.
func (s *Store) ResetReport(ctx context.Context, id string, windowDays int) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE reports SET status = ?, content_json = NULL, generated_at = NULL, error = '',
		window_days = CASE WHEN ? > 0 THEN ? ELSE window_days END, updated_at = ?
		WHERE id = ?`,
		StatusPending, windowDays, windowDays, nowMs(), id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row *sql.Row) (*Report, error) {
	r, err := scanReportRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func scanReportRow(row rowScanner) (*Report, error) {
	var r Report
	err := row.Scan(&r.ID, &r.Title, &r.Kind, &r.CompanyID, &r.PeriodKey, &r.WindowDays,
		&r.ContentJSON, &r.Format, &r.Status, &r.Error, &r.GeneratedAt, &r.ScheduledFor,
		&r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return &r, nil
}
