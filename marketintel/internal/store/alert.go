package store

import (
	"context"
	"fmt"
)

// InsertAlert records an alert.
func (s *Store) InsertAlert(ctx context.Context, a *Alert) error {
	if a.CreatedAt == 0 {
		a.CreatedAt = nowMs()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO alerts (id, product_id, kind, previous_value, current_value, change_percent,
		message, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProductID, a.Kind, a.PreviousValue, a.CurrentValue, a.ChangePercent,
		a.Message, a.CreatedAt)
	return err
}

// ListAlerts returns alerts newest first; productID "" lists all products.
func (s *Store) ListAlerts(ctx context.Context, productID string, limit int) ([]*Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, product_id, kind, previous_value, current_value, change_percent, message, created_at
		FROM alerts`
	var args []any
	if productID != "" {
		q += ` WHERE product_id = ?`
		args = append(args, productID)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Kind, &a.PreviousValue, &a.CurrentValue,
			&a.ChangePercent, &a.Message, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		result = append(result, &a)
	}
	return result, rows.Err()
}
