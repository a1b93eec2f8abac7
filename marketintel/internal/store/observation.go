// CLAUDE:SUMMARY Observation series: batch append with invariant checks, windowed queries, latest value, volume stats, retention purge.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hazyhaar/marketintel/dbopen"
	"github.com/hazyhaar/marketintel/marketintel/internal/errs"
)

const observationColumns = `id, product_id, metric, value, text_value, source, metadata_json, collected_at, created_at`

// InsertObservations appends a batch atomically. A zero CreatedAt is stamped
// here and a zero CollectedAt defaults to it. Callers running on their own
// clock set both so the ordering check compares like with like.
func (s *Store) InsertObservations(ctx context.Context, obs []*Observation) error {
	now := nowMs()
	for _, o := range obs {
		if o.CreatedAt == 0 {
			o.CreatedAt = now
		}
		if o.CollectedAt == 0 {
			o.CollectedAt = now
		}
		if o.MetadataJSON == "" {
			o.MetadataJSON = "{}"
		}
		if o.Value == nil && o.TextValue == nil {
			return fmt.Errorf("%w: observation %s/%s has neither value nor text", errs.ErrValidation, o.ProductID, o.Metric)
		}
		if o.CollectedAt > o.CreatedAt {
			return fmt.Errorf("%w: observation %s/%s collected in the future", errs.ErrValidation, o.ProductID, o.Metric)
		}
	}

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO observations (`+observationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, o := range obs {
			if _, err := stmt.ExecContext(ctx, o.ID, o.ProductID, o.Metric, o.Value, o.TextValue,
				o.Source, o.MetadataJSON, o.CollectedAt, o.CreatedAt); err != nil {
				return fmt.Errorf("insert observation: %w", err)
			}
		}
		return nil
	})
}

// ListObservations returns observations matching f, ordered by collection time.
func (s *Store) ListObservations(ctx context.Context, f ObservationFilter) ([]*Observation, error) {
	q := `SELECT ` + observationColumns + ` FROM observations WHERE 1 = 1`
	var args []any
	if f.ProductID != "" {
		q += ` AND product_id = ?`
		args = append(args, f.ProductID)
	}
	if f.Metric != "" {
		q += ` AND metric = ?`
		args = append(args, f.Metric)
	}
	if f.Since > 0 {
		q += ` AND collected_at >= ?`
		args = append(args, f.Since)
	}
	if f.Until > 0 {
		q += ` AND collected_at <= ?`
		args = append(args, f.Until)
	}
	if f.Newest {
		q += ` ORDER BY collected_at DESC, id DESC`
	} else {
		q += ` ORDER BY collected_at ASC, id ASC`
	}
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Metric, &o.Value, &o.TextValue,
			&o.Source, &o.MetadataJSON, &o.CollectedAt, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		result = append(result, &o)
	}
	return result, rows.Err()
}

// LatestObservation returns the most recent observation of metric for a product
// that carries a numeric value, or nil.
func (s *Store) LatestObservation(ctx context.Context, productID, metric string) (*Observation, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+observationColumns+` FROM observations
		WHERE product_id = ? AND metric = ? AND value IS NOT NULL
		ORDER BY collected_at DESC, id DESC LIMIT 1`, productID, metric)
	var o Observation
	err := row.Scan(&o.ID, &o.ProductID, &o.Metric, &o.Value, &o.TextValue,
		&o.Source, &o.MetadataJSON, &o.CollectedAt, &o.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan observation: %w", err)
	}
	return &o, nil
}

// CountObservationsSince counts observations collected at or after since.
func (s *Store) CountObservationsSince(ctx context.Context, since int64) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM observations WHERE collected_at >= ?`, since).Scan(&n)
	return n, err
}

// CountBySource returns observation volume per source, largest first.
// limit <= 0 returns every source.
func (s *Store) CountBySource(ctx context.Context, limit int) ([]SourceCount, error) {
	q := `SELECT source, COUNT(*) AS n FROM observations GROUP BY source ORDER BY n DESC, source ASC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SourceCount
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan source count: %w", err)
		}
		result = append(result, sc)
	}
	return result, rows.Err()
}

// DeleteObservationsBefore purges observations collected before cutoff and
// returns how many rows went away. Reports keep their own snapshots.
func (s *Store) DeleteObservationsBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM observations WHERE collected_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
