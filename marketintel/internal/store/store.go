// Package store is the persistence layer for marketintel: companies, tracked
// products, the append-only observation series, reports and alerts.
//
// All timestamps are Unix milliseconds. Lookups by ID return (nil, nil) when
// the row does not exist; callers translate that into errs.ErrNotFound.
package store

import (
	"database/sql"
	"time"
)

// Store wraps the marketintel database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

func nowMs() int64 { return time.Now().UnixMilli() }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
