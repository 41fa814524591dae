// Package store persists transaction records into a relational row
// store.
package store

import (
	"context"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// RowStore inserts transaction rows one at a time. Each insert commits
// independently; there is no cross-row atomicity and no dedup, so
// re-running an ingestion re-inserts its rows.
type RowStore interface {
	InsertRecord(ctx context.Context, rec models.Record) error
	Close() error
}

// Config holds the connection parameters for the SQLite-backed store.
// It comes from external configuration, never from the core.
type Config struct {
	// Path is the database file. An empty path opens an in-memory
	// database, which tests use.
	Path string
	// Table is the destination table name.
	Table string
}
