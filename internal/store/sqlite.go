package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

//go:embed schema.sql
var schemaSQL string

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore is the SQLite-backed RowStore.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// Open connects to the database, applies the schema and verifies the
// connection with a ping. A failure here is run-fatal for ingestion.
func Open(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	table := cfg.Table
	if table == "" {
		table = "transactions"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, errors.Errorf("invalid table name %q", table)
	}

	dsn := cfg.Path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening database %s", dsn)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connecting to database %s", dsn)
	}

	schema := strings.ReplaceAll(schemaSQL, "transactions", table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "applying schema")
	}

	return &SQLiteStore{db: db, table: table}, nil
}

// InsertRecord inserts one transaction row. The insert commits on its
// own; a failure affects only this row.
func (s *SQLiteStore) InsertRecord(ctx context.Context, rec models.Record) error {
	stmt := fmt.Sprintf(
		`INSERT INTO %s (id, date, value, category, reference) VALUES (?, ?, ?, ?, ?)`,
		s.table,
	)
	var value any
	if rec.Value != nil {
		value = *rec.Value
	}
	_, err := s.db.ExecContext(ctx, stmt,
		rec.ID,
		rec.Date.Format("2006-01-02"),
		value,
		rec.Category,
		rec.Reference,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting record %s", rec.ID)
	}
	return nil
}

// CountRows returns the number of rows in the destination table.
func (s *SQLiteStore) CountRows(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "counting rows")
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
