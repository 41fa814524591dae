package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, Config{Path: filepath.Join(t.TempDir(), "store.db")})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string) models.Record {
	v := 12.34
	return models.Record{
		ID:        id,
		Date:      time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC),
		Value:     &v,
		Category:  "Alimentaire",
		Reference: "SomeShop",
	}
}

func TestInsertAndCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.InsertRecord(ctx, sampleRecord("20200301")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.InsertRecord(ctx, sampleRecord("20200302")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	n, err := s.CountRows(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("got %d rows, want 2", n)
	}
}

func TestInsertNullValue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("20200301")
	rec.Value = nil
	if err := s.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("insert with missing value failed: %v", err)
	}

	var value *float64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM transactions WHERE id = ?`, rec.ID).Scan(&value)
	if err != nil {
		t.Fatalf("reading back row: %v", err)
	}
	if value != nil {
		t.Errorf("value = %v, want NULL", *value)
	}
}

func TestReinsertSameIDAppends(t *testing.T) {
	// The id column is deliberately not a primary key. Running the same
	// statement through ingestion twice duplicates its rows.
	s := openTestStore(t)
	ctx := context.Background()

	for range 2 {
		if err := s.InsertRecord(ctx, sampleRecord("20200301")); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	n, err := s.CountRows(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("got %d rows, want 2 duplicates", n)
	}
}

func TestOpenCustomTable(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{
		Path:  filepath.Join(t.TempDir(), "store.db"),
		Table: "releves",
	})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer s.Close()

	if err := s.InsertRecord(ctx, sampleRecord("20200301")); err != nil {
		t.Fatalf("insert into custom table failed: %v", err)
	}
	n, err := s.CountRows(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d rows, want 1", n)
	}
}

func TestOpenRejectsBadTableName(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, Config{Table: "transactions; DROP TABLE x"})
	if err == nil {
		t.Error("want error for invalid table name")
	}
}
