package writer

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

func sampleRecords() []models.Record {
	v := 12.34
	return []models.Record{
		{
			ID:        "20200301",
			Date:      time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC),
			Value:     &v,
			Category:  "Alimentaire",
			Reference: "SomeShop",
		},
		{
			ID:        "20200302",
			Date:      time.Date(2020, time.March, 2, 0, 0, 0, 0, time.UTC),
			Value:     nil,
			Category:  "Other",
			Reference: "ERROR",
		},
	}
}

func TestWriteFormat(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{}
	if err := w.Write(&buf, sampleRecords()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2 rows", len(lines))
	}
	if lines[0] != "ID,Date,Value,Category,Reference" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "20200301,2020-03-01,12.34,Alimentaire,SomeShop" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != "20200302,2020-03-02,,Other,ERROR" {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.csv")
	w := &CSVWriter{}
	want := sampleRecords()

	if err := w.WriteToFile(path, want); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("record %d ID = %q, want %q", i, got[i].ID, want[i].ID)
		}
		if !got[i].Date.Equal(want[i].Date) {
			t.Errorf("record %d date = %v, want %v", i, got[i].Date, want[i].Date)
		}
		if got[i].Category != want[i].Category || got[i].Reference != want[i].Reference {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if got[0].Value == nil || *got[0].Value != 12.34 {
		t.Errorf("record 0 value = %v, want 12.34", got[0].Value)
	}
	if got[1].Value != nil {
		t.Errorf("record 1 value = %v, want nil", *got[1].Value)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty file", ""},
		{"bad date", "ID,Date,Value,Category,Reference\n1,yesterday,1.00,Other,X\n"},
		{"bad value", "ID,Date,Value,Category,Reference\n1,2020-03-01,lots,Other,X\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(tt.data)); err == nil {
				t.Error("want error")
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("want error for missing working file")
	}
}
