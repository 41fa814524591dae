package parser

import (
	"io"
	"testing"

	"github.com/insightdelivered/statement-ingest/internal/logger"
)

func testExtractor() *FieldExtractor {
	return NewFieldExtractor(logger.NewWithWriter(io.Discard))
}

func TestStatementDate(t *testing.T) {
	tests := []struct {
		name  string
		line  CandidateLine
		want  string
	}{
		{
			name: "same month keeps document year",
			line: CandidateLine{Text: "15/06 Shop 1,00", Year: "2020", Month: "06"},
			want: "15/06/2020",
		},
		{
			name: "december line on january statement rolls back a year",
			line: CandidateLine{Text: "31/12 Shop 1,00", Year: "2020", Month: "01"},
			want: "31/12/2019",
		},
		{
			name: "december line on december statement keeps year",
			line: CandidateLine{Text: "31/12 Shop 1,00", Year: "2020", Month: "12"},
			want: "31/12/2020",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statementDate(tt.line); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{"single digit shape", "Shop 1,23", " 1,23", false},
		{"two digit shape", "Shop 12,34", " 12,34", false},
		{"three digit shape", "Shop 123,45", "123,45", false},
		{"thousands with space", "Shop 1 234,56", "1 234,56", false},
		{"thousands with dot normalized", "Shop 1.234,56", "1 234,56", false},
		{"five digit thousands", "Shop 12 345,67", "12 345,67", false},
		{"too short", "1,2", "", true},
		{"no trailing shape", "Shop12345,678", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractAmount(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("got %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterReference(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"strips embedded full date", "CARD 12/03/2020 SHOP 5,00", "CARD  SHOP 5,00"},
		{"strips long digit run", "VIREMENT 12345678 ACME 20,00", "VIREMENT  ACME 20,00"},
		{"strips punctuation noise", "SHOP-PARIS?!;:_x 3,00", "SHOPPARISx 3,00"},
		{"keeps short digit groups", "SHOP 12,34", "SHOP 12,34"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filterReference(tt.ref); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractFields(t *testing.T) {
	e := testExtractor()

	t.Run("full line", func(t *testing.T) {
		line := CandidateLine{Text: "01/03 Some Shop 12,34", Year: "2020", Month: "03"}
		got := e.Extract(line)

		if got.Date != "01/03/2020" {
			t.Errorf("date = %q, want 01/03/2020", got.Date)
		}
		if got.Amount != "12,34" {
			t.Errorf("amount = %q, want 12,34", got.Amount)
		}
		if got.Reference != "Some Shop" {
			t.Errorf("reference = %q, want Some Shop", got.Reference)
		}
	})

	t.Run("amount failure substitutes sentinels", func(t *testing.T) {
		// The tail never matches an amount shape once filtering ran.
		line := CandidateLine{Text: "01/03 X,,", Year: "2020", Month: "03"}
		got := e.Extract(line)

		if got.Amount != "0,00" {
			t.Errorf("amount = %q, want sentinel 0,00", got.Amount)
		}
		if got.Reference != "ERROR" {
			t.Errorf("reference = %q, want sentinel ERROR", got.Reference)
		}
		if got.Date != "01/03/2020" {
			t.Errorf("date = %q, want 01/03/2020", got.Date)
		}
	})

	t.Run("card reference number removed from reference", func(t *testing.T) {
		line := CandidateLine{Text: "05/03 PAIEMENT CB 1234567 TABAC 7,50", Year: "2020", Month: "03"}
		got := e.Extract(line)

		if got.Amount != "7,50" {
			t.Errorf("amount = %q, want 7,50", got.Amount)
		}
		if got.Reference != "PAIEMENT CB  TABAC" {
			t.Errorf("reference = %q, want %q", got.Reference, "PAIEMENT CB  TABAC")
		}
	})
}
