package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/insightdelivered/statement-ingest/internal/config"
	"github.com/insightdelivered/statement-ingest/internal/ingest"
	"github.com/insightdelivered/statement-ingest/internal/logger"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

type otherClassifier struct{}

func (otherClassifier) Classify(string) string { return "Other" }

func testApp(t *testing.T) (*fiber.App, config.Config) {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.WorkDir = dir
	cfg.Store.Path = filepath.Join(dir, "store.db")

	app := fiber.New()
	srv := NewServer(cfg, otherClassifier{}, logger.NewWithWriter(io.Discard))
	srv.RegisterRoutes(app)
	return app, cfg
}

func multipartUpload(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/statements", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	app, _ := testApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		wantStatus int
	}{
		{"stamped pdf", "releves_20200315.pdf", http.StatusCreated},
		{"stamped txt", "releves_20200315.txt", http.StatusCreated},
		{"unsupported extension", "releves_20200315.csv", http.StatusBadRequest},
		{"missing date stamp", "releves.pdf", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, cfg := testApp(t)

			resp, err := app.Test(multipartUpload(t, tt.filename, []byte("content")))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusCreated {
				if _, err := os.Stat(filepath.Join(cfg.WorkDir, tt.filename)); err != nil {
					t.Errorf("uploaded file not saved: %v", err)
				}
			}
		})
	}
}

func TestUploadWithoutFile(t *testing.T) {
	app, _ := testApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/statements", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestExtractEventsWithoutStatements(t *testing.T) {
	app, _ := testApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/extract/events", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestExtractEventsStreamsAndWritesWorkingCSV(t *testing.T) {
	app, cfg := testApp(t)

	statement := "SOLDE PRECEDENT 100,00\n" +
		"01/03 Some Shop 12,34\n" +
		"NOUVEAU SOLDE 87,66"
	path := filepath.Join(cfg.WorkDir, "releves_20200315.txt")
	if err := os.WriteFile(path, []byte(statement), 0o644); err != nil {
		t.Fatal(err)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/extract/events", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	stream := string(body)
	if !strings.Contains(stream, "data: 100") {
		t.Errorf("stream missing final progress event:\n%s", stream)
	}
	if !strings.Contains(stream, "event: done") {
		t.Errorf("stream missing done event:\n%s", stream)
	}

	records, err := writer.ReadFile(filepath.Join(cfg.WorkDir, "records.csv"))
	if err != nil {
		t.Fatalf("working CSV not written: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].ID != "20200301" || records[0].Reference != "SomeShop" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestIngestStartWithoutWorkingCSV(t *testing.T) {
	app, _ := testApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/ingest", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestIngestFlow(t *testing.T) {
	app, cfg := testApp(t)

	v := 12.34
	records := []models.Record{
		{
			ID:        "20200301",
			Date:      time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC),
			Value:     &v,
			Category:  "Other",
			Reference: "SomeShop",
		},
	}
	cw := &writer.CSVWriter{}
	if err := cw.WriteToFile(filepath.Join(cfg.WorkDir, "records.csv"), records); err != nil {
		t.Fatal(err)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/ingest", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var started struct {
		Run     string `json:"run"`
		Records int    `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatal(err)
	}
	if started.Records != 1 {
		t.Errorf("records = %d, want 1", started.Records)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/ingest/"+started.Run+"/events", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	stream := string(body)
	if !strings.Contains(stream, "data: 100") {
		t.Errorf("stream missing final progress event:\n%s", stream)
	}
	if !strings.Contains(stream, "event: done") {
		t.Errorf("stream missing done event:\n%s", stream)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/results", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("results status = %d, want 200", resp.StatusCode)
	}
	var outcome ingest.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		t.Fatal(err)
	}
	if outcome.Succeeded != 1 || outcome.Failed != 0 {
		t.Errorf("outcome = %+v, want 1 succeeded", outcome)
	}
}

func TestIngestEventsUnknownRun(t *testing.T) {
	app, _ := testApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/ingest/nope/events", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestResultsBeforeAnyRun(t *testing.T) {
	app, _ := testApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/results", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
