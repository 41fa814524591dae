// Package api exposes the extraction and ingestion flows over HTTP.
// Progress-emitting stages stream server-sent events so a client can
// drive a live progress indicator.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-ingest/internal/config"
	"github.com/insightdelivered/statement-ingest/internal/extractor"
	"github.com/insightdelivered/statement-ingest/internal/ingest"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/parser"
	"github.com/insightdelivered/statement-ingest/internal/store"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

const version = "1.0.0"

// Server holds the HTTP handlers and the state shared between them:
// the classifier model (loaded once) and the in-flight ingestion runs.
type Server struct {
	cfg        config.Config
	classifier parser.Classifier
	log        zerolog.Logger

	mu   sync.Mutex
	runs map[string]*ingestRun
}

type ingestRun struct {
	run    *ingest.Run
	cancel context.CancelFunc
}

func NewServer(cfg config.Config, classifier parser.Classifier, log zerolog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		classifier: classifier,
		log:        log,
		runs:       make(map[string]*ingestRun),
	}
}

// RegisterRoutes sets up the API routes.
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", s.handleHealth)
	app.Post("/api/statements", s.handleUpload)
	app.Get("/api/extract/events", s.handleExtractEvents)
	app.Post("/api/ingest", s.handleIngestStart)
	app.Get("/api/ingest/:id/events", s.handleIngestEvents)
	app.Get("/api/results", s.handleResults)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": version,
	})
}

// handleUpload accepts one statement file. The filename must carry the
// YYYYMMDD stamp the parser derives the statement year/month from.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "no file uploaded; use form field 'file'")
	}

	name := filepath.Base(fh.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".pdf" && ext != ".txt" {
		return fiber.NewError(fiber.StatusBadRequest, "only .pdf and .txt statements are supported")
	}
	if _, _, err := models.ParseStamp(strings.ToLower(name)); err != nil {
		return fiber.NewError(fiber.StatusBadRequest,
			"statement filename must end with a YYYYMMDD date stamp, e.g. RELEVES_20200315.pdf")
	}

	if err := os.MkdirAll(s.cfg.WorkDir, 0o755); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not prepare work dir")
	}
	dst := filepath.Join(s.cfg.WorkDir, name)
	if err := c.SaveFile(fh, dst); err != nil {
		s.log.Error().Err(err).Str("file", name).Msg("saving upload failed")
		return fiber.NewError(fiber.StatusInternalServerError, "could not save upload")
	}

	s.log.Info().Str("file", name).Msg("statement uploaded")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"file": name})
}

// handleExtractEvents runs extraction over every uploaded statement in
// the work dir and streams progress as SSE. The final event reports
// the number of records written to the working CSV.
func (s *Server) handleExtractEvents(c *fiber.Ctx) error {
	files, err := s.pendingStatements()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "no uploaded statements to extract")
	}

	setSSEHeaders(c)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		s.streamExtraction(w, files)
	})
	return nil
}

func (s *Server) streamExtraction(w *bufio.Writer, files []string) {
	var docs []models.Document
	total := len(files)
	for i, path := range files {
		name := strings.ToLower(filepath.Base(path))
		year, month, err := models.ParseStamp(name)
		if err != nil {
			s.log.Warn().Str("file", name).Err(err).Msg("skipping unstamped file")
			continue
		}

		var text string
		if strings.HasSuffix(name, ".txt") {
			data, err := os.ReadFile(path)
			if err != nil {
				s.log.Error().Str("file", name).Err(err).Msg("reading statement text failed")
				continue
			}
			text = string(data)
		} else {
			pages, err := extractor.ExtractPages(path, func(done, pageTotal int) {
				// Page-level granularity within the current file.
				pct := (i*100 + done*100/pageTotal) / total
				sseData(w, pct)
			})
			if err != nil {
				s.log.Error().Str("file", name).Err(err).Msg("text extraction failed")
				continue
			}
			text = strings.Join(pages, "\n")
		}

		docs = append(docs, models.Document{Year: year, Month: month, Text: text})
		sseData(w, (i+1)*100/total)
	}

	pipe := parser.NewPipeline(
		parser.NewSegmenter(s.cfg.Markers.Start, s.cfg.Markers.End),
		s.classifier,
		s.log,
	)
	records, skipped := pipe.Run(docs)
	for _, docErr := range skipped {
		s.log.Warn().Err(docErr).Msg("statement skipped")
	}

	cw := &writer.CSVWriter{}
	if err := cw.WriteToFile(s.workingCSV(), records); err != nil {
		s.log.Error().Err(err).Msg("writing working CSV failed")
		sseEvent(w, "error", fmt.Sprintf(`{"error":%q}`, err.Error()))
		return
	}

	sseData(w, 100)
	payload, _ := json.Marshal(fiber.Map{"records": len(records), "skipped": len(skipped)})
	sseEvent(w, "done", string(payload))
}

// handleIngestStart reads the working CSV and starts an ingestion run.
// The run does not advance until a client consumes its event stream.
func (s *Server) handleIngestStart(c *fiber.Ctx) error {
	records, err := writer.ReadFile(s.workingCSV())
	if err != nil {
		return fiber.NewError(fiber.StatusConflict, "no working record set; run extraction first")
	}

	scfg := store.Config{Path: s.cfg.Store.Path, Table: s.cfg.Store.Table}
	open := func(ctx context.Context) (store.RowStore, error) {
		return store.Open(ctx, scfg)
	}
	runner := ingest.NewRunner(open, s.resultsPath(), s.log)

	ctx, cancel := context.WithCancel(context.Background())
	run := runner.Start(ctx, records)

	id := uuid.NewString()
	s.mu.Lock()
	s.runs[id] = &ingestRun{run: run, cancel: cancel}
	s.mu.Unlock()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run":     id,
		"records": len(records),
	})
}

// handleIngestEvents streams the row-by-row progress of a run as SSE,
// ending with the final tally. Dropping the connection cancels the run.
func (s *Server) handleIngestEvents(c *fiber.Ctx) error {
	id := c.Params("id")
	s.mu.Lock()
	ir, ok := s.runs[id]
	s.mu.Unlock()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown ingestion run")
	}

	setSSEHeaders(c)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer ir.cancel()
		for pct := range ir.run.Progress() {
			if !sseData(w, pct) {
				return
			}
		}
		outcome, err := ir.run.Wait()
		if err != nil {
			sseEvent(w, "error", fmt.Sprintf(`{"error":%q,"state":%q}`, err.Error(), ir.run.State().String()))
			return
		}
		payload, _ := json.Marshal(outcome)
		sseEvent(w, "done", string(payload))
	})
	return nil
}

// handleResults returns the tally written by the last completed run.
func (s *Server) handleResults(c *fiber.Ctx) error {
	outcome, err := ingest.ReadResults(s.resultsPath())
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "no ingestion results recorded yet")
	}
	return c.JSON(outcome)
}

// pendingStatements lists the uploaded statement files in the work dir.
func (s *Server) pendingStatements() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("reading work dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if !strings.HasSuffix(name, ".pdf") && !strings.HasSuffix(name, ".txt") {
			continue
		}
		// Only stamped statement files count; the working CSV and the
		// results artifact live in the same dir.
		if _, _, err := models.ParseStamp(name); err != nil {
			continue
		}
		files = append(files, filepath.Join(s.cfg.WorkDir, e.Name()))
	}
	return files, nil
}

func (s *Server) workingCSV() string {
	return filepath.Join(s.cfg.WorkDir, "records.csv")
}

func (s *Server) resultsPath() string {
	return filepath.Join(s.cfg.WorkDir, "results.txt")
}

func setSSEHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
}

// sseData writes one progress event. Returns false once the client is
// gone.
func sseData(w *bufio.Writer, pct int) bool {
	if _, err := fmt.Fprintf(w, "data: %d\n\n", pct); err != nil {
		return false
	}
	return w.Flush() == nil
}

func sseEvent(w *bufio.Writer, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	w.Flush()
}
