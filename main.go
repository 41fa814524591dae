package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-ingest/internal/api"
	"github.com/insightdelivered/statement-ingest/internal/classify"
	"github.com/insightdelivered/statement-ingest/internal/config"
	"github.com/insightdelivered/statement-ingest/internal/extractor"
	"github.com/insightdelivered/statement-ingest/internal/ingest"
	"github.com/insightdelivered/statement-ingest/internal/logger"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/parser"
	"github.com/insightdelivered/statement-ingest/internal/store"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

const version = "1.0.0"

func main() {
	configFlag := flag.String("config", "", "Path to YAML config file (defaults used if omitted)")
	serveFlag := flag.Bool("serve", false, "Run the HTTP API instead of the CLI flow")
	trainFlag := flag.Bool("train", false, "Train the classifier from the corpus and write the model artifact")
	ingestFlag := flag.Bool("ingest", false, "Ingest the working record CSV into the row store")
	resultsFlag := flag.Bool("results", false, "Print the tally of the last ingestion run")
	versionFlag := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Statement Ingest
by Insight Delivered

Extracts transactions from scanned bank statements, classifies them by
spending category and persists them into the transaction store.

Usage:
  statement-ingest [flags] <statement_YYYYMMDD.pdf|.txt ...>

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Extract statements to the working CSV
  statement-ingest RELEVES_20200315.pdf RELEVES_20200418.pdf

  # Persist the working CSV into the store
  statement-ingest -ingest

  # Show the outcome of the last ingestion
  statement-ingest -results

  # Train the category classifier
  statement-ingest -train

  # Run the HTTP API
  statement-ingest -serve
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("statement-ingest v%s\n", version)
		os.Exit(0)
	}

	log := logger.New()

	cfg := config.Default()
	if *configFlag != "" {
		var err error
		cfg, err = config.Load(*configFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load config")
		}
	}

	switch {
	case *trainFlag:
		model, err := classify.Train(cfg.Model.Corpus, log)
		if err != nil {
			log.Fatal().Err(err).Msg("training failed")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Model.Path), 0o755); err != nil {
			log.Fatal().Err(err).Msg("could not prepare model dir")
		}
		if err := model.Save(cfg.Model.Path); err != nil {
			log.Fatal().Err(err).Msg("saving model failed")
		}
		fmt.Printf("Model written to %s\n", cfg.Model.Path)

	case *resultsFlag:
		outcome, err := ingest.ReadResults(resultsPath(cfg))
		if err != nil {
			log.Fatal().Err(err).Msg("no ingestion results recorded")
		}
		color.Green("%d successful transactions.", outcome.Succeeded)
		color.Red("%d failed transactions.", outcome.Failed)

	case *ingestFlag:
		runIngestion(cfg, log)

	case *serveFlag:
		serve(cfg, log)

	default:
		if flag.NArg() == 0 {
			flag.Usage()
			os.Exit(0)
		}
		runExtraction(cfg, log, flag.Args())
	}
}

func runExtraction(cfg config.Config, log zerolog.Logger, files []string) {
	classifier := openClassifier(cfg, log)

	var docs []models.Document
	for _, path := range files {
		name := strings.ToLower(filepath.Base(path))
		year, month, err := models.ParseStamp(name)
		if err != nil {
			log.Fatal().Err(err).Msg("bad statement filename")
		}

		var text string
		if strings.HasSuffix(name, ".txt") {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Fatal().Err(err).Str("file", path).Msg("could not read statement")
			}
			text = string(data)
		} else {
			fmt.Printf("Processing: %s\n", path)
			pages, err := extractor.ExtractPages(path, func(done, total int) {
				fmt.Printf("  Extracted page %d/%d\n", done, total)
			})
			if err != nil {
				log.Fatal().Err(err).Str("file", path).Msg("text extraction failed")
			}
			text = strings.Join(pages, "\n")
		}
		docs = append(docs, models.Document{Year: year, Month: month, Text: text})
	}

	pipe := parser.NewPipeline(
		parser.NewSegmenter(cfg.Markers.Start, cfg.Markers.End),
		classifier,
		log,
	)
	records, skipped := pipe.Run(docs)
	for _, docErr := range skipped {
		color.Yellow("Skipped statement %s-%s: %v", docErr.Year, docErr.Month, docErr.Err)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("could not prepare work dir")
	}
	out := workingCSV(cfg)
	cw := &writer.CSVWriter{}
	if err := cw.WriteToFile(out, records); err != nil {
		log.Fatal().Err(err).Msg("could not write working CSV")
	}

	color.Green("Extracted %d record(s) from %d statement(s) to %s", len(records), len(docs), out)
}

func runIngestion(cfg config.Config, log zerolog.Logger) {
	records, err := writer.ReadFile(workingCSV(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("no working record set; run extraction first")
	}

	scfg := store.Config{Path: cfg.Store.Path, Table: cfg.Store.Table}
	open := func(ctx context.Context) (store.RowStore, error) {
		return store.Open(ctx, scfg)
	}
	runner := ingest.NewRunner(open, resultsPath(cfg), log)

	run := runner.Start(context.Background(), records)
	for pct := range run.Progress() {
		fmt.Printf("\rIngesting... %3d%%", pct)
	}
	fmt.Println()

	outcome, err := run.Wait()
	if err != nil {
		log.Fatal().Err(err).Str("state", run.State().String()).Msg("ingestion failed")
	}
	color.Green("%d successful transactions.", outcome.Succeeded)
	color.Red("%d failed transactions.", outcome.Failed)
}

func serve(cfg config.Config, log zerolog.Logger) {
	classifier := openClassifier(cfg, log)

	app := fiber.New(fiber.Config{
		AppName:   "statement-ingest v" + version,
		BodyLimit: 32 << 20,
	})
	srv := api.NewServer(cfg, classifier, log)
	srv.RegisterRoutes(app)

	log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func openClassifier(cfg config.Config, log zerolog.Logger) parser.Classifier {
	model, err := classify.Load(cfg.Model.Path, log)
	if err != nil {
		log.Warn().Err(err).Msg("no classifier artifact; all records will be categorized Other")
		return classify.Unavailable{}
	}
	return model
}

func workingCSV(cfg config.Config) string {
	return filepath.Join(cfg.WorkDir, "records.csv")
}

func resultsPath(cfg config.Config) string {
	return filepath.Join(cfg.WorkDir, "results.txt")
}
