// Package app wires storage, text acquisition, inference and persistence
// into a ready pipeline for the commands.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/export"
	"github.com/joseph-ayodele/medorders/internal/extract"
	"github.com/joseph-ayodele/medorders/internal/llm"
	"github.com/joseph-ayodele/medorders/internal/llm/ollama"
	"github.com/joseph-ayodele/medorders/internal/ocr"
	"github.com/joseph-ayodele/medorders/internal/orders"
	"github.com/joseph-ayodele/medorders/internal/pipeline"
	"github.com/joseph-ayodele/medorders/internal/repository"
)

// Options select the storage engine and let tests replace the model and
// text acquisition.
type Options struct {
	InMemory  bool
	Completer llm.Completer
	Acquirer  extract.TextAcquirer
}

type App struct {
	Config   *common.Config
	DB       *repository.DB
	Orders   *orders.Service
	Pipeline *pipeline.Pipeline
	Export   *export.Service
	Model    string

	logger *slog.Logger
}

// Build opens and migrates the database, then assembles the pipeline.
func Build(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(!opts.InMemory); err != nil {
		return nil, err
	}

	db, err := openDB(ctx, cfg, opts.InMemory, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	pcfg := cfg.Pipeline.WithDefaults()

	acquirer := opts.Acquirer
	if acquirer == nil {
		recognizer := ocr.NewTesseractRecognizer(cfg.OCR.Tesseract, cfg.OCR.TesseractLang, cfg.OCR.TessdataDir, nil, logger)
		acquirer = ocr.NewExtractor(ocr.Config{
			MinChars:    pcfg.MinExtractedChars,
			DPI:         cfg.OCR.DPI,
			MaxPages:    cfg.OCR.MaxPages,
			Concurrency: cfg.OCR.Concurrency,
		}, ocr.OpenFitz, recognizer, logger)
	}
	completer := opts.Completer
	if completer == nil {
		completer = ollama.FromConfig(cfg.LLM, pcfg.InferenceModel, logger)
	}

	svc := orders.NewService(db, pcfg, logger)
	p := pipeline.New(pcfg, acquirer, extract.NewLLMExtractor(completer, logger), svc, logger)

	logger.Info("pipeline ready",
		"dialect", db.Dialect(),
		"model", completer.Model(),
		"max_document_bytes", pcfg.MaxDocumentBytes,
		"duplicate_lookback_hours", pcfg.DuplicateLookbackHours,
	)
	return &App{
		Config:   cfg,
		DB:       db,
		Orders:   svc,
		Pipeline: p,
		Export:   export.NewService(svc, logger),
		Model:    completer.Model(),
		logger:   logger,
	}, nil
}

func openDB(ctx context.Context, cfg *common.Config, inMemory bool, logger *slog.Logger) (*repository.DB, error) {
	if inMemory {
		logger.Info("using in-memory database")
		return repository.OpenSQLite(ctx, "", logger)
	}
	logger.Info("connecting to database")
	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("successfully connected to database")
	return db, nil
}

func (a *App) Close() {
	a.DB.Close()
}
