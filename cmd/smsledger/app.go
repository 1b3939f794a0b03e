package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/classifier"
	"github.com/ArionMiles/smsledger/pkg/config"
	"github.com/ArionMiles/smsledger/pkg/correction"
	"github.com/ArionMiles/smsledger/pkg/ingest"
	"github.com/ArionMiles/smsledger/pkg/keywords"
	"github.com/ArionMiles/smsledger/pkg/parser"
	"github.com/ArionMiles/smsledger/pkg/spool"
	"github.com/ArionMiles/smsledger/pkg/store/boltdb"
	"github.com/ArionMiles/smsledger/pkg/store/postgres"
	"github.com/ArionMiles/smsledger/pkg/store/sqlite"
)

// ledgerStore is what both ledger drivers provide.
type ledgerStore interface {
	api.Ledger
	api.MerchantMemory
	Ping(ctx context.Context) error
	Close() error
}

// app holds the opened stores and the components built on them.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	ledger     ledgerStore
	models     *boltdb.Store
	spool      *spool.Spool
	classifier *classifier.Classifier
	pipeline   *ingest.Pipeline
	correction *correction.Service
}

// openApp opens the ledger, the model store and the spool, then builds the
// classifier, parser, ingestion pipeline and correction service on top.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	for _, p := range []string{cfg.ModelPath, cfg.SpoolPath, cfg.SQLitePath} {
		if err := ensureDir(p); err != nil {
			return nil, err
		}
	}

	ledger, err := openLedger(ctx, cfg, logger.With("component", "ledger"))
	if err != nil {
		return nil, err
	}

	models, err := boltdb.Open(boltdb.Config{Path: cfg.ModelPath, SeenCap: cfg.SeenCap}, logger.With("component", "model_store"))
	if err != nil {
		_ = ledger.Close()
		return nil, fmt.Errorf("opening model store: %w", err)
	}

	sp, err := spool.Open(cfg.SpoolPath, cfg.SpoolCap, logger.With("component", "spool"))
	if err != nil {
		_ = models.Close()
		_ = ledger.Close()
		return nil, fmt.Errorf("opening spool: %w", err)
	}

	km := keywords.Default()
	clf := classifier.New(km, models, ledger, logger.With("component", "classifier"))
	clf.Init(ctx)

	categorizer := keywords.NewCategorizer(km, ledger, logger.With("component", "categorizer"))
	p := parser.New(categorizer, logger.With("component", "parser"))

	pipeline := ingest.New(ingest.Config{
		Window:          cfg.DedupWindow,
		AmountTolerance: cfg.AmountTolerance,
	}, p, clf, ledger, models, logger.With("component", "ingest"))

	return &app{
		cfg:        cfg,
		logger:     logger,
		ledger:     ledger,
		models:     models,
		spool:      sp,
		classifier: clf,
		pipeline:   pipeline,
		correction: correction.New(ledger, clf, ledger, logger.With("component", "correction")),
	}, nil
}

func openLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledgerStore, error) {
	switch cfg.LedgerDriver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, postgres.Config{
			URL:      cfg.Postgres.URL,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("opening postgres ledger: %w", err)
		}
		return s, nil
	default:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite ledger: %w", err)
		}
		return s, nil
	}
}

// Close closes every store, returning all errors.
func (a *app) Close() error {
	return errors.Join(a.models.Close(), a.ledger.Close())
}

func ensureDir(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}
