// Command reclassify runs one batch of the offline reclassification
// job over incidents that are still categorized as "other". Meant to be
// scheduled (cron or similar), not to run continuously.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/civicwatch/intake/internal/classify"
	"github.com/civicwatch/intake/internal/config"
	"github.com/civicwatch/intake/internal/database"
	"github.com/civicwatch/intake/internal/logging"
	"github.com/civicwatch/intake/internal/mlclient"
	"github.com/civicwatch/intake/internal/processor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewFromLoggingConfig(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	var mlScorer processor.MLScorer
	if cfg.ML.Enabled {
		mlScorer = mlclient.NewClient(cfg.ML.BaseURL, cfg.ML.Timeout)
	}

	job := processor.NewReclassifier(
		database.NewIncidentsRepository(db),
		classify.NewCategoryClassifier(cfg.Classification, logger),
		classify.NewRiskScorer(cfg.Risk),
		mlScorer,
		nil, // one-shot job; nothing scrapes its metrics
		logger,
		cfg,
	)

	stats, err := job.Run(ctx)
	if err != nil {
		return fmt.Errorf("reclassify: %w", err)
	}

	logger.Info("done",
		logging.Int("scanned", stats.Scanned),
		logging.Int("updated", stats.Updated),
		logging.Int("failed", stats.Failed))
	return nil
}

func loadConfig() (*config.Config, error) {
	path := config.GetConfigPath("config.yml")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
