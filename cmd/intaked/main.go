// Command intaked runs the incident intake HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civicwatch/intake/internal/api"
	"github.com/civicwatch/intake/internal/classify"
	"github.com/civicwatch/intake/internal/config"
	"github.com/civicwatch/intake/internal/database"
	"github.com/civicwatch/intake/internal/dedup"
	"github.com/civicwatch/intake/internal/intake"
	"github.com/civicwatch/intake/internal/logging"
	"github.com/civicwatch/intake/internal/mlclient"
	"github.com/civicwatch/intake/internal/notify"
	"github.com/civicwatch/intake/internal/telemetry"
	"github.com/civicwatch/intake/internal/workflow"
)

const shutdownTimeout = 15 * time.Second

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

	incidents := database.NewIncidentsRepository(db)
	reports := database.NewReportsRepository(db)
	mlRows := database.NewReportMLRepository(db)
	links := database.NewReportLinksRepository(db)
	actions := database.NewReportActionsRepository(db)

	tp := telemetry.NewProvider()
	notifier := notify.NewLoggingNotifier(logger)

	// The remote scorer is opt-in; with it off every capability runs on
	// the heuristic path.
	var (
		mlScorer   intake.MLScorer
		similarity dedup.SimilarityScorer
		mlHealth   api.HealthChecker
	)
	if cfg.ML.Enabled {
		client := mlclient.NewClient(cfg.ML.BaseURL, cfg.ML.Timeout)
		mlScorer = client
		similarity = client
		mlHealth = client
	}

	classifier := classify.NewCategoryClassifier(cfg.Classification, logger)
	toxicity := classify.NewToxicityScorer(cfg.Toxicity)
	risk := classify.NewRiskScorer(cfg.Risk)
	retriever := dedup.NewRetriever(incidents, cfg.Dedup, logger)
	dedupScorer := dedup.NewScorer(similarity, cfg.ML.SimilarityThreshold, cfg.Dedup, logger)

	pipeline := intake.NewPipeline(
		incidents, reports, mlRows, links, actions,
		retriever, dedupScorer,
		classifier, toxicity, risk,
		mlScorer, notifier, tp, logger, cfg,
	)
	moderation := workflow.NewService(incidents, reports, links, actions, mlRows, notifier, tp, logger)

	handler := api.NewHandler(pipeline, moderation, incidents, reports, mlRows, actions, mlHealth, logger, cfg.Service.Version)
	server := api.NewServer(handler, cfg, tp, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	logger.Info("intake service started",
		logging.String("version", cfg.Service.Version),
		logging.Int("port", cfg.Service.Port),
		logging.Bool("ml_enabled", cfg.ML.Enabled))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// loadConfig reads the YAML config; a missing file falls back to
// defaults so the service still boots from env overrides alone.
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
