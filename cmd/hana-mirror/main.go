package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/philippevezina/hana-mirror/internal/common"
	"github.com/philippevezina/hana-mirror/internal/config"
	"github.com/philippevezina/hana-mirror/internal/hana"
	"github.com/philippevezina/hana-mirror/internal/metrics"
	"github.com/philippevezina/hana-mirror/internal/observability"
	"github.com/philippevezina/hana-mirror/internal/postgres"
	"github.com/philippevezina/hana-mirror/internal/replicate"
	"github.com/philippevezina/hana-mirror/internal/translate"
)

func main() {
	var (
		configPath = flag.String("config", "configs/example.yaml", "Path to configuration file")
		version    = flag.Bool("version", false, "Show version information")
		reset      = flag.Bool("reset", false, "Drop destination schemas before reload")
		dryRun     = flag.Bool("dry-run", false, "Verify connections and configuration without applying changes")
		testSentry = flag.Bool("test-sentry", false, "Send a test error to Sentry and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("HANA Mirror %s\n", common.GetVersion())
		os.Exit(0)
	}

	if *testSentry {
		if err := runSentryTest(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Sentry test failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(*configPath, *reset, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSentryTest(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Force enable error reporting for the test
	cfg.Observability.ErrorReporting.Enabled = true

	logger, err := common.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	obsManager, err := observability.NewManager(
		&cfg.Observability,
		common.LoggerWithComponent(logger, "observability"),
	)
	if err != nil {
		return fmt.Errorf("failed to create observability manager: %w", err)
	}

	testErr := fmt.Errorf("test error from hana-mirror: verifying Sentry integration at %s", time.Now().Format(time.RFC3339))

	logger.Info("Sending test error to Sentry...",
		zap.String("error", testErr.Error()))

	ctx := context.Background()
	obsManager.GetErrorReporter().CaptureError(ctx, testErr,
		observability.NewErrorContext("test", "sentry_verification").
			WithSchema("TEST_SCHEMA").
			WithTable("TEST_TABLE").
			WithExtra("test_key", "test_value"))

	obsManager.GetErrorReporter().CaptureMessage(ctx,
		"Test message from hana-mirror Sentry verification",
		observability.SeverityInfo,
		observability.NewErrorContext("test", "sentry_verification"))

	if !obsManager.GetErrorReporter().Flush(10 * time.Second) {
		logger.Warn("Flush timed out, some events may not have been sent")
	}

	if err := obsManager.Stop(); err != nil {
		logger.Warn("Error stopping observability manager", zap.Error(err))
	}

	logger.Info("Sentry test completed. Check your Sentry dashboard for the test error.")
	return nil
}

func run(configPath string, reset, dryRun bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The CLI flag forces a destructive reset regardless of the config file
	if reset {
		cfg.Replicate.Reset = true
	}

	logger, err := common.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	observabilityManager, err := observability.NewManager(
		&cfg.Observability,
		common.LoggerWithComponent(logger, "observability"),
	)
	if err != nil {
		return fmt.Errorf("failed to create observability manager: %w", err)
	}
	defer func() {
		if err := observabilityManager.Stop(); err != nil {
			logger.Warn("Error stopping observability manager", zap.Error(err))
		}
	}()

	tables, malformed := config.ParseTargets(cfg.Replicate.Tables)
	for _, entry := range malformed {
		logger.Warn("Dropping malformed table entry", zap.String("entry", entry))
	}

	views, malformed := config.ParseTargets(cfg.Replicate.Views)
	for _, entry := range malformed {
		logger.Warn("Dropping malformed view entry", zap.String("entry", entry))
	}

	if len(tables) == 0 && len(views) == 0 {
		return fmt.Errorf("no valid replication targets configured")
	}

	metricsManager := metrics.NewManager(&cfg.Monitoring, common.LoggerWithComponent(logger, "metrics"))
	if err := metricsManager.Start(); err != nil {
		return fmt.Errorf("failed to start metrics manager: %w", err)
	}
	defer func() {
		if err := metricsManager.Stop(); err != nil {
			logger.Warn("Error stopping metrics manager", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := hana.NewClient(&cfg.HANA, cfg.Replicate.ViewRewrites, logger)

	destination := postgres.NewClient(&cfg.Postgres, logger)
	if err := destination.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to destination: %w", err)
	}
	defer func() {
		if err := destination.Close(); err != nil {
			logger.Warn("Error closing destination connection", zap.Error(err))
		}
	}()

	orchestrator := replicate.NewOrchestrator(replicate.Options{
		Config:      &cfg.Replicate,
		Tables:      tables,
		Views:       views,
		Source:      source,
		Destination: destination,
		Translator:  translate.NewTranslator(logger),
		Metrics:     metricsManager.GetMetrics(),
		Errors:      observabilityManager.GetErrorReporter(),
		Logger:      logger,
		DryRun:      dryRun,
	})

	report, err := orchestrator.Run(ctx)
	if err != nil {
		observabilityManager.GetErrorReporter().CaptureError(ctx, err,
			observability.NewErrorContext("replicate", "run").WithRunID(report.RunID))
		return fmt.Errorf("replication run aborted: %w", err)
	}

	logger.Info("HANA Mirror finished",
		zap.String("run_id", report.RunID),
		zap.Duration("duration", report.Duration),
		zap.Int("tables_replicated", report.TablesReplicated),
		zap.Int("tables_skipped", report.TablesSkipped),
		zap.Int("tables_failed", report.TablesFailed),
		zap.Int("views_created", report.ViewsCreated),
		zap.Int64("rows_copied", report.RowsCopied))

	return nil
}
