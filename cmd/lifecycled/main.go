package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/common"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/storage"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/tracker"
)

func main() {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	cfg := common.LoadConfig()

	level := slog.LevelInfo
	if cfg.Daemon.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.Storage.LogFilePath, cfg.Storage.BackupDir, logger)
	if err != nil {
		logger.Error("failed to open log store", "path", cfg.Storage.LogFilePath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !store.VerifyIntegrity(ctx) {
		logger.Error("log file failed integrity check, refusing to start", "path", cfg.Storage.LogFilePath)
		os.Exit(1)
	}

	strategy, _ := constants.ParseRetryStrategy(cfg.Retry.Strategy)
	trk := tracker.NewTracker(store, tracker.Config{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		Strategy:   strategy,
	}, logger)
	rotation := storage.NewRotationManager(store, cfg.Rotation.MaxFileSizeMB, logger)

	logger.Info("lifecycled started",
		"log_file", cfg.Storage.LogFilePath,
		"poll_interval", cfg.Daemon.PollInterval,
		"retry_strategy", strategy,
	)

	ticker := time.NewTicker(cfg.Daemon.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			runMaintenance(ctx, logger, cfg, store, trk, rotation)
		}
	}
}

// runMaintenance performs one housekeeping pass: rotation, backup pruning,
// age-based cleanup, stale metrics cleanup and retry candidate reporting.
func runMaintenance(
	ctx context.Context,
	logger *slog.Logger,
	cfg *common.Config,
	store *storage.Store,
	trk *tracker.Tracker,
	rotation *storage.RotationManager,
) {
	if rotation.ShouldRotate() {
		if err := rotation.Rotate(ctx); err != nil {
			logger.Error("log rotation failed", "error", err)
		} else if _, err := rotation.PruneBackups(cfg.Rotation.MaxBackups); err != nil {
			logger.Error("backup pruning failed", "error", err)
		}
	}

	if removed, err := store.CleanupOlderThan(ctx, cfg.Rotation.RetentionDays); err != nil {
		logger.Error("cleanup failed", "error", err)
	} else if removed > 0 {
		logger.Info("removed expired log entries", "count", removed)
	}

	trk.CleanupStaleMetrics(24 * time.Hour)

	candidates, err := trk.RetryCandidates(ctx)
	if err != nil {
		logger.Error("failed to list retry candidates", "error", err)
		return
	}
	for _, l := range candidates {
		logger.Info("entry eligible for retry", "id", l.ID, "file", l.OriginalFilename, "attempts", l.ProcessingAttempts)
	}
}
