package main

import (
	"context"
	"errors"
	"os"
	"time"

	"kuberx/internal/amqp"
	"kuberx/internal/cli"
	"kuberx/internal/log"
	"kuberx/internal/services"
	gsheet "kuberx/internal/sheets/google"
	"kuberx/internal/storage"
	"kuberx/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info", log.ComponentWorker).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)
	logger.Info("Starting kuberx-worker")

	sqliteRepo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required: the worker mirrors SQLite into Google Sheets")
		os.Exit(1)
	}
	sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	syncWorker := worker.NewSyncWorker(sqliteRepo, sheetsClient, cfg.SyncBatchSize)
	processor := services.NewSyncProcessor(syncWorker, sqliteRepo, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
	})

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, relying on periodic sync", "error", err)
			amqpClient = nil
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Failed to stop sync processor", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", "error", err)
			}
		}
	})

	// Loans written while the worker was down are still pending.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeLoanSync(ctx, syncWorker.HandleSyncMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no broker configured")
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	go reportStats(ctx, logger, sqliteRepo)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

// reportStats logs the sync backlog every ten minutes.
func reportStats(ctx context.Context, logger *log.Logger, repo *storage.SQLiteRepository) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := repo.SyncStats(ctx)
			if err != nil {
				logger.Warn("Failed to read sync stats", "error", err)
				continue
			}
			logger.Info("Sync backlog",
				"total", stats.Total,
				"pending", stats.Pending,
				"synced", stats.Synced,
				"failed", stats.Failed)
		}
	}
}
