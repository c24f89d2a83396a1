package main

import (
	"context"
	"errors"
	"os"
	"time"

	"financas/internal/cli"
	"financas/internal/log"
	"financas/internal/services"
	ports "financas/internal/sheets"
	gsheet "financas/internal/sheets/google"
	mem "financas/internal/sheets/memory"
	"financas/internal/storage"
	"financas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting invoice-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	store, _, closeStore, err := cli.OpenStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open document store", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeStore()

	amqpClient, publisher, err := cli.ConnectAMQP(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	repo := storage.NewRepository(store)
	invoices := services.NewInvoiceService(repo, publisher, logger, time.Now)

	scheduler := worker.NewAutoInvoiceScheduler(repo, invoices, worker.SchedulerConfig{
		Interval:    cfg.AutoInvoiceInterval,
		Concurrency: worker.DefaultSchedulerConfig().Concurrency,
	}, logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start auto-invoice scheduler", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		var exporter ports.InvoiceExporter
		if cfg.GoogleSpreadsheetID != "" {
			gcfg := gsheet.ConfigFromEnv()
			gcfg.SpreadsheetID = cfg.GoogleSpreadsheetID
			gcfg.InvoicesSheet = cfg.GoogleInvoicesSheetName
			client, err := gsheet.New(ctx, gcfg)
			if err != nil {
				logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
				os.Exit(1)
			}
			exporter = client
			logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		} else {
			exporter = mem.New()
			logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, rows kept in memory")
		}

		export := worker.NewExportHandler(repo, exporter, logger)
		go func() {
			if err := amqpClient.ConsumeInvoiceEvents(ctx, export.HandleInvoiceEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Invoice event consumption failed", log.FieldError, err)
				stop()
			}
		}()
	} else {
		logger.Info("Skipping invoice export - AMQP disabled")
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("Scheduler shutdown error", log.FieldError, err)
	}
	logger.Info("invoice-worker stopped")
}
