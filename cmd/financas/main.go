package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"financas/internal/cache"
	"financas/internal/cli"
	apphttp "financas/internal/http"
	"financas/internal/log"
	"financas/internal/services"
	"financas/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	store, pinger, closeStore, err := cli.OpenStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open document store", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Failed to close document store", log.FieldError, err)
		}
	}()

	amqpClient, publisher, err := cli.ConnectAMQP(cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to AMQP, continuing without events", log.FieldError, err)
	}
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	repo := storage.NewRepository(store)
	clock := services.Clock(time.Now)
	ledger := services.NewLedger(repo, logger, clock)
	svc := apphttp.Services{
		Transactions: services.NewTransactionService(repo, ledger, logger),
		Invoices:     services.NewInvoiceService(repo, publisher, logger, clock),
		Cards:        services.NewCardService(repo, logger),
		Ledger:       ledger,
		Projections:  services.NewProjectionService(repo, logger, clock),
		Emergency:    services.NewEmergencyFundService(repo, logger, clock),
		Goals:        services.NewGoalService(repo, logger, clock),
	}

	projections := cache.NewLRUCache[any](cfg.ProjectionCacheSize, cfg.ProjectionCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(projections)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	opts := apphttp.Options{Logger: logger, Cache: projections}
	if pinger != nil {
		opts.Ready = pinger.Ping
	}
	srv := apphttp.NewServer(":"+cfg.Port, svc, opts)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting financas server", "port", cfg.Port, "backend", cfg.DataBackend, "amqp", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
