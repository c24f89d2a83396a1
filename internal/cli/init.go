// Package cli holds the start-up steps shared by cmd/financas and
// cmd/invoice-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"financas/internal/amqp"
	"financas/internal/config"
	"financas/internal/log"
	"financas/internal/services"
	"financas/internal/storage"
)

// SetupLogger builds the root logger from LOG_LEVEL and makes it the slog
// default.
func SetupLogger(component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(os.Getenv("LOG_LEVEL"))
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpenStore returns the configured document store, a readiness probe and a
// close function.
func OpenStore(cfg *config.Config, logger *log.Logger) (storage.Store, Pinger, func() error, error) {
	switch cfg.DataBackend {
	case config.BackendSQLite:
		s, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite store %s: %w", cfg.SQLiteDBPath, err)
		}
		logger.Info("Using SQLite document store", "path", cfg.SQLiteDBPath)
		return s, s, s.Close, nil
	default:
		logger.Warn("Using in-memory document store; data is lost on restart")
		return storage.NewMemoryStore(), nil, func() error { return nil }, nil
	}
}

// ConnectAMQP dials the broker when AMQP_URL is set. The returned publisher
// is nil when messaging is disabled.
func ConnectAMQP(cfg *config.Config, logger *log.Logger) (*amqp.Client, services.InvoicePublisher, error) {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled; invoice events are not published")
		return nil, nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to AMQP: %w", err)
	}
	return client, client, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, cancel
}
