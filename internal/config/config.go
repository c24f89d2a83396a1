package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// AMQP; an empty URL disables event publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	AutoInvoiceInterval time.Duration

	// Projection cache
	ProjectionCacheTTL  time.Duration
	ProjectionCacheSize int

	// Google Sheets export; an empty spreadsheet id keeps rows in memory.
	GoogleSpreadsheetID     string
	GoogleInvoicesSheetName string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/financas.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "financas"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "invoice_events"),

		AutoInvoiceInterval: getEnvDuration("AUTO_INVOICE_INTERVAL", time.Hour),

		ProjectionCacheTTL:  getEnvDuration("PROJECTION_CACHE_TTL", 5*time.Minute),
		ProjectionCacheSize: getEnvInt("PROJECTION_CACHE_SIZE", 200),

		GoogleSpreadsheetID:     getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleInvoicesSheetName: getEnv("GOOGLE_INVOICES_SHEET_NAME", "Faturas"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// AMQPEnabled reports whether invoice events are published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendMemory, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.AutoInvoiceInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid auto-invoice interval %v: must be at least 1 minute", c.AutoInvoiceInterval))
	} else if c.AutoInvoiceInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid auto-invoice interval %v: must be at most 24 hours", c.AutoInvoiceInterval))
	}

	if c.ProjectionCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid projection cache TTL %v: must not be negative", c.ProjectionCacheTTL))
	}
	if c.ProjectionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid projection cache size %d: must be at least 1", c.ProjectionCacheSize))
	}

	if c.GoogleSpreadsheetID != "" && strings.TrimSpace(c.GoogleInvoicesSheetName) == "" {
		errors = append(errors, "Google invoices sheet name is required when a spreadsheet id is set")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
