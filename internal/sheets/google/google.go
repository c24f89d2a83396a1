package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	ports "financas/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultInvoicesSheet = "Faturas"

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID string
	// Base name without year (e.g. "Faturas"); the invoice year is prefixed.
	InvoicesSheet   string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	invoicesBase  string

	// Appends to one sheet are serialized: the next row is computed from
	// the current row count.
	mu sync.Mutex
}

// Ensure interface conformance
var _ ports.InvoiceExporter = (*Client)(nil)

// ConfigFromEnv reads GOOGLE_SPREADSHEET_ID, GOOGLE_INVOICES_SHEET_NAME and
// the service account variables.
func ConfigFromEnv() Config {
	return Config{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		InvoicesSheet:   strings.TrimSpace(os.Getenv("GOOGLE_INVOICES_SHEET_NAME")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
	}
}

// New creates a Sheets client authenticated with service account
// credentials. Extra options are passed to the Sheets service.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.InvoicesSheet == "" {
		cfg.InvoicesSheet = defaultInvoicesSheet
	}

	if len(opts) == 0 {
		credentialsJSON, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.InvoicesSheet)

	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, invoicesBase: cfg.InvoicesSheet}, nil
}

// credentials resolves inline JSON, a credentials file or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func credentials(cfg Config) ([]byte, error) {
	file := cfg.CredentialsFile
	if cfg.CredentialsJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case cfg.CredentialsJSON != "":
		return []byte(cfg.CredentialsJSON), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendInvoice writes row on the first empty line of the year's sheet.
func (c *Client) AppendInvoice(ctx context.Context, row ports.InvoiceRow) (string, error) {
	if err := row.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.invoicesBase, row.Year)

	c.mu.Lock()
	defer c.mu.Unlock()

	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get sheet dimensions for %s: %w", sheet, err)
	}
	nextRow := len(resp.Values) + 1

	dataRange := fmt.Sprintf("%s!A%d:G%d", sheet, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", dataRange, err)
	}
	return dataRange, nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
