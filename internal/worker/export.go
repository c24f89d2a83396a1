package worker

import (
	"context"
	"errors"
	"fmt"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/sheets"
)

// InvoiceSource is the read side of *storage.Repository the exporter needs.
type InvoiceSource interface {
	Invoice(ctx context.Context, uid, id string) (core.Invoice, error)
	Card(ctx context.Context, uid, id string) (core.CreditCard, error)
	Account(ctx context.Context, uid, id string) (core.Account, error)
}

// ExportHandler writes every paid invoice to the spreadsheet.
type ExportHandler struct {
	repo     InvoiceSource
	exporter sheets.InvoiceExporter
	logger   *log.Logger
}

func NewExportHandler(repo InvoiceSource, exporter sheets.InvoiceExporter, logger *log.Logger) *ExportHandler {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportHandler{
		repo:     repo,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentSheets),
	}
}

// HandleInvoiceEvent processes one event from the invoice queue. Only
// invoice.paid is exported; the other types are acknowledged and skipped.
// A missing invoice or card is not retried.
func (h *ExportHandler) HandleInvoiceEvent(ctx context.Context, ev amqp.InvoiceEvent) error {
	logger := h.logger.With(
		log.FieldEvent, ev.Type,
		log.FieldUserID, ev.UserID,
		log.FieldInvoiceID, ev.InvoiceID)

	if ev.Type != amqp.EventInvoicePaid {
		logger.DebugContext(ctx, "Ignoring invoice event")
		return nil
	}

	row, err := h.buildRow(ctx, ev)
	switch {
	case errors.Is(err, core.ErrNotFound):
		logger.WarnContext(ctx, "Paid invoice vanished before export", log.FieldError, err)
		return nil
	case errors.Is(err, errNotPaid):
		logger.WarnContext(ctx, "Invoice no longer paid, skipping export")
		return nil
	case err != nil:
		return err
	}

	ref, err := h.exporter.AppendInvoice(ctx, row)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to export invoice",
			log.FieldOperation, log.OpExport,
			log.FieldError, err)
		return fmt.Errorf("export invoice %s: %w", ev.InvoiceID, err)
	}

	logger.InfoContext(ctx, "Exported paid invoice",
		log.FieldOperation, log.OpExport,
		log.FieldAmount, row.Amount.String(),
		"sheets_ref", ref)
	return nil
}

var errNotPaid = errors.New("invoice not paid")

func (h *ExportHandler) buildRow(ctx context.Context, ev amqp.InvoiceEvent) (sheets.InvoiceRow, error) {
	inv, err := h.repo.Invoice(ctx, ev.UserID, ev.InvoiceID)
	if err != nil {
		return sheets.InvoiceRow{}, fmt.Errorf("load invoice: %w", err)
	}
	if !inv.IsPaid {
		return sheets.InvoiceRow{}, errNotPaid
	}
	card, err := h.repo.Card(ctx, ev.UserID, inv.CardID)
	if err != nil {
		return sheets.InvoiceRow{}, fmt.Errorf("load card: %w", err)
	}

	row := sheets.InvoiceRow{
		InvoiceID: inv.ID,
		CardName:  card.Nickname,
		Month:     inv.Month + 1,
		Year:      inv.Year,
		DueDate:   inv.DueDate.Time,
		Amount:    inv.TotalAmount,
		Account:   inv.PaidFromAccountID,
	}
	if inv.PaidDate != nil {
		row.PaidDate = inv.PaidDate.Time
	}
	// The account name is cosmetic; fall back to its id.
	if inv.PaidFromAccountID != "" {
		if acc, err := h.repo.Account(ctx, ev.UserID, inv.PaidFromAccountID); err == nil {
			row.Account = acc.Name
		}
	}
	return row, nil
}
