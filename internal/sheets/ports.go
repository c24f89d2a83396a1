package sheets

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceRow is one line of the paid invoices sheet.
type InvoiceRow struct {
	InvoiceID string
	CardName  string
	Month     int // 1-12
	Year      int
	DueDate   time.Time
	PaidDate  time.Time
	Amount    decimal.Decimal
	Account   string
}

// Ports for outbound adapters.
type (
	InvoiceExporter interface {
		AppendInvoice(ctx context.Context, row InvoiceRow) (rowRef string, err error)
	}
)

var ErrInvalidRow = errors.New("invalid invoice row")

func (r InvoiceRow) Validate() error {
	if strings.TrimSpace(r.InvoiceID) == "" {
		return errors.Join(ErrInvalidRow, errors.New("missing invoice id"))
	}
	if r.Month < 1 || r.Month > 12 || r.Year < 1 {
		return errors.Join(ErrInvalidRow, errors.New("invalid period"))
	}
	if r.Amount.IsNegative() {
		return errors.Join(ErrInvalidRow, errors.New("negative amount"))
	}
	return nil
}

// Values renders the row as sheet cells: period, card, amount, due date,
// paid date, account and invoice id.
func (r InvoiceRow) Values() []any {
	return []any{
		r.Period(),
		r.CardName,
		r.Amount.StringFixed(2),
		formatDate(r.DueDate),
		formatDate(r.PaidDate),
		r.Account,
		r.InvoiceID,
	}
}

// Period renders the invoice month as MM/YYYY.
func (r InvoiceRow) Period() string {
	return time.Date(r.Year, time.Month(r.Month), 1, 0, 0, 0, 0, time.UTC).Format("01/2006")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}
