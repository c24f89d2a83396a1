package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/sheets"
	"financas/internal/sheets/memory"
	"financas/internal/storage"
)

func seedPaidInvoice(t *testing.T, repo *storage.Repository, paid bool) core.Invoice {
	t.Helper()
	ctx := context.Background()
	if err := repo.PutCard(ctx, "u1", core.CreditCard{ID: "c1", Nickname: "Nubank", ClosingDay: 10, DueDay: 17, IsActive: true}); err != nil {
		t.Fatal(err)
	}
	if err := repo.PutAccount(ctx, "u1", core.Account{ID: "a1", Name: "Conta corrente", IncludeInTotal: true}); err != nil {
		t.Fatal(err)
	}
	inv := core.Invoice{
		ID:             "i1",
		CardID:         "c1",
		Month:          2,
		Year:           2025,
		ClosingDate:    core.NewDate(2025, 3, 10),
		DueDate:        core.NewDate(2025, 3, 17),
		TotalAmount:    decimal.RequireFromString("175.5"),
		TransactionIDs: []string{"t1"},
	}
	if paid {
		pd := core.NewDate(2025, 3, 15)
		inv.IsPaid = true
		inv.PaidDate = &pd
		inv.PaidFromAccountID = "a1"
	}
	if err := repo.PutInvoice(ctx, "u1", inv); err != nil {
		t.Fatal(err)
	}
	return inv
}

func paidEvent(eventType string) amqp.InvoiceEvent {
	return amqp.InvoiceEvent{Type: eventType, UserID: "u1", InvoiceID: "i1", CardID: "c1"}
}

func TestExportPaidInvoice(t *testing.T) {
	repo := storage.NewRepository(storage.NewMemoryStore())
	seedPaidInvoice(t, repo, true)
	out := memory.New()
	h := NewExportHandler(repo, out, nil)

	if err := h.HandleInvoiceEvent(context.Background(), paidEvent(amqp.EventInvoicePaid)); err != nil {
		t.Fatalf("HandleInvoiceEvent() error = %v", err)
	}
	rows := out.Rows()
	if len(rows) != 1 {
		t.Fatalf("exported %d rows, want 1", len(rows))
	}
	got := rows[0]
	if got.CardName != "Nubank" || got.Account != "Conta corrente" || got.Month != 3 || got.Year != 2025 {
		t.Errorf("row = %+v", got)
	}
	if !got.Amount.Equal(decimal.RequireFromString("175.5")) {
		t.Errorf("amount = %s", got.Amount)
	}
	if want := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC); !got.PaidDate.Equal(want) {
		t.Errorf("paid date = %v, want %v", got.PaidDate, want)
	}
}

func TestExportSkips(t *testing.T) {
	tests := []struct {
		name  string
		seed  bool
		paid  bool
		event string
	}{
		{"generated event", true, true, amqp.EventInvoiceGenerated},
		{"deleted event", true, true, amqp.EventInvoiceDeleted},
		{"invoice missing", false, false, amqp.EventInvoicePaid},
		{"invoice unpaid", true, false, amqp.EventInvoicePaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := storage.NewRepository(storage.NewMemoryStore())
			if tt.seed {
				seedPaidInvoice(t, repo, tt.paid)
			}
			out := memory.New()
			h := NewExportHandler(repo, out, nil)
			if err := h.HandleInvoiceEvent(context.Background(), paidEvent(tt.event)); err != nil {
				t.Fatalf("HandleInvoiceEvent() error = %v", err)
			}
			if n := len(out.Rows()); n != 0 {
				t.Errorf("exported %d rows, want 0", n)
			}
		})
	}
}

type failingExporter struct{}

func (failingExporter) AppendInvoice(context.Context, sheets.InvoiceRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestExportFailureIsReturned(t *testing.T) {
	repo := storage.NewRepository(storage.NewMemoryStore())
	seedPaidInvoice(t, repo, true)
	h := NewExportHandler(repo, failingExporter{}, nil)
	if err := h.HandleInvoiceEvent(context.Background(), paidEvent(amqp.EventInvoicePaid)); err == nil {
		t.Fatal("expected export error")
	}
}
