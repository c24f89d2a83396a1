package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"financas/internal/core"
)

func TestCreateTransactionPostsBalance(t *testing.T) {
	tests := []struct {
		name string
		tx   core.Transaction
		a1   string
		a2   string
	}{
		{
			name: "paid expense",
			tx:   expense("", "a1", "120.50", date(2025, time.March, 3), true),
			a1:   "879.50",
			a2:   "0",
		},
		{
			name: "unpaid expense",
			tx:   expense("", "a1", "120.50", date(2025, time.March, 3), false),
			a1:   "1000",
			a2:   "0",
		},
		{
			name: "income",
			tx:   income("", "a1", "300", date(2025, time.March, 3)),
			a1:   "1300",
			a2:   "0",
		},
		{
			name: "transfer",
			tx: core.Transaction{
				Type:        core.Transfer,
				Amount:      dec("250"),
				Description: "poupança",
				AccountID:   "a1",
				ToAccountID: "a2",
				Date:        date(2025, time.March, 3),
				IsPaid:      true,
			},
			a1: "750",
			a2: "250",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.account(t, "a1", "1000")
			f.account(t, "a2", "0")

			created, err := f.txs.Create(f.ctx, uid, tt.tx)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if len(created) != 1 || created[0].ID == "" {
				t.Fatalf("Create() = %+v, want one transaction with an id", created)
			}
			mustBalance(t, f, "a1", tt.a1)
			mustBalance(t, f, "a2", tt.a2)

			for _, id := range []string{"a1", "a2"} {
				acc, err := f.ledger.Recalculate(f.ctx, uid, id)
				if err != nil {
					t.Fatalf("Recalculate(%s) error = %v", id, err)
				}
				want := tt.a1
				if id == "a2" {
					want = tt.a2
				}
				if !acc.CurrentBalance.Equal(dec(want)) {
					t.Errorf("Recalculate(%s) = %s, want %s", id, acc.CurrentBalance, want)
				}
			}
		})
	}
}

func TestCreateCardCharge(t *testing.T) {
	f := newFixture(t)
	f.card(t, "c1", 10, 5)

	tx := charge("", "c1", "80", date(2025, time.March, 3))
	tx.IsPaid = true
	tx.ExpenseType = ""
	created, err := f.txs.Create(f.ctx, uid, tx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created[0].IsPaid {
		t.Error("card charge stored as paid")
	}
	if created[0].ExpenseType != core.Cash {
		t.Errorf("ExpenseType = %q, want cash", created[0].ExpenseType)
	}
}

func TestCreateTransactionRejects(t *testing.T) {
	tests := []struct {
		name  string
		tx    core.Transaction
		setup func(t *testing.T, f *fixture)
		want  error
	}{
		{
			name: "zero amount",
			tx:   expense("", "a1", "0", date(2025, time.March, 3), true),
			want: core.ErrInvalidInput,
		},
		{
			name: "unknown account",
			tx:   expense("", "nope", "10", date(2025, time.March, 3), true),
			want: core.ErrNotFound,
		},
		{
			name: "unknown card",
			tx:   charge("", "nope", "10", date(2025, time.March, 3)),
			want: core.ErrNotFound,
		},
		{
			name: "inactive card",
			tx:   charge("", "c1", "10", date(2025, time.March, 3)),
			setup: func(t *testing.T, f *fixture) {
				c := f.card(t, "c1", 10, 5)
				c.IsActive = false
				if err := f.repo.PutCard(f.ctx, uid, c); err != nil {
					t.Fatal(err)
				}
			},
			want: core.ErrInactiveCard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.account(t, "a1", "1000")
			if tt.setup != nil {
				tt.setup(t, f)
			}
			if _, err := f.txs.Create(f.ctx, uid, tt.tx); !errors.Is(err, tt.want) {
				t.Fatalf("Create() error = %v, want %v", err, tt.want)
			}
			txs, _ := f.repo.Transactions(f.ctx, uid)
			if len(txs) != 0 {
				t.Errorf("stored %d transactions on failure", len(txs))
			}
		})
	}
}

func TestExpandInstallments(t *testing.T) {
	ids := 0
	newID := func() string {
		ids++
		return fmt.Sprintf("id%d", ids)
	}
	tx := charge("", "c1", "100", date(2025, time.January, 31))
	tx.ExpenseType = core.Installment
	tx.Installments = 3

	parts := expandInstallments(tx, newID)
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}

	wantAmounts := []string{"33.33", "33.33", "33.34"}
	wantDates := []time.Time{
		time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
	}
	total := dec("0")
	for i, p := range parts {
		if !p.Amount.Equal(dec(wantAmounts[i])) {
			t.Errorf("part %d amount = %s, want %s", i+1, p.Amount, wantAmounts[i])
		}
		if !p.Date.Equal(wantDates[i]) {
			t.Errorf("part %d date = %v, want %v", i+1, p.Date.Time, wantDates[i])
		}
		if p.CurrentInstallment != i+1 || p.InstallmentID != parts[0].InstallmentID {
			t.Errorf("part %d = %d of group %s", i+1, p.CurrentInstallment, p.InstallmentID)
		}
		total = total.Add(p.Amount)
	}
	if !total.Equal(dec("100")) {
		t.Errorf("parts add up to %s, want 100", total)
	}
	if parts[1].Description != tx.Description+" (2/3)" {
		t.Errorf("description = %q", parts[1].Description)
	}
}

func TestMarkPaid(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a1", "1000")
	f.card(t, "c1", 10, 5)
	f.put(t,
		expense("bill", "", "200", date(2025, time.March, 10), false),
		charge("cc", "c1", "50", date(2025, time.March, 10)),
	)

	if _, err := f.txs.MarkPaid(f.ctx, uid, "bill", ""); !errors.Is(err, core.ErrMissingAccount) {
		t.Errorf("MarkPaid() without account error = %v, want ErrMissingAccount", err)
	}
	if _, err := f.txs.MarkPaid(f.ctx, uid, "cc", "a1"); !errors.Is(err, core.ErrCardChargeNeedsInvoice) {
		t.Errorf("MarkPaid() on card charge error = %v, want ErrCardChargeNeedsInvoice", err)
	}

	got, err := f.txs.MarkPaid(f.ctx, uid, "bill", "a1")
	if err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}
	if !got.IsPaid || got.AccountID != "a1" {
		t.Errorf("MarkPaid() = %+v", got)
	}
	mustBalance(t, f, "a1", "800")

	if _, err := f.txs.MarkPaid(f.ctx, uid, "bill", "a1"); !errors.Is(err, core.ErrTransactionAlreadyPaid) {
		t.Errorf("second MarkPaid() error = %v, want ErrTransactionAlreadyPaid", err)
	}
	mustBalance(t, f, "a1", "800")
}

func TestDeleteTransaction(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a1", "1000")
	created, err := f.txs.Create(f.ctx, uid, expense("", "a1", "100", date(2025, time.March, 3), true))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	mustBalance(t, f, "a1", "900")

	if err := f.txs.Delete(f.ctx, uid, created[0].ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	mustBalance(t, f, "a1", "1000")
	if _, err := f.repo.Transaction(f.ctx, uid, created[0].ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("transaction still stored: %v", err)
	}
}

func TestDeleteInvoicedTransaction(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a1", "1000")
	inv := generated(t, f)

	if err := f.txs.Delete(f.ctx, uid, inv.TransactionIDs[0]); !errors.Is(err, core.ErrTransactionInvoiced) {
		t.Fatalf("Delete() member error = %v, want ErrTransactionInvoiced", err)
	}

	paid, err := f.invoices.Pay(f.ctx, uid, inv.ID, "a1", testNow)
	if err != nil {
		t.Fatalf("Pay() error = %v", err)
	}
	if err := f.txs.Delete(f.ctx, uid, paid.PaymentTransactionID); !errors.Is(err, core.ErrTransactionInvoiced) {
		t.Fatalf("Delete() settlement error = %v, want ErrTransactionInvoiced", err)
	}
}

func TestListTransactions(t *testing.T) {
	f := newFixture(t)
	f.card(t, "c1", 10, 5)
	f.put(t,
		charge("march", "c1", "10", date(2025, time.March, 3)),
		charge("april", "c1", "10", date(2025, time.April, 3)),
		expense("cash", "a1", "10", date(2025, time.March, 4), true),
	)

	march := 2
	tests := []struct {
		name   string
		filter TransactionFilter
		want   []string
	}{
		{"all", TransactionFilter{}, []string{"march", "cash", "april"}},
		{"by month", TransactionFilter{Year: 2025, Month: &march}, []string{"march", "cash"}},
		{"by card", TransactionFilter{CardID: "c1"}, []string{"march", "april"}},
		{"unpaid", TransactionFilter{UnpaidOnly: true}, []string{"march", "april"}},
		{"by account", TransactionFilter{AccountID: "a1"}, []string{"cash"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.txs.List(f.ctx, uid, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() returned %d, want %v", len(got), tt.want)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("List()[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}
