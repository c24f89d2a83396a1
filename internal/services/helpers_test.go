package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/storage"
)

const uid = "u1"

var testNow = time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) core.Date {
	return core.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []amqp.InvoiceEvent
	err    error
}

func (f *fakePublisher) PublishInvoiceEvent(ctx context.Context, ev amqp.InvoiceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	ctx      context.Context
	repo     *storage.Repository
	pub      *fakePublisher
	ledger   *Ledger
	txs      *TransactionService
	invoices *InvoiceService
	cards    *CardService
	goals    *GoalService
	reserve  *EmergencyFundService
	proj     *ProjectionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := storage.NewRepository(storage.NewMemoryStore())
	pub := &fakePublisher{}
	clock := fixedClock(testNow)
	ledger := NewLedger(repo, nil, clock)
	return &fixture{
		ctx:      context.Background(),
		repo:     repo,
		pub:      pub,
		ledger:   ledger,
		txs:      NewTransactionService(repo, ledger, nil),
		invoices: NewInvoiceService(repo, pub, nil, clock),
		cards:    NewCardService(repo, nil),
		goals:    NewGoalService(repo, nil, clock),
		reserve:  NewEmergencyFundService(repo, nil, clock),
		proj:     NewProjectionService(repo, nil, clock),
	}
}

func (f *fixture) account(t *testing.T, id, balance string) core.Account {
	t.Helper()
	acc := core.Account{
		ID:             id,
		Name:           "Conta " + id,
		Type:           core.BankAccount,
		InitialBalance: dec(balance),
		CurrentBalance: dec(balance),
		IncludeInTotal: true,
	}
	if err := f.repo.PutAccount(f.ctx, uid, acc); err != nil {
		t.Fatalf("put account: %v", err)
	}
	return acc
}

func (f *fixture) card(t *testing.T, id string, closingDay, dueDay int) core.CreditCard {
	t.Helper()
	card := core.CreditCard{
		ID:         id,
		Nickname:   "Cartão " + id,
		ClosingDay: closingDay,
		DueDay:     dueDay,
		Limit:      dec("5000"),
		IsActive:   true,
	}
	if err := f.repo.PutCard(f.ctx, uid, card); err != nil {
		t.Fatalf("put card: %v", err)
	}
	return card
}

func (f *fixture) put(t *testing.T, txs ...core.Transaction) {
	t.Helper()
	for _, tx := range txs {
		if err := f.repo.PutTransaction(f.ctx, uid, tx); err != nil {
			t.Fatalf("put transaction %s: %v", tx.ID, err)
		}
	}
}

func charge(id, cardID, amount string, d core.Date) core.Transaction {
	return core.Transaction{
		ID:          id,
		Type:        core.Expense,
		Amount:      dec(amount),
		Description: "compra " + id,
		CardID:      cardID,
		ExpenseType: core.Cash,
		Date:        d,
	}
}

func expense(id, accountID, amount string, d core.Date, paid bool) core.Transaction {
	return core.Transaction{
		ID:          id,
		Type:        core.Expense,
		Amount:      dec(amount),
		Description: "despesa " + id,
		AccountID:   accountID,
		ExpenseType: core.Cash,
		Date:        d,
		IsPaid:      paid,
	}
}

func income(id, accountID, amount string, d core.Date) core.Transaction {
	return core.Transaction{
		ID:          id,
		Type:        core.Income,
		Amount:      dec(amount),
		Description: "receita " + id,
		AccountID:   accountID,
		Date:        d,
		IsPaid:      true,
	}
}

func mustBalance(t *testing.T, f *fixture, accountID, want string) {
	t.Helper()
	acc, err := f.repo.Account(f.ctx, uid, accountID)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if !acc.CurrentBalance.Equal(dec(want)) {
		t.Errorf("balance of %s = %s, want %s", accountID, acc.CurrentBalance, want)
	}
}
