package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/billing"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

// TransactionService records money movements and keeps account balances in
// step with paid postings.
type TransactionService struct {
	repo   *storage.Repository
	ledger *Ledger
	logger *log.Logger
}

func NewTransactionService(repo *storage.Repository, ledger *Ledger, logger *log.Logger) *TransactionService {
	return &TransactionService{repo: repo, ledger: ledger, logger: loggerOr(logger, log.ComponentLedger)}
}

// Create stores a transaction. An installment purchase of N parts becomes N
// monthly records sharing one installmentId; the last part absorbs the
// rounding remainder so the parts add up to the purchase amount. A paid
// posting adjusts its accounts in the same atomic write.
func (s *TransactionService) Create(ctx context.Context, uid string, t core.Transaction) ([]core.Transaction, error) {
	t.Amount = core.RoundMoney(t.Amount)
	t.Description = strings.TrimSpace(t.Description)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if t.CardID != "" {
		card, err := s.repo.Card(ctx, uid, t.CardID)
		if err != nil {
			return nil, err
		}
		if !card.IsActive {
			return nil, core.ErrInactiveCard
		}
		// Card charges are settled through their invoice.
		t.IsPaid = false
		if t.ExpenseType == "" {
			t.ExpenseType = core.Cash
		}
	} else {
		for _, accountID := range []string{t.AccountID, t.ToAccountID} {
			if accountID == "" {
				continue
			}
			if _, err := s.repo.Account(ctx, uid, accountID); err != nil {
				return nil, err
			}
		}
	}

	parts := expandInstallments(t, s.repo.NewID)

	p := storage.Patch{}
	effects := make(map[string]decimal.Decimal)
	for _, part := range parts {
		p.Set(storage.DocPath(uid, storage.Transactions, part.ID), part)
		if part.IsPosted() {
			for acc, delta := range BalanceEffects(part) {
				effects[acc] = effects[acc].Add(delta)
			}
		}
	}
	if err := s.ledger.stageEffects(ctx, uid, p, effects, 1); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldUserID, uid,
		log.FieldTxID, parts[0].ID,
		log.FieldAmount, t.Amount.String(),
		log.FieldCount, len(parts))
	return parts, nil
}

func expandInstallments(t core.Transaction, newID func() string) []core.Transaction {
	if t.ExpenseType != core.Installment || t.Installments <= 1 {
		if t.ID == "" {
			t.ID = newID()
		}
		if t.ExpenseType == core.Installment {
			t.CurrentInstallment = 1
		}
		return []core.Transaction{t}
	}

	n := t.Installments
	share := t.Amount.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	last := t.Amount.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))
	groupID := newID()
	start := t.Date.Time
	day := start.Day()

	parts := make([]core.Transaction, 0, n)
	for i := 0; i < n; i++ {
		part := t
		part.ID = newID()
		part.InstallmentID = groupID
		part.CurrentInstallment = i + 1
		part.Amount = share
		if i == n-1 {
			part.Amount = last
		}
		month := billing.AddMonths(start, i)
		part.Date = core.Date{Time: time.Date(month.Year(), month.Month(), billing.ClampDay(month, day),
			start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())}
		part.Description = t.Description + " (" + strconv.Itoa(i+1) + "/" + strconv.Itoa(n) + ")"
		part.DueDate = nil
		if i > 0 {
			part.IsPaid = false
		}
		parts = append(parts, part)
	}
	return parts
}

// TransactionFilter narrows List. Zero values match everything.
type TransactionFilter struct {
	Year       int
	Month      *int // 0-11
	CardID     string
	AccountID  string
	UnpaidOnly bool
}

func (f TransactionFilter) match(t core.Transaction) bool {
	if f.CardID != "" && t.CardID != f.CardID {
		return false
	}
	if f.AccountID != "" && t.AccountID != f.AccountID && t.ToAccountID != f.AccountID {
		return false
	}
	if f.UnpaidOnly && t.IsPaid {
		return false
	}
	if f.Year != 0 && t.Date.Year() != f.Year {
		return false
	}
	if f.Month != nil && billing.ToIndex(t.Date.Month()) != *f.Month {
		return false
	}
	return true
}

// List returns the user's transactions ordered by date.
func (s *TransactionService) List(ctx context.Context, uid string, f TransactionFilter) ([]core.Transaction, error) {
	txs, err := s.repo.Transactions(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := txs[:0]
	for _, t := range txs {
		if f.match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *TransactionService) Get(ctx context.Context, uid, id string) (core.Transaction, error) {
	return s.repo.Transaction(ctx, uid, id)
}

// MarkPaid pays a standalone transaction once. accountID overrides the
// stored account when set. Card charges are paid through their invoice.
func (s *TransactionService) MarkPaid(ctx context.Context, uid, id, accountID string) (core.Transaction, error) {
	t, err := s.repo.Transaction(ctx, uid, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.IsPaid {
		return core.Transaction{}, core.ErrTransactionAlreadyPaid
	}
	if t.CardID != "" {
		return core.Transaction{}, core.ErrCardChargeNeedsInvoice
	}
	if accountID != "" {
		t.AccountID = accountID
	}
	if t.AccountID == "" {
		return core.Transaction{}, core.ErrMissingAccount
	}
	t.IsPaid = true

	p := storage.Patch{}
	p.Set(storage.FieldPath(uid, storage.Transactions, id, "isPaid"), true)
	p.Set(storage.FieldPath(uid, storage.Transactions, id, "accountId"), t.AccountID)
	if err := s.ledger.stageEffects(ctx, uid, p, BalanceEffects(t), 1); err != nil {
		return core.Transaction{}, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return core.Transaction{}, fmt.Errorf("mark paid: %w", err)
	}
	return t, nil
}

// Delete removes a transaction that no invoice references, reversing its
// posting if it was paid.
func (s *TransactionService) Delete(ctx context.Context, uid, id string) error {
	t, err := s.repo.Transaction(ctx, uid, id)
	if err != nil {
		return err
	}
	if t.InvoiceID != "" {
		return core.ErrTransactionInvoiced
	}
	invs, err := s.repo.Invoices(ctx, uid)
	if err != nil {
		return fmt.Errorf("load invoices: %w", err)
	}
	for _, inv := range invs {
		if inv.PaymentTransactionID == id {
			return core.ErrTransactionInvoiced
		}
		for _, member := range inv.TransactionIDs {
			if member == id {
				return core.ErrTransactionInvoiced
			}
		}
	}

	p := storage.Patch{}
	p.Delete(storage.DocPath(uid, storage.Transactions, id))
	if t.IsPosted() {
		if err := s.ledger.stageEffects(ctx, uid, p, BalanceEffects(t), -1); err != nil {
			return err
		}
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "Transaction deleted", log.FieldUserID, uid, log.FieldTxID, id)
	return nil
}
