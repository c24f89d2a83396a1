package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

// Ledger owns account balances. Balances change only through postings:
// paid transactions that are not card charges.
type Ledger struct {
	repo   *storage.Repository
	logger *log.Logger
	now    Clock
}

func NewLedger(repo *storage.Repository, logger *log.Logger, clock Clock) *Ledger {
	return &Ledger{repo: repo, logger: loggerOr(logger, log.ComponentLedger), now: clockOrSystem(clock)}
}

// BalanceEffects returns the signed change a transaction applies to each
// account once posted. Card charges have no effect: their debit is the
// invoice settlement.
func BalanceEffects(t core.Transaction) map[string]decimal.Decimal {
	if t.CardID != "" || t.AccountID == "" {
		return nil
	}
	switch t.Type {
	case core.Income:
		return map[string]decimal.Decimal{t.AccountID: t.Amount}
	case core.Expense:
		return map[string]decimal.Decimal{t.AccountID: t.Amount.Neg()}
	case core.Transfer:
		effects := map[string]decimal.Decimal{t.AccountID: t.Amount.Neg()}
		if t.ToAccountID != "" {
			effects[t.ToAccountID] = effects[t.ToAccountID].Add(t.Amount)
		}
		return effects
	}
	return nil
}

// ComputeBalance derives the balance of acc from its initial balance and
// every posted transaction.
func ComputeBalance(acc core.Account, txs []core.Transaction) decimal.Decimal {
	balance := acc.InitialBalance
	for _, t := range txs {
		if !t.IsPosted() {
			continue
		}
		if delta, ok := BalanceEffects(t)[acc.ID]; ok {
			balance = balance.Add(delta)
		}
	}
	return core.RoundMoney(balance)
}

// OpenAccount stores a new account whose current balance starts at its
// initial balance.
func (l *Ledger) OpenAccount(ctx context.Context, uid string, acc core.Account) (core.Account, error) {
	acc.Name = strings.TrimSpace(acc.Name)
	if err := acc.Validate(); err != nil {
		return core.Account{}, err
	}
	acc.ID = l.repo.NewID()
	acc.InitialBalance = core.RoundMoney(acc.InitialBalance)
	acc.CurrentBalance = acc.InitialBalance
	if err := l.repo.PutAccount(ctx, uid, acc); err != nil {
		return core.Account{}, fmt.Errorf("store account: %w", err)
	}
	l.logger.InfoContext(ctx, "Account opened",
		log.FieldUserID, uid,
		log.FieldAccountID, acc.ID)
	return acc, nil
}

// Recalculate recomputes and stores the current balance of an account.
func (l *Ledger) Recalculate(ctx context.Context, uid, accountID string) (core.Account, error) {
	acc, err := l.repo.Account(ctx, uid, accountID)
	if err != nil {
		return core.Account{}, err
	}
	txs, err := l.repo.Transactions(ctx, uid)
	if err != nil {
		return core.Account{}, fmt.Errorf("load transactions: %w", err)
	}

	balance := ComputeBalance(acc, txs)
	if !balance.Equal(acc.CurrentBalance) {
		l.logger.InfoContext(ctx, "Account balance corrected",
			log.FieldUserID, uid,
			log.FieldAccountID, accountID,
			"stored", acc.CurrentBalance.String(),
			"computed", balance.String())
	}
	acc.CurrentBalance = balance
	err = l.repo.Update(ctx, storage.Patch{
		storage.FieldPath(uid, storage.Accounts, accountID, "currentBalance"): balance,
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("store balance: %w", err)
	}
	return acc, nil
}

// AccountBalance is one line of the net worth report.
type AccountBalance struct {
	AccountID      string           `json:"accountId"`
	Name           string           `json:"name"`
	Type           core.AccountType `json:"type"`
	Balance        decimal.Decimal  `json:"balance"`
	IncludeInTotal bool             `json:"includeInTotal"`
}

type NetWorth struct {
	Total    decimal.Decimal  `json:"total"`
	Accounts []AccountBalance `json:"accounts"`
}

// NetWorth sums the current balance of accounts flagged includeInTotal.
func (l *Ledger) NetWorth(ctx context.Context, uid string) (NetWorth, error) {
	accs, err := l.repo.Accounts(ctx, uid)
	if err != nil {
		return NetWorth{}, fmt.Errorf("load accounts: %w", err)
	}
	nw := NetWorth{Total: decimal.Zero, Accounts: make([]AccountBalance, 0, len(accs))}
	for _, a := range accs {
		nw.Accounts = append(nw.Accounts, AccountBalance{
			AccountID:      a.ID,
			Name:           a.Name,
			Type:           a.Type,
			Balance:        a.CurrentBalance,
			IncludeInTotal: a.IncludeInTotal,
		})
		if a.IncludeInTotal {
			nw.Total = nw.Total.Add(a.CurrentBalance)
		}
	}
	return nw, nil
}

// stageEffects adds the balance changes of effects to p. sign is +1 to
// post and -1 to reverse. Accounts must exist.
func (l *Ledger) stageEffects(ctx context.Context, uid string, p storage.Patch, effects map[string]decimal.Decimal, sign int64) error {
	for accountID, delta := range effects {
		acc, err := l.repo.Account(ctx, uid, accountID)
		if err != nil {
			return err
		}
		l.stageBalance(uid, p, acc, acc.CurrentBalance.Add(delta.Mul(decimal.NewFromInt(sign))))
	}
	return nil
}

func (l *Ledger) stageBalance(uid string, p storage.Patch, acc core.Account, balance decimal.Decimal) {
	p.Set(storage.FieldPath(uid, storage.Accounts, acc.ID, "currentBalance"), core.RoundMoney(balance))
}

// checkFunds rejects debits that would take a non-credit account below zero.
func checkFunds(acc core.Account, debit decimal.Decimal) error {
	if acc.Type == core.CreditAccount {
		return nil
	}
	if acc.CurrentBalance.LessThan(debit) {
		return fmt.Errorf("account %s has %s, needs %s: %w", acc.ID, acc.CurrentBalance, debit, core.ErrInsufficientBalance)
	}
	return nil
}

// GoalMovement is the result of moving money between an account and a goal.
type GoalMovement struct {
	Goal        core.Goal        `json:"goal"`
	Account     core.Account     `json:"account"`
	Transaction core.Transaction `json:"transaction"`
}

// TransferToGoal moves amount from an account into a goal. The account
// debit, the goal contribution and the reserve posting are written in one
// atomic update.
func (l *Ledger) TransferToGoal(ctx context.Context, uid, accountID, goalID string, amount decimal.Decimal, note string) (GoalMovement, error) {
	return l.moveGoalFunds(ctx, uid, accountID, goalID, amount, note, false)
}

// WithdrawFromGoal moves amount from a goal back into an account.
func (l *Ledger) WithdrawFromGoal(ctx context.Context, uid, accountID, goalID string, amount decimal.Decimal, note string) (GoalMovement, error) {
	return l.moveGoalFunds(ctx, uid, accountID, goalID, amount, note, true)
}

func (l *Ledger) moveGoalFunds(ctx context.Context, uid, accountID, goalID string, amount decimal.Decimal, note string, withdraw bool) (GoalMovement, error) {
	amount = core.RoundMoney(amount)
	if !amount.IsPositive() {
		return GoalMovement{}, core.ErrInvalidAmount
	}
	acc, err := l.repo.Account(ctx, uid, accountID)
	if err != nil {
		return GoalMovement{}, err
	}
	goal, err := l.repo.Goal(ctx, uid, goalID)
	if err != nil {
		return GoalMovement{}, err
	}
	if goal.Status == core.GoalCancelled {
		return GoalMovement{}, core.ErrGoalNotActive
	}

	now := l.now()
	tx := core.Transaction{
		ID:          l.repo.NewID(),
		Amount:      amount,
		CategoryID:  core.CategoryReserveTransfer,
		AccountID:   accountID,
		Date:        core.Date{Time: now.UTC()},
		IsPaid:      true,
		Description: "Transferência para " + goal.Name,
	}
	contribution := core.Contribution{Amount: amount, Date: tx.Date, Note: note}

	if withdraw {
		if goal.CurrentAmount.LessThan(amount) {
			return GoalMovement{}, core.ErrInsufficientGoalFunds
		}
		tx.Type = core.Income
		tx.Description = "Resgate de " + goal.Name
		contribution.Amount = amount.Neg()
		acc.CurrentBalance = acc.CurrentBalance.Add(amount)
	} else {
		if err := checkFunds(acc, amount); err != nil {
			return GoalMovement{}, err
		}
		tx.Type = core.Expense
		acc.CurrentBalance = acc.CurrentBalance.Sub(amount)
	}

	goal.Contributions = append(goal.Contributions, contribution)
	goal.Recompute()

	p := goalPatch(uid, goal)
	p.Set(storage.DocPath(uid, storage.Transactions, tx.ID), tx)
	l.stageBalance(uid, p, acc, acc.CurrentBalance)
	if err := l.repo.Update(ctx, p); err != nil {
		return GoalMovement{}, fmt.Errorf("move goal funds: %w", err)
	}
	acc.CurrentBalance = core.RoundMoney(acc.CurrentBalance)

	l.logger.InfoContext(ctx, "Goal funds moved",
		log.FieldUserID, uid,
		log.FieldGoalID, goalID,
		log.FieldAccountID, accountID,
		log.FieldAmount, contribution.Amount.String(),
		log.FieldOperation, log.OpTransfer)
	return GoalMovement{Goal: goal, Account: acc, Transaction: tx}, nil
}

func dateOr(d core.Date, fallback time.Time) core.Date {
	if d.IsZero() {
		return core.Date{Time: fallback.UTC()}
	}
	return d
}
