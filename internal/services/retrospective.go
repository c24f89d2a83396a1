package services

import (
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/billing"
	"financas/internal/core"
)

const retrospectiveTopCategories = 3

// Retrospective summarizes the calendar month before the reference date.
type Retrospective struct {
	Month           int                   `json:"month"` // 0-11
	Year            int                   `json:"year"`
	Income          decimal.Decimal       `json:"income"`
	Expense         decimal.Decimal       `json:"expense"`
	Balance         decimal.Decimal       `json:"balance"`
	TopCategories   []core.CategoryAmount `json:"topCategories"`
	BiggestIncome   *core.Transaction     `json:"biggestIncome,omitempty"`
	BiggestExpense  *core.Transaction     `json:"biggestExpense,omitempty"`
	ZeroExpenseDays int                   `json:"zeroExpenseDays"`
	Previous        core.MonthTotals      `json:"previous"`
	IncomeChange    decimal.Decimal       `json:"incomeChange"`
	ExpenseChange   decimal.Decimal       `json:"expenseChange"`
	BalanceChange   decimal.Decimal       `json:"balanceChange"`
}

func recordedIncome(t core.Transaction) bool {
	return t.Type == core.Income && !isReserveTransfer(t)
}

func recordedExpense(t core.Transaction) bool {
	return t.Type == core.Expense && !isReserveTransfer(t) && !isSettlement(t)
}

func monthTotals(txs []core.Transaction, monthStart time.Time) core.MonthTotals {
	mt := core.MonthTotals{
		Year:    monthStart.Year(),
		Month:   billing.ToIndex(monthStart.Month()),
		Income:  decimal.Zero,
		Expense: decimal.Zero,
	}
	for _, t := range txs {
		if !inMonth(t.Date, monthStart) {
			continue
		}
		switch {
		case recordedIncome(t):
			mt.Income = mt.Income.Add(t.Amount)
		case recordedExpense(t):
			mt.Expense = mt.Expense.Add(t.Amount)
		}
	}
	mt.Balance = mt.Income.Sub(mt.Expense)
	return mt
}

// MonthlyRetrospective reports the month before now: totals, the three
// largest expense categories, the single largest income and expense, days
// without any expense and the change against the month before that.
// Settlements are left out since the card charges they pay are counted on
// their purchase date.
func MonthlyRetrospective(txs []core.Transaction, categories []core.Category, now time.Time) Retrospective {
	month := billing.AddMonths(now, -1)
	cur := monthTotals(txs, month)
	prev := monthTotals(txs, billing.AddMonths(now, -2))

	r := Retrospective{
		Month:         cur.Month,
		Year:          cur.Year,
		Income:        cur.Income,
		Expense:       cur.Expense,
		Balance:       cur.Balance,
		Previous:      prev,
		IncomeChange:  core.PercentChange(cur.Income, prev.Income),
		ExpenseChange: core.PercentChange(cur.Expense, prev.Expense),
		BalanceChange: core.PercentChange(cur.Balance, prev.Balance),
	}

	top := categoryTotals(txs, categories, month, recordedExpense, cur.Expense)
	if len(top) > retrospectiveTopCategories {
		top = top[:retrospectiveTopCategories]
	}
	r.TopCategories = top

	spentOn := make(map[int]bool)
	for i := range txs {
		t := txs[i]
		if !inMonth(t.Date, month) {
			continue
		}
		switch {
		case recordedIncome(t):
			if r.BiggestIncome == nil || t.Amount.GreaterThan(r.BiggestIncome.Amount) {
				r.BiggestIncome = &txs[i]
			}
		case recordedExpense(t):
			if r.BiggestExpense == nil || t.Amount.GreaterThan(r.BiggestExpense.Amount) {
				r.BiggestExpense = &txs[i]
			}
			spentOn[t.Date.In(month.Location()).Day()] = true
		}
	}
	r.ZeroExpenseDays = billing.DaysIn(month) - len(spentOn)
	return r
}
