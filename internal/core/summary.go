package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID string          `json:"categoryId"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// MonthTotals is a compact income/expense summary for one calendar month.
type MonthTotals struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"` // 0-11
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}
