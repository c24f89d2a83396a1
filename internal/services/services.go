// Package services implements the invoice lifecycle, the account ledger,
// projections and the emergency-fund advisor on top of storage.Repository.
package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/log"
)

// InvoicePublisher announces invoice lifecycle changes. *amqp.Client
// implements it.
type InvoicePublisher interface {
	PublishInvoiceEvent(ctx context.Context, ev amqp.InvoiceEvent) error
}

// Clock returns the current time. Services take it as a dependency so tests
// can pin "today".
type Clock func() time.Time

func systemClock() time.Time { return time.Now() }

func clockOrSystem(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}

func loggerOr(l *log.Logger, component string) *log.Logger {
	if l == nil {
		l = log.Discard()
	}
	return l.WithComponent(component)
}

var hundred = decimal.NewFromInt(100)

// isReserveTransfer reports whether t is the sentinel posting of a money
// move between an account and a goal.
func isReserveTransfer(t core.Transaction) bool {
	return t.CategoryID == core.CategoryReserveTransfer
}

// isSettlement reports whether t is the lump-sum payment of an invoice.
func isSettlement(t core.Transaction) bool {
	return t.CategoryID == core.CategoryInvoicePayment
}

// isSpending reports whether t counts as money spent on its own date. Card
// charges count at purchase; the settlement that later pays them does not,
// so nothing is counted twice. Reserve moves are savings, not spending.
func isSpending(t core.Transaction) bool {
	if t.Type != core.Expense || isReserveTransfer(t) || isSettlement(t) {
		return false
	}
	return t.IsPaid || t.CardID != ""
}

// isEarning reports whether t counts as realized income.
func isEarning(t core.Transaction) bool {
	return t.Type == core.Income && t.IsPaid && !isReserveTransfer(t)
}

func inMonth(d core.Date, monthStart time.Time) bool {
	if d.IsZero() {
		return false
	}
	t := d.In(monthStart.Location())
	return t.Year() == monthStart.Year() && t.Month() == monthStart.Month()
}
