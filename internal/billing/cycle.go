// Package billing maps purchase dates and card configuration onto invoice
// periods. Every function is pure.
//
// Day-of-month values larger than the target month are clamped to its last
// day, so a closing day of 31 closes on February 28/29.
package billing

import (
	"time"

	"financas/internal/core"
)

// Cycle describes one invoice period of a card.
type Cycle struct {
	Month       int // 0-11
	Year        int
	Start       time.Time // first day of the invoice month
	ClosingDate time.Time
	DueDate     time.Time
}

// InvoiceMonthFor returns the first day of the invoice month a purchase
// belongs to: the purchase month when its day is not after closingDay,
// otherwise the following month.
func InvoiceMonthFor(purchase time.Time, closingDay int) time.Time {
	first := FirstOfMonth(purchase)
	if purchase.Day() > ClampDay(first, closingDay) {
		return first.AddDate(0, 1, 0)
	}
	return first
}

// DueDateFor returns dueDay within invoiceMonth. It applies no month carry;
// use DueDate for the card-level rule.
func DueDateFor(invoiceMonth time.Time, dueDay int) time.Time {
	first := FirstOfMonth(invoiceMonth)
	return first.AddDate(0, 0, ClampDay(first, dueDay)-1)
}

// DueDate is the canonical due date of an invoice month: when dueDay is
// smaller than closingDay the payment is owed in the following month.
func DueDate(invoiceMonth time.Time, closingDay, dueDay int) time.Time {
	month := FirstOfMonth(invoiceMonth)
	if dueDay < closingDay {
		month = month.AddDate(0, 1, 0)
	}
	return DueDateFor(month, dueDay)
}

// ClosingDate returns closingDay within invoiceMonth.
func ClosingDate(invoiceMonth time.Time, closingDay int) time.Time {
	return DueDateFor(invoiceMonth, closingDay)
}

// CycleForMonth builds the cycle of the given stored month (0-11) and year.
func CycleForMonth(card core.CreditCard, month, year int, loc *time.Location) Cycle {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, FromIndex(month), 1, 0, 0, 0, 0, loc)
	return Cycle{
		Month:       ToIndex(start.Month()),
		Year:        start.Year(),
		Start:       start,
		ClosingDate: ClosingDate(start, card.ClosingDay),
		DueDate:     DueDate(start, card.ClosingDay, card.DueDay),
	}
}

// CycleFor returns the cycle a purchase made at t is billed in.
func CycleFor(card core.CreditCard, t time.Time) Cycle {
	start := InvoiceMonthFor(t, card.ClosingDay)
	return CycleForMonth(card, ToIndex(start.Month()), start.Year(), t.Location())
}

// FirstOfMonth truncates t to midnight of the first day of its month.
func FirstOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// DaysIn returns the number of days of the month containing t.
func DaysIn(t time.Time) int {
	return FirstOfMonth(t).AddDate(0, 1, -1).Day()
}

// ClampDay limits day to the valid range of the month containing t.
func ClampDay(t time.Time, day int) int {
	if day < 1 {
		return 1
	}
	if last := DaysIn(t); day > last {
		return last
	}
	return day
}

// ToIndex converts a time.Month into the stored 0-11 encoding.
func ToIndex(m time.Month) int {
	return int(m) - 1
}

// FromIndex converts a stored 0-11 month into time.Month. Out of range
// values normalise through time.Date.
func FromIndex(i int) time.Month {
	return time.Month(i + 1)
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// AddMonths returns the first day of the month n months after t's month.
func AddMonths(t time.Time, n int) time.Time {
	return FirstOfMonth(t).AddDate(0, n, 0)
}
