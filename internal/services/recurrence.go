package services

import (
	"fmt"
	"time"

	"financas/internal/billing"
	"financas/internal/core"
)

// RecurrenceChecker decides whether a recurring charge falls in a month.
// Each recurrence type has its own strategy.
type RecurrenceChecker interface {
	OccursIn(t core.Transaction, monthStart time.Time) bool
}

// MonthlyRecurrence repeats every month from the month of the first
// occurrence on.
type MonthlyRecurrence struct{}

func (MonthlyRecurrence) OccursIn(t core.Transaction, monthStart time.Time) bool {
	first := billing.FirstOfMonth(t.Date.In(monthStart.Location()))
	return !billing.FirstOfMonth(monthStart).Before(first)
}

// YearlyRecurrence repeats in the month of the first occurrence each year.
type YearlyRecurrence struct{}

func (YearlyRecurrence) OccursIn(t core.Transaction, monthStart time.Time) bool {
	start := t.Date.In(monthStart.Location())
	return start.Month() == monthStart.Month() && monthStart.Year() >= start.Year()
}

var recurrenceStrategies = map[string]RecurrenceChecker{
	"":        MonthlyRecurrence{},
	"monthly": MonthlyRecurrence{},
	"yearly":  YearlyRecurrence{},
}

// GetRecurrenceChecker returns the strategy of a recurrence type. An empty
// type means monthly.
func GetRecurrenceChecker(recurrenceType string) (RecurrenceChecker, error) {
	checker, ok := recurrenceStrategies[recurrenceType]
	if !ok {
		return nil, fmt.Errorf("unknown recurrence type: %s", recurrenceType)
	}
	return checker, nil
}

// RegisterRecurrenceChecker adds or replaces the strategy of a recurrence type.
func RegisterRecurrenceChecker(recurrenceType string, checker RecurrenceChecker) {
	recurrenceStrategies[recurrenceType] = checker
}

// DueDateIn returns the day a fixed charge is owed within the given month.
func DueDateIn(t core.Transaction, monthStart time.Time) time.Time {
	day := t.RecurrenceDay
	if day == 0 {
		day = t.EffectiveDueDate().In(monthStart.Location()).Day()
	}
	return billing.DueDateFor(monthStart, day)
}

// fixedChargeIn reports whether the fixed expense t is owed in the month.
// Recurring charges follow their strategy whether or not the stored record
// is paid, since every future occurrence is unpaid. One-off fixed charges
// count while unpaid and due in that month.
func fixedChargeIn(t core.Transaction, monthStart time.Time) bool {
	if t.Type != core.Expense || t.ExpenseType != core.Fixed || isReserveTransfer(t) {
		return false
	}
	if t.IsRecurring {
		checker, err := GetRecurrenceChecker(t.RecurrenceType)
		if err != nil {
			return false
		}
		return checker.OccursIn(t, monthStart)
	}
	return !t.IsPaid && inMonth(t.EffectiveDueDate(), monthStart)
}
