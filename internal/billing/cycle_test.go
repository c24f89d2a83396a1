package billing

import (
	"testing"
	"time"

	"financas/internal/core"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInvoiceMonthFor(t *testing.T) {
	tests := []struct {
		name       string
		purchase   time.Time
		closingDay int
		want       time.Time
	}{
		{"before closing", date(2024, time.March, 5), 10, date(2024, time.March, 1)},
		{"on closing day", date(2024, time.March, 10), 10, date(2024, time.March, 1)},
		{"after closing", date(2024, time.March, 15), 10, date(2024, time.April, 1)},
		{"year rollover", date(2024, time.December, 20), 10, date(2025, time.January, 1)},
		{"closing 31 in february", date(2024, time.February, 29), 31, date(2024, time.February, 1)},
		{"closing 30 in short month", date(2023, time.February, 28), 30, date(2023, time.February, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InvoiceMonthFor(tt.purchase, tt.closingDay); !got.Equal(tt.want) {
				t.Errorf("InvoiceMonthFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInvoiceMonthForProperty(t *testing.T) {
	start := date(2024, time.January, 1)
	for i := 0; i < 366; i++ {
		d := start.AddDate(0, 0, i)
		for c := 1; c <= 28; c++ {
			got := InvoiceMonthFor(d, c)
			want := FirstOfMonth(d)
			if d.Day() > c {
				want = want.AddDate(0, 1, 0)
			}
			if !got.Equal(want) {
				t.Fatalf("InvoiceMonthFor(%v, %d) = %v, want %v", d, c, got, want)
			}
		}
	}
}

func TestDueDate(t *testing.T) {
	tests := []struct {
		name               string
		month              time.Time
		closingDay, dueDay int
		want               time.Time
	}{
		{"due after closing stays", date(2024, time.April, 1), 5, 15, date(2024, time.April, 15)},
		{"due before closing carries", date(2024, time.April, 1), 10, 5, date(2024, time.May, 5)},
		{"carry over year end", date(2024, time.December, 1), 25, 3, date(2025, time.January, 3)},
		{"due 31 clamps in april", date(2024, time.April, 1), 20, 31, date(2024, time.April, 30)},
		{"equal days stay", date(2024, time.June, 1), 10, 10, date(2024, time.June, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DueDate(tt.month, tt.closingDay, tt.dueDay); !got.Equal(tt.want) {
				t.Errorf("DueDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDueDateForHasNoCarry(t *testing.T) {
	got := DueDateFor(date(2024, time.April, 1), 5)
	if want := date(2024, time.April, 5); !got.Equal(want) {
		t.Fatalf("DueDateFor() = %v, want %v", got, want)
	}
}

func TestScenarioMarchPurchase(t *testing.T) {
	card := core.CreditCard{ClosingDay: 10, DueDay: 5}
	c := CycleFor(card, date(2024, time.March, 15))

	if c.Month != 3 || c.Year != 2024 {
		t.Fatalf("invoice month = %d/%d, want 3/2024 (April)", c.Month, c.Year)
	}
	if want := date(2024, time.May, 5); !c.DueDate.Equal(want) {
		t.Fatalf("due date = %v, want %v", c.DueDate, want)
	}
	if want := date(2024, time.April, 10); !c.ClosingDate.Equal(want) {
		t.Fatalf("closing date = %v, want %v", c.ClosingDate, want)
	}
}

// The card cycle helper and invoice generation must agree on the carry rule.
func TestCycleMatchesCanonicalDueDate(t *testing.T) {
	for closing := 1; closing <= 31; closing++ {
		for due := 1; due <= 31; due++ {
			card := core.CreditCard{ClosingDay: closing, DueDay: due}
			for m := 0; m < 12; m++ {
				c := CycleForMonth(card, m, 2025, time.UTC)
				want := DueDate(date(2025, FromIndex(m), 1), closing, due)
				if !c.DueDate.Equal(want) {
					t.Fatalf("closing=%d due=%d month=%d: cycle due %v, canonical %v", closing, due, m, c.DueDate, want)
				}
				if c.DueDate.Before(c.Start) {
					t.Fatalf("due date %v before invoice month %v", c.DueDate, c.Start)
				}
			}
		}
	}
}

func TestClampDay(t *testing.T) {
	feb := date(2023, time.February, 1)
	if got := ClampDay(feb, 31); got != 28 {
		t.Errorf("ClampDay(feb 2023, 31) = %d, want 28", got)
	}
	if got := ClampDay(feb, 0); got != 1 {
		t.Errorf("ClampDay(feb 2023, 0) = %d, want 1", got)
	}
	if got := ClosingDate(date(2024, time.February, 1), 31); !got.Equal(date(2024, time.February, 29)) {
		t.Errorf("ClosingDate(feb 2024, 31) = %v", got)
	}
}

func TestMonthIndex(t *testing.T) {
	if ToIndex(time.January) != 0 || ToIndex(time.December) != 11 {
		t.Fatal("ToIndex mismatch")
	}
	if FromIndex(0) != time.January || FromIndex(11) != time.December {
		t.Fatal("FromIndex mismatch")
	}
	c := CycleForMonth(core.CreditCard{ClosingDay: 5, DueDay: 10}, 12, 2024, nil)
	if c.Month != 0 || c.Year != 2025 {
		t.Fatalf("month 12 should normalise to January 2025, got %d/%d", c.Month, c.Year)
	}
}
