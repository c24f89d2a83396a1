package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestPercentChange(t *testing.T) {
	d := decimal.NewFromInt
	cases := []struct {
		cur, prev decimal.Decimal
		want      string
	}{
		{d(110), d(100), "10"},
		{d(80), d(100), "-20"},
		{d(50), d(0), "0"},
		{d(-50), d(-100), "50"},
	}
	for _, tc := range cases {
		if got := PercentChange(tc.cur, tc.prev); !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("PercentChange(%s, %s) = %s, want %s", tc.cur, tc.prev, got, tc.want)
		}
	}
	if got := Percent(d(1), d(0)); !got.IsZero() {
		t.Errorf("Percent with zero whole = %s, want 0", got)
	}
}
