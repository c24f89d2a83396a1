package services

import (
	"errors"
	"testing"
	"time"

	"financas/internal/core"
)

func TestBalanceEffects(t *testing.T) {
	tests := []struct {
		name string
		tx   core.Transaction
		want map[string]string
	}{
		{"income", income("i", "a1", "10", date(2025, 1, 1)), map[string]string{"a1": "10"}},
		{"expense", expense("e", "a1", "10", date(2025, 1, 1), true), map[string]string{"a1": "-10"}},
		{"card charge", charge("c", "c1", "10", date(2025, 1, 1)), nil},
		{"no account", expense("e", "", "10", date(2025, 1, 1), true), nil},
		{
			"transfer",
			core.Transaction{Type: core.Transfer, Amount: dec("10"), AccountID: "a1", ToAccountID: "a2"},
			map[string]string{"a1": "-10", "a2": "10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BalanceEffects(tt.tx)
			if len(got) != len(tt.want) {
				t.Fatalf("BalanceEffects() = %v, want %v", got, tt.want)
			}
			for acc, want := range tt.want {
				if !got[acc].Equal(dec(want)) {
					t.Errorf("effect on %s = %s, want %s", acc, got[acc], want)
				}
			}
		})
	}
}

func TestRecalculateCorrectsDrift(t *testing.T) {
	f := newFixture(t)
	acc := f.account(t, "a1", "1000")
	acc.CurrentBalance = dec("1")
	if err := f.repo.PutAccount(f.ctx, uid, acc); err != nil {
		t.Fatal(err)
	}
	f.card(t, "c1", 10, 5)
	f.put(t,
		income("salary", "a1", "500", date(2025, time.March, 5)),
		expense("rent", "a1", "300", date(2025, time.March, 6), true),
		expense("later", "a1", "900", date(2025, time.March, 7), false),
		charge("cc", "c1", "40", date(2025, time.March, 8)),
	)

	got, err := f.ledger.Recalculate(f.ctx, uid, "a1")
	if err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}
	if !got.CurrentBalance.Equal(dec("1200")) {
		t.Errorf("Recalculate() = %s, want 1200", got.CurrentBalance)
	}
	mustBalance(t, f, "a1", "1200")

	if _, err := f.ledger.Recalculate(f.ctx, uid, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Recalculate(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestNetWorth(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a1", "1000")
	f.account(t, "a2", "250.25")
	hidden := f.account(t, "a3", "99")
	hidden.IncludeInTotal = false
	if err := f.repo.PutAccount(f.ctx, uid, hidden); err != nil {
		t.Fatal(err)
	}

	nw, err := f.ledger.NetWorth(f.ctx, uid)
	if err != nil {
		t.Fatalf("NetWorth() error = %v", err)
	}
	if !nw.Total.Equal(dec("1250.25")) {
		t.Errorf("Total = %s, want 1250.25", nw.Total)
	}
	if len(nw.Accounts) != 3 {
		t.Errorf("got %d accounts, want 3", len(nw.Accounts))
	}
}

func newGoal(t *testing.T, f *fixture, target string) core.Goal {
	t.Helper()
	g, err := f.goals.Create(f.ctx, uid, core.Goal{Name: "Viagem", TargetAmount: dec(target)})
	if err != nil {
		t.Fatalf("Create goal: %v", err)
	}
	return g
}

func TestTransferToGoal(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a1", "1000")
	g := newGoal(t, f, "300")

	mv, err := f.ledger.TransferToGoal(f.ctx, uid, "a1", g.ID, dec("200"), "primeiro")
	if err != nil {
		t.Fatalf("TransferToGoal() error = %v", err)
	}
	if !mv.Goal.CurrentAmount.Equal(dec("200")) || mv.Goal.Status != core.GoalActive {
		t.Errorf("goal = %+v", mv.Goal)
	}
	if mv.Transaction.CategoryID != core.CategoryReserveTransfer || mv.Transaction.Type != core.Expense {
		t.Errorf("reserve transaction = %+v", mv.Transaction)
	}
	mustBalance(t, f, "a1", "800")

	mv, err = f.ledger.TransferToGoal(f.ctx, uid, "a1", g.ID, dec("150"), "")
	if err != nil {
		t.Fatalf("TransferToGoal() error = %v", err)
	}
	if mv.Goal.Status != core.GoalCompleted {
		t.Errorf("status = %s, want completed", mv.Goal.Status)
	}
	stored, _ := f.repo.Goal(f.ctx, uid, g.ID)
	if !stored.CurrentAmount.Equal(dec("350")) || len(stored.Contributions) != 2 {
		t.Errorf("stored goal = %+v", stored)
	}

	mv, err = f.ledger.WithdrawFromGoal(f.ctx, uid, "a1", g.ID, dec("100"), "")
	if err != nil {
		t.Fatalf("WithdrawFromGoal() error = %v", err)
	}
	if mv.Goal.Status != core.GoalActive || mv.Transaction.Type != core.Income {
		t.Errorf("after withdrawal goal = %+v, tx = %+v", mv.Goal, mv.Transaction)
	}
	mustBalance(t, f, "a1", "750")

	acc, err := f.ledger.Recalculate(f.ctx, uid, "a1")
	if err != nil {
		t.Fatalf("Recalculate() error = %v", err)
	}
	if !acc.CurrentBalance.Equal(dec("750")) {
		t.Errorf("recalculated balance = %s, want 750", acc.CurrentBalance)
	}
}

func TestTransferToGoalFailures(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		withdraw bool
		cancel   bool
		want     error
	}{
		{name: "zero", amount: "0", want: core.ErrInvalidInput},
		{name: "over balance", amount: "1000.01", want: core.ErrInsufficientBalance},
		{name: "over goal", amount: "1", withdraw: true, want: core.ErrInsufficientGoalFunds},
		{name: "cancelled goal", amount: "1", cancel: true, want: core.ErrGoalNotActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.account(t, "a1", "1000")
			g := newGoal(t, f, "300")
			if tt.cancel {
				if _, err := f.goals.Cancel(f.ctx, uid, g.ID); err != nil {
					t.Fatal(err)
				}
			}

			move := f.ledger.TransferToGoal
			if tt.withdraw {
				move = f.ledger.WithdrawFromGoal
			}
			if _, err := move(f.ctx, uid, "a1", g.ID, dec(tt.amount), ""); !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			mustBalance(t, f, "a1", "1000")
			txs, _ := f.repo.Transactions(f.ctx, uid)
			if len(txs) != 0 {
				t.Errorf("stored %d transactions on failure", len(txs))
			}
		})
	}
}

func TestGoalContributions(t *testing.T) {
	f := newFixture(t)
	g := newGoal(t, f, "100")

	got, err := f.goals.Contribute(f.ctx, uid, g.ID, dec("100"), "tudo")
	if err != nil {
		t.Fatalf("Contribute() error = %v", err)
	}
	if got.Status != core.GoalCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}

	got, err = f.goals.Withdraw(f.ctx, uid, g.ID, dec("40"), "")
	if err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	if got.Status != core.GoalActive || !got.CurrentAmount.Equal(dec("60")) {
		t.Errorf("after withdraw = %+v", got)
	}

	if _, err := f.goals.Withdraw(f.ctx, uid, g.ID, dec("60.01"), ""); !errors.Is(err, core.ErrInsufficientGoalFunds) {
		t.Errorf("Withdraw() over balance error = %v", err)
	}
	if _, err := f.goals.Create(f.ctx, uid, core.Goal{Name: "  "}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Create() without name error = %v", err)
	}
}

func TestOpenAccount(t *testing.T) {
	f := newFixture(t)
	acc, err := f.ledger.OpenAccount(f.ctx, uid, core.Account{Name: " Nubank ", Type: core.BankAccount, InitialBalance: dec("100.005"), IncludeInTotal: true})
	if err != nil {
		t.Fatalf("OpenAccount() error = %v", err)
	}
	if acc.ID == "" || acc.Name != "Nubank" || !acc.CurrentBalance.Equal(dec("100.01")) {
		t.Errorf("OpenAccount() = %+v", acc)
	}
	mustBalance(t, f, acc.ID, "100.01")

	for _, bad := range []core.Account{{Name: "", Type: core.BankAccount}, {Name: "x", Type: "savings"}} {
		if _, err := f.ledger.OpenAccount(f.ctx, uid, bad); !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("OpenAccount(%+v) error = %v, want ErrInvalidInput", bad, err)
		}
	}
}
