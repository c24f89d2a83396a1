package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/billing"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

// Insight thresholds, in percent.
var (
	savingsThreshold       = decimal.NewFromInt(-10)
	overspendThreshold     = decimal.NewFromInt(20)
	concentrationThreshold = decimal.NewFromInt(40)
)

const (
	upcomingDueWindow   = 7 // days
	incomeTrailMonths   = 3
	maxProjectionMonths = 60
)

// Insight kinds.
const (
	InsightSavings       = "savings"
	InsightOverspend     = "overspend"
	InsightConcentration = "concentration"
	InsightUpcomingDue   = "upcoming_due"
)

// ProjectionService answers read-only forecasting queries. Every query works
// on a snapshot and never writes.
type ProjectionService struct {
	repo   *storage.Repository
	logger *log.Logger
	now    Clock
}

func NewProjectionService(repo *storage.Repository, logger *log.Logger, clock Clock) *ProjectionService {
	return &ProjectionService{repo: repo, logger: loggerOr(logger, log.ComponentProjection), now: clockOrSystem(clock)}
}

type ExpenseBucket struct {
	Total        decimal.Decimal    `json:"total"`
	Transactions []core.Transaction `json:"transactions"`
}

func (b *ExpenseBucket) add(t core.Transaction) {
	b.Total = b.Total.Add(t.Amount)
	b.Transactions = append(b.Transactions, t)
}

type NextMonthExpenses struct {
	Month        int             `json:"month"` // 0-11
	Year         int             `json:"year"`
	Fixed        ExpenseBucket   `json:"fixed"`
	Cash         ExpenseBucket   `json:"cash"`
	Installments ExpenseBucket   `json:"installments"`
	Total        decimal.Decimal `json:"total"`
}

func emptyBucket() ExpenseBucket {
	return ExpenseBucket{Total: decimal.Zero, Transactions: []core.Transaction{}}
}

// projectable reports whether t may enter a forecast: an expense that is not
// a reserve move or a settlement, charged to no card or to a card that
// still exists and is active.
func projectable(t core.Transaction, cards map[string]core.CreditCard) bool {
	if t.Type != core.Expense || isReserveTransfer(t) || isSettlement(t) {
		return false
	}
	if t.CardID != "" {
		card, ok := cards[t.CardID]
		if !ok || !card.IsActive {
			return false
		}
	}
	return true
}

func installmentIn(t core.Transaction, monthStart time.Time) bool {
	return t.ExpenseType == core.Installment && !t.IsPaid && inMonth(t.Date, monthStart)
}

// ComputeNextMonthExpenses splits next month's pending expenses into fixed
// charges, card cash purchases and installments.
func ComputeNextMonthExpenses(snap storage.Snapshot, now time.Time) NextMonthExpenses {
	next := billing.AddMonths(now, 1)
	cards := snap.CardByID()
	out := NextMonthExpenses{
		Month:        billing.ToIndex(next.Month()),
		Year:         next.Year(),
		Fixed:        emptyBucket(),
		Cash:         emptyBucket(),
		Installments: emptyBucket(),
	}
	for _, t := range snap.Transactions {
		if !projectable(t, cards) {
			continue
		}
		switch {
		case t.ExpenseType == core.Fixed:
			if fixedChargeIn(t, next) {
				out.Fixed.add(t)
			}
		case t.ExpenseType == core.Installment:
			if installmentIn(t, next) {
				out.Installments.add(t)
			}
		case t.CardID != "":
			if !t.IsPaid && inMonth(t.Date, next) {
				out.Cash.add(t)
			}
		}
	}
	out.Total = out.Fixed.Total.Add(out.Cash.Total).Add(out.Installments.Total)
	return out
}

type CashFlowMonth struct {
	Month   int             `json:"month"` // 0-11
	Year    int             `json:"year"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Balance decimal.Decimal `json:"balance"`
}

type CashFlowProjection struct {
	StartingBalance decimal.Decimal `json:"startingBalance"`
	AverageIncome   decimal.Decimal `json:"averageIncome"`
	Months          []CashFlowMonth `json:"months"`
}

// ProjectCashFlow rolls a balance forward month by month, starting next
// month. Income is the average realized income of the three calendar months
// before now's month, computed once and held for the whole horizon. Each
// month's expense is its fixed charges plus its installments.
func ProjectCashFlow(snap storage.Snapshot, startingBalance decimal.Decimal, monthsAhead int, now time.Time) (CashFlowProjection, error) {
	if monthsAhead < 1 || monthsAhead > maxProjectionMonths {
		return CashFlowProjection{}, core.Invalid("months must be between 1 and %d", maxProjectionMonths)
	}
	cards := snap.CardByID()

	income := decimal.Zero
	for i := 1; i <= incomeTrailMonths; i++ {
		income = income.Add(monthIncome(snap.Transactions, billing.AddMonths(now, -i)))
	}
	avgIncome := core.RoundMoney(income.Div(decimal.NewFromInt(incomeTrailMonths)))

	proj := CashFlowProjection{
		StartingBalance: startingBalance,
		AverageIncome:   avgIncome,
		Months:          make([]CashFlowMonth, 0, monthsAhead),
	}
	balance := startingBalance
	for i := 1; i <= monthsAhead; i++ {
		month := billing.AddMonths(now, i)
		expense := decimal.Zero
		for _, t := range snap.Transactions {
			if !projectable(t, cards) {
				continue
			}
			if fixedChargeIn(t, month) || installmentIn(t, month) {
				expense = expense.Add(t.Amount)
			}
		}
		net := avgIncome.Sub(expense)
		balance = balance.Add(net)
		proj.Months = append(proj.Months, CashFlowMonth{
			Month:   billing.ToIndex(month.Month()),
			Year:    month.Year(),
			Income:  avgIncome,
			Expense: expense,
			Net:     net,
			Balance: balance,
		})
	}
	return proj, nil
}

func monthIncome(txs []core.Transaction, monthStart time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if isEarning(t) && inMonth(t.Date, monthStart) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

func monthSpending(txs []core.Transaction, monthStart time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if isSpending(t) && inMonth(t.Date, monthStart) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

type Insight struct {
	Kind          string          `json:"kind"`
	Message       string          `json:"message"`
	Value         decimal.Decimal `json:"value"`
	CategoryID    string          `json:"categoryId,omitempty"`
	TransactionID string          `json:"transactionId,omitempty"`
	DueDate       *core.Date      `json:"dueDate,omitempty"`
}

// ComputeInsights derives qualitative signals from this and last month's
// spending and from fixed bills falling due within a week.
func ComputeInsights(snap storage.Snapshot, categories []core.Category, now time.Time) []Insight {
	insights := []Insight{}
	thisMonth := billing.FirstOfMonth(now)
	current := monthSpending(snap.Transactions, thisMonth)
	previous := monthSpending(snap.Transactions, billing.AddMonths(now, -1))

	if previous.IsPositive() {
		change := core.PercentChange(current, previous)
		switch {
		case change.LessThan(savingsThreshold):
			insights = append(insights, Insight{
				Kind:    InsightSavings,
				Message: fmt.Sprintf("Gastos %s%% menores que no mês passado", change.Abs().StringFixed(0)),
				Value:   change,
			})
		case change.GreaterThan(overspendThreshold):
			insights = append(insights, Insight{
				Kind:    InsightOverspend,
				Message: fmt.Sprintf("Gastos %s%% maiores que no mês passado", change.StringFixed(0)),
				Value:   change,
			})
		}
	}

	if current.IsPositive() {
		top := categoryTotals(snap.Transactions, categories, thisMonth, isSpending, current)
		if len(top) > 0 && top[0].Percentage.GreaterThan(concentrationThreshold) {
			insights = append(insights, Insight{
				Kind:       InsightConcentration,
				Message:    fmt.Sprintf("%s concentra %s%% dos gastos do mês", top[0].Name, top[0].Percentage.StringFixed(0)),
				Value:      top[0].Percentage,
				CategoryID: top[0].CategoryID,
			})
		}
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	limit := today.AddDate(0, 0, upcomingDueWindow)
	for _, t := range snap.Transactions {
		due, ok := upcomingDue(t, today)
		if !ok || due.After(limit) {
			continue
		}
		d := core.Date{Time: due}
		days := int(due.Sub(today).Hours() / 24)
		insights = append(insights, Insight{
			Kind:          InsightUpcomingDue,
			Message:       fmt.Sprintf("%s vence em %d dia(s)", t.Description, days),
			Value:         t.Amount,
			TransactionID: t.ID,
			DueDate:       &d,
		})
	}
	return insights
}

// upcomingDue returns the next due date, on or after today, of an unpaid
// fixed bill paid from an account.
func upcomingDue(t core.Transaction, today time.Time) (time.Time, bool) {
	if t.Type != core.Expense || t.ExpenseType != core.Fixed || t.IsPaid || t.CardID != "" || isReserveTransfer(t) {
		return time.Time{}, false
	}
	if !t.IsRecurring {
		due := t.EffectiveDueDate().In(today.Location())
		due = time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, today.Location())
		return due, !due.Before(today)
	}
	for i := 0; i < 2; i++ {
		month := billing.AddMonths(today, i)
		if !fixedChargeIn(t, month) {
			continue
		}
		if due := DueDateIn(t, month); !due.Before(today) {
			return due, true
		}
	}
	return time.Time{}, false
}

// categoryTotals aggregates the month's transactions selected by keep per
// category, largest first. whole is the base of the percentage share.
func categoryTotals(txs []core.Transaction, categories []core.Category, monthStart time.Time, keep func(core.Transaction) bool, whole decimal.Decimal) []core.CategoryAmount {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	sums := make(map[string]decimal.Decimal)
	for _, t := range txs {
		if keep(t) && inMonth(t.Date, monthStart) {
			sums[t.CategoryID] = sums[t.CategoryID].Add(t.Amount)
		}
	}
	out := make([]core.CategoryAmount, 0, len(sums))
	for id, amount := range sums {
		name, ok := names[id]
		if !ok {
			name = "Sem categoria"
			if id != "" {
				name = id
			}
		}
		out = append(out, core.CategoryAmount{
			CategoryID: id,
			Name:       name,
			Amount:     amount,
			Percentage: core.Percent(amount, whole),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

func (s *ProjectionService) snapshot(ctx context.Context, uid string) (storage.Snapshot, error) {
	snap, err := s.repo.Snapshot(ctx, uid)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load snapshot", log.FieldUserID, uid, log.FieldError, err)
		return storage.Snapshot{}, err
	}
	return snap, nil
}

func (s *ProjectionService) NextMonthExpenses(ctx context.Context, uid string) (NextMonthExpenses, error) {
	snap, err := s.snapshot(ctx, uid)
	if err != nil {
		return NextMonthExpenses{}, err
	}
	return ComputeNextMonthExpenses(snap, s.now()), nil
}

func (s *ProjectionService) CashFlow(ctx context.Context, uid string, startingBalance decimal.Decimal, monthsAhead int) (CashFlowProjection, error) {
	snap, err := s.snapshot(ctx, uid)
	if err != nil {
		return CashFlowProjection{}, err
	}
	return ProjectCashFlow(snap, startingBalance, monthsAhead, s.now())
}

func (s *ProjectionService) Insights(ctx context.Context, uid string) ([]Insight, error) {
	snap, err := s.snapshot(ctx, uid)
	if err != nil {
		return nil, err
	}
	return ComputeInsights(snap, snap.Categories, s.now()), nil
}

func (s *ProjectionService) Retrospective(ctx context.Context, uid string) (Retrospective, error) {
	snap, err := s.snapshot(ctx, uid)
	if err != nil {
		return Retrospective{}, err
	}
	return MonthlyRetrospective(snap.Transactions, snap.Categories, s.now()), nil
}
