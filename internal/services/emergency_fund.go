package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/billing"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

const (
	EmergencyGoalName = "Reserva de Emergência"

	emergencyMonths      = 6
	emergencyTrailMonths = 3
	emergencyPlanMonths  = 12
)

var (
	emergencyMultiplier = decimal.NewFromInt(emergencyMonths)
	emergencyPlan       = decimal.NewFromInt(emergencyPlanMonths)
	emergencyDrift      = decimal.NewFromFloat(0.10)
)

// EmergencyStatus is the advisor's view of the reserve. Target and suggested
// contribution are filled in even without a goal so a client can offer one.
type EmergencyStatus struct {
	HasGoal               bool            `json:"hasGoal"`
	GoalID                string          `json:"goalId,omitempty"`
	MonthlyExpenses       decimal.Decimal `json:"monthlyExpenses"`
	TargetAmount          decimal.Decimal `json:"targetAmount"`
	CurrentAmount         decimal.Decimal `json:"currentAmount"`
	MonthsCovered         decimal.Decimal `json:"monthsCovered"`
	Progress              decimal.Decimal `json:"progress"`
	SuggestedContribution decimal.Decimal `json:"suggestedContribution"`
	TargetUpdated         bool            `json:"targetUpdated"`
}

// AverageMonthlyExpenses averages the spending of the three calendar months
// before now's month. Months without spending are left out of the average.
func AverageMonthlyExpenses(txs []core.Transaction, now time.Time) decimal.Decimal {
	total := decimal.Zero
	months := 0
	for i := 1; i <= emergencyTrailMonths; i++ {
		spent := monthSpending(txs, billing.AddMonths(now, -i))
		if spent.IsZero() {
			continue
		}
		total = total.Add(spent)
		months++
	}
	if months == 0 {
		return decimal.Zero
	}
	return core.RoundMoney(total.Div(decimal.NewFromInt(int64(months))))
}

// ComputeEmergencyStatus sizes the reserve and measures goal against it. goal
// may be nil.
func ComputeEmergencyStatus(txs []core.Transaction, goal *core.Goal, now time.Time) EmergencyStatus {
	monthly := AverageMonthlyExpenses(txs, now)
	st := EmergencyStatus{
		MonthlyExpenses: monthly,
		TargetAmount:    monthly.Mul(emergencyMultiplier),
		CurrentAmount:   decimal.Zero,
		MonthsCovered:   decimal.Zero,
	}
	if goal != nil {
		st.HasGoal = true
		st.GoalID = goal.ID
		st.CurrentAmount = goal.CurrentAmount
	}
	if monthly.IsPositive() {
		st.MonthsCovered = st.CurrentAmount.Div(monthly)
	}
	st.Progress = core.Percent(st.CurrentAmount, st.TargetAmount)
	st.SuggestedContribution = suggestedContribution(st.TargetAmount, st.CurrentAmount)
	return st
}

func suggestedContribution(target, current decimal.Decimal) decimal.Decimal {
	missing := target.Sub(current)
	if !missing.IsPositive() {
		return decimal.Zero
	}
	return missing.Div(emergencyPlan).Ceil()
}

// drifted reports whether fresh differs from stored by more than the drift
// tolerance.
func drifted(fresh, stored decimal.Decimal) bool {
	if stored.IsZero() {
		return !fresh.IsZero()
	}
	return fresh.Sub(stored).Abs().Div(stored.Abs()).GreaterThan(emergencyDrift)
}

func findEmergencyGoal(goals []core.Goal) *core.Goal {
	for i := range goals {
		if goals[i].IsEmergency() {
			return &goals[i]
		}
	}
	return nil
}

// EmergencyFundService tracks the six-month reserve through a goal.
type EmergencyFundService struct {
	repo   *storage.Repository
	logger *log.Logger
	now    Clock
}

func NewEmergencyFundService(repo *storage.Repository, logger *log.Logger, clock Clock) *EmergencyFundService {
	return &EmergencyFundService{repo: repo, logger: loggerOr(logger, log.ComponentEmergency), now: clockOrSystem(clock)}
}

// Status computes the reserve status. When the stored goal's target has
// drifted more than 10% from the fresh target it is corrected in place.
func (s *EmergencyFundService) Status(ctx context.Context, uid string) (EmergencyStatus, error) {
	txs, err := s.repo.Transactions(ctx, uid)
	if err != nil {
		return EmergencyStatus{}, fmt.Errorf("load transactions: %w", err)
	}
	goals, err := s.repo.Goals(ctx, uid)
	if err != nil {
		return EmergencyStatus{}, fmt.Errorf("load goals: %w", err)
	}

	goal := findEmergencyGoal(goals)
	st := ComputeEmergencyStatus(txs, goal, s.now())
	if goal == nil || !drifted(st.TargetAmount, goal.TargetAmount) {
		return st, nil
	}

	stored := goal.TargetAmount
	goal.TargetAmount = st.TargetAmount
	goal.Recompute()
	err = s.repo.Update(ctx, storage.Patch{
		storage.FieldPath(uid, storage.Goals, goal.ID, "targetAmount"): goal.TargetAmount,
		storage.FieldPath(uid, storage.Goals, goal.ID, "status"):       goal.Status,
	})
	if err != nil {
		return EmergencyStatus{}, fmt.Errorf("update emergency target: %w", err)
	}
	st.TargetUpdated = true
	s.logger.InfoContext(ctx, "Emergency target adjusted",
		log.FieldUserID, uid,
		log.FieldGoalID, goal.ID,
		"stored", stored.String(),
		"target", goal.TargetAmount.String())
	return st, nil
}

// CreateGoal returns the existing emergency goal or creates one sized from
// the current status with a one year deadline. created reports which.
func (s *EmergencyFundService) CreateGoal(ctx context.Context, uid string) (goal core.Goal, created bool, err error) {
	goals, err := s.repo.Goals(ctx, uid)
	if err != nil {
		return core.Goal{}, false, fmt.Errorf("load goals: %w", err)
	}
	if existing := findEmergencyGoal(goals); existing != nil {
		return *existing, false, nil
	}
	// A funded reserve is completed, not gone.
	for _, g := range goals {
		if g.Status == core.GoalCompleted && g.HasEmergencyMarker() {
			return g, false, nil
		}
	}
	txs, err := s.repo.Transactions(ctx, uid)
	if err != nil {
		return core.Goal{}, false, fmt.Errorf("load transactions: %w", err)
	}

	now := s.now()
	st := ComputeEmergencyStatus(txs, nil, now)
	goal = core.Goal{
		ID:            s.repo.NewID(),
		UserID:        uid,
		Name:          EmergencyGoalName,
		Category:      core.GoalCategoryEmergency,
		TargetAmount:  st.TargetAmount,
		CurrentAmount: decimal.Zero,
		Deadline:      core.Date{Time: now.AddDate(1, 0, 0).UTC()},
		Contributions: []core.Contribution{},
		Status:        core.GoalActive,
	}
	if err := s.repo.PutGoal(ctx, uid, goal); err != nil {
		return core.Goal{}, false, fmt.Errorf("store goal: %w", err)
	}
	s.logger.InfoContext(ctx, "Emergency goal created",
		log.FieldUserID, uid,
		log.FieldGoalID, goal.ID,
		log.FieldAmount, goal.TargetAmount.String())
	return goal, true, nil
}
