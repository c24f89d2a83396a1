package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

// GoalService manages savings goals. Contributions recorded here do not move
// account money; Ledger.TransferToGoal does both in one write.
type GoalService struct {
	repo   *storage.Repository
	logger *log.Logger
	now    Clock
}

func NewGoalService(repo *storage.Repository, logger *log.Logger, clock Clock) *GoalService {
	return &GoalService{repo: repo, logger: loggerOr(logger, log.ComponentEmergency), now: clockOrSystem(clock)}
}

func (s *GoalService) Create(ctx context.Context, uid string, g core.Goal) (core.Goal, error) {
	g.Name = strings.TrimSpace(g.Name)
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	g.ID = s.repo.NewID()
	g.UserID = uid
	g.Status = core.GoalActive
	if g.Contributions == nil {
		g.Contributions = []core.Contribution{}
	}
	g.Recompute()
	if err := s.repo.PutGoal(ctx, uid, g); err != nil {
		return core.Goal{}, fmt.Errorf("store goal: %w", err)
	}
	return g, nil
}

func (s *GoalService) List(ctx context.Context, uid string) ([]core.Goal, error) {
	return s.repo.Goals(ctx, uid)
}

func (s *GoalService) Get(ctx context.Context, uid, id string) (core.Goal, error) {
	return s.repo.Goal(ctx, uid, id)
}

// Contribute appends a deposit to the goal.
func (s *GoalService) Contribute(ctx context.Context, uid, goalID string, amount decimal.Decimal, note string) (core.Goal, error) {
	return s.record(ctx, uid, goalID, amount, note, false)
}

// Withdraw appends a withdrawal. The goal balance cannot go below zero.
func (s *GoalService) Withdraw(ctx context.Context, uid, goalID string, amount decimal.Decimal, note string) (core.Goal, error) {
	return s.record(ctx, uid, goalID, amount, note, true)
}

func (s *GoalService) record(ctx context.Context, uid, goalID string, amount decimal.Decimal, note string, withdraw bool) (core.Goal, error) {
	amount = core.RoundMoney(amount)
	if !amount.IsPositive() {
		return core.Goal{}, core.ErrInvalidAmount
	}
	g, err := s.repo.Goal(ctx, uid, goalID)
	if err != nil {
		return core.Goal{}, err
	}
	if g.Status == core.GoalCancelled {
		return core.Goal{}, core.ErrGoalNotActive
	}
	if withdraw {
		if g.CurrentAmount.LessThan(amount) {
			return core.Goal{}, core.ErrInsufficientGoalFunds
		}
		amount = amount.Neg()
	}

	g.Contributions = append(g.Contributions, core.Contribution{
		Amount: amount,
		Date:   core.Date{Time: s.now().UTC()},
		Note:   strings.TrimSpace(note),
	})
	g.Recompute()
	if err := s.repo.Update(ctx, goalPatch(uid, g)); err != nil {
		return core.Goal{}, fmt.Errorf("record contribution: %w", err)
	}
	s.logger.InfoContext(ctx, "Goal contribution recorded",
		log.FieldUserID, uid,
		log.FieldGoalID, goalID,
		log.FieldAmount, amount.String())
	return g, nil
}

// Cancel freezes a goal. Its contributions are kept.
func (s *GoalService) Cancel(ctx context.Context, uid, goalID string) (core.Goal, error) {
	g, err := s.repo.Goal(ctx, uid, goalID)
	if err != nil {
		return core.Goal{}, err
	}
	g.Status = core.GoalCancelled
	err = s.repo.Update(ctx, storage.Patch{
		storage.FieldPath(uid, storage.Goals, goalID, "status"): g.Status,
	})
	if err != nil {
		return core.Goal{}, fmt.Errorf("cancel goal: %w", err)
	}
	return g, nil
}

func goalPatch(uid string, g core.Goal) storage.Patch {
	return storage.Patch{
		storage.FieldPath(uid, storage.Goals, g.ID, "contributions"): g.Contributions,
		storage.FieldPath(uid, storage.Goals, g.ID, "currentAmount"): g.CurrentAmount,
		storage.FieldPath(uid, storage.Goals, g.ID, "status"):        g.Status,
	}
}
