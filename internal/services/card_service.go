package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/billing"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

type CardService struct {
	repo   *storage.Repository
	logger *log.Logger
}

func NewCardService(repo *storage.Repository, logger *log.Logger) *CardService {
	return &CardService{repo: repo, logger: loggerOr(logger, log.ComponentInvoice)}
}

// Create validates and stores a new, active card.
func (s *CardService) Create(ctx context.Context, uid string, card core.CreditCard) (core.CreditCard, error) {
	card.Nickname = strings.TrimSpace(card.Nickname)
	if err := card.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	card.ID = s.repo.NewID()
	card.IsActive = true
	if err := s.repo.PutCard(ctx, uid, card); err != nil {
		return core.CreditCard{}, fmt.Errorf("store card: %w", err)
	}
	s.logger.InfoContext(ctx, "Card created", log.FieldUserID, uid, log.FieldCardID, card.ID)
	return card, nil
}

func (s *CardService) List(ctx context.Context, uid string) ([]core.CreditCard, error) {
	return s.repo.Cards(ctx, uid)
}

// Deactivate keeps the card and its history but stops new charges and
// automatic invoices.
func (s *CardService) Deactivate(ctx context.Context, uid, cardID string) error {
	if _, err := s.repo.Card(ctx, uid, cardID); err != nil {
		return err
	}
	return s.repo.Update(ctx, storage.Patch{
		storage.FieldPath(uid, storage.CreditCards, cardID, "isActive"): false,
	})
}

// CycleView describes the open billing cycle of a card.
type CycleView struct {
	CardID      string          `json:"cardId"`
	Month       int             `json:"month"` // 0-11
	Year        int             `json:"year"`
	ClosingDate core.Date       `json:"closingDate"`
	DueDate     core.Date       `json:"dueDate"`
	Pending     decimal.Decimal `json:"pending"`
	Available   decimal.Decimal `json:"available"`
}

// CurrentCycle returns the cycle a purchase made at would be billed in,
// with the card's pending total and remaining limit.
func (s *CardService) CurrentCycle(ctx context.Context, uid, cardID string, at time.Time) (CycleView, error) {
	card, err := s.repo.Card(ctx, uid, cardID)
	if err != nil {
		return CycleView{}, err
	}
	txs, err := s.repo.Transactions(ctx, uid)
	if err != nil {
		return CycleView{}, fmt.Errorf("load transactions: %w", err)
	}

	pending := decimal.Zero
	for _, t := range txs {
		if t.CardID == cardID && !t.IsPaid {
			pending = pending.Add(t.Amount)
		}
	}

	c := billing.CycleFor(card, at)
	return CycleView{
		CardID:      cardID,
		Month:       c.Month,
		Year:        c.Year,
		ClosingDate: core.Date{Time: c.ClosingDate},
		DueDate:     core.Date{Time: c.DueDate},
		Pending:     pending,
		Available:   card.Limit.Sub(pending),
	}, nil
}
