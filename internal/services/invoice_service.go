package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/amqp"
	"financas/internal/billing"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
)

// InvoiceService groups a card's pending charges into invoices and settles
// them against an account.
type InvoiceService struct {
	repo      *storage.Repository
	publisher InvoicePublisher
	logger    *log.Logger
	now       Clock
}

// NewInvoiceService wires the service. publisher may be nil, in which case
// no events are emitted.
func NewInvoiceService(repo *storage.Repository, publisher InvoicePublisher, logger *log.Logger, clock Clock) *InvoiceService {
	return &InvoiceService{
		repo:      repo,
		publisher: publisher,
		logger:    loggerOr(logger, log.ComponentInvoice),
		now:       clockOrSystem(clock),
	}
}

func (s *InvoiceService) List(ctx context.Context, uid string) ([]core.Invoice, error) {
	return s.repo.Invoices(ctx, uid)
}

func (s *InvoiceService) Get(ctx context.Context, uid, id string) (core.Invoice, error) {
	return s.repo.Invoice(ctx, uid, id)
}

// Generate creates the invoice of a card for month (0-11) and year.
//
// Every unpaid charge of the card that is not listed on another unpaid
// invoice is included, whatever its date, so stale charges are caught up by
// the next invoice. Membership is a snapshot: charges recorded later surface
// in a later invoice.
func (s *InvoiceService) Generate(ctx context.Context, uid, cardID string, month, year int) (core.Invoice, error) {
	if month < 0 || month > 11 {
		return core.Invoice{}, core.Invalid("month must be between 0 and 11, got %d", month)
	}
	if year < 1 {
		return core.Invoice{}, core.Invalid("invalid year %d", year)
	}

	card, err := s.repo.Card(ctx, uid, cardID)
	if err != nil {
		return core.Invoice{}, err
	}

	invoices, err := s.repo.Invoices(ctx, uid)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("load invoices: %w", err)
	}
	pendingMembers := make(map[string]string)
	for _, inv := range invoices {
		if inv.CardID != cardID {
			continue
		}
		if inv.Month == month && inv.Year == year {
			return core.Invoice{}, fmt.Errorf("card %s %02d/%d: %w", cardID, month+1, year, core.ErrInvoiceExists)
		}
		if !inv.IsPaid {
			for _, id := range inv.TransactionIDs {
				pendingMembers[id] = inv.ID
			}
		}
	}

	txs, err := s.repo.Transactions(ctx, uid)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("load transactions: %w", err)
	}

	inv := core.Invoice{
		CardID:         cardID,
		Month:          month,
		Year:           year,
		TotalAmount:    decimal.Zero,
		TransactionIDs: []string{},
	}
	listed := 0
	for _, t := range txs {
		if t.CardID != cardID || t.IsPaid {
			continue
		}
		// A charge belongs to one invoice only; it stays on the pending one.
		if _, ok := pendingMembers[t.ID]; ok {
			listed++
			continue
		}
		inv.TransactionIDs = append(inv.TransactionIDs, t.ID)
		inv.TotalAmount = inv.TotalAmount.Add(t.Amount)
	}
	if listed > 0 {
		s.logger.DebugContext(ctx, "Skipped charges already on an unpaid invoice",
			log.FieldUserID, uid,
			log.FieldCardID, cardID,
			log.FieldCount, listed)
	}
	if len(inv.TransactionIDs) == 0 {
		return core.Invoice{}, core.ErrNoPendingTransactions
	}

	cycle := billing.CycleForMonth(card, month, year, time.UTC)
	inv.ID = s.repo.NewID()
	inv.TotalAmount = core.RoundMoney(inv.TotalAmount)
	inv.ClosingDate = core.Date{Time: cycle.ClosingDate}
	inv.DueDate = core.Date{Time: cycle.DueDate}

	if err := s.repo.PutInvoice(ctx, uid, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("store invoice: %w", err)
	}

	s.logger.InfoContext(ctx, "Invoice generated", s.fields(uid, inv).
		WithOperation(log.OpGenerate).
		WithAmount(inv.TotalAmount).
		ToSlice()...)
	s.publish(ctx, amqp.EventInvoiceGenerated, uid, inv)
	return inv, nil
}

// Pay settles an invoice from an account. One settlement expense is posted
// for the invoice total and it is the only debit: member charges are
// flagged paid without touching any balance. Everything is written in one
// atomic update.
func (s *InvoiceService) Pay(ctx context.Context, uid, invoiceID, accountID string, paymentDate time.Time) (core.Invoice, error) {
	inv, err := s.repo.Invoice(ctx, uid, invoiceID)
	if err != nil {
		return core.Invoice{}, err
	}
	if inv.IsPaid {
		return core.Invoice{}, core.ErrInvoiceAlreadyPaid
	}
	acc, err := s.repo.Account(ctx, uid, accountID)
	if err != nil {
		return core.Invoice{}, err
	}
	if err := checkFunds(acc, inv.TotalAmount); err != nil {
		return core.Invoice{}, err
	}
	for _, id := range inv.TransactionIDs {
		member, err := s.repo.Transaction(ctx, uid, id)
		if err != nil {
			return core.Invoice{}, fmt.Errorf("invoice %s member: %w", invoiceID, err)
		}
		if member.IsPaid {
			return core.Invoice{}, fmt.Errorf("invoice %s member %s: %w", invoiceID, id, core.ErrInvoiceMemberPaid)
		}
	}

	description := "Fatura"
	if card, err := s.repo.Card(ctx, uid, inv.CardID); err == nil {
		description += " " + card.Nickname
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.Invoice{}, err
	}
	description += fmt.Sprintf(" %02d/%d", inv.Month+1, inv.Year)

	paid := dateOr(core.Date{Time: paymentDate}, s.now())
	settlement := core.Transaction{
		ID:          s.repo.NewID(),
		Type:        core.Expense,
		Amount:      inv.TotalAmount,
		Description: description,
		CategoryID:  core.CategoryInvoicePayment,
		AccountID:   accountID,
		Date:        paid,
		IsPaid:      true,
		InvoiceID:   inv.ID,
	}

	p := storage.Patch{}
	p.Set(storage.DocPath(uid, storage.Transactions, settlement.ID), settlement)
	for _, id := range inv.TransactionIDs {
		p.Set(storage.FieldPath(uid, storage.Transactions, id, "isPaid"), true)
	}
	p.Set(storage.FieldPath(uid, storage.Invoices, inv.ID, "isPaid"), true)
	p.Set(storage.FieldPath(uid, storage.Invoices, inv.ID, "paidDate"), paid)
	p.Set(storage.FieldPath(uid, storage.Invoices, inv.ID, "paidFromAccountId"), accountID)
	p.Set(storage.FieldPath(uid, storage.Invoices, inv.ID, "paymentTransactionId"), settlement.ID)
	p.Set(storage.FieldPath(uid, storage.Accounts, accountID, "currentBalance"),
		core.RoundMoney(acc.CurrentBalance.Sub(inv.TotalAmount)))

	if err := s.repo.Update(ctx, p); err != nil {
		return core.Invoice{}, fmt.Errorf("settle invoice: %w", err)
	}

	inv.IsPaid = true
	inv.PaidDate = &paid
	inv.PaidFromAccountID = accountID
	inv.PaymentTransactionID = settlement.ID

	s.logger.InfoContext(ctx, "Invoice paid", s.fields(uid, inv).
		WithOperation(log.OpPay).
		WithAmount(inv.TotalAmount).
		ToSlice()...)
	s.publish(ctx, amqp.EventInvoicePaid, uid, inv)
	return inv, nil
}

// Delete removes an unpaid invoice. Its charges become pending again for the
// next generation.
func (s *InvoiceService) Delete(ctx context.Context, uid, invoiceID string) error {
	inv, err := s.repo.Invoice(ctx, uid, invoiceID)
	if err != nil {
		return err
	}
	if inv.IsPaid {
		return core.ErrCannotDeletePaidInvoice
	}
	if err := s.repo.RemoveInvoice(ctx, uid, invoiceID); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	s.logger.InfoContext(ctx, "Invoice deleted", s.fields(uid, inv).WithOperation(log.OpDelete).ToSlice()...)
	s.publish(ctx, amqp.EventInvoiceDeleted, uid, inv)
	return nil
}

// AutoGenerateResult summarizes one AutoGenerate run.
type AutoGenerateResult struct {
	Generated []core.Invoice `json:"generated"`
	Empty     int            `json:"empty"`
	Failed    int            `json:"failed"`
}

// AutoGenerate creates the current month's invoice of every active card
// whose closing day has passed and that has none yet. A card without
// pending charges is skipped silently; any other failure is logged and the
// remaining cards are still processed.
func (s *InvoiceService) AutoGenerate(ctx context.Context, uid string, now time.Time) (AutoGenerateResult, error) {
	res := AutoGenerateResult{Generated: []core.Invoice{}}
	cards, err := s.repo.Cards(ctx, uid)
	if err != nil {
		return res, fmt.Errorf("load cards: %w", err)
	}
	invoices, err := s.repo.Invoices(ctx, uid)
	if err != nil {
		return res, fmt.Errorf("load invoices: %w", err)
	}

	month, year := billing.ToIndex(now.Month()), now.Year()
	existing := make(map[string]bool)
	for _, inv := range invoices {
		if inv.Month == month && inv.Year == year {
			existing[inv.CardID] = true
		}
	}

	for _, card := range cards {
		if !card.IsActive || existing[card.ID] {
			continue
		}
		if now.Day() <= billing.ClampDay(now, card.ClosingDay) {
			continue
		}

		inv, err := s.Generate(ctx, uid, card.ID, month, year)
		switch {
		case err == nil:
			res.Generated = append(res.Generated, inv)
		case errors.Is(err, core.ErrNoPendingTransactions):
			res.Empty++
			s.logger.DebugContext(ctx, "No pending charges for card",
				log.FieldUserID, uid,
				log.FieldCardID, card.ID)
		default:
			res.Failed++
			s.logger.ErrorContext(ctx, "Automatic invoice generation failed",
				log.FieldUserID, uid,
				log.FieldCardID, card.ID,
				log.FieldError, err)
		}
	}

	if len(res.Generated) > 0 || res.Failed > 0 {
		s.logger.InfoContext(ctx, "Automatic invoice generation complete",
			log.FieldUserID, uid,
			"generated", len(res.Generated),
			"failed", res.Failed,
			"empty", res.Empty)
	}
	return res, nil
}

func (s *InvoiceService) fields(uid string, inv core.Invoice) log.LogFields {
	return log.NewFields().
		WithUser(uid).
		WithInvoice(inv.ID).
		WithCard(inv.CardID).
		WithPeriod(inv.Month, inv.Year)
}

// publish emits an event; failures are logged and never fail the caller.
func (s *InvoiceService) publish(ctx context.Context, eventType, uid string, inv core.Invoice) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishInvoiceEvent(ctx, amqp.NewInvoiceEvent(eventType, uid, inv)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish invoice event",
			log.FieldEvent, eventType,
			log.FieldInvoiceID, inv.ID,
			log.FieldError, err)
	}
}
