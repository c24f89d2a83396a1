package core

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Stored documents carry amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

const (
	Fixed       ExpenseType = "fixed"
	Cash        ExpenseType = "cash"
	Installment ExpenseType = "installment"
)

const (
	CashAccount       AccountType = "cash"
	BankAccount       AccountType = "bank"
	CreditAccount     AccountType = "credit"
	InvestmentAccount AccountType = "investment"
)

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalCancelled GoalStatus = "cancelled"
)

// Category sentinels written by the system itself.
const (
	CategoryReserveTransfer = "reserve-transfer"
	CategoryInvoicePayment  = "invoice-payment"
	GoalCategoryEmergency   = "emergency"
)

type (
	TransactionType string
	ExpenseType     string
	AccountType     string
	GoalStatus      string

	// Date is an instant stored as epoch milliseconds.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID                 string          `json:"id"`
		Type               TransactionType `json:"type"`
		Amount             decimal.Decimal `json:"amount"`
		Description        string          `json:"description"`
		CategoryID         string          `json:"categoryId,omitempty"`
		AccountID          string          `json:"accountId,omitempty"`
		Date               Date            `json:"date"`
		IsPaid             bool            `json:"isPaid"`
		CardID             string          `json:"cardId,omitempty"`
		ExpenseType        ExpenseType     `json:"expenseType,omitempty"`
		Installments       int             `json:"installments,omitempty"`
		CurrentInstallment int             `json:"currentInstallment,omitempty"`
		InstallmentID      string          `json:"installmentId,omitempty"`
		DueDate            *Date           `json:"dueDate,omitempty"`
		IsRecurring        bool            `json:"isRecurring,omitempty"`
		RecurrenceDay      int             `json:"recurrenceDay,omitempty"`
		RecurrenceType     string          `json:"recurrenceType,omitempty"`
		ToAccountID        string          `json:"toAccountId,omitempty"`
		AssignedTo         string          `json:"assignedTo,omitempty"`
		InvoiceID          string          `json:"invoiceId,omitempty"`
	}

	Account struct {
		ID             string          `json:"id"`
		Name           string          `json:"name"`
		Type           AccountType     `json:"type"`
		InitialBalance decimal.Decimal `json:"initialBalance"`
		CurrentBalance decimal.Decimal `json:"currentBalance"`
		IncludeInTotal bool            `json:"includeInTotal"`
	}

	CreditCard struct {
		ID         string          `json:"id"`
		Nickname   string          `json:"nickname"`
		CardBrand  string          `json:"cardBrand,omitempty"`
		ClosingDay int             `json:"closingDay"`
		DueDay     int             `json:"dueDay"`
		Limit      decimal.Decimal `json:"limit"`
		IsActive   bool            `json:"isActive"`
	}

	Invoice struct {
		ID                   string          `json:"id"`
		CardID               string          `json:"cardId"`
		Month                int             `json:"month"` // 0-11
		Year                 int             `json:"year"`
		ClosingDate          Date            `json:"closingDate"`
		DueDate              Date            `json:"dueDate"`
		TotalAmount          decimal.Decimal `json:"totalAmount"`
		IsPaid               bool            `json:"isPaid"`
		PaidDate             *Date           `json:"paidDate,omitempty"`
		PaidFromAccountID    string          `json:"paidFromAccountId,omitempty"`
		PaymentTransactionID string          `json:"paymentTransactionId,omitempty"`
		TransactionIDs       []string        `json:"transactionIds"`
	}

	Contribution struct {
		Amount decimal.Decimal `json:"amount"` // negative for withdrawals
		Date   Date            `json:"date"`
		Note   string          `json:"note,omitempty"`
	}

	Goal struct {
		ID            string          `json:"id"`
		UserID        string          `json:"userId"`
		Name          string          `json:"name"`
		Category      string          `json:"category"`
		TargetAmount  decimal.Decimal `json:"targetAmount"`
		CurrentAmount decimal.Decimal `json:"currentAmount"`
		Deadline      Date            `json:"deadline"`
		Contributions []Contribution  `json:"contributions"`
		Status        GoalStatus      `json:"status"`
	}

	Category struct {
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Type  TransactionType `json:"type"`
		Icon  string          `json:"icon,omitempty"`
		Color string          `json:"color,omitempty"`
	}

	FamilyMember struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
)

var (
	ErrInvalidDay         = Invalid("day must be between 1 and 31")
	ErrInvalidAmount      = Invalid("amount must be positive")
	ErrEmptyDescription   = Invalid("empty description")
	ErrInvalidType        = Invalid("invalid transaction type")
	ErrMissingAccount     = Invalid("missing account")
	ErrInvalidInstallment = Invalid("invalid installment count")
)

// NewDate creates a midnight UTC date. Month is 1-12.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateFromMillis converts epoch milliseconds into a Date.
func DateFromMillis(ms int64) Date {
	return Date{Time: time.UnixMilli(ms).UTC()}
}

// Millis returns the epoch milliseconds, 0 for the zero date.
func (d Date) Millis() int64 {
	if d.IsZero() {
		return 0
	}
	return d.UnixMilli()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(d.Millis(), 10)), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		d.Time = time.Time{}
		return nil
	}
	s = strings.Trim(s, `"`)
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.New("date must be epoch milliseconds")
	}
	if ms == 0 {
		d.Time = time.Time{}
		return nil
	}
	*d = DateFromMillis(int64(ms))
	return nil
}

// IsPosted reports whether the transaction affects account balances.
func (t Transaction) IsPosted() bool {
	return t.IsPaid && t.CardID == ""
}

// EffectiveDueDate is the due date when set, otherwise the transaction date.
func (t Transaction) EffectiveDueDate() Date {
	if t.DueDate != nil && !t.DueDate.IsZero() {
		return *t.DueDate
	}
	return t.Date
}

func (t Transaction) Validate() error {
	switch t.Type {
	case Income, Expense, Transfer:
	default:
		return ErrInvalidType
	}
	if t.Date.IsZero() {
		return Invalid("date cannot be zero")
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return Invalid("description too long (max 200 characters)")
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Type == Transfer && (t.AccountID == "" || t.ToAccountID == "") {
		return ErrMissingAccount
	}
	if t.CardID != "" && t.Type != Expense {
		return Invalid("only expenses can be charged to a card")
	}
	if t.ExpenseType == Installment && t.Installments < 1 {
		return ErrInvalidInstallment
	}
	if t.IsRecurring && (t.RecurrenceDay < 0 || t.RecurrenceDay > 31) {
		return ErrInvalidDay
	}
	return nil
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.Nickname) == "" {
		return Invalid("empty card nickname")
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return ErrInvalidDay
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return ErrInvalidDay
	}
	if c.Limit.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return Invalid("empty account name")
	}
	switch a.Type {
	case CashAccount, BankAccount, CreditAccount, InvestmentAccount:
	default:
		return Invalid("invalid account type %q", a.Type)
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return Invalid("empty goal name")
	}
	if g.TargetAmount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// SumTransactions totals the amount of every transaction.
func SumTransactions(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

// Recompute derives CurrentAmount from contributions and updates the status.
// Cancelled goals keep their status.
func (g *Goal) Recompute() {
	total := decimal.Zero
	for _, c := range g.Contributions {
		total = total.Add(c.Amount)
	}
	g.CurrentAmount = total
	if g.Status == GoalCancelled {
		return
	}
	if g.TargetAmount.IsPositive() && g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount) {
		g.Status = GoalCompleted
	} else {
		g.Status = GoalActive
	}
}

// IsEmergency matches active goals that act as the emergency reserve.
func (g Goal) IsEmergency() bool {
	return g.Status == GoalActive && g.HasEmergencyMarker()
}

// HasEmergencyMarker reports whether the category or name marks the goal as
// an emergency reserve, whatever its status.
func (g Goal) HasEmergencyMarker() bool {
	if g.Category == GoalCategoryEmergency {
		return true
	}
	name := strings.ToLower(g.Name)
	return strings.Contains(name, "emergência") ||
		strings.Contains(name, "emergencia") ||
		strings.Contains(name, "reserva")
}
