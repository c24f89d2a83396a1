package core

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned by the services wraps one of these.
var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrTransientIO        = errors.New("storage unavailable")
	ErrInvalidInput       = errors.New("invalid input")
)

var (
	ErrNoPendingTransactions   = fmt.Errorf("%w: no pending transactions", ErrPreconditionFailed)
	ErrInvoiceAlreadyPaid      = fmt.Errorf("%w: invoice already paid", ErrPreconditionFailed)
	ErrCannotDeletePaidInvoice = fmt.Errorf("%w: cannot delete paid invoice", ErrPreconditionFailed)
	ErrInvoiceExists           = fmt.Errorf("%w: invoice already exists for period", ErrPreconditionFailed)
	ErrInsufficientBalance     = fmt.Errorf("%w: insufficient account balance", ErrPreconditionFailed)
	ErrTransactionAlreadyPaid  = fmt.Errorf("%w: transaction already paid", ErrPreconditionFailed)
	ErrTransactionInvoiced     = fmt.Errorf("%w: transaction belongs to an invoice", ErrPreconditionFailed)
	ErrCardChargeNeedsInvoice  = fmt.Errorf("%w: card charges are settled through invoices", ErrPreconditionFailed)
	ErrInactiveCard            = fmt.Errorf("%w: card is inactive", ErrPreconditionFailed)
	ErrGoalNotActive           = fmt.Errorf("%w: goal is not active", ErrPreconditionFailed)
	ErrInsufficientGoalFunds   = fmt.Errorf("%w: goal balance too low", ErrPreconditionFailed)
	ErrInvoiceMemberPaid       = fmt.Errorf("%w: invoice charge already settled", ErrPreconditionFailed)
)

// Invalid wraps a validation message in ErrInvalidInput.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFound builds a NotFound error for the given entity kind and id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
