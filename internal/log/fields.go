package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldCardID     = "card_id"
	FieldInvoiceID  = "invoice_id"
	FieldAccountID  = "account_id"
	FieldGoalID     = "goal_id"
	FieldTxID       = "transaction_id"
	FieldAmount     = "amount"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldCount      = "count"
	FieldEvent      = "event"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentInvoice    = "invoice"
	ComponentLedger     = "ledger"
	ComponentProjection = "projection"
	ComponentEmergency  = "emergency"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
	ComponentRateLimit  = "rate_limit"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpGenerate   = "generate"
	OpPay        = "pay"
	OpDelete     = "delete"
	OpRecompute  = "recompute"
	OpTransfer   = "transfer"
	OpPublish    = "publish"
	OpExport     = "export"
	OpAutoInvoke = "auto_generate"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithUser(uid string) LogFields {
	f[FieldUserID] = uid
	return f
}

func (f LogFields) WithCard(cardID string) LogFields {
	f[FieldCardID] = cardID
	return f
}

func (f LogFields) WithInvoice(invoiceID string) LogFields {
	f[FieldInvoiceID] = invoiceID
	return f
}

// WithPeriod adds an invoice period; month is 0-11.
func (f LogFields) WithPeriod(month, year int) LogFields {
	f[FieldMonth] = month
	f[FieldYear] = year
	return f
}

// WithAmount adds a monetary amount, formatted as a decimal string.
func (f LogFields) WithAmount(amount interface{ String() string }) LogFields {
	f[FieldAmount] = amount.String()
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// ToSlice converts LogFields to a slice for slog, in key order.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
