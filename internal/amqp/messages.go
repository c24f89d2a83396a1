package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"financas/internal/core"
)

// Invoice event types, also used as the AMQP message type.
const (
	EventInvoiceGenerated = "invoice.generated"
	EventInvoicePaid      = "invoice.paid"
	EventInvoiceDeleted   = "invoice.deleted"
)

// InvoiceEvent announces an invoice lifecycle change. Consumers fetch the
// full invoice from storage; the payload only carries what is needed to
// route and log it.
type InvoiceEvent struct {
	Type      string          `json:"type"`
	UserID    string          `json:"userId"`
	InvoiceID string          `json:"invoiceId"`
	CardID    string          `json:"cardId"`
	Amount    decimal.Decimal `json:"amount"`
	Month     int             `json:"month"` // 0-11
	Year      int             `json:"year"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewInvoiceEvent describes inv and stamps the event with the current time.
func NewInvoiceEvent(eventType, uid string, inv core.Invoice) InvoiceEvent {
	return InvoiceEvent{
		Type:      eventType,
		UserID:    uid,
		InvoiceID: inv.ID,
		CardID:    inv.CardID,
		Amount:    inv.TotalAmount,
		Month:     inv.Month,
		Year:      inv.Year,
		Timestamp: time.Now(),
	}
}

func (e InvoiceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// InvoiceEventFromJSON decodes and validates an event body.
func InvoiceEventFromJSON(data []byte) (InvoiceEvent, error) {
	var e InvoiceEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return e, err
	}
	switch e.Type {
	case EventInvoiceGenerated, EventInvoicePaid, EventInvoiceDeleted:
	default:
		return e, fmt.Errorf("unknown invoice event type %q", e.Type)
	}
	if e.UserID == "" || e.InvoiceID == "" {
		return e, fmt.Errorf("invoice event missing user or invoice id")
	}
	return e, nil
}
