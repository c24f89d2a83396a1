package memory

import (
	"context"
	"fmt"
	"sync"

	"financas/internal/sheets"
)

// Store keeps exported rows in memory. Used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu   sync.Mutex
	rows []sheets.InvoiceRow
}

var _ sheets.InvoiceExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendInvoice stores the row and returns a synthetic row reference.
func (s *Store) AppendInvoice(_ context.Context, row sheets.InvoiceRow) (string, error) {
	if err := row.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of the exported rows.
func (s *Store) Rows() []sheets.InvoiceRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.InvoiceRow(nil), s.rows...)
}
