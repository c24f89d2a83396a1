package http

import (
	"net/http"

	"financas/internal/core"
)

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var card core.CreditCard
	if err := decodeJSON(r, &card); err != nil {
		badRequest(w, err.Error())
		return
	}
	created, err := s.svc.Cards.Create(r.Context(), r.PathValue("uid"), card)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.svc.Cards.List(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleDeactivateCard(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Cards.Deactivate(r.Context(), r.PathValue("uid"), r.PathValue("cardId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCardCycle reports the cycle of a purchase made at ?at= (epoch ms,
// default now).
func (s *Server) handleCardCycle(w http.ResponseWriter, r *http.Request) {
	at, err := queryTime(r, "at", s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	cycle, err := s.svc.Cards.CurrentCycle(r.Context(), r.PathValue("uid"), r.PathValue("cardId"), at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

type generateInvoiceRequest struct {
	Month *int `json:"month"` // 0-11
	Year  int  `json:"year"`
}

func (s *Server) handleGenerateInvoice(w http.ResponseWriter, r *http.Request) {
	var req generateInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.Month == nil || req.Year == 0 {
		writeError(w, r, core.Invalid("month and year are required"))
		return
	}
	inv, err := s.svc.Invoices.Generate(r.Context(), r.PathValue("uid"), r.PathValue("cardId"), *req.Month, req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.svc.Invoices.List(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.svc.Invoices.Get(r.Context(), r.PathValue("uid"), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

type payInvoiceRequest struct {
	AccountID   string    `json:"accountId"`
	PaymentDate core.Date `json:"paymentDate"`
}

func (s *Server) handlePayInvoice(w http.ResponseWriter, r *http.Request) {
	var req payInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	paidAt := req.PaymentDate.Time
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	inv, err := s.svc.Invoices.Pay(r.Context(), r.PathValue("uid"), r.PathValue("id"), req.AccountID, paidAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Invoices.Delete(r.Context(), r.PathValue("uid"), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAutoGenerate(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Invoices.AutoGenerate(r.Context(), r.PathValue("uid"), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
