package http

import (
	"net/http"
	"strconv"

	"financas/internal/core"
	"financas/internal/services"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := decodeJSON(r, &tx); err != nil {
		badRequest(w, err.Error())
		return
	}
	created, err := s.svc.Transactions.Create(r.Context(), r.PathValue("uid"), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleListTransactions filters by year, month (0-11), cardId, accountId
// and unpaid=true.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := services.TransactionFilter{
		CardID:    q.Get("cardId"),
		AccountID: q.Get("accountId"),
	}
	var err error
	if f.Year, err = queryInt(r, "year", 0); err != nil {
		writeError(w, r, err)
		return
	}
	if q.Has("month") {
		m, err := queryInt(r, "month", 0)
		if err != nil || m < 0 || m > 11 {
			writeError(w, r, core.Invalid("month must be between 0 and 11"))
			return
		}
		f.Month = &m
	}
	if v := q.Get("unpaid"); v != "" {
		if f.UnpaidOnly, err = strconv.ParseBool(v); err != nil {
			writeError(w, r, core.Invalid("unpaid must be a boolean"))
			return
		}
	}

	txs, err := s.svc.Transactions.List(r.Context(), r.PathValue("uid"), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.Transactions.Get(r.Context(), r.PathValue("uid"), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

type accountRequest struct {
	AccountID string `json:"accountId"`
}

func (s *Server) handlePayTransaction(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	tx, err := s.svc.Transactions.MarkPaid(r.Context(), r.PathValue("uid"), r.PathValue("id"), req.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Transactions.Delete(r.Context(), r.PathValue("uid"), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var acc core.Account
	if err := decodeJSON(r, &acc); err != nil {
		badRequest(w, err.Error())
		return
	}
	created, err := s.svc.Ledger.OpenAccount(r.Context(), r.PathValue("uid"), acc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	acc, err := s.svc.Ledger.Recalculate(r.Context(), r.PathValue("uid"), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	nw, err := s.svc.Ledger.NetWorth(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nw)
}
