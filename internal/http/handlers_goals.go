package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"financas/internal/core"
)

func (s *Server) handleEmergencyStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Emergency.Status(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCreateEmergencyGoal(w http.ResponseWriter, r *http.Request) {
	goal, created, err := s.svc.Emergency.CreateGoal(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, goal)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var g core.Goal
	if err := decodeJSON(r, &g); err != nil {
		badRequest(w, err.Error())
		return
	}
	created, err := s.svc.Goals.Create(r.Context(), r.PathValue("uid"), g)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.svc.Goals.List(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Goals.Get(r.Context(), r.PathValue("uid"), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type movementRequest struct {
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note"`
}

func decodeMovement(w http.ResponseWriter, r *http.Request) (movementRequest, bool) {
	var req movementRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMovement(w, r)
	if !ok {
		return
	}
	g, err := s.svc.Goals.Contribute(r.Context(), r.PathValue("uid"), r.PathValue("id"), req.Amount, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMovement(w, r)
	if !ok {
		return
	}
	g, err := s.svc.Goals.Withdraw(r.Context(), r.PathValue("uid"), r.PathValue("id"), req.Amount, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleTransferToGoal(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMovement(w, r)
	if !ok {
		return
	}
	mv, err := s.svc.Ledger.TransferToGoal(r.Context(), r.PathValue("uid"), req.AccountID, r.PathValue("id"), req.Amount, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mv)
}

func (s *Server) handleWithdrawToAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMovement(w, r)
	if !ok {
		return
	}
	mv, err := s.svc.Ledger.WithdrawFromGoal(r.Context(), r.PathValue("uid"), req.AccountID, r.PathValue("id"), req.Amount, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mv)
}

func (s *Server) handleCancelGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Goals.Cancel(r.Context(), r.PathValue("uid"), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
