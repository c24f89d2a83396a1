package http

import (
	"net/http"
	"strconv"

	"financas/internal/services"
)

const defaultCashFlowMonths = 6

func (s *Server) handleNextMonth(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	next, err := cached(s, r.Context(), uid, "next-month", func() (services.NextMonthExpenses, error) {
		return s.svc.Projections.NextMonthExpenses(r.Context(), uid)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

// handleCashFlow projects ?months= months ahead starting from ?balance=,
// which defaults to the current net worth.
func (s *Server) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	months, err := queryInt(r, "months", defaultCashFlowMonths)
	if err != nil {
		writeError(w, r, err)
		return
	}
	balance, ok, err := queryDecimal(r, "balance")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		nw, err := s.svc.Ledger.NetWorth(r.Context(), uid)
		if err != nil {
			writeError(w, r, err)
			return
		}
		balance = nw.Total
	}

	view := "cash-flow:" + strconv.Itoa(months) + ":" + balance.String()
	proj, err := cached(s, r.Context(), uid, view, func() (services.CashFlowProjection, error) {
		return s.svc.Projections.CashFlow(r.Context(), uid, balance, months)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	insights, err := cached(s, r.Context(), uid, "insights", func() ([]services.Insight, error) {
		return s.svc.Projections.Insights(r.Context(), uid)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (s *Server) handleRetrospective(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	retro, err := cached(s, r.Context(), uid, "retrospective", func() (services.Retrospective, error) {
		return s.svc.Projections.Retrospective(r.Context(), uid)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, retro)
}
