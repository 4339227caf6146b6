package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/fx"
	"carteira/internal/services"
)

func (s *Server) handleCreateObligation(w http.ResponseWriter, r *http.Request, owner string) {
	var in core.ObligationInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	reference, err := queryDate(r, "reference")
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.svc.Obligations.Create(r.Context(), owner, in, reference)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleListObligations(w http.ResponseWriter, r *http.Request, owner string) {
	list, err := s.svc.Obligations.List(r.Context(), owner, queryBool(r, "active", true))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []core.RecurringObligation{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpdateObligation(w http.ResponseWriter, r *http.Request, owner string) {
	var in core.ObligationInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	o, err := s.svc.Obligations.Update(r.Context(), r.PathValue("id"), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type payRequest struct {
	WalletID string `json:"walletId"`
}

func (s *Server) handlePayObligation(w http.ResponseWriter, r *http.Request, owner string) {
	var req payRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	payment, err := s.svc.Obligations.Pay(r.Context(), r.PathValue("id"), owner, req.WalletID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (s *Server) handleDeactivateObligation(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.svc.Obligations.Deactivate(r.Context(), r.PathValue("id"), owner); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request, owner string) {
	var in core.BudgetInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	b, err := s.svc.Budgets.Create(r.Context(), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, owner string) {
	list, err := s.svc.Budgets.List(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []core.Budget{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request, owner string) {
	statuses, err := s.svc.Budgets.Status(r.Context(), owner, r.URL.Query().Get("period"), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if statuses == nil {
		statuses = []services.BudgetStatus{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request, owner string) {
	var in core.BudgetInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	b, err := s.svc.Budgets.Update(r.Context(), r.PathValue("id"), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeactivateBudget(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.svc.Budgets.Deactivate(r.Context(), r.PathValue("id"), owner); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request, owner string) {
	var in core.GoalInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	g, err := s.svc.Goals.Create(r.Context(), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request, owner string) {
	list, err := s.svc.Goals.List(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []core.Goal{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request, owner string) {
	var in core.GoalInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	g, err := s.svc.Goals.Update(r.Context(), r.PathValue("id"), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type contributeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) handleContributeGoal(w http.ResponseWriter, r *http.Request, owner string) {
	var req contributeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	g, err := s.svc.Goals.Contribute(r.Context(), r.PathValue("id"), owner, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeactivateGoal(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.svc.Goals.Deactivate(r.Context(), r.PathValue("id"), owner); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, owner string) {
	list, err := s.svc.Categories.List(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, owner string) {
	var in core.CategoryInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	c, err := s.svc.Categories.Create(r.Context(), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, owner string) {
	var in core.CategoryInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	c, err := s.svc.Categories.Update(r.Context(), r.PathValue("id"), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.svc.Categories.Delete(r.Context(), r.PathValue("id"), owner); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, owner string) {
	feed, err := s.svc.Notifications.Feed(r.Context(), owner, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if feed == nil {
		feed = []core.Notification{}
	}
	writeJSON(w, http.StatusOK, feed)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if s.svc.FX == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "currency conversion is not enabled"})
		return
	}
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		writeError(w, r, core.NewValidationError("amount", "amount must be a number"))
		return
	}
	conv, err := s.svc.FX.Convert(r.Context(), amount, q.Get("to"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, fx.Currencies())
}
