package http

import (
	"net/http"
	"sync/atomic"

	applog "household/internal/log"
	"household/internal/services"
)

type createExpenseResponse struct {
	IDs         []int64 `json:"ids"`
	Occurrences int     `json:"occurrences"`
}

// handleCreateExpense records an expense and its monthly occurrences.
// Body: date, kind, category, description, amount, recurrence_months.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	body, err := parseBody(r)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err, nil)
		return
	}
	months, err := body.GetInt("recurrence_months", 0)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err, nil)
		return
	}

	in := services.ExpenseInput{
		Date:             body.Get("date"),
		Kind:             body.Get("kind"),
		Category:         body.Get("category"),
		Description:      body.Get("description"),
		Amount:           body.Get("amount"),
		RecurrenceMonths: months,
	}
	ids, err := s.svc.AddExpense(r.Context(), in)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err, applog.NewFields().WithComponent(applog.ComponentLedger))
		return
	}

	atomic.AddInt64(&s.appMetrics.expensesAdded, 1)
	s.structured.LogExpenseAdded(r.Context(), in.Category, in.Amount, len(ids))

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(createExpenseResponse{IDs: ids, Occurrences: len(ids)}).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		s.writeError(w, r, applog.OpDelete, err, nil)
		return
	}
	if err := s.svc.DeleteExpense(r.Context(), id); err != nil {
		s.writeError(w, r, applog.OpDelete, err, nil)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
