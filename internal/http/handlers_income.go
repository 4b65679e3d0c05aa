package http

import (
	"net/http"

	"household/internal/core"
	applog "household/internal/log"
)

func (s *Server) handleGetSalaries(w http.ResponseWriter, r *http.Request) {
	sal, err := s.svc.Salaries(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpRead, err, nil)
		return
	}
	NewJSONResponse().Body(toSalariesView(sal)).Write(w)
}

// handleSetSalaries replaces both salaries. Body: primary, secondary.
func (s *Server) handleSetSalaries(w http.ResponseWriter, r *http.Request) {
	body, err := parseBody(r)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err, nil)
		return
	}
	primary, err := core.ParseAmount(body.Get("primary"))
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err, nil)
		return
	}
	secondary, err := core.ParseAmount(body.Get("secondary"))
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err, nil)
		return
	}
	if err := s.svc.SetSalaries(r.Context(), primary, secondary); err != nil {
		s.writeError(w, r, applog.OpUpdate, err, nil)
		return
	}
	NewJSONResponse().Body(toSalariesView(core.Salaries{Primary: primary, Secondary: secondary})).Write(w)
}

// handleUpsertExtraIncome sets the extra income of a period.
// Body: month, year, description, amount.
func (s *Server) handleUpsertExtraIncome(w http.ResponseWriter, r *http.Request) {
	body, err := parseBody(r)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err, nil)
		return
	}
	month, err := body.GetInt("month", 0)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err, nil)
		return
	}
	year, err := body.GetInt("year", 0)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err, nil)
		return
	}
	amount, err := core.ParseAmount(body.Get("amount"))
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err, nil)
		return
	}

	inc, err := s.svc.AddExtraIncome(r.Context(), month, year, body.Get("description"), amount)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err, applog.NewFields().WithPeriod(month, year))
		return
	}
	NewJSONResponse().Body(toExtraIncomeView(inc)).Write(w)
}
