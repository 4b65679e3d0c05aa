package http

import (
	"net/http"
	"sync/atomic"

	"household/internal/core"
	applog "household/internal/log"
)

type periodResponse struct {
	totalsView
	Salaries     salariesView         `json:"salaries"`
	ExtraIncomes []extraIncomeView    `json:"extra_incomes"`
	Expenses     []expenseView        `json:"expenses"`
	ByCategory   []categoryAmountView `json:"by_category"`
}

type exportResponse struct {
	Month       int    `json:"month"`
	Year        int    `json:"year"`
	Destination string `json:"destination,omitempty"`
	Queued      bool   `json:"queued"`
}

// handlePeriod returns the full summary of one period.
func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err, nil)
		return
	}
	sum, err := s.svc.Summary(r.Context(), p.Month, p.Year)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err, applog.NewFields().WithPeriod(p.Month, p.Year))
		return
	}

	resp := periodResponse{
		totalsView:   toTotalsView(p.Month, p.Year, sum.Totals),
		Salaries:     toSalariesView(sum.Salaries),
		ExtraIncomes: make([]extraIncomeView, 0, len(sum.ExtraIncomes)),
		Expenses:     make([]expenseView, 0, len(sum.Rows)),
		ByCategory:   make([]categoryAmountView, 0, len(sum.ByCategory)),
	}
	for _, x := range sum.ExtraIncomes {
		resp.ExtraIncomes = append(resp.ExtraIncomes, toExtraIncomeView(x))
	}
	for _, e := range sum.Rows {
		resp.Expenses = append(resp.Expenses, toExpenseView(e))
	}
	for _, c := range sum.ByCategory {
		resp.ByCategory = append(resp.ByCategory, categoryAmountView{Name: c.Name, Amount: core.FormatAmount(c.Amount)})
	}
	NewJSONResponse().Body(resp).Write(w)
}

func (s *Server) handlePeriodTotals(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err, nil)
		return
	}
	totals, err := s.svc.TotalsForPeriod(r.Context(), p.Month, p.Year)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err, applog.NewFields().WithPeriod(p.Month, p.Year))
		return
	}
	NewJSONResponse().Body(toTotalsView(p.Month, p.Year, totals)).Write(w)
}

// handleExportReport writes the report of a period.
// Body: month, year, destination (optional), async (optional).
// With async the export is queued and answered with 202.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	body, err := parseBody(r)
	if err != nil {
		s.writeError(w, r, applog.OpExport, err, nil)
		return
	}
	month, err := body.GetInt("month", 0)
	if err != nil {
		s.writeError(w, r, applog.OpExport, err, nil)
		return
	}
	year, err := body.GetInt("year", 0)
	if err != nil {
		s.writeError(w, r, applog.OpExport, err, nil)
		return
	}
	destination := body.Get("destination")
	fields := applog.NewFields().WithPeriod(month, year)
	fields[applog.FieldDestination] = destination

	if body.GetBool("async") {
		queued, err := s.svc.RequestExport(r.Context(), month, year, destination)
		if err != nil {
			atomic.AddInt64(&s.appMetrics.exportsRejected, 1)
			s.writeError(w, r, applog.OpExport, err, fields)
			return
		}
		status := http.StatusOK
		if queued {
			atomic.AddInt64(&s.appMetrics.exportsQueued, 1)
			status = http.StatusAccepted
		} else {
			atomic.AddInt64(&s.appMetrics.exportsInline, 1)
			if destination == "" {
				destination = s.svc.DefaultDestination(month, year)
			}
		}
		NewJSONResponse().
			Status(status).
			Body(exportResponse{Month: month, Year: year, Destination: destination, Queued: queued}).
			Write(w)
		return
	}

	written, err := s.svc.ExportReport(r.Context(), month, year, destination)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.exportsRejected, 1)
		s.writeError(w, r, applog.OpExport, err, fields)
		return
	}
	atomic.AddInt64(&s.appMetrics.exportsInline, 1)
	s.logger.InfoContext(r.Context(), "Report exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldMonth, month,
		applog.FieldYear, year,
		applog.FieldDestination, written)
	NewJSONResponse().
		Status(http.StatusOK).
		Body(exportResponse{Month: month, Year: year, Destination: written}).
		Write(w)
}
