package http

import (
	"net/http"
	"strings"

	"household/internal/core"
	applog "household/internal/log"
	"household/internal/middleware/trace"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// errorTypeFor returns the log error category for err.
func errorTypeFor(err error) string {
	switch _, kind := classifyError(err); kind {
	case "validation":
		return applog.ErrorTypeValidation
	case "duplicate":
		return applog.ErrorTypeConflict
	case "not_found":
		return applog.ErrorTypeNotFound
	case "io":
		return applog.ErrorTypeIO
	default:
		return applog.ErrorTypeInternal
	}
}

// writeError logs err and answers with the mapped status. Client errors are
// logged at debug; the trace middleware already records the status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error, fields applog.LogFields) {
	resp := ErrorFromErr(err)
	if status, _ := classifyError(err); status >= http.StatusInternalServerError {
		s.structured.LogError(r.Context(), "Request failed", err, errorTypeFor(err), op, fields)
	} else {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			applog.FieldError, err.Error(),
			applog.FieldErrorType, errorTypeFor(err),
			applog.FieldOperation, op)
	}
	if body, ok := resp.payload.(ErrorBody); ok {
		body.RequestID = trace.GetRequestID(r.Context())
		resp.Body(body)
	}
	resp.Write(w)
}

// expenseView is the wire form of a ledger row.
type expenseView struct {
	ID               int64  `json:"id"`
	Date             string `json:"date"`
	Kind             string `json:"kind"`
	Category         string `json:"category"`
	Description      string `json:"description"`
	Amount           string `json:"amount"`
	RecurrenceMonths int    `json:"recurrence_months"`
}

func toExpenseView(e core.Expense) expenseView {
	return expenseView{
		ID:               e.ID,
		Date:             e.Date.String(),
		Kind:             e.Kind.String(),
		Category:         e.Category,
		Description:      e.Description,
		Amount:           core.FormatAmount(e.Amount),
		RecurrenceMonths: e.RecurrenceMonths,
	}
}

type totalsView struct {
	Month   int    `json:"month"`
	Year    int    `json:"year"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Balance string `json:"balance"`
}

func toTotalsView(month, year int, t core.Totals) totalsView {
	return totalsView{
		Month:   month,
		Year:    year,
		Income:  core.FormatAmount(t.Income),
		Expense: core.FormatAmount(t.Expense),
		Balance: core.FormatAmount(t.Balance),
	}
}

type salariesView struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Total     string `json:"total"`
}

func toSalariesView(s core.Salaries) salariesView {
	return salariesView{
		Primary:   core.FormatAmount(s.Primary),
		Secondary: core.FormatAmount(s.Secondary),
		Total:     core.FormatAmount(s.Total()),
	}
}

type extraIncomeView struct {
	ID          int64  `json:"id"`
	Month       int    `json:"month"`
	Year        int    `json:"year"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

func toExtraIncomeView(i core.ExtraIncome) extraIncomeView {
	return extraIncomeView{
		ID:          i.ID,
		Month:       i.Month,
		Year:        i.Year,
		Description: i.Description,
		Amount:      core.FormatAmount(i.Amount),
	}
}

type categoryView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Label string `json:"label"`
}

func toCategoryView(c core.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, Icon: c.Icon, Label: c.Label()}
}

type categoryAmountView struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}
