package core

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// Totals are the three headline figures of a period.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// PeriodSummary is everything known about one (month, year).
type PeriodSummary struct {
	Month int
	Year  int
	Totals
	Salaries     Salaries
	ExtraIncomes []ExtraIncome
	Rows         []Expense // ascending by date, then ID
}

// Summarize folds the ledger into a period summary. Rows outside the period
// or with a zero (unparseable) date are excluded from both rows and totals.
func Summarize(month, year int, salaries Salaries, extras []ExtraIncome, ledger []Expense) PeriodSummary {
	s := PeriodSummary{
		Month:    month,
		Year:     year,
		Salaries: salaries,
		Rows:     []Expense{},
	}

	income := salaries.Total()
	for _, x := range extras {
		if x.Month != month || x.Year != year {
			continue
		}
		income = income.Add(x.Amount)
		s.ExtraIncomes = append(s.ExtraIncomes, x)
	}

	expense := decimal.Zero
	for _, e := range ledger {
		if !e.Date.In(month, year) {
			continue
		}
		expense = expense.Add(e.Amount)
		s.Rows = append(s.Rows, e)
	}
	SortByDate(s.Rows)

	s.Income = income
	s.Expense = expense
	s.Balance = income.Sub(expense)
	return s
}

// SortByDate orders rows ascending by date with ID as tie-breaker.
func SortByDate(rows []Expense) {
	slices.SortStableFunc(rows, func(a, b Expense) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// AggregateByCategory sums amounts per category key.
func AggregateByCategory(rows []Expense) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, e := range rows {
		k := CategoryKey(e.Category)
		out[k] = out[k].Add(e.Amount)
	}
	return out
}

// ByCategory is AggregateByCategory as a slice ordered by amount
// descending, then name.
func ByCategory(rows []Expense) []CategoryAmount {
	sums := AggregateByCategory(rows)
	out := make([]CategoryAmount, 0, len(sums))
	for name, amt := range sums {
		out = append(out, CategoryAmount{Name: name, Amount: amt})
	}
	slices.SortFunc(out, func(a, b CategoryAmount) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
