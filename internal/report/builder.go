// Package report turns a period summary into a tabular document and writes
// it to a destination (xlsx file or Google Sheets tab).
package report

import (
	"fmt"

	"household/internal/core"

	"github.com/shopspring/decimal"
)

// BalanceTag marks the sign of the final balance.
type BalanceTag string

const (
	BalancePositive BalanceTag = "positive" // balance >= 0
	BalanceNegative BalanceTag = "negative"
)

// GapRows is the number of blank rows between data and summary.
const GapRows = 2

// Header is the column row of every report.
var Header = []string{"ID", "Date", "Kind", "Category", "Description", "Amount"}

// Column indexes (0-based) used by sinks for styling.
const (
	LabelColumn  = 4
	AmountColumn = 5
)

// Row is one expense line.
type Row struct {
	ID          int64
	Date        string
	Kind        string
	Category    string
	Description string
	Amount      decimal.Decimal
}

// SummaryRow is one of the three trailing totals.
type SummaryRow struct {
	Label  string
	Amount decimal.Decimal
}

type Document struct {
	SheetName  string
	Month      int
	Year       int
	Rows       []Row
	Summary    []SummaryRow // income, expense, balance
	BalanceTag BalanceTag
}

// SheetName is the zero-padded month-dash-year tab name, e.g. "03-2025".
func SheetName(month, year int) string {
	return fmt.Sprintf("%02d-%d", month, year)
}

// Build lays out a report from an aggregated period. It reads only the
// summary it is given.
func Build(s core.PeriodSummary) Document {
	doc := Document{
		SheetName: SheetName(s.Month, s.Year),
		Month:     s.Month,
		Year:      s.Year,
		Rows:      make([]Row, 0, len(s.Rows)),
		Summary: []SummaryRow{
			{Label: "TOTAL INCOME:", Amount: s.Income},
			{Label: "TOTAL EXPENSES:", Amount: s.Expense},
			{Label: "FINAL BALANCE:", Amount: s.Balance},
		},
		BalanceTag: BalancePositive,
	}
	if s.Balance.IsNegative() {
		doc.BalanceTag = BalanceNegative
	}

	for _, e := range s.Rows {
		doc.Rows = append(doc.Rows, Row{
			ID:          e.ID,
			Date:        e.Date.String(),
			Kind:        e.Kind.String(),
			Category:    e.Category,
			Description: e.Description,
			Amount:      e.Amount,
		})
	}
	return doc
}

// Grid renders the document as rows of cells: header, data rows, GapRows
// empty rows, then the summary rows with the label in the description
// column and the amount in the amount column.
func (d Document) Grid() [][]any {
	grid := make([][]any, 0, 1+len(d.Rows)+GapRows+len(d.Summary))

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	grid = append(grid, header)

	for _, r := range d.Rows {
		grid = append(grid, []any{r.ID, r.Date, r.Kind, r.Category, r.Description, r.Amount.InexactFloat64()})
	}
	for i := 0; i < GapRows; i++ {
		grid = append(grid, []any{})
	}
	for _, s := range d.Summary {
		row := make([]any, AmountColumn+1)
		for i := range row {
			row[i] = ""
		}
		row[LabelColumn] = s.Label
		row[AmountColumn] = s.Amount.InexactFloat64()
		grid = append(grid, row)
	}
	return grid
}

// SummaryStartRow is the 1-based row number of the first summary row.
func (d Document) SummaryStartRow() int {
	return 1 + len(d.Rows) + GapRows + 1
}
