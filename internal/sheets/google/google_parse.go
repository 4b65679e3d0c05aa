package google

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"household/internal/core"
	"household/internal/report"

	"google.golang.org/api/googleapi"
	gsheet "google.golang.org/api/sheets/v4"
)

// isRetryable reports whether err is a quota or server-side API failure.
func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
}

// parseDestination extracts the spreadsheet ID from "gsheets://<id>".
func parseDestination(dest string) (string, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(dest), "://")
	if !ok || !strings.EqualFold(scheme, Scheme) {
		return "", fmt.Errorf("%w: not a %s destination: %q", core.ErrIO, Scheme, dest)
	}
	id := strings.Trim(rest, "/ ")
	if id == "" || strings.ContainsAny(id, "/?#") {
		return "", fmt.Errorf("%w: invalid spreadsheet id in %q", core.ErrIO, dest)
	}
	return id, nil
}

func findSheet(sheets []*gsheet.Sheet, title string) (int64, bool) {
	for _, s := range sheets {
		if s == nil || s.Properties == nil {
			continue
		}
		if s.Properties.Title == title {
			return s.Properties.SheetId, true
		}
	}
	return 0, false
}

// quoteSheet quotes a tab name for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func a1Range(title, cell string) string {
	return quoteSheet(title) + "!" + cell
}

var (
	positiveColor = &gsheet.Color{Green: 0.38}
	negativeColor = &gsheet.Color{Red: 0.61, Blue: 0.02}
)

// formatRequests styles the header, the amount column and the balance cell.
func formatRequests(sheetID int64, doc report.Document, currencyFormat string) []*gsheet.Request {
	numFmt := &gsheet.NumberFormat{Type: "CURRENCY", Pattern: currencyFormat}
	cols := int64(len(report.Header))
	amountCol := int64(report.AmountColumn)
	balanceRow := int64(doc.SummaryStartRow()-1) + int64(len(doc.Summary)) - 1

	reqs := []*gsheet.Request{
		{
			RepeatCell: &gsheet.RepeatCellRequest{
				Range: &gsheet.GridRange{SheetId: sheetID, StartRowIndex: 0, EndRowIndex: 1, StartColumnIndex: 0, EndColumnIndex: cols},
				Cell: &gsheet.CellData{UserEnteredFormat: &gsheet.CellFormat{
					TextFormat: &gsheet.TextFormat{Bold: true},
				}},
				Fields: "userEnteredFormat.textFormat.bold",
			},
		},
		{
			RepeatCell: &gsheet.RepeatCellRequest{
				Range: &gsheet.GridRange{SheetId: sheetID, StartRowIndex: 1, EndRowIndex: balanceRow + 1, StartColumnIndex: amountCol, EndColumnIndex: amountCol + 1},
				Cell: &gsheet.CellData{UserEnteredFormat: &gsheet.CellFormat{
					NumberFormat: numFmt,
				}},
				Fields: "userEnteredFormat.numberFormat",
			},
		},
	}

	color := positiveColor
	if doc.BalanceTag == report.BalanceNegative {
		color = negativeColor
	}
	reqs = append(reqs, &gsheet.Request{
		RepeatCell: &gsheet.RepeatCellRequest{
			Range: &gsheet.GridRange{SheetId: sheetID, StartRowIndex: balanceRow, EndRowIndex: balanceRow + 1, StartColumnIndex: amountCol, EndColumnIndex: amountCol + 1},
			Cell: &gsheet.CellData{UserEnteredFormat: &gsheet.CellFormat{
				NumberFormat: numFmt,
				TextFormat:   &gsheet.TextFormat{Bold: true, ForegroundColor: color},
			}},
			Fields: "userEnteredFormat(numberFormat,textFormat)",
		},
	})
	return reqs
}
