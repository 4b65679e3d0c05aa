package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"household/internal/core"

	"github.com/xuri/excelize/v2"
)

// DefaultCurrencyFormat is the Excel number format applied to amounts.
const DefaultCurrencyFormat = `"R$" #,##0.00`

// XLSXSink writes one-sheet spreadsheet files.
type XLSXSink struct {
	CurrencyFormat string
}

func NewXLSXSink(currencyFormat string) *XLSXSink {
	if strings.TrimSpace(currencyFormat) == "" {
		currencyFormat = DefaultCurrencyFormat
	}
	return &XLSXSink{CurrencyFormat: currencyFormat}
}

func (s *XLSXSink) Write(ctx context.Context, doc Document, destination string) error {
	if strings.TrimSpace(destination) == "" {
		return fmt.Errorf("%w: empty export destination", core.ErrIO)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := s.fill(f, doc); err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}

	if err := f.SaveAs(destination); err != nil {
		return fmt.Errorf("%w: save %s: %v", core.ErrIO, destination, err)
	}

	slog.InfoContext(ctx, "Report written",
		"destination", destination,
		"sheet", doc.SheetName,
		"rows", len(doc.Rows))
	return nil
}

func (s *XLSXSink) fill(f *excelize.File, doc Document) error {
	sheet := doc.SheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, row := range doc.Grid() {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	styles, err := s.newStyles(f)
	if err != nil {
		return err
	}

	lastCol, _ := excelize.ColumnNumberToName(len(Header))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", styles.header); err != nil {
		return err
	}

	amountCol, _ := excelize.ColumnNumberToName(AmountColumn + 1)
	labelCol, _ := excelize.ColumnNumberToName(LabelColumn + 1)
	if len(doc.Rows) > 0 {
		last := fmt.Sprintf("%s%d", amountCol, len(doc.Rows)+1)
		if err := f.SetCellStyle(sheet, amountCol+"2", last, styles.currency); err != nil {
			return err
		}
	}

	start := doc.SummaryStartRow()
	for i := range doc.Summary {
		row := start + i
		amountStyle := styles.currency
		if i == len(doc.Summary)-1 {
			amountStyle = styles.positive
			if doc.BalanceTag == BalanceNegative {
				amountStyle = styles.negative
			}
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("%s%d", labelCol, row), fmt.Sprintf("%s%d", labelCol, row), styles.label); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("%s%d", amountCol, row), fmt.Sprintf("%s%d", amountCol, row), amountStyle); err != nil {
			return err
		}
	}
	return nil
}

type xlsxStyles struct {
	header, currency, label, positive, negative int
}

func (s *XLSXSink) newStyles(f *excelize.File) (xlsxStyles, error) {
	var st xlsxStyles
	var err error
	numFmt := s.CurrencyFormat

	if st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4F81BD"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return st, fmt.Errorf("header style: %w", err)
	}
	if st.currency, err = f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt}); err != nil {
		return st, fmt.Errorf("currency style: %w", err)
	}
	if st.label, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return st, fmt.Errorf("label style: %w", err)
	}
	if st.positive, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true, Color: "006100"},
		CustomNumFmt: &numFmt,
	}); err != nil {
		return st, fmt.Errorf("positive style: %w", err)
	}
	if st.negative, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true, Color: "9C0006"},
		CustomNumFmt: &numFmt,
	}); err != nil {
		return st, fmt.Errorf("negative style: %w", err)
	}
	return st, nil
}
