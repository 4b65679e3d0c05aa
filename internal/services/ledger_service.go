package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"household/internal/core"
	"household/internal/report"

	"github.com/shopspring/decimal"
)

// LedgerStore is everything the service needs from persistence.
type LedgerStore interface {
	LedgerReader
	AddExpenses(ctx context.Context, rows []core.Expense) ([]int64, error)
	DeleteExpense(ctx context.Context, id int64) error
	SetSalaries(ctx context.Context, s core.Salaries) error
	UpsertExtraIncome(ctx context.Context, x core.ExtraIncome) (core.ExtraIncome, error)
	AddCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, name string) error
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// ErrDestinationOutsideReportDir rejects local report paths that escape the
// report directory when destinations are confined.
var ErrDestinationOutsideReportDir = fmt.Errorf("%w: destination outside the report directory", core.ErrValidation)

// ExportPublisher queues report exports for the export worker.
type ExportPublisher interface {
	PublishReportExport(ctx context.Context, month, year int, destination string) error
}

// ExpenseInput is an add-expense request as typed by the user.
type ExpenseInput struct {
	Date             string
	Kind             string
	Category         string
	Description      string
	Amount           string
	RecurrenceMonths int
}

// Summary is a period summary plus its per-category breakdown.
type Summary struct {
	core.PeriodSummary
	ByCategory []core.CategoryAmount
}

// LedgerService is the single entry point used by the HTTP API, the CLI and
// the export worker.
type LedgerService struct {
	store      LedgerStore
	aggregator *Aggregator
	sink       report.Sink
	publisher  ExportPublisher
	reportDir  string
	confined   bool
}

type Option func(*LedgerService)

// WithPublisher enables asynchronous exports.
func WithPublisher(p ExportPublisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

// WithReportDir sets where exports without an explicit destination go.
func WithReportDir(dir string) Option {
	return func(s *LedgerService) { s.reportDir = dir }
}

// WithConfinedDestinations restricts local export paths to the report
// directory. Relative paths are taken as relative to it. Scheme
// destinations such as gsheets:// are not affected.
func WithConfinedDestinations() Option {
	return func(s *LedgerService) { s.confined = true }
}

func NewLedgerService(store LedgerStore, aggregator *Aggregator, sink report.Sink, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:      store,
		aggregator: aggregator,
		sink:       sink,
		reportDir:  ".",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddExpense validates the input, expands it into its monthly occurrences
// and stores them in one batch. It returns the IDs of the stored rows.
func (s *LedgerService) AddExpense(ctx context.Context, in ExpenseInput) ([]int64, error) {
	date, err := core.NormalizeDate(in.Date)
	if err != nil {
		return nil, err
	}
	kind, err := core.ParseKind(in.Kind)
	if err != nil {
		return nil, err
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	intent := core.Expense{
		Date:             date,
		Kind:             kind,
		Category:         strings.TrimSpace(in.Category),
		Description:      strings.TrimSpace(in.Description),
		Amount:           amount,
		RecurrenceMonths: in.RecurrenceMonths,
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	rows := core.Occurrences(intent)
	ids, err := s.store.AddExpenses(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("add expense: %w", err)
	}
	s.aggregator.Invalidate()

	slog.InfoContext(ctx, "Expense added",
		"kind", kind,
		"category", intent.Category,
		"occurrences", len(ids),
		"first_date", date.String())
	return ids, nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, id int64) error {
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	s.aggregator.Invalidate()
	return nil
}

// ExpensesForPeriod lists the rows dated in (month, year), ascending.
func (s *LedgerService) ExpensesForPeriod(ctx context.Context, month, year int) ([]core.Expense, error) {
	sum, err := s.aggregator.Aggregate(ctx, month, year)
	if err != nil {
		return nil, err
	}
	return sum.Rows, nil
}

func (s *LedgerService) Salaries(ctx context.Context) (core.Salaries, error) {
	return s.store.Salaries(ctx)
}

func (s *LedgerService) SetSalaries(ctx context.Context, primary, secondary decimal.Decimal) error {
	sal := core.Salaries{Primary: primary.Round(2), Secondary: secondary.Round(2)}
	if err := sal.Validate(); err != nil {
		return err
	}
	if err := s.store.SetSalaries(ctx, sal); err != nil {
		return fmt.Errorf("set salaries: %w", err)
	}
	s.aggregator.Invalidate()
	return nil
}

// AddExtraIncome stores or replaces the extra income identified by
// (month, year, description).
func (s *LedgerService) AddExtraIncome(ctx context.Context, month, year int, description string, amount decimal.Decimal) (core.ExtraIncome, error) {
	x := core.ExtraIncome{
		Month:       month,
		Year:        year,
		Description: strings.TrimSpace(description),
		Amount:      amount.Round(2),
	}
	if err := x.Validate(); err != nil {
		return core.ExtraIncome{}, err
	}
	saved, err := s.store.UpsertExtraIncome(ctx, x)
	if err != nil {
		return core.ExtraIncome{}, fmt.Errorf("add extra income: %w", err)
	}
	s.aggregator.Invalidate()
	return saved, nil
}

func (s *LedgerService) AddCategory(ctx context.Context, name, icon string) error {
	c := core.Category{Name: strings.TrimSpace(name), Icon: strings.TrimSpace(icon)}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.store.AddCategory(ctx, c); err != nil {
		return fmt.Errorf("add category %q: %w", c.Name, err)
	}
	return nil
}

// DeleteCategory removes a category by name. Expenses that reference it
// keep their label.
func (s *LedgerService) DeleteCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty category name", core.ErrValidation)
	}
	if err := s.store.DeleteCategory(ctx, name); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			if cats, lerr := s.store.ListCategories(ctx); lerr == nil {
				if suggestion, ok := core.SuggestCategory(name, cats); ok {
					return fmt.Errorf("delete category %q: %w (did you mean %q?)", name, err, suggestion)
				}
			}
		}
		return fmt.Errorf("delete category %q: %w", name, err)
	}
	return nil
}

func (s *LedgerService) Categories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *LedgerService) TotalsForPeriod(ctx context.Context, month, year int) (core.Totals, error) {
	sum, err := s.aggregator.Aggregate(ctx, month, year)
	if err != nil {
		return core.Totals{}, err
	}
	return sum.Totals, nil
}

// Summary returns the period summary with the per-category breakdown.
func (s *LedgerService) Summary(ctx context.Context, month, year int) (Summary, error) {
	sum, err := s.aggregator.Aggregate(ctx, month, year)
	if err != nil {
		return Summary{}, err
	}
	return Summary{PeriodSummary: sum, ByCategory: core.ByCategory(sum.Rows)}, nil
}

// DefaultDestination is the report path used when none is given.
func (s *LedgerService) DefaultDestination(month, year int) string {
	return filepath.Join(s.reportDir, "report_"+report.SheetName(month, year)+".xlsx")
}

// ExportReport builds the report of (month, year) and writes it to
// destination. It returns the destination actually written.
func (s *LedgerService) ExportReport(ctx context.Context, month, year int, destination string) (string, error) {
	destination, err := s.resolveDestination(month, year, destination)
	if err != nil {
		return "", err
	}
	sum, err := s.aggregator.Aggregate(ctx, month, year)
	if err != nil {
		return "", err
	}
	if s.sink == nil {
		return "", fmt.Errorf("%w: no report sink configured", core.ErrIO)
	}
	if err := s.sink.Write(ctx, report.Build(sum), destination); err != nil {
		if !errors.Is(err, core.ErrIO) {
			err = fmt.Errorf("%w: %v", core.ErrIO, err)
		}
		return "", fmt.Errorf("export report: %w", err)
	}
	return destination, nil
}

// RequestExport queues an export for the worker. Without a publisher the
// export runs inline.
func (s *LedgerService) RequestExport(ctx context.Context, month, year int, destination string) (queued bool, err error) {
	if err := core.ValidatePeriod(month, year); err != nil {
		return false, err
	}
	if _, err := s.resolveDestination(month, year, destination); err != nil {
		return false, err
	}
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP publisher not available, exporting synchronously")
		_, err := s.ExportReport(ctx, month, year, destination)
		return false, err
	}
	if err := s.publisher.PublishReportExport(ctx, month, year, destination); err != nil {
		return false, fmt.Errorf("%w: queue export: %v", core.ErrIO, err)
	}
	return true, nil
}

func (s *LedgerService) resolveDestination(month, year int, destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return s.DefaultDestination(month, year), nil
	}
	if !s.confined || strings.Contains(destination, "://") {
		return destination, nil
	}

	root, err := filepath.Abs(s.reportDir)
	if err != nil {
		return "", fmt.Errorf("%w: report dir: %v", core.ErrIO, err)
	}
	target := destination
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	rel, err := filepath.Rel(root, filepath.Clean(target))
	if err != nil || rel == "." || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrDestinationOutsideReportDir, destination)
	}
	return filepath.Join(root, rel), nil
}
