package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"household/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithTx runs fn in a transaction, rolling back if fn fails.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AddExpenses inserts every occurrence row in one transaction: either all
// rows are stored or none are.
func (r *SQLiteRepository) AddExpenses(ctx context.Context, rows []core.Expense) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	err := r.WithTx(ctx, func(q *Queries) error {
		for _, e := range rows {
			created, err := q.CreateExpense(ctx, CreateExpenseParams{
				Date:             e.Date.String(),
				Kind:             e.Kind.String(),
				Category:         e.Category,
				Description:      sql.NullString{String: e.Description, Valid: e.Description != ""},
				Amount:           e.Amount,
				RecurrenceMonths: int64(e.RecurrenceMonths),
			})
			if err != nil {
				return fmt.Errorf("create expense %s: %w", e.Date, err)
			}
			ids = append(ids, created.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Expenses saved to SQLite",
		"count", len(ids),
		"ids", ids)

	return ids, nil
}

// DeleteExpense removes one row by ID.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

// GetExpense retrieves a single expense by ID
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return toCoreExpense(ctx, e), nil
}

// ListExpenses returns the whole ledger. Rows whose stored date cannot be
// parsed come back with a zero Date so no period claims them.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	dbExpenses, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	expenses := make([]core.Expense, len(dbExpenses))
	for i, e := range dbExpenses {
		expenses[i] = toCoreExpense(ctx, e)
	}
	return expenses, nil
}

func toCoreExpense(ctx context.Context, e Expense) core.Expense {
	date, ok := core.ParseStoredDate(e.Date)
	if !ok {
		slog.DebugContext(ctx, "Skipping unparseable stored date", "id", e.ID, "date", e.Date)
	}
	return core.Expense{
		ID:               e.ID,
		Date:             date,
		Kind:             core.Kind(e.Kind),
		Category:         e.Category,
		Description:      e.Description.String,
		Amount:           e.Amount,
		RecurrenceMonths: int(e.RecurrenceMonths),
	}
}

func (r *SQLiteRepository) Salaries(ctx context.Context) (core.Salaries, error) {
	s, err := r.queries.GetSalaries(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Salaries{}, nil
	}
	if err != nil {
		return core.Salaries{}, fmt.Errorf("get salaries: %w", err)
	}
	return core.Salaries{Primary: s.PrimaryAmount, Secondary: s.SecondaryAmount}, nil
}

func (r *SQLiteRepository) SetSalaries(ctx context.Context, s core.Salaries) error {
	n, err := r.queries.UpdateSalaries(ctx, Salaries{PrimaryAmount: s.Primary, SecondaryAmount: s.Secondary})
	if err != nil {
		return fmt.Errorf("update salaries: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("update salaries: expected 1 row, updated %d", n)
	}
	slog.InfoContext(ctx, "Salaries updated",
		"primary", s.Primary.String(),
		"secondary", s.Secondary.String())
	return nil
}

// UpsertExtraIncome stores the entry, replacing the amount of an existing
// entry with the same (month, year, description).
func (r *SQLiteRepository) UpsertExtraIncome(ctx context.Context, x core.ExtraIncome) (core.ExtraIncome, error) {
	saved, err := r.queries.UpsertExtraIncome(ctx, UpsertExtraIncomeParams{
		Month:       int64(x.Month),
		Year:        int64(x.Year),
		Description: x.Description,
		Amount:      x.Amount,
	})
	if err != nil {
		return core.ExtraIncome{}, fmt.Errorf("upsert extra income: %w", err)
	}
	slog.InfoContext(ctx, "Extra income saved",
		"id", saved.ID,
		"month", saved.Month,
		"year", saved.Year,
		"description", saved.Description)
	return toCoreExtraIncome(saved), nil
}

func (r *SQLiteRepository) ListExtraIncomes(ctx context.Context, month, year int) ([]core.ExtraIncome, error) {
	rows, err := r.queries.ListExtraIncomesByPeriod(ctx, ListExtraIncomesByPeriodParams{
		Month: int64(month),
		Year:  int64(year),
	})
	if err != nil {
		return nil, fmt.Errorf("list extra incomes: %w", err)
	}
	out := make([]core.ExtraIncome, len(rows))
	for i, x := range rows {
		out[i] = toCoreExtraIncome(x)
	}
	return out, nil
}

func toCoreExtraIncome(x ExtraIncome) core.ExtraIncome {
	return core.ExtraIncome{
		ID:          x.ID,
		Month:       int(x.Month),
		Year:        int(x.Year),
		Description: x.Description,
		Amount:      x.Amount,
	}
}

func (r *SQLiteRepository) AddCategory(ctx context.Context, c core.Category) error {
	n, err := r.queries.CreateCategory(ctx, CreateCategoryParams{Name: c.Name, Icon: c.Icon})
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicate)
	}
	slog.InfoContext(ctx, "Category created", "name", c.Name, "icon", c.Icon)
	return nil
}

// DeleteCategory removes the definition only; expenses keep their stored
// category text.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, name string) error {
	n, err := r.queries.DeleteCategory(ctx, name)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %q: %w", name, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Category deleted", "name", name)
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, c := range rows {
		out[i] = core.Category{ID: c.ID, Name: c.Name, Icon: c.Icon}
	}
	return out, nil
}
