package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"household/internal/core"

	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestNewSQLiteRepository_Seeds(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s, err := repo.Salaries(ctx)
	if err != nil {
		t.Fatalf("Salaries: %v", err)
	}
	if !s.Primary.IsZero() || !s.Secondary.IsZero() {
		t.Fatalf("salaries should be seeded with zeros, got %+v", s)
	}

	cats, err := repo.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != 5 {
		t.Fatalf("expected 5 default categories, got %d", len(cats))
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		cats, err := repo.ListCategories(context.Background())
		if err != nil {
			t.Fatalf("ListCategories: %v", err)
		}
		if len(cats) != 5 {
			t.Fatalf("open %d: %d categories, want 5", i, len(cats))
		}
		repo.Close()
	}
}

func TestAddExpenses_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rows := core.Occurrences(core.Expense{
		Date:             core.NewDate(2025, 1, 31),
		Kind:             core.Variable,
		Category:         "🏠 Housing",
		Description:      "Rent",
		Amount:           decimal.RequireFromString("1234.56"),
		RecurrenceMonths: 2,
	})
	ids, err := repo.AddExpenses(ctx, rows)
	if err != nil {
		t.Fatalf("AddExpenses: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2", ids)
	}

	got, err := repo.GetExpense(ctx, ids[1])
	if err != nil {
		t.Fatalf("GetExpense: %v", err)
	}
	if got.Date.String() != "28/02/2025" {
		t.Fatalf("stored date = %s, want 28/02/2025", got.Date)
	}
	if !got.Amount.Equal(decimal.RequireFromString("1234.56")) {
		t.Fatalf("amount = %s", got.Amount)
	}
	if got.Kind != core.Variable || got.RecurrenceMonths != 2 || got.Category != "🏠 Housing" || got.Description != "Rent" {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestAddExpenses_RollsBackOnFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(q *Queries) error {
		if _, err := q.CreateExpense(ctx, CreateExpenseParams{
			Date: "01/01/2025", Kind: "Fixed", Category: "x", Amount: decimal.NewFromInt(1),
		}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}

	all, err := repo.ListExpenses(context.Background())
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("partial batch persisted: %d rows", len(all))
	}
}

func TestListExpenses_UnparseableDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.db.ExecContext(ctx,
		`INSERT INTO expenses (date, kind, category, amount) VALUES ('garbage', 'Variable', 'x', 5)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	all, err := repo.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(all) != 1 || !all[0].Date.IsZero() {
		t.Fatalf("expected one row with zero date, got %+v", all)
	}
}

func TestDeleteExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ids, err := repo.AddExpenses(ctx, []core.Expense{{
		Date: core.NewDate(2025, 3, 1), Kind: core.Variable, Category: "Food", Amount: decimal.NewFromInt(10),
	}})
	if err != nil {
		t.Fatalf("AddExpenses: %v", err)
	}
	if err := repo.DeleteExpense(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if err := repo.DeleteExpense(ctx, ids[0]); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}

func TestSetSalaries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := core.Salaries{Primary: decimal.RequireFromString("3000.50"), Secondary: decimal.NewFromInt(2000)}
	if err := repo.SetSalaries(ctx, want); err != nil {
		t.Fatalf("SetSalaries: %v", err)
	}
	got, err := repo.Salaries(ctx)
	if err != nil {
		t.Fatalf("Salaries: %v", err)
	}
	if !got.Primary.Equal(want.Primary) || !got.Secondary.Equal(want.Secondary) {
		t.Fatalf("Salaries = %+v, want %+v", got, want)
	}

	var count int
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM salaries`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("salaries row count = %d, want 1", count)
	}
}

func TestUpsertExtraIncome(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.UpsertExtraIncome(ctx, core.ExtraIncome{Month: 3, Year: 2025, Description: "bonus", Amount: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := repo.UpsertExtraIncome(ctx, core.ExtraIncome{Month: 3, Year: 2025, Description: "bonus", Amount: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("upsert created a new row: %d vs %d", first.ID, second.ID)
	}

	if _, err := repo.UpsertExtraIncome(ctx, core.ExtraIncome{Month: 4, Year: 2025, Description: "bonus", Amount: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("other period: %v", err)
	}

	list, err := repo.ListExtraIncomes(ctx, 3, 2025)
	if err != nil {
		t.Fatalf("ListExtraIncomes: %v", err)
	}
	if len(list) != 1 || !list[0].Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected one entry with latest amount, got %+v", list)
	}
}

func TestCategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.AddCategory(ctx, core.Category{Name: "Pets", Icon: "🐶"}); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if err := repo.AddCategory(ctx, core.Category{Name: "Pets", Icon: "🐱"}); !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}

	ids, err := repo.AddExpenses(ctx, []core.Expense{{
		Date: core.NewDate(2025, 3, 1), Kind: core.Variable, Category: "Pets", Amount: decimal.NewFromInt(30),
	}})
	if err != nil {
		t.Fatalf("AddExpenses: %v", err)
	}

	if err := repo.DeleteCategory(ctx, "Pets"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if err := repo.DeleteCategory(ctx, "Pets"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	e, err := repo.GetExpense(ctx, ids[0])
	if err != nil {
		t.Fatalf("expense vanished after category delete: %v", err)
	}
	if e.Category != "Pets" {
		t.Fatalf("category text changed to %q", e.Category)
	}
}
