package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"household/internal/core"
)

type countingStore struct {
	reads    atomic.Int32
	expenses []core.Expense
	salaries core.Salaries
	extras   []core.ExtraIncome
	err      error
	delay    time.Duration
}

func (s *countingStore) ListExpenses(context.Context) ([]core.Expense, error) {
	s.reads.Add(1)
	time.Sleep(s.delay)
	return s.expenses, s.err
}

func (s *countingStore) Salaries(context.Context) (core.Salaries, error) {
	return s.salaries, nil
}

func (s *countingStore) ListExtraIncomes(_ context.Context, month, year int) ([]core.ExtraIncome, error) {
	var out []core.ExtraIncome
	for _, x := range s.extras {
		if x.Month == month && x.Year == year {
			out = append(out, x)
		}
	}
	return out, nil
}

func TestAggregator_CachesPerPeriod(t *testing.T) {
	store := &countingStore{
		salaries: core.Salaries{Primary: dec("1000")},
		expenses: []core.Expense{
			{ID: 1, Date: core.NewDate(2025, 3, 2), Amount: dec("10")},
			{ID: 2, Date: core.NewDate(2025, 4, 2), Amount: dec("20")},
		},
	}
	agg := NewAggregator(store, 4, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := agg.Aggregate(ctx, 3, 2025)
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}
		if !s.Balance.Equal(dec("990")) {
			t.Fatalf("balance = %s, want 990", s.Balance)
		}
	}
	if n := store.reads.Load(); n != 1 {
		t.Fatalf("store read %d times, want 1", n)
	}

	agg.Invalidate()
	if _, err := agg.Aggregate(ctx, 3, 2025); err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if n := store.reads.Load(); n != 2 {
		t.Fatalf("store read %d times after invalidate, want 2", n)
	}
}

func TestAggregator_EmptyPeriod(t *testing.T) {
	agg := NewAggregator(&countingStore{}, 4, time.Minute)
	s, err := agg.Aggregate(context.Background(), 1, 2030)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if !s.Income.IsZero() || !s.Expense.IsZero() || !s.Balance.IsZero() {
		t.Fatalf("totals = %+v, want zeros", s.Totals)
	}
	if s.Rows == nil || len(s.Rows) != 0 {
		t.Fatalf("rows = %#v, want empty slice", s.Rows)
	}
}

func TestAggregator_InvalidPeriod(t *testing.T) {
	agg := NewAggregator(&countingStore{}, 4, time.Minute)
	if _, err := agg.Aggregate(context.Background(), 0, 2025); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestAggregator_StoreErrorNotCached(t *testing.T) {
	store := &countingStore{err: errors.New("database is locked")}
	agg := NewAggregator(store, 4, time.Minute)
	ctx := context.Background()

	if _, err := agg.Aggregate(ctx, 3, 2025); err == nil {
		t.Fatalf("expected store error")
	}
	store.err = nil
	if _, err := agg.Aggregate(ctx, 3, 2025); err != nil {
		t.Fatalf("Aggregate after recovery: %v", err)
	}
	if n := store.reads.Load(); n != 2 {
		t.Fatalf("store read %d times, want 2", n)
	}
}

func TestAggregator_ConcurrentCallsShareOneRead(t *testing.T) {
	store := &countingStore{delay: 50 * time.Millisecond}
	agg := NewAggregator(store, 4, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := agg.Aggregate(context.Background(), 7, 2025); err != nil {
				t.Errorf("Aggregate: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := store.reads.Load(); n > 2 {
		t.Fatalf("store read %d times for concurrent callers", n)
	}
}

func TestAggregator_ReturnedRowsDoNotAliasCache(t *testing.T) {
	store := &countingStore{
		expenses: []core.Expense{
			{ID: 1, Date: core.NewDate(2025, 3, 2), Category: "Food", Amount: dec("10")},
			{ID: 2, Date: core.NewDate(2025, 3, 9), Category: "Leisure", Amount: dec("20")},
		},
	}
	agg := NewAggregator(store, 4, time.Minute)
	ctx := context.Background()

	first, err := agg.Aggregate(ctx, 3, 2025)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	first.Rows[0].Category = "mutated"
	first.Rows[0], first.Rows[1] = first.Rows[1], first.Rows[0]

	again, err := agg.Aggregate(ctx, 3, 2025)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if store.reads.Load() != 1 {
		t.Fatalf("second call should be served from cache")
	}
	if again.Rows[0].ID != 1 || again.Rows[0].Category != "Food" {
		t.Fatalf("cached rows changed by caller: %+v", again.Rows)
	}
}

func TestLedgerService_ExpensesForPeriodReturnsCopy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.AddExpense(ctx, ExpenseInput{
		Date: "05/03/2025", Kind: "Variable", Category: "Food", Description: "Market", Amount: "30",
	}); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	rows, err := svc.ExpensesForPeriod(ctx, 3, 2025)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ExpensesForPeriod = %v, %v", rows, err)
	}
	rows[0].Description = "edited"

	rows, err = svc.ExpensesForPeriod(ctx, 3, 2025)
	if err != nil {
		t.Fatalf("ExpensesForPeriod: %v", err)
	}
	if rows[0].Description != "Market" {
		t.Fatalf("description = %q, want Market", rows[0].Description)
	}
}
