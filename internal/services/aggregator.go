package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"household/internal/cache"
	"household/internal/core"

	"golang.org/x/sync/singleflight"
)

// LedgerReader is the read side of the ledger store used for aggregation.
type LedgerReader interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	Salaries(ctx context.Context) (core.Salaries, error)
	ListExtraIncomes(ctx context.Context, month, year int) ([]core.ExtraIncome, error)
}

// Aggregator computes period summaries from the store, caching them per
// period until the next ledger write.
type Aggregator struct {
	store LedgerReader
	cache *cache.LRUCache[core.PeriodSummary]
	group singleflight.Group
	gen   atomic.Uint64 // bumped on every invalidation
}

const (
	DefaultSummaryCacheSize = 24
	DefaultSummaryCacheTTL  = 5 * time.Minute
)

func NewAggregator(store LedgerReader, cacheSize int, ttl time.Duration) *Aggregator {
	if cacheSize <= 0 {
		cacheSize = DefaultSummaryCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultSummaryCacheTTL
	}
	return &Aggregator{
		store: store,
		cache: cache.NewLRUCache[core.PeriodSummary](cacheSize, ttl),
	}
}

// Cache exposes the summary cache so it can be registered for cleanup.
func (a *Aggregator) Cache() *cache.LRUCache[core.PeriodSummary] {
	return a.cache
}

func periodKey(month, year int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// Aggregate returns the totals and rows of (month, year). The returned
// slices are copies; callers may modify them.
func (a *Aggregator) Aggregate(ctx context.Context, month, year int) (core.PeriodSummary, error) {
	if err := core.ValidatePeriod(month, year); err != nil {
		return core.PeriodSummary{}, err
	}

	key := periodKey(month, year)
	if s, ok := a.cache.Get(key); ok {
		slog.DebugContext(ctx, "Summary cache hit", "period", key)
		return detach(s), nil
	}

	gen := a.gen.Load()
	v, err, _ := a.group.Do(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		s, err := a.compute(ctx, month, year)
		if err != nil {
			return core.PeriodSummary{}, err
		}
		// A write landed while computing; don't cache a stale summary.
		if a.gen.Load() == gen {
			a.cache.Set(key, s)
		}
		return s, nil
	})
	if err != nil {
		return core.PeriodSummary{}, err
	}
	return detach(v.(core.PeriodSummary)), nil
}

func detach(s core.PeriodSummary) core.PeriodSummary {
	s.Rows = slices.Clone(s.Rows)
	s.ExtraIncomes = slices.Clone(s.ExtraIncomes)
	return s
}

func (a *Aggregator) compute(ctx context.Context, month, year int) (core.PeriodSummary, error) {
	salaries, err := a.store.Salaries(ctx)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("read salaries: %w", err)
	}
	extras, err := a.store.ListExtraIncomes(ctx, month, year)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("read extra incomes: %w", err)
	}
	ledger, err := a.store.ListExpenses(ctx)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("read expenses: %w", err)
	}
	return core.Summarize(month, year, salaries, extras, ledger), nil
}

// Invalidate drops every cached summary.
func (a *Aggregator) Invalidate() {
	a.gen.Add(1)
	a.cache.Purge()
}
