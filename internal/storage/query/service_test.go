package query

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xtxerr/tickvault/internal/errors"
	"github.com/xtxerr/tickvault/internal/storage/plan"
	"github.com/xtxerr/tickvault/internal/storage/types"
	"github.com/xtxerr/tickvault/internal/store"
)

func newTestStore(t *testing.T) (*store.Store, *plan.Planner) {
	t.Helper()

	bounds, err := plan.NewBoundaries(2015, 2020)
	if err != nil {
		t.Fatalf("NewBoundaries: %v", err)
	}

	s, err := store.New(store.DefaultConfig(), bounds)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s, plan.NewPlanner(bounds)
}

// loadHistory writes the same daily history into every layout.
func loadHistory(t *testing.T, s *store.Store, ticker string, days int) []types.Bar {
	t.Helper()

	bars := make([]types.Bar, 0, days)
	day := types.Day(2016, 1, 4)
	for i := 0; i < days; i++ {
		// Skip weekends to mimic trading days.
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)
		}
		price := decimal.NewFromInt(int64(100 + i)).Round(2)
		bars = append(bars, types.Bar{
			Ticker: ticker, Date: day,
			Open: price, High: price, Low: price, Close: price, AdjClose: price,
			Volume: int64(1000 + i),
		})
		day = day.AddDate(0, 0, 1)
	}

	for _, layout := range types.AllLayouts() {
		if _, err := s.InsertBatch(context.Background(), layout, bars); err != nil {
			t.Fatalf("%s: InsertBatch: %v", layout, err)
		}
	}
	return bars
}

func fullRange(t *testing.T) types.DateRange {
	t.Helper()
	r, err := types.NewDateRange(types.Day(2015, 1, 1), types.Day(2020, 12, 31))
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}
	return r
}

func TestRunSetEqualAcrossLayouts(t *testing.T) {
	s, planner := newTestStore(t)
	bars := loadHistory(t, s, "NFLX", 500) // spans multiple years
	exec := New(s, DefaultOptions())
	ctx := context.Background()

	var reference []types.Bar
	for _, layout := range types.AllLayouts() {
		p, err := planner.Plan(layout, "NFLX", fullRange(t))
		if err != nil {
			t.Fatalf("%s: Plan: %v", layout, err)
		}

		res, err := exec.Run(ctx, p)
		if err != nil {
			t.Fatalf("%s: Run: %v", layout, err)
		}
		if res.RowCount != len(bars) {
			t.Fatalf("%s: RowCount = %d, want %d", layout, res.RowCount, len(bars))
		}

		if reference == nil {
			reference = res.Bars
			continue
		}
		for i := range reference {
			if !reference[i].Date.Equal(res.Bars[i].Date) || !reference[i].Close.Equal(res.Bars[i].Close) {
				t.Fatalf("%s: row %d differs: %v vs %v", layout, i, reference[i], res.Bars[i])
			}
		}
	}
}

func TestRunOrderedByDate(t *testing.T) {
	s, planner := newTestStore(t)
	loadHistory(t, s, "NFLX", 50)
	exec := New(s, DefaultOptions())

	p, _ := planner.Plan(types.LayoutPartitioned, "NFLX", fullRange(t))
	res, err := exec.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i := 1; i < len(res.Bars); i++ {
		if !res.Bars[i-1].Date.Before(res.Bars[i].Date) {
			t.Fatalf("rows %d..%d not strictly ascending: %s then %s",
				i-1, i, res.Bars[i-1].Date, res.Bars[i].Date)
		}
	}
}

func TestRunLastWriteWins(t *testing.T) {
	s, planner := newTestStore(t)
	exec := New(s, DefaultOptions())
	ctx := context.Background()

	day := types.Day(2017, 3, 14)
	first := types.Bar{Ticker: "NFLX", Date: day, Close: decimal.NewFromInt(100)}
	second := types.Bar{Ticker: "NFLX", Date: day, Close: decimal.NewFromInt(200)}

	for _, layout := range types.AllLayouts() {
		if _, err := s.InsertBatch(ctx, layout, []types.Bar{first}); err != nil {
			t.Fatalf("InsertBatch: %v", err)
		}
		if _, err := s.InsertBatch(ctx, layout, []types.Bar{second}); err != nil {
			t.Fatalf("InsertBatch: %v", err)
		}

		p, _ := planner.Plan(layout, "NFLX", fullRange(t))
		res, err := exec.Run(ctx, p)
		if err != nil {
			t.Fatalf("%s: Run: %v", layout, err)
		}
		if res.RowCount != 1 {
			t.Fatalf("%s: RowCount = %d, want 1 after dedup", layout, res.RowCount)
		}
		if !res.Bars[0].Close.Equal(second.Close) {
			t.Errorf("%s: winner Close = %s, want %s (last write wins)",
				layout, res.Bars[0].Close, second.Close)
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	s, planner := newTestStore(t)
	loadHistory(t, s, "NFLX", 300)
	exec := New(s, DefaultOptions())
	ctx := context.Background()

	p, _ := planner.Plan(types.LayoutPartitioned, "NFLX", fullRange(t))

	first, err := exec.Run(ctx, p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := exec.Run(ctx, p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if first.RowCount != second.RowCount {
		t.Fatalf("row counts differ: %d vs %d", first.RowCount, second.RowCount)
	}
	for i := range first.Bars {
		a, b := first.Bars[i], second.Bars[i]
		if !a.Date.Equal(b.Date) || !a.Close.Equal(b.Close) || a.Volume != b.Volume {
			t.Fatalf("row %d differs between identical runs: %v vs %v", i, a, b)
		}
	}
}

func TestRunConcurrentMatchesSequential(t *testing.T) {
	s, planner := newTestStore(t)
	loadHistory(t, s, "NFLX", 600)
	ctx := context.Background()

	seq := New(s, DefaultOptions())

	opts := DefaultOptions()
	opts.ScanWorkers = 4
	par := New(s, opts)

	p, _ := planner.Plan(types.LayoutPartitioned, "NFLX", fullRange(t))

	a, err := seq.Run(ctx, p)
	if err != nil {
		t.Fatalf("sequential Run: %v", err)
	}
	b, err := par.Run(ctx, p)
	if err != nil {
		t.Fatalf("concurrent Run: %v", err)
	}

	if a.RowCount != b.RowCount {
		t.Fatalf("row counts differ: %d vs %d", a.RowCount, b.RowCount)
	}
	for i := range a.Bars {
		if !a.Bars[i].Date.Equal(b.Bars[i].Date) {
			t.Fatalf("row %d date differs: %s vs %s", i, a.Bars[i].Date, b.Bars[i].Date)
		}
	}
}

func TestRunCancelledReportsPartialScan(t *testing.T) {
	s, planner := newTestStore(t)
	loadHistory(t, s, "NFLX", 50)
	exec := New(s, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _ := planner.Plan(types.LayoutPartitioned, "NFLX", fullRange(t))
	_, err := exec.Run(ctx, p)
	if !errors.Is(err, errors.ErrPartialScan) {
		t.Fatalf("want ErrPartialScan, got %v", err)
	}
}

func TestRunRetriesTimeoutOnce(t *testing.T) {
	bounds, err := plan.NewBoundaries(2015, 2020)
	if err != nil {
		t.Fatalf("NewBoundaries: %v", err)
	}

	cfg := store.DefaultConfig()
	cfg.QueryTimeout = time.Nanosecond
	s, err := store.New(cfg, bounds)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	opts := DefaultOptions()
	opts.RetryInterval = time.Millisecond
	exec := New(s, opts)

	p, _ := plan.NewPlanner(bounds).Plan(types.LayoutPlain, "NFLX", fullRange(t))
	_, err = exec.Run(context.Background(), p)
	if !errors.Is(err, errors.ErrStorageTimeout) {
		t.Fatalf("want ErrStorageTimeout after retry, got %v", err)
	}

	stats := exec.Stats()
	if stats.Retries != 1 {
		t.Errorf("Retries = %d, want 1 (timed-out unit retried exactly once)", stats.Retries)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
}

func TestRunElapsedAndStats(t *testing.T) {
	s, planner := newTestStore(t)
	loadHistory(t, s, "NFLX", 50)
	exec := New(s, DefaultOptions())

	p, _ := planner.Plan(types.LayoutPlain, "NFLX", fullRange(t))
	res, err := exec.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Elapsed < 0 {
		t.Errorf("Elapsed = %v, want non-negative", res.Elapsed)
	}
	if res.UnitsScanned != 1 {
		t.Errorf("UnitsScanned = %d, want 1", res.UnitsScanned)
	}

	stats := exec.Stats()
	if stats.QueriesExecuted != 1 {
		t.Errorf("QueriesExecuted = %d, want 1", stats.QueriesExecuted)
	}
	if stats.RowsReturned != int64(res.RowCount) {
		t.Errorf("RowsReturned = %d, want %d", stats.RowsReturned, res.RowCount)
	}
}
