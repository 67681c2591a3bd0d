// Package query executes scan plans against the record store.
//
// The executor scans every unit of a plan, merges the rows, resolves
// duplicate (ticker, date) keys by keeping the highest insert sequence
// (last write wins), and returns the final sequence ordered by date
// ascending. Elapsed wall-clock time for the full operation is recorded
// on the result for the benchmark harness.
package query

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/tickvault/internal/errors"
	"github.com/xtxerr/tickvault/internal/logging"
	"github.com/xtxerr/tickvault/internal/storage/plan"
	"github.com/xtxerr/tickvault/internal/storage/types"
	"github.com/xtxerr/tickvault/internal/store"
)

// Options configures the executor.
type Options struct {
	// ScanWorkers bounds concurrent unit scans within one plan.
	// 1 means strictly sequential execution.
	ScanWorkers int

	// RetryInterval is the initial backoff before the single retry of a
	// timed-out unit scan.
	RetryInterval time.Duration

	// MaxRows caps the number of rows one query may return. Exceeding
	// it is an error, never a silent truncation.
	MaxRows int
}

// DefaultOptions returns executor options for sequential execution.
func DefaultOptions() Options {
	return Options{
		ScanWorkers:   1,
		RetryInterval: 250 * time.Millisecond,
		MaxRows:       10_000_000,
	}
}

// Executor runs scan plans against the record store.
//
// Executor is safe for concurrent use.
type Executor struct {
	store *store.Store
	opts  Options

	mu    sync.RWMutex
	stats Stats
}

// Stats holds executor statistics.
type Stats struct {
	QueriesExecuted int64
	RowsReturned    int64
	UnitsScanned    int64
	Retries         int64
	Errors          int64
}

// Result is the outcome of one executed plan.
type Result struct {
	Layout types.Layout
	Ticker string
	Range  types.DateRange

	// Bars is the final sequence, deduplicated and ordered by date
	// ascending. Ordering never depends on unit completion order.
	Bars []types.Bar

	// RowCount is len(Bars).
	RowCount int

	// UnitsScanned is the number of physical units the plan touched.
	UnitsScanned int

	// Elapsed is the wall-clock time of the full operation, including
	// merge and sort.
	Elapsed time.Duration
}

// New creates an executor over the given store.
func New(st *store.Store, opts Options) *Executor {
	if opts.ScanWorkers <= 0 {
		opts.ScanWorkers = 1
	}
	return &Executor{store: st, opts: opts}
}

// Run executes a scan plan and returns the ordered, deduplicated result.
//
// A unit scan that times out is retried exactly once with backoff before
// ErrStorageTimeout surfaces. Cancellation between units aborts the merge
// with ErrPartialScan; a partial merge is never returned as complete.
func (e *Executor) Run(ctx context.Context, p *plan.ScanPlan) (*Result, error) {
	start := time.Now()

	var rows []store.StoredBar
	var err error
	if e.opts.ScanWorkers > 1 && len(p.Units) > 1 {
		rows, err = e.scanConcurrent(ctx, p)
	} else {
		rows, err = e.scanSequential(ctx, p)
	}
	if err != nil {
		e.recordError()
		return nil, err
	}

	bars := mergeRows(rows)

	if e.opts.MaxRows > 0 && len(bars) > e.opts.MaxRows {
		e.recordError()
		return nil, fmt.Errorf("query returned %d rows, exceeds max_rows %d", len(bars), e.opts.MaxRows)
	}

	res := &Result{
		Layout:       p.Layout,
		Ticker:       p.Ticker,
		Range:        p.Range,
		Bars:         bars,
		RowCount:     len(bars),
		UnitsScanned: len(p.Units),
		Elapsed:      time.Since(start),
	}

	e.mu.Lock()
	e.stats.QueriesExecuted++
	e.stats.RowsReturned += int64(res.RowCount)
	e.stats.UnitsScanned += int64(res.UnitsScanned)
	e.mu.Unlock()

	logging.WithContext(ctx).Debug("plan executed",
		"component", "query",
		"layout", p.Layout.String(),
		"ticker", p.Ticker,
		"units", res.UnitsScanned,
		"rows", res.RowCount,
		"elapsed", res.Elapsed)

	return res, nil
}

// scanSequential scans units one after another, checking for cancellation
// between units.
func (e *Executor) scanSequential(ctx context.Context, p *plan.ScanPlan) ([]store.StoredBar, error) {
	var rows []store.StoredBar

	for i, unit := range p.Units {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewPartialScan(i, len(p.Units))
		}

		unitRows, err := e.scanUnit(ctx, unit, p.Ticker, p.Range)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, errors.NewPartialScan(i, len(p.Units))
			}
			return nil, err
		}
		rows = append(rows, unitRows...)
	}

	return rows, nil
}

// scanConcurrent fans unit scans out over a bounded errgroup. Per-unit
// results land in fixed slots so the merge input does not depend on
// completion order.
func (e *Executor) scanConcurrent(ctx context.Context, p *plan.ScanPlan) ([]store.StoredBar, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.ScanWorkers)

	perUnit := make([][]store.StoredBar, len(p.Units))
	var completed atomic.Int64

	for i, unit := range p.Units {
		g.Go(func() error {
			unitRows, err := e.scanUnit(gctx, unit, p.Ticker, p.Range)
			if err != nil {
				return err
			}
			perUnit[i] = unitRows
			completed.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, errors.NewPartialScan(int(completed.Load()), len(p.Units))
		}
		return nil, err
	}

	var rows []store.StoredBar
	for _, unitRows := range perUnit {
		rows = append(rows, unitRows...)
	}
	return rows, nil
}

// scanUnit scans one unit, retrying a storage timeout exactly once.
// Every other error surfaces unmodified.
func (e *Executor) scanUnit(ctx context.Context, unit plan.Unit, ticker string, r types.DateRange) ([]store.StoredBar, error) {
	var rows []store.StoredBar

	attempt := 0
	op := func() error {
		var err error
		rows, err = e.store.ScanUnit(ctx, unit, ticker, r)
		if err == nil {
			return nil
		}
		if !errors.IsRetriable(err) {
			return backoff.Permanent(err)
		}
		attempt++
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.opts.RetryInterval

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, 1), ctx))

	if attempt > 0 {
		e.mu.Lock()
		e.stats.Retries++
		e.mu.Unlock()
		logging.Component("query").Warn("unit scan retried",
			"table", unit.Table, "err", err)
	}

	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeRows deduplicates on (ticker, date), keeping the row with the
// highest insert sequence, and sorts the survivors by date ascending.
func mergeRows(rows []store.StoredBar) []types.Bar {
	winners := make(map[string]store.StoredBar, len(rows))
	for _, row := range rows {
		key := row.Key()
		if prev, ok := winners[key]; !ok || row.Seq > prev.Seq {
			winners[key] = row
		}
	}

	merged := make([]store.StoredBar, 0, len(winners))
	for _, row := range winners {
		merged = append(merged, row)
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].Date.Equal(merged[j].Date) {
			return merged[i].Date.Before(merged[j].Date)
		}
		if merged[i].Ticker != merged[j].Ticker {
			return merged[i].Ticker < merged[j].Ticker
		}
		return merged[i].Seq < merged[j].Seq
	})

	bars := make([]types.Bar, len(merged))
	for i, row := range merged {
		bars[i] = row.Bar
	}
	return bars
}

func (e *Executor) recordError() {
	e.mu.Lock()
	e.stats.Errors++
	e.mu.Unlock()
}

// Stats returns a snapshot of executor statistics.
func (e *Executor) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}
