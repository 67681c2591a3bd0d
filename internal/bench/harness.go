// Package bench compares fetch latency across storage layouts for one
// logical query. Each layout answers the identical (ticker, date range)
// query a configured number of times; per-trial latencies feed a
// DDSketch, and row counts are cross-checked so a correctness bug can
// never masquerade as a benchmark result.
package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/google/uuid"

	"github.com/xtxerr/tickvault/internal/errors"
	"github.com/xtxerr/tickvault/internal/logging"
	"github.com/xtxerr/tickvault/internal/storage"
	"github.com/xtxerr/tickvault/internal/storage/types"
)

// Spec describes one benchmark run: a fixed logical query executed
// against two or more layouts.
type Spec struct {
	Ticker  string
	Range   types.DateRange
	Layouts []types.Layout

	// Trials is the number of measured runs per layout. Zero uses the
	// harness default.
	Trials int

	// Warmup is the number of unmeasured runs before the trials. Zero
	// uses the harness default; a negative value runs none.
	Warmup int
}

// LayoutResult is the measured outcome for one layout.
type LayoutResult struct {
	Layout types.Layout
	Rows   int
	Trials int

	Best   time.Duration
	Median time.Duration
	P95    time.Duration
	Max    time.Duration
}

// Report is the structured comparison across layouts. It is
// JSON-encodable for machine consumption; Render produces the
// human-readable table.
type Report struct {
	RunID   string
	Ticker  string
	Range   string
	Results []LayoutResult
}

// Options configures the harness.
type Options struct {
	// DefaultTrials is used when a spec leaves Trials at zero.
	DefaultTrials int

	// DefaultWarmup is used when a spec leaves Warmup at zero.
	DefaultWarmup int

	// SketchAccuracy is the DDSketch relative accuracy.
	SketchAccuracy float64
}

// DefaultOptions returns harness defaults.
func DefaultOptions() Options {
	return Options{
		DefaultTrials:  5,
		DefaultWarmup:  1,
		SketchAccuracy: 0.01,
	}
}

// Harness runs layout comparisons against one storage service.
type Harness struct {
	svc  *storage.Service
	opts Options
}

// New creates a harness over the given service.
func New(svc *storage.Service, opts Options) *Harness {
	if opts.DefaultTrials <= 0 {
		opts.DefaultTrials = 1
	}
	if opts.SketchAccuracy <= 0 || opts.SketchAccuracy > 1 {
		opts.SketchAccuracy = 0.01
	}
	return &Harness{svc: svc, opts: opts}
}

// Run executes the spec's query against every requested layout and
// returns the latency comparison.
//
// Row counts must agree across layouts for the same logical query; a
// mismatch aborts the run with ErrRowCountMismatch rather than being
// reported as a benchmark result.
func (h *Harness) Run(ctx context.Context, spec Spec) (*Report, error) {
	if len(spec.Layouts) < 2 {
		return nil, errors.NewValidation("layouts",
			fmt.Sprintf("need at least 2 layouts to compare, have %d", len(spec.Layouts)))
	}

	trials := spec.Trials
	if trials <= 0 {
		trials = h.opts.DefaultTrials
	}
	warmup := spec.Warmup
	if warmup == 0 {
		warmup = h.opts.DefaultWarmup
	}
	if warmup < 0 {
		warmup = 0
	}

	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(logging.ContextWithTicker(ctx, spec.Ticker), runID)
	log := logging.Component("bench").With("run_id", runID)
	log.Info("benchmark starting",
		"ticker", spec.Ticker,
		"range", spec.Range.String(),
		"layouts", len(spec.Layouts),
		"trials", trials,
		"warmup", warmup)

	report := &Report{
		RunID:   runID,
		Ticker:  spec.Ticker,
		Range:   spec.Range.String(),
		Results: make([]LayoutResult, 0, len(spec.Layouts)),
	}

	referenceRows := -1
	for _, layout := range spec.Layouts {
		res, err := h.measureLayout(ctx, spec, layout, trials, warmup)
		if err != nil {
			return nil, err
		}

		if referenceRows == -1 {
			referenceRows = res.Rows
		} else if res.Rows != referenceRows {
			return nil, errors.NewRowCountMismatch(layout.String(),
				int64(referenceRows), int64(res.Rows))
		}

		report.Results = append(report.Results, *res)
		log.Info("layout measured",
			"layout", layout.String(),
			"rows", res.Rows,
			"best", res.Best,
			"median", res.Median)
	}

	return report, nil
}

// measureLayout runs warmups plus trials for one layout and summarizes
// the latency distribution.
func (h *Harness) measureLayout(ctx context.Context, spec Spec, layout types.Layout, trials, warmup int) (*LayoutResult, error) {
	req := storage.QueryRequest{
		Ticker: spec.Ticker,
		Start:  spec.Range.Start,
		End:    spec.Range.End,
		Layout: layout,
	}

	for i := 0; i < warmup; i++ {
		if _, err := h.svc.Query(ctx, req); err != nil {
			return nil, fmt.Errorf("warmup %s: %w", layout, err)
		}
	}

	sketch, err := ddsketch.NewDefaultDDSketch(h.opts.SketchAccuracy)
	if err != nil {
		return nil, fmt.Errorf("create sketch: %w", err)
	}

	rows := -1
	for i := 0; i < trials; i++ {
		res, err := h.svc.Query(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("trial %d on %s: %w", i, layout, err)
		}

		// An unchanged dataset must produce a stable count within a
		// layout's own trial set too.
		if rows == -1 {
			rows = res.RowCount
		} else if res.RowCount != rows {
			return nil, errors.NewRowCountMismatch(layout.String(),
				int64(rows), int64(res.RowCount))
		}

		if err := sketch.Add(res.Elapsed.Seconds()); err != nil {
			return nil, fmt.Errorf("record latency: %w", err)
		}
	}

	return summarize(layout, rows, trials, sketch)
}

func summarize(layout types.Layout, rows, trials int, sketch *ddsketch.DDSketch) (*LayoutResult, error) {
	min, err := sketch.GetMinValue()
	if err != nil {
		return nil, fmt.Errorf("sketch min: %w", err)
	}
	max, err := sketch.GetMaxValue()
	if err != nil {
		return nil, fmt.Errorf("sketch max: %w", err)
	}
	median, err := sketch.GetValueAtQuantile(0.5)
	if err != nil {
		return nil, fmt.Errorf("sketch median: %w", err)
	}
	p95, err := sketch.GetValueAtQuantile(0.95)
	if err != nil {
		return nil, fmt.Errorf("sketch p95: %w", err)
	}

	return &LayoutResult{
		Layout: layout,
		Rows:   rows,
		Trials: trials,
		Best:   secondsToDuration(min),
		Median: secondsToDuration(median),
		P95:    secondsToDuration(p95),
		Max:    secondsToDuration(max),
	}, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
