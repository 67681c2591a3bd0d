package storage_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xtxerr/tickvault/internal/analytics"
	"github.com/xtxerr/tickvault/internal/bench"
	"github.com/xtxerr/tickvault/internal/errors"
	"github.com/xtxerr/tickvault/internal/loader"
	"github.com/xtxerr/tickvault/internal/storage"
	"github.com/xtxerr/tickvault/internal/storage/config"
	"github.com/xtxerr/tickvault/internal/storage/parquet"
	"github.com/xtxerr/tickvault/internal/storage/types"
)

func newTestService(t *testing.T) *storage.Service {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Partitions.StartYear = 2002
	cfg.Partitions.EndYear = 2022

	svc, err := storage.New(cfg)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

// loadNFLX loads a multi-year deterministic history into all layouts and
// returns the number of bars.
func loadNFLX(t *testing.T, svc *storage.Service) int {
	t.Helper()

	spec := loader.GenerateSpec{
		Ticker:    "NFLX",
		StartDate: types.Day(2002, 5, 23),
		EndDate:   types.Day(2022, 5, 20),
		Seed:      7,
	}
	res, err := svc.Load(context.Background(), loader.Request{
		Layouts:  types.AllLayouts(),
		Generate: &spec,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return res.Bars
}

func nflxQuery(layout types.Layout) storage.QueryRequest {
	return storage.QueryRequest{
		Ticker: "NFLX",
		Start:  types.Day(2002, 1, 1),
		End:    types.Day(2022, 12, 31),
		Layout: layout,
	}
}

func TestQuerySetEqualAcrossLayouts(t *testing.T) {
	svc := newTestService(t)
	total := loadNFLX(t, svc)
	ctx := context.Background()

	var reference *storage.QueryResult
	for _, layout := range types.AllLayouts() {
		res, err := svc.Query(ctx, nflxQuery(layout))
		if err != nil {
			t.Fatalf("%s: Query: %v", layout, err)
		}
		if res.RowCount != total {
			t.Fatalf("%s: RowCount = %d, want %d", layout, res.RowCount, total)
		}

		if reference == nil {
			reference = res
			continue
		}
		for i := range reference.Bars {
			a, b := reference.Bars[i], res.Bars[i]
			if !a.Date.Equal(b.Date) || !a.Close.Equal(b.Close) {
				t.Fatalf("%s: row %d differs from reference", layout, i)
			}
		}
	}
}

func TestCatchAllRoutingRetrievable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// A date beyond the configured end year (2022).
	spec := loader.GenerateSpec{
		Ticker:    "NFLX",
		StartDate: types.Day(2025, 3, 3),
		EndDate:   types.Day(2025, 3, 7),
		Seed:      1,
	}
	res, err := svc.Load(ctx, loader.Request{
		Layouts:  []types.Layout{types.LayoutPartitioned},
		Generate: &spec,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, err := svc.Query(ctx, storage.QueryRequest{
		Ticker: "NFLX",
		Start:  types.Day(2025, 1, 1),
		End:    types.Day(2025, 12, 31),
		Layout: types.LayoutPartitioned,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got.RowCount != res.Bars {
		t.Fatalf("retrieved %d rows from catch-all, want %d", got.RowCount, res.Bars)
	}
}

func TestBenchmarkEqualRowCounts(t *testing.T) {
	svc := newTestService(t)
	loadNFLX(t, svc)

	h := bench.New(svc, bench.DefaultOptions())
	r, err := types.NewDateRange(types.Day(2002, 1, 1), types.Day(2022, 12, 31))
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}

	report, err := h.Run(context.Background(), bench.Spec{
		Ticker:  "NFLX",
		Range:   r,
		Layouts: []types.Layout{types.LayoutPartitioned, types.LayoutPlain},
		Trials:  3,
		Warmup:  1,
	})
	if err != nil {
		t.Fatalf("bench.Run: %v", err)
	}

	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}
	if report.Results[0].Rows != report.Results[1].Rows {
		t.Fatalf("row counts differ: %d vs %d",
			report.Results[0].Rows, report.Results[1].Rows)
	}
	for _, res := range report.Results {
		if res.Best < 0 || res.Median < 0 || res.Max < 0 {
			t.Errorf("%s: negative elapsed times: %+v", res.Layout, res)
		}
	}

	var buf bytes.Buffer
	report.Render(&buf)
	out := buf.String()
	if !strings.Contains(out, "partitioned") || !strings.Contains(out, "plain") {
		t.Errorf("rendered report missing layouts:\n%s", out)
	}
}

func TestBenchmarkWarmupDefault(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	spec := loader.GenerateSpec{
		Ticker:    "NFLX",
		StartDate: types.Day(2016, 1, 4),
		EndDate:   types.Day(2016, 3, 1),
		Seed:      3,
	}
	if _, err := svc.Load(ctx, loader.Request{Layouts: types.AllLayouts(), Generate: &spec}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	r, _ := types.NewDateRange(types.Day(2016, 1, 1), types.Day(2016, 12, 31))
	layouts := []types.Layout{types.LayoutPlain, types.LayoutIndexed}
	h := bench.New(svc, bench.Options{DefaultTrials: 1, DefaultWarmup: 3, SketchAccuracy: 0.01})

	// A spec that leaves Warmup at zero gets the harness default: per
	// layout 3 warmups plus 1 trial.
	before := svc.Stats().Query.QueriesExecuted
	if _, err := h.Run(ctx, bench.Spec{Ticker: "NFLX", Range: r, Layouts: layouts, Trials: 1}); err != nil {
		t.Fatalf("bench.Run: %v", err)
	}
	if got := svc.Stats().Query.QueriesExecuted - before; got != 8 {
		t.Errorf("executed %d queries, want 8 (default warmups applied)", got)
	}

	// A negative Warmup runs none.
	before = svc.Stats().Query.QueriesExecuted
	if _, err := h.Run(ctx, bench.Spec{Ticker: "NFLX", Range: r, Layouts: layouts, Trials: 1, Warmup: -1}); err != nil {
		t.Fatalf("bench.Run: %v", err)
	}
	if got := svc.Stats().Query.QueriesExecuted - before; got != 2 {
		t.Errorf("executed %d queries, want 2 (negative warmup runs none)", got)
	}
}

func TestBenchmarkNeedsTwoLayouts(t *testing.T) {
	svc := newTestService(t)
	loadNFLX(t, svc)

	h := bench.New(svc, bench.DefaultOptions())
	r, _ := types.NewDateRange(types.Day(2002, 1, 1), types.Day(2022, 12, 31))

	_, err := h.Run(context.Background(), bench.Spec{
		Ticker:  "NFLX",
		Range:   r,
		Layouts: []types.Layout{types.LayoutPlain},
	})
	if err == nil {
		t.Fatal("expected error for single-layout benchmark")
	}
}

func TestAnalyticsOverQueryResult(t *testing.T) {
	svc := newTestService(t)
	loadNFLX(t, svc)
	ctx := context.Background()

	res, err := svc.Query(ctx, nflxQuery(types.LayoutIndexed))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	recs, err := analytics.ComputeMovingAverage(res.Bars, 20)
	if err != nil {
		t.Fatalf("ComputeMovingAverage: %v", err)
	}
	if want := len(res.Bars) - 19; len(recs) != want {
		t.Fatalf("got %d aggregates, want %d", len(recs), want)
	}

	forecast, err := analytics.ForecastNext(res.Bars)
	if err != nil {
		t.Fatalf("ForecastNext: %v", err)
	}
	if forecast.Observations != len(res.Bars) {
		t.Errorf("Observations = %d, want %d", forecast.Observations, len(res.Bars))
	}
	if !forecast.AsOf.Equal(res.Bars[len(res.Bars)-1].Date) {
		t.Errorf("AsOf = %s", forecast.AsOf)
	}

	// Persist and read back through the recorder.
	rec, err := analytics.NewRecorder(filepath.Join(t.TempDir(), "analytics.db"))
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	defer rec.Close()

	if err := rec.Record(ctx, recs); err != nil {
		t.Fatalf("Record: %v", err)
	}
	n, err := rec.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != int64(len(recs)) {
		t.Errorf("recorder holds %d rows, want %d", n, len(recs))
	}
}

func TestExportParquetRoundTrip(t *testing.T) {
	svc := newTestService(t)
	total := loadNFLX(t, svc)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "nflx-export.parquet")
	n, err := svc.ExportParquet(ctx, nflxQuery(types.LayoutPartitioned), path)
	if err != nil {
		t.Fatalf("ExportParquet: %v", err)
	}
	if n != total {
		t.Fatalf("exported %d rows, want %d", n, total)
	}

	bars, err := parquet.ReadBars(path)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != total {
		t.Fatalf("read back %d rows, want %d", len(bars), total)
	}
}

func TestQueryValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Missing ticker.
	_, err := svc.Query(ctx, storage.QueryRequest{
		Start: types.Day(2020, 1, 1), End: types.Day(2020, 2, 1),
	})
	if err == nil {
		t.Error("expected error for missing ticker")
	}

	// Inverted range.
	_, err = svc.Query(ctx, storage.QueryRequest{
		Ticker: "NFLX",
		Start:  types.Day(2020, 2, 1), End: types.Day(2020, 1, 1),
	})
	if !errors.Is(err, errors.ErrInvalidRange) {
		t.Errorf("want ErrInvalidRange, got %v", err)
	}
}

func TestClosedService(t *testing.T) {
	svc := newTestService(t)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err := svc.Query(context.Background(), nflxQuery(types.LayoutPlain))
	if !errors.Is(err, errors.ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}

	// Double close is safe.
	if err := svc.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
