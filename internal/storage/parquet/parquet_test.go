package parquet

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xtxerr/tickvault/internal/storage/types"
)

func sampleBars(n int) []types.Bar {
	bars := make([]types.Bar, n)
	day := types.Day(2018, 1, 2)
	for i := range bars {
		price := decimal.NewFromFloat(100.5 + float64(i)).Round(2)
		bars[i] = types.Bar{
			Ticker:   "NFLX",
			Date:     day.AddDate(0, 0, i),
			Open:     price.Sub(decimal.NewFromFloat(0.25)),
			High:     price.Add(decimal.NewFromFloat(1.75)),
			Low:      price.Sub(decimal.NewFromFloat(2.25)),
			Close:    price,
			AdjClose: price,
			Volume:   int64(5_000_000 + i),
		}
	}
	return bars
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.parquet")
	bars := sampleBars(100)

	if err := WriteBars(path, bars, DefaultOptions()); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := ReadBars(path)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}

	if len(got) != len(bars) {
		t.Fatalf("got %d bars, want %d", len(got), len(bars))
	}

	for i := range bars {
		want, have := bars[i], got[i]
		if have.Ticker != want.Ticker {
			t.Errorf("bar %d ticker = %q, want %q", i, have.Ticker, want.Ticker)
		}
		if !have.Date.Equal(want.Date) {
			t.Errorf("bar %d date = %s, want %s", i, have.Date, want.Date)
		}
		// Decimals must survive exactly.
		if !have.Close.Equal(want.Close) || !have.Open.Equal(want.Open) ||
			!have.High.Equal(want.High) || !have.Low.Equal(want.Low) ||
			!have.AdjClose.Equal(want.AdjClose) {
			t.Errorf("bar %d prices differ: %+v vs %+v", i, have, want)
		}
		if have.Volume != want.Volume {
			t.Errorf("bar %d volume = %d, want %d", i, have.Volume, want.Volume)
		}
	}
}

func TestWriterRowCountAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.parquet")

	w, err := NewBarWriter(path, DefaultOptions())
	if err != nil {
		t.Fatalf("NewBarWriter: %v", err)
	}

	if err := w.Write(sampleBars(10)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.RowCount() != 10 {
		t.Errorf("RowCount = %d, want 10", w.RowCount())
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Writing after Close fails explicitly.
	if err := w.Write(sampleBars(1)); err != ErrWriterClosed {
		t.Fatalf("want ErrWriterClosed, got %v", err)
	}

	// Double close is safe.
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestReaderChunked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.parquet")
	if err := WriteBars(path, sampleBars(25), DefaultOptions()); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	r, err := NewBarReader(path)
	if err != nil {
		t.Fatalf("NewBarReader: %v", err)
	}
	defer r.Close()

	if r.NumRows() != 25 {
		t.Fatalf("NumRows = %d, want 25", r.NumRows())
	}

	var total int
	for {
		chunk, err := r.Read(10)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if len(chunk) == 0 {
			break
		}
		total += len(chunk)
	}
	if total != 25 {
		t.Fatalf("read %d bars in chunks, want 25", total)
	}
}

func TestParseCompressionType(t *testing.T) {
	cases := map[string]CompressionType{
		"snappy":  CompressionSnappy,
		"zstd":    CompressionZstd,
		"lz4":     CompressionLZ4,
		"gzip":    CompressionGzip,
		"none":    CompressionNone,
		"":        CompressionNone,
		"bogus":   CompressionZstd,
	}
	for in, want := range cases {
		if got := ParseCompressionType(in); got != want {
			t.Errorf("ParseCompressionType(%q) = %v, want %v", in, got, want)
		}
	}
}
