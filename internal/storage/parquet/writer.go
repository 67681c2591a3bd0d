package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/shopspring/decimal"

	"github.com/xtxerr/tickvault/internal/storage/types"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{Compression: CompressionZstd}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// BarRow represents a bar in Parquet format. Prices are exact decimal
// strings; the trading day is Unix milliseconds at midnight UTC.
type BarRow struct {
	Ticker   string `parquet:"ticker,zstd"`
	DateMs   int64  `parquet:"date_ms"`
	Open     string `parquet:"open,zstd"`
	High     string `parquet:"high,zstd"`
	Low      string `parquet:"low,zstd"`
	Close    string `parquet:"close,zstd"`
	AdjClose string `parquet:"adj_close,zstd"`
	Volume   int64  `parquet:"volume"`
}

// BarToRow converts a Bar to a BarRow.
func BarToRow(b *types.Bar) BarRow {
	return BarRow{
		Ticker:   b.Ticker,
		DateMs:   types.TruncateToDay(b.Date).UnixMilli(),
		Open:     b.Open.StringFixed(2),
		High:     b.High.StringFixed(2),
		Low:      b.Low.StringFixed(2),
		Close:    b.Close.StringFixed(2),
		AdjClose: b.AdjClose.StringFixed(2),
		Volume:   b.Volume,
	}
}

// RowToBar converts a BarRow back to a Bar.
func RowToBar(r *BarRow) (types.Bar, error) {
	b := types.Bar{
		Ticker: r.Ticker,
		Date:   types.TruncateToDay(timeFromMs(r.DateMs)),
		Volume: r.Volume,
	}

	var err error
	if b.Open, err = decimal.NewFromString(r.Open); err != nil {
		return types.Bar{}, fmt.Errorf("parse open %q: %w", r.Open, err)
	}
	if b.High, err = decimal.NewFromString(r.High); err != nil {
		return types.Bar{}, fmt.Errorf("parse high %q: %w", r.High, err)
	}
	if b.Low, err = decimal.NewFromString(r.Low); err != nil {
		return types.Bar{}, fmt.Errorf("parse low %q: %w", r.Low, err)
	}
	if b.Close, err = decimal.NewFromString(r.Close); err != nil {
		return types.Bar{}, fmt.Errorf("parse close %q: %w", r.Close, err)
	}
	if b.AdjClose, err = decimal.NewFromString(r.AdjClose); err != nil {
		return types.Bar{}, fmt.Errorf("parse adj_close %q: %w", r.AdjClose, err)
	}

	return b, nil
}

func timeFromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// BarWriter writes bars to a Parquet file.
type BarWriter struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[BarRow]
	rowCount int64
	closed   bool
}

// NewBarWriter creates a new bar Parquet writer.
func NewBarWriter(path string, opts Options) (*BarWriter, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[BarRow](f,
		parquet.Compression(getCompression(opts.Compression)))

	return &BarWriter{
		path:   path,
		file:   f,
		writer: writer,
	}, nil
}

// Write writes bars to the Parquet file.
func (w *BarWriter) Write(bars []types.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	rows := make([]BarRow, len(bars))
	for i := range bars {
		rows[i] = BarToRow(&bars[i])
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close closes the writer.
func (w *BarWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}

	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *BarWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *BarWriter) Path() string {
	return w.path
}

// WriteBars writes a full history to one Parquet file and closes it.
func WriteBars(path string, bars []types.Bar, opts Options) error {
	w, err := NewBarWriter(path, opts)
	if err != nil {
		return err
	}
	if err := w.Write(bars); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")
