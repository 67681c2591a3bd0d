// Package store provides the physical record store for tickvault.
//
// One logical dataset of daily OHLCV bars is held under three
// interchangeable layouts backed by DuckDB: a plain heap table, an
// indexed table with a composite (ticker, date) key, and one table per
// calendar year plus a catch-all. Scans against any layout are set-equal
// for the same (ticker, date range).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/tickvault/internal/errors"
	"github.com/xtxerr/tickvault/internal/logging"
	"github.com/xtxerr/tickvault/internal/storage/plan"
	"github.com/xtxerr/tickvault/internal/storage/types"
)

// =============================================================================
// Store Configuration
// =============================================================================

// Config holds store configuration options.
type Config struct {
	// DSN is the DuckDB database path. Empty means in-memory.
	DSN string

	// MemoryLimit is the DuckDB memory limit (e.g. "2GB").
	MemoryLimit string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// QueryTimeout is the deadline applied to each unit scan.
	QueryTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns: 8,
		MaxIdleConns: 2,
		QueryTimeout: 30 * time.Second,
	}
}

// =============================================================================
// Store
// =============================================================================

// Store provides bar persistence under all three layouts.
//
// Store is safe for concurrent use.
type Store struct {
	db     *sql.DB
	config Config
	bounds *plan.Boundaries

	mu     sync.RWMutex
	closed bool
	seq    int64 // last assigned insert sequence, guarded by mu
}

// StoredBar is a bar together with its store-assigned insert sequence.
// The sequence exists only to make the duplicate policy (last write wins)
// deterministic; it never appears in query results.
type StoredBar struct {
	types.Bar
	Seq int64
}

// New opens the store and creates the per-layout schema. Partition tables
// are generated from the given boundaries, never enumerated by hand.
func New(cfg Config, bounds *plan.Boundaries) (*Store, error) {
	if bounds == nil {
		return nil, errors.ErrNoPartition
	}

	db, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %v: %w", err, errors.ErrDatabase)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %v: %w", err, errors.ErrDatabase)
	}

	if cfg.MemoryLimit != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET memory_limit='%s'", cfg.MemoryLimit)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}

	s := &Store{
		db:     db,
		config: cfg,
		bounds: bounds,
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if err := s.seedSequence(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	logging.Component("store").Info("store opened",
		"dsn", cfg.DSN,
		"partitions", len(bounds.All()),
		"years", fmt.Sprintf("%d..%d", bounds.StartYear(), bounds.EndYear()))

	return s, nil
}

// Close closes the store. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

// Boundaries returns the partition boundaries the store was built with.
func (s *Store) Boundaries() *plan.Boundaries {
	return s.bounds
}

// Partitions returns the physical partitions of the partitioned layout.
func (s *Store) Partitions() []plan.Partition {
	return s.bounds.All()
}

// checkOpen returns ErrClosed if the store has been closed.
func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.ErrClosed
	}
	return nil
}

// nextSeq reserves n insert sequence numbers and returns the first.
func (s *Store) nextSeq(n int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := s.seq + 1
	s.seq += int64(n)
	return first
}

// seedSequence restores the sequence counter from persisted rows so that
// reopening a file-backed store keeps "last write wins" stable.
func (s *Store) seedSequence(ctx context.Context) error {
	var max int64
	for _, table := range s.allTables() {
		var m sql.NullInt64
		row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT MAX(seq) FROM %s", table))
		if err := row.Scan(&m); err != nil {
			return fmt.Errorf("%s: %w", table, err)
		}
		if m.Valid && m.Int64 > max {
			max = m.Int64
		}
	}

	s.mu.Lock()
	s.seq = max
	s.mu.Unlock()
	return nil
}

// tablesFor returns the physical tables backing a layout.
func (s *Store) tablesFor(layout types.Layout) ([]string, error) {
	switch layout {
	case types.LayoutPlain:
		return []string{plan.PlainTable}, nil
	case types.LayoutIndexed:
		return []string{plan.IndexedTable}, nil
	case types.LayoutPartitioned:
		parts := s.bounds.All()
		tables := make([]string, len(parts))
		for i, p := range parts {
			tables[i] = p.Table
		}
		return tables, nil
	default:
		return nil, errors.Wrapf(errors.ErrUnknownLayout, "%d", layout)
	}
}

// allTables returns every physical table across all layouts.
func (s *Store) allTables() []string {
	tables := []string{plan.PlainTable, plan.IndexedTable}
	for _, p := range s.bounds.All() {
		tables = append(tables, p.Table)
	}
	return tables
}

// =============================================================================
// Transaction Support
// =============================================================================

// Transaction executes a function within a database transaction.
//
// If the function returns an error, the transaction is rolled back.
// If the function returns nil, the transaction is committed.
func (s *Store) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
