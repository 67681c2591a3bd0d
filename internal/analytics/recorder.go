package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/xtxerr/tickvault/internal/logging"
	"github.com/xtxerr/tickvault/internal/storage/types"
)

// Recorder persists derived moving averages to a SQLite database.
// Aggregates carry no identity beyond their derivation key, so writes
// upsert on (ticker, date, window_size): recomputing a series replaces
// it instead of duplicating it.
type Recorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewRecorder opens (or creates) the results database and runs migrations.
func NewRecorder(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &Recorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logging.Component("analytics").Info("results recorder opened", "path", path)
	return r, nil
}

func (r *Recorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS moving_averages (
			ticker         TEXT    NOT NULL,
			date           TEXT    NOT NULL,
			window_size    INTEGER NOT NULL,
			moving_average TEXT    NOT NULL,
			computed_at    INTEGER NOT NULL,
			PRIMARY KEY (ticker, date, window_size)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ma_ticker_window
			ON moving_averages(ticker, window_size)`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

// Record upserts a batch of aggregate records inside one transaction.
func (r *Recorder) Record(ctx context.Context, recs []types.AggregateRecord) error {
	if len(recs) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO moving_averages (ticker, date, window_size, moving_average, computed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date, window_size)
		DO UPDATE SET moving_average = excluded.moving_average,
		              computed_at    = excluded.computed_at`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i := range recs {
		rec := &recs[i]
		if _, err := stmt.ExecContext(ctx,
			rec.Ticker,
			types.FormatDate(rec.Date),
			rec.WindowSize,
			rec.MovingAverage.String(),
			now,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s: %w", rec.Key(), err)
		}
	}

	return tx.Commit()
}

// Lookup returns the stored aggregates for one (ticker, window) pair
// within a date range, ordered by date ascending.
func (r *Recorder) Lookup(ctx context.Context, ticker string, window int, dr types.DateRange) ([]types.AggregateRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ticker, date, window_size, moving_average
		  FROM moving_averages
		 WHERE ticker = ? AND window_size = ? AND date >= ? AND date <= ?
		 ORDER BY date`,
		ticker, window, types.FormatDate(dr.Start), types.FormatDate(dr.End))
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []types.AggregateRecord
	for rows.Next() {
		var rec types.AggregateRecord
		var date, avg string
		if err := rows.Scan(&rec.Ticker, &date, &rec.WindowSize, &avg); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if rec.Date, err = types.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		if rec.MovingAverage, err = decimal.NewFromString(avg); err != nil {
			return nil, fmt.Errorf("parse average %q: %w", avg, err)
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

// Count returns the number of stored aggregate rows.
func (r *Recorder) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM moving_averages").Scan(&n)
	return n, err
}

// Close closes the recorder.
func (r *Recorder) Close() error {
	return r.db.Close()
}
