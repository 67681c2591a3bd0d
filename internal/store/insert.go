package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xtxerr/tickvault/internal/errors"
	"github.com/xtxerr/tickvault/internal/logging"
	"github.com/xtxerr/tickvault/internal/storage/plan"
	"github.com/xtxerr/tickvault/internal/storage/types"
)

// insertSQL binds prices as exact decimal strings; the engine casts them
// into DECIMAL(10,2) columns without a float round trip.
const insertSQL = `INSERT INTO %s (ticker, date, open, high, low, "close", adj_close, volume, seq)
	VALUES (?, ?, CAST(? AS DECIMAL(10,2)), CAST(? AS DECIMAL(10,2)), CAST(? AS DECIMAL(10,2)),
	        CAST(? AS DECIMAL(10,2)), CAST(? AS DECIMAL(10,2)), ?, ?)`

// InsertBatch bulk-loads bars into one layout inside a single transaction.
//
// Duplicate (ticker, date) pairs are accepted under all three layouts for
// ingestion throughput; the executor resolves them at read time, keeping
// the highest insert sequence (last write wins). Rows in the partitioned
// layout are routed by calendar year, with dates beyond the configured
// end year landing in the catch-all partition.
//
// It returns the number of rows written.
func (s *Store) InsertBatch(ctx context.Context, layout types.Layout, bars []types.Bar) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if !layout.Valid() {
		return 0, errors.Wrapf(errors.ErrUnknownLayout, "%d", layout)
	}
	if len(bars) == 0 {
		return 0, nil
	}

	for i := range bars {
		if len(bars[i].Ticker) == 0 || len(bars[i].Ticker) > types.MaxTickerLen {
			return 0, errors.Wrapf(errors.ErrInvalidBar,
				"ticker %q exceeds %d characters", bars[i].Ticker, types.MaxTickerLen)
		}
	}

	seq := s.nextSeq(len(bars))

	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		stmts := make(map[string]*sql.Stmt)
		defer func() {
			for _, st := range stmts {
				st.Close()
			}
		}()

		prepare := func(table string) (*sql.Stmt, error) {
			if st, ok := stmts[table]; ok {
				return st, nil
			}
			st, err := tx.PrepareContext(ctx, fmt.Sprintf(insertSQL, table))
			if err != nil {
				return nil, fmt.Errorf("prepare %s: %w", table, err)
			}
			stmts[table] = st
			return st, nil
		}

		for i := range bars {
			b := &bars[i]

			table := ""
			switch layout {
			case types.LayoutPlain:
				table = plan.PlainTable
			case types.LayoutIndexed:
				table = plan.IndexedTable
			case types.LayoutPartitioned:
				table = s.bounds.ForYear(b.Year()).Table
			}

			st, err := prepare(table)
			if err != nil {
				return err
			}

			if _, err := st.ExecContext(ctx,
				b.Ticker,
				types.TruncateToDay(b.Date),
				b.Open.StringFixed(2),
				b.High.StringFixed(2),
				b.Low.StringFixed(2),
				b.Close.StringFixed(2),
				b.AdjClose.StringFixed(2),
				b.Volume,
				seq+int64(i),
			); err != nil {
				return fmt.Errorf("insert into %s: %w", table, err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	logging.Component("store").Debug("batch inserted",
		"layout", layout.String(), "rows", len(bars))

	return len(bars), nil
}

// DeleteKey removes every row for one (ticker, date) key from a layout.
// This is the correction path: records are immutable, so a fix is a
// delete followed by a reinsert.
//
// It returns the number of rows removed.
func (s *Store) DeleteKey(ctx context.Context, layout types.Layout, ticker string, date time.Time) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	tables, err := s.tablesFor(layout)
	if err != nil {
		return 0, err
	}

	// A partitioned delete only needs the key's home partition.
	if layout == types.LayoutPartitioned {
		tables = []string{s.bounds.ForYear(date.Year()).Table}
	}

	var total int64
	for _, table := range tables {
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE ticker = ? AND date = ?", table),
			ticker, types.TruncateToDay(date))
		if err != nil {
			return total, fmt.Errorf("delete from %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}

	return total, nil
}

// CheckDuplicates reports the first (ticker, date) collision in a layout
// as ErrDuplicateKey. The store itself accepts duplicates on insert; this
// is for callers that want enforcement after a load.
func (s *Store) CheckDuplicates(ctx context.Context, layout types.Layout) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	tables, err := s.tablesFor(layout)
	if err != nil {
		return err
	}

	for _, table := range tables {
		row := s.db.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT ticker, CAST(date AS VARCHAR), COUNT(*)
			   FROM %s GROUP BY ticker, date HAVING COUNT(*) > 1 LIMIT 1`, table))

		var ticker, date string
		var n int64
		switch err := row.Scan(&ticker, &date, &n); err {
		case nil:
			return errors.NewDuplicateKey(table, ticker+"@"+date)
		case sql.ErrNoRows:
			continue
		default:
			return fmt.Errorf("check %s: %w", table, err)
		}
	}

	return nil
}

// RowCount returns the total number of rows stored under a layout.
func (s *Store) RowCount(ctx context.Context, layout types.Layout) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	tables, err := s.tablesFor(layout)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, table := range tables {
		var n int64
		row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
		if err := row.Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		total += n
	}

	return total, nil
}
