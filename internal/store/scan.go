package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xtxerr/tickvault/internal/errors"
	"github.com/xtxerr/tickvault/internal/storage/plan"
	"github.com/xtxerr/tickvault/internal/storage/types"
)

// scanSQL reads prices back as exact decimal strings. No ORDER BY: a
// unit scan is unordered by contract, the executor sorts the merge.
const scanSQL = `SELECT ticker, date,
		CAST(open AS VARCHAR), CAST(high AS VARCHAR), CAST(low AS VARCHAR),
		CAST("close" AS VARCHAR), CAST(adj_close AS VARCHAR),
		volume, seq
	FROM %s
	WHERE ticker = ? AND date >= ? AND date <= ?`

// ScanUnit scans one physical unit for a (ticker, date range) query and
// returns unordered rows. A scan that exceeds the configured query
// timeout surfaces as ErrStorageTimeout, never as a truncated result.
func (s *Store) ScanUnit(ctx context.Context, unit plan.Unit, ticker string, r types.DateRange) ([]StoredBar, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if s.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.QueryTimeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(scanSQL, unit.Table),
		ticker, r.Start, r.End)
	if err != nil {
		return nil, s.mapScanErr(unit.Table, err)
	}
	defer rows.Close()

	bars, err := scanStoredBars(rows)
	if err != nil {
		return nil, s.mapScanErr(unit.Table, err)
	}

	return bars, nil
}

// mapScanErr converts a deadline expiry into the storage timeout sentinel
// and leaves every other error untouched.
func (s *Store) mapScanErr(table string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewStorageTimeout(table, s.config.QueryTimeout)
	}
	return fmt.Errorf("scan %s: %w", table, err)
}

// scanStoredBars scans rows into StoredBar values, parsing prices from
// their exact string form.
func scanStoredBars(rows *sql.Rows) ([]StoredBar, error) {
	var out []StoredBar

	for rows.Next() {
		var b StoredBar
		var date time.Time
		var open, high, low, closing, adjCls sql.NullString

		if err := rows.Scan(
			&b.Ticker, &date,
			&open, &high, &low, &closing, &adjCls,
			&b.Volume, &b.Seq,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		b.Date = types.TruncateToDay(date)

		var err error
		if b.Open, err = parsePrice(open); err != nil {
			return nil, err
		}
		if b.High, err = parsePrice(high); err != nil {
			return nil, err
		}
		if b.Low, err = parsePrice(low); err != nil {
			return nil, err
		}
		if b.Close, err = parsePrice(closing); err != nil {
			return nil, err
		}
		if b.AdjClose, err = parsePrice(adjCls); err != nil {
			return nil, err
		}

		out = append(out, b)
	}

	return out, rows.Err()
}

func parsePrice(v sql.NullString) (decimal.Decimal, error) {
	if !v.Valid {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", v.String, err)
	}
	return d, nil
}
