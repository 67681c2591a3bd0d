// Package analytics computes derived series over ordered bar histories:
// trailing moving averages and a least-squares forecast of the next
// trading day. Both computations are pure functions of their input
// sequence; windows cover available trading records, not calendar days.
package analytics

import (
	"iter"

	"github.com/shopspring/decimal"

	"github.com/xtxerr/tickvault/internal/errors"
	"github.com/xtxerr/tickvault/internal/storage/types"
)

// averageScale is the decimal precision of a moving-average value.
const averageScale = 6

// MovingAverage returns a lazy sequence of aggregate records over the
// given bars, one per input bar from index window-1 onward. Each value is
// the arithmetic mean of Close over the trailing window of available
// trading records, inclusive of the current one. The first window-1 bars
// produce no output because they lack a full window.
//
// Bars must be ordered by ascending date and belong to one ticker.
// It fails with ErrInsufficientData when fewer than window bars are
// supplied, so an empty series is never mistaken for a result.
func MovingAverage(bars []types.Bar, window int) (iter.Seq[types.AggregateRecord], error) {
	if window < 2 {
		return nil, errors.Wrapf(errors.ErrInvalidWindow, "window size %d", window)
	}
	if len(bars) < window {
		return nil, errors.NewInsufficientData(window, len(bars))
	}

	divisor := decimal.NewFromInt(int64(window))

	return func(yield func(types.AggregateRecord) bool) {
		sum := decimal.Zero
		for i := range bars {
			sum = sum.Add(bars[i].Close)
			if i >= window {
				sum = sum.Sub(bars[i-window].Close)
			}
			if i < window-1 {
				continue
			}

			rec := types.AggregateRecord{
				Ticker:        bars[i].Ticker,
				Date:          bars[i].Date,
				WindowSize:    window,
				MovingAverage: sum.DivRound(divisor, averageScale),
			}
			if !yield(rec) {
				return
			}
		}
	}, nil
}

// ComputeMovingAverage materializes MovingAverage into a slice.
// The result has exactly len(bars)-window+1 records.
func ComputeMovingAverage(bars []types.Bar, window int) ([]types.AggregateRecord, error) {
	seq, err := MovingAverage(bars, window)
	if err != nil {
		return nil, err
	}

	out := make([]types.AggregateRecord, 0, len(bars)-window+1)
	for rec := range seq {
		out = append(out, rec)
	}
	return out, nil
}
