package analytics

import (
	"github.com/xtxerr/tickvault/internal/errors"
	"github.com/xtxerr/tickvault/internal/storage/types"
)

// ForecastNext fits a least-squares line of Close against the trading-day
// ordinal 0..n-1 over the full ordered history and predicts the value at
// ordinal n, the next trading day.
//
// It fails with ErrInsufficientData for fewer than 2 bars: a line cannot
// be fit through one point. A degenerate zero-variance time index also
// fails instead of dividing by zero; it cannot occur while dates are
// strictly increasing, since ordinals are assigned by position.
func ForecastNext(bars []types.Bar) (*types.Forecast, error) {
	n := len(bars)
	if n < 2 {
		return nil, errors.NewInsufficientData(2, n)
	}

	// Ordinary least squares over (i, close_i).
	var sumX, sumY, sumXY, sumXX float64
	for i := range bars {
		x := float64(i)
		y := bars[i].Close.InexactFloat64()
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return nil, errors.Wrap(errors.ErrInsufficientData, "zero variance in time index")
	}

	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	return &types.Forecast{
		Ticker:       bars[n-1].Ticker,
		AsOf:         bars[n-1].Date,
		Next:         slope*fn + intercept,
		Slope:        slope,
		Intercept:    intercept,
		Observations: n,
	}, nil
}
