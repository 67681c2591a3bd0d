package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AggregateRecord represents one point of a derived series: the moving
// average of the close price over a trailing window of trading days.
// This is the output of the analytics engine.
type AggregateRecord struct {
	// Identity
	Ticker string
	Date   time.Time // Trading day of the newest bar in the window

	// Window
	WindowSize int // Number of trading days averaged

	// Value, exact to the precision of the inputs
	MovingAverage decimal.Decimal
}

// Key returns a unique identifier for this aggregate point.
func (a *AggregateRecord) Key() string {
	return fmt.Sprintf("%s@%s/w%d", a.Ticker, FormatDate(a.Date), a.WindowSize)
}

// Forecast represents a least-squares projection of the close price one
// trading day past the last observed bar.
type Forecast struct {
	Ticker string
	AsOf   time.Time // Trading day of the last observed bar

	Next      float64 // Predicted close for the next trading day
	Slope     float64 // Regression slope per trading day
	Intercept float64 // Regression intercept at ordinal zero

	Observations int // Number of bars the fit was computed from
}

// Key returns a unique identifier for this forecast.
func (f *Forecast) Key() string {
	return fmt.Sprintf("%s@%s/n%d", f.Ticker, FormatDate(f.AsOf), f.Observations)
}
