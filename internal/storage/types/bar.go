package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xtxerr/tickvault/internal/errors"
)

// MaxTickerLen is the maximum length of a ticker symbol, matching the
// VARCHAR(10) column in every bars table.
const MaxTickerLen = 10

// DateLayout is the canonical textual form of a trading day.
const DateLayout = "2006-01-02"

// Bar represents one daily OHLCV record for a ticker.
// This is the primary data unit flowing through the storage system.
type Bar struct {
	// Identity
	Ticker string    // Symbol, at most MaxTickerLen characters (e.g., "NFLX")
	Date   time.Time // Trading day, normalized to midnight UTC

	// Prices, fixed to two decimal places
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	AdjClose decimal.Decimal // Close adjusted for splits and dividends

	Volume int64 // Shares traded
}

// Key returns the unique identifier for this bar: ticker plus trading day.
func (b *Bar) Key() string {
	return b.Ticker + "@" + FormatDate(b.Date)
}

// Year returns the calendar year of the trading day.
func (b *Bar) Year() int {
	return b.Date.Year()
}

// FormatDate renders a trading day in canonical form.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a trading day in canonical form.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Day constructs a trading day at midnight UTC.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateToDay truncates a timestamp to midnight UTC of its calendar day.
func TruncateToDay(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive range of trading days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange constructs a range from two days, normalizing both to
// midnight UTC. The range is inclusive on both ends.
func NewDateRange(start, end time.Time) (DateRange, error) {
	start = TruncateToDay(start)
	end = TruncateToDay(end)
	if end.Before(start) {
		return DateRange{}, errors.Wrapf(errors.ErrInvalidRange,
			"end %s before start %s", FormatDate(end), FormatDate(start))
	}
	return DateRange{Start: start, End: end}, nil
}

// Contains reports whether the given day falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	t = TruncateToDay(t)
	return !t.Before(r.Start) && !t.After(r.End)
}

// Years returns the first and last calendar year touched by the range.
func (r DateRange) Years() (int, int) {
	return r.Start.Year(), r.End.Year()
}

// Days returns the number of calendar days in the range, inclusive.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

// String renders the range in canonical form.
func (r DateRange) String() string {
	return FormatDate(r.Start) + ".." + FormatDate(r.End)
}
