// Package types defines the core data types used throughout the storage system.
//
// Key types:
//   - Bar: A single daily OHLCV record for a ticker
//   - Layout: Physical organization of the bars data (plain, indexed, partitioned)
//   - DateRange: Inclusive range of trading days
//   - AggregateRecord: One point of a derived moving-average series
package types
