// Package parquet provides Parquet import and export of bar histories.
//
// Parquet is the interchange format of the dataset loader: histories
// arrive as Parquet files and query results can be exported back out.
// Prices travel as exact decimal strings so a round trip never loses
// precision to a float conversion.
package parquet
