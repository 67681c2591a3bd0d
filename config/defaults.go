// Package config provides configuration defaults and utilities
// for the tickvault application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or command-line flags.
package config

import "time"

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultDataDir is the default root directory for storage files.
	// Override via config: data_dir
	DefaultDataDir = "/var/lib/tickvault"

	// DefaultMemoryLimit is the DuckDB memory limit.
	// Override via config: database.memory_limit
	DefaultMemoryLimit = "2GB"

	// DefaultMaxOpenConns is the maximum number of open database connections.
	// Override via config: database.max_open_conns
	DefaultMaxOpenConns = 8

	// DefaultMaxIdleConns is the maximum number of idle database connections.
	// Override via config: database.max_idle_conns
	DefaultMaxIdleConns = 2

	// DefaultQueryTimeout is the per-scan deadline. A unit scan that
	// exceeds it is reported as a storage timeout.
	// Override via config: database.query_timeout
	DefaultQueryTimeout = 30 * time.Second
)

// =============================================================================
// Partition Defaults
// =============================================================================

const (
	// DefaultStartYear is the first partitioned calendar year.
	// Dates before it land in the first partition.
	// Override via config: partitions.start_year
	DefaultStartYear = 2002

	// DefaultEndYear is the last partitioned calendar year.
	// Dates beyond it land in the catch-all partition.
	// Override via config: partitions.end_year
	DefaultEndYear = 2022
)

// =============================================================================
// Query Defaults
// =============================================================================

const (
	// DefaultScanWorkers bounds concurrent partition scans within one plan.
	// 1 means strictly sequential execution, which is the reference mode.
	// Override via config: query.scan_workers
	DefaultScanWorkers = 1

	// DefaultRetryInterval is the backoff before the single retry of a
	// timed-out unit scan.
	// Override via config: query.retry_initial_interval
	DefaultRetryInterval = 250 * time.Millisecond

	// DefaultMaxRows is the maximum number of rows returned by one query.
	// Override via config: query.max_rows
	DefaultMaxRows = 10_000_000
)

// =============================================================================
// Analytics Defaults
// =============================================================================

// DefaultWindows are the moving-average window sizes computed when the
// caller does not specify any. 20/50/200 trading days are the windows
// most charting conventions expect.
var DefaultWindows = []int{20, 50, 200}

// =============================================================================
// Benchmark Defaults
// =============================================================================

const (
	// DefaultBenchTrials is the number of measured runs per layout.
	// Override via config: bench.trials
	DefaultBenchTrials = 5

	// DefaultBenchWarmup is the number of unmeasured runs before the
	// trials, letting the engine populate its caches.
	// Override via config: bench.warmup
	DefaultBenchWarmup = 1

	// DefaultSketchAccuracy is the DDSketch relative accuracy used for
	// latency percentiles (0.01 = 1% error).
	// Override via config: bench.sketch_accuracy
	DefaultSketchAccuracy = 0.01
)
