package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xtxerr/tickvault/internal/errors"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	v := errors.NewValidationErrors()

	if c.DataDir == "" {
		v.AddMissing("data_dir")
	}

	v.Add(errors.Wrap(c.Database.Validate(), "database"))
	v.Add(errors.Wrap(c.Partitions.Validate(), "partitions"))
	v.Add(errors.Wrap(c.Query.Validate(), "query"))
	v.Add(errors.Wrap(c.Analytics.Validate(), "analytics"))
	v.Add(errors.Wrap(c.Bench.Validate(), "bench"))

	return v.Err()
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	v := errors.NewValidationErrors()

	if c.MaxOpenConns <= 0 {
		v.AddField("max_open_conns", "must be positive")
	}

	if c.MaxIdleConns < 0 {
		v.AddField("max_idle_conns", "must be non-negative")
	}

	if c.MaxIdleConns > c.MaxOpenConns {
		v.AddField("max_idle_conns", "must be <= max_open_conns")
	}

	if c.QueryTimeout <= 0 {
		v.AddField("query_timeout", "must be positive")
	}

	return v.Err()
}

// Validate checks the partition configuration.
func (c *PartitionConfig) Validate() error {
	v := errors.NewValidationErrors()

	if c.StartYear <= 0 {
		v.AddField("start_year", "must be positive")
	}

	if c.EndYear <= 0 {
		v.AddField("end_year", "must be positive")
	}

	if c.EndYear < c.StartYear {
		v.AddField("end_year", fmt.Sprintf("%d must be >= start_year %d", c.EndYear, c.StartYear))
	}

	return v.Err()
}

// Validate checks the query configuration.
func (c *QueryConfig) Validate() error {
	v := errors.NewValidationErrors()

	if c.ScanWorkers <= 0 {
		v.AddField("scan_workers", "must be positive")
	}

	if c.RetryInitialInterval <= 0 {
		v.AddField("retry_initial_interval", "must be positive")
	}

	if c.MaxRows <= 0 {
		v.AddField("max_rows", "must be positive")
	}

	return v.Err()
}

// Validate checks the analytics configuration.
func (c *AnalyticsConfig) Validate() error {
	v := errors.NewValidationErrors()

	for _, w := range c.Windows {
		if w < 2 {
			v.AddField("windows", fmt.Sprintf("window size %d must be >= 2", w))
		}
	}

	return v.Err()
}

// Validate checks the benchmark configuration.
func (c *BenchConfig) Validate() error {
	v := errors.NewValidationErrors()

	if c.Trials <= 0 {
		v.AddField("trials", "must be positive")
	}

	if c.Warmup < 0 {
		v.AddField("warmup", "must be non-negative")
	}

	if c.SketchAccuracy <= 0 || c.SketchAccuracy > 1 {
		v.AddField("sketch_accuracy", "must be between 0 and 1")
	}

	return v.Err()
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Join(c.DataDir, "export"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the DuckDB database path, or "" for in-memory.
func (c *Config) DatabasePath() string {
	return c.Database.Path
}

// ResultsPath returns the SQLite path for derived analytics results.
func (c *Config) ResultsPath() string {
	if c.Analytics.ResultsPath != "" {
		return c.Analytics.ResultsPath
	}
	return filepath.Join(c.DataDir, "analytics.db")
}

// ExportDir returns the directory for Parquet exports.
func (c *Config) ExportDir() string {
	return filepath.Join(c.DataDir, "export")
}
