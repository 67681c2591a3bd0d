package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/tickvault/config"
)

// Config represents the complete tickvault configuration.
type Config struct {
	// DataDir is the root directory for all storage files.
	DataDir string `yaml:"data_dir"`

	// Database configures the embedded DuckDB engine.
	Database DatabaseConfig `yaml:"database"`

	// Partitions configures the year boundaries of the partitioned layout.
	Partitions PartitionConfig `yaml:"partitions"`

	// Query configures the query executor.
	Query QueryConfig `yaml:"query"`

	// Analytics configures the analytics engine and its results store.
	Analytics AnalyticsConfig `yaml:"analytics"`

	// Bench configures the benchmark harness.
	Bench BenchConfig `yaml:"bench"`
}

// DatabaseConfig configures the embedded DuckDB engine.
type DatabaseConfig struct {
	// Path is the database file. Empty means in-memory.
	Path string `yaml:"path"`

	// MemoryLimit is the DuckDB memory limit (e.g. "2GB").
	MemoryLimit string `yaml:"memory_limit"`

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// QueryTimeout is the per-scan deadline.
	QueryTimeout Duration `yaml:"query_timeout"`
}

// PartitionConfig configures the year boundaries of the partitioned layout.
//
// One partition is created per calendar year from StartYear through EndYear,
// plus a single catch-all for dates beyond EndYear. Boundaries are derived
// from these two integers at store initialization and are never enumerated
// by hand.
type PartitionConfig struct {
	// StartYear is the first partitioned calendar year.
	StartYear int `yaml:"start_year"`

	// EndYear is the last partitioned calendar year.
	EndYear int `yaml:"end_year"`
}

// QueryConfig configures the query executor.
type QueryConfig struct {
	// ScanWorkers bounds concurrent partition scans within one plan.
	// 1 means strictly sequential execution.
	ScanWorkers int `yaml:"scan_workers"`

	// RetryInitialInterval is the backoff before the single retry of a
	// timed-out unit scan.
	RetryInitialInterval Duration `yaml:"retry_initial_interval"`

	// MaxRows is the maximum number of rows returned by one query.
	MaxRows int `yaml:"max_rows"`
}

// AnalyticsConfig configures the analytics engine.
type AnalyticsConfig struct {
	// ResultsPath is the SQLite file that persists derived moving
	// averages. Empty defaults to {DataDir}/analytics.db.
	ResultsPath string `yaml:"results_path"`

	// Windows are the moving-average window sizes computed by default.
	Windows []int `yaml:"windows"`
}

// BenchConfig configures the benchmark harness.
type BenchConfig struct {
	// Trials is the number of measured runs per layout.
	Trials int `yaml:"trials"`

	// Warmup is the number of unmeasured runs before the trials.
	Warmup int `yaml:"warmup"`

	// SketchAccuracy is the DDSketch relative accuracy for latency
	// percentiles (0.01 = 1% error).
	SketchAccuracy float64 `yaml:"sketch_accuracy"`
}

// Load loads configuration from a YAML file. The file is decoded over
// DefaultConfig, so only keys present in the file override; omitted
// keys keep their defaults. That includes sequence keys: replacing the
// default analytics windows requires listing the full replacement set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: config.DefaultDataDir,
		Database: DatabaseConfig{
			Path:         "", // in-memory
			MemoryLimit:  config.DefaultMemoryLimit,
			MaxOpenConns: config.DefaultMaxOpenConns,
			MaxIdleConns: config.DefaultMaxIdleConns,
			QueryTimeout: Duration(config.DefaultQueryTimeout),
		},
		Partitions: PartitionConfig{
			StartYear: config.DefaultStartYear,
			EndYear:   config.DefaultEndYear,
		},
		Query: QueryConfig{
			ScanWorkers:          config.DefaultScanWorkers,
			RetryInitialInterval: Duration(config.DefaultRetryInterval),
			MaxRows:              config.DefaultMaxRows,
		},
		Analytics: AnalyticsConfig{
			Windows: append([]int(nil), config.DefaultWindows...),
		},
		Bench: BenchConfig{
			Trials:         config.DefaultBenchTrials,
			Warmup:         config.DefaultBenchWarmup,
			SketchAccuracy: config.DefaultSketchAccuracy,
		},
	}
}

// Duration is a time.Duration that can be unmarshaled from YAML as
// either a duration string ("30s", "5m") or an integer number of
// seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var i int
		if err := unmarshal(&i); err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
