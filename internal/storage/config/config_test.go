package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	if cfg.Partitions.StartYear > cfg.Partitions.EndYear {
		t.Errorf("default partition years inverted: %d..%d",
			cfg.Partitions.StartYear, cfg.Partitions.EndYear)
	}

	if cfg.Query.ScanWorkers != 1 {
		t.Errorf("default scan_workers = %d, want 1 (sequential reference mode)",
			cfg.Query.ScanWorkers)
	}

	if len(cfg.Analytics.Windows) == 0 {
		t.Error("default config has no analytics windows")
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	content := `
data_dir: /tmp/tickvault-test
database:
  path: /tmp/tickvault-test/bars.db
  memory_limit: 1GB
  query_timeout: 10s
partitions:
  start_year: 2010
  end_year: 2020
query:
  scan_workers: 4
bench:
  trials: 3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Partitions.StartYear != 2010 || cfg.Partitions.EndYear != 2020 {
		t.Errorf("partition years = %d..%d, want 2010..2020",
			cfg.Partitions.StartYear, cfg.Partitions.EndYear)
	}
	if cfg.Query.ScanWorkers != 4 {
		t.Errorf("scan_workers = %d, want 4", cfg.Query.ScanWorkers)
	}
	if cfg.Database.QueryTimeout.Duration() != 10*time.Second {
		t.Errorf("query_timeout = %v, want 10s", cfg.Database.QueryTimeout.Duration())
	}

	// Defaults survive partial overrides.
	if cfg.Bench.Trials != 3 {
		t.Errorf("bench trials = %d, want 3", cfg.Bench.Trials)
	}
	if cfg.Bench.SketchAccuracy == 0 {
		t.Error("sketch_accuracy default was lost")
	}
}

func TestLoadWindowsMerge(t *testing.T) {
	dir := t.TempDir()

	// Omitting the analytics section keeps the default windows.
	omitted := filepath.Join(dir, "omitted.yaml")
	if err := os.WriteFile(omitted, []byte("data_dir: /tmp/tickvault-test\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(omitted)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Analytics.Windows) != len(DefaultConfig().Analytics.Windows) {
		t.Errorf("windows = %v, want defaults %v",
			cfg.Analytics.Windows, DefaultConfig().Analytics.Windows)
	}

	// Listing windows replaces the default set wholesale.
	listed := filepath.Join(dir, "listed.yaml")
	content := `
analytics:
  windows: [5, 10]
`
	if err := os.WriteFile(listed, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = Load(listed)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Analytics.Windows) != 2 || cfg.Analytics.Windows[0] != 5 || cfg.Analytics.Windows[1] != 10 {
		t.Errorf("windows = %v, want [5 10]", cfg.Analytics.Windows)
	}
}

func TestDurationSecondsForm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	// Durations also accept a bare integer number of seconds.
	content := `
database:
  query_timeout: 45
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.QueryTimeout.Duration() != 45*time.Second {
		t.Errorf("query_timeout = %v, want 45s", cfg.Database.QueryTimeout.Duration())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateInvertedYears(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Partitions.StartYear = 2020
	cfg.Partitions.EndYear = 2010

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for inverted year range")
	}
	if !strings.Contains(err.Error(), "end_year") {
		t.Errorf("error does not mention end_year: %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = ""
	cfg.Query.ScanWorkers = 0
	cfg.Bench.Trials = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}

	msg := err.Error()
	for _, want := range []string{"data_dir", "scan_workers", "trials"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q: %v", want, msg)
		}
	}
}

func TestResultsPathDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"

	if got := cfg.ResultsPath(); got != filepath.Join("/data", "analytics.db") {
		t.Errorf("ResultsPath = %q", got)
	}

	cfg.Analytics.ResultsPath = "/elsewhere/r.db"
	if got := cfg.ResultsPath(); got != "/elsewhere/r.db" {
		t.Errorf("ResultsPath override = %q", got)
	}
}
