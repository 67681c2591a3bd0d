package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xtxerr/tickvault/internal/errors"
	"github.com/xtxerr/tickvault/internal/loader"
	"github.com/xtxerr/tickvault/internal/logging"
	"github.com/xtxerr/tickvault/internal/storage/config"
	"github.com/xtxerr/tickvault/internal/storage/parquet"
	"github.com/xtxerr/tickvault/internal/storage/plan"
	"github.com/xtxerr/tickvault/internal/storage/query"
	"github.com/xtxerr/tickvault/internal/storage/types"
	"github.com/xtxerr/tickvault/internal/store"
)

// Service is the entry point the CLI and the benchmark harness consume.
// It owns the store connection and guarantees release on Close.
type Service struct {
	config   *config.Config
	store    *store.Store
	planner  *plan.Planner
	executor *query.Executor
	loader   *loader.Service
	validate *validator.Validate

	closed atomic.Bool
}

// QueryRequest is the external query interface:
// (ticker, start, end, layout) → ordered bars.
type QueryRequest struct {
	Ticker string    `validate:"required,max=10"`
	Start  time.Time `validate:"required"`
	End    time.Time `validate:"required"`
	Layout types.Layout
}

// QueryResult is the executor result: ordered bars plus timing.
type QueryResult = query.Result

// New builds a service from configuration: boundaries are derived from
// the configured years, the store is opened against them, and the
// planner and executor are wired on top.
func New(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	bounds, err := plan.NewBoundaries(cfg.Partitions.StartYear, cfg.Partitions.EndYear)
	if err != nil {
		return nil, fmt.Errorf("derive boundaries: %w", err)
	}

	st, err := store.New(store.Config{
		DSN:          cfg.Database.Path,
		MemoryLimit:  cfg.Database.MemoryLimit,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		QueryTimeout: cfg.Database.QueryTimeout.Duration(),
	}, bounds)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	exec := query.New(st, query.Options{
		ScanWorkers:   cfg.Query.ScanWorkers,
		RetryInterval: cfg.Query.RetryInitialInterval.Duration(),
		MaxRows:       cfg.Query.MaxRows,
	})

	return &Service{
		config:   cfg,
		store:    st,
		planner:  plan.NewPlanner(bounds),
		executor: exec,
		loader:   loader.New(st),
		validate: validator.New(),
	}, nil
}

// Close releases the store connection. Safe to call more than once.
func (s *Service) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.store.Close()
}

// Query plans and executes one logical query against the chosen layout,
// returning bars ordered by date ascending plus elapsed time.
func (s *Service) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if s.closed.Load() {
		return nil, errors.ErrClosed
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(err, "invalid query request")
	}

	r, err := types.NewDateRange(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	p, err := s.planner.Plan(req.Layout, req.Ticker, r)
	if err != nil {
		return nil, err
	}

	return s.executor.Run(ctx, p)
}

// Load ingests a bar history through the loader seam.
func (s *Service) Load(ctx context.Context, req loader.Request) (*loader.Result, error) {
	if s.closed.Load() {
		return nil, errors.ErrClosed
	}
	return s.loader.Load(ctx, req)
}

// ExportParquet queries one layout and writes the ordered result to a
// Parquet file. It returns the number of rows exported.
func (s *Service) ExportParquet(ctx context.Context, req QueryRequest, path string) (int, error) {
	res, err := s.Query(ctx, req)
	if err != nil {
		return 0, err
	}

	if err := parquet.WriteBars(path, res.Bars, parquet.DefaultOptions()); err != nil {
		return 0, fmt.Errorf("export %s: %w", path, err)
	}

	logging.Component("storage").Info("result exported",
		"path", path, "rows", res.RowCount)
	return res.RowCount, nil
}

// RowCount returns the number of rows stored under a layout.
func (s *Service) RowCount(ctx context.Context, layout types.Layout) (int64, error) {
	if s.closed.Load() {
		return 0, errors.ErrClosed
	}
	return s.store.RowCount(ctx, layout)
}

// CheckDuplicates reports (ticker, date) collisions in a layout.
func (s *Service) CheckDuplicates(ctx context.Context, layout types.Layout) error {
	if s.closed.Load() {
		return errors.ErrClosed
	}
	return s.store.CheckDuplicates(ctx, layout)
}

// Partitions returns the physical partitions of the partitioned layout.
func (s *Service) Partitions() []plan.Partition {
	return s.store.Partitions()
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// Stats returns combined service statistics.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		Query:      s.executor.Stats(),
		Partitions: len(s.store.Partitions()),
	}
}

// ServiceStats holds combined statistics.
type ServiceStats struct {
	Query      query.Stats
	Partitions int
}
