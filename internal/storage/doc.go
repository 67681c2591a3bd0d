// Package storage wires the tickvault components into one service.
//
// Architecture:
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│   Loader    │────▶│   Record    │◀────│  Partition  │
//	│  (ingest)   │     │    Store    │     │   Planner   │
//	└─────────────┘     └─────────────┘     └─────────────┘
//	                           ▲
//	                           │
//	                    ┌─────────────┐
//	                    │    Query    │
//	                    │   Executor  │
//	                    └─────────────┘
//
// One logical dataset of daily OHLCV bars is held under three
// interchangeable physical layouts (plain, indexed, partitioned by
// year). The planner maps a (ticker, date range) query onto the minimal
// set of physical units per layout; the executor scans them, resolves
// duplicates, and returns the date-ordered sequence the analytics
// engine and benchmark harness consume.
package storage
