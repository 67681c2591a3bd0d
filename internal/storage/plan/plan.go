// Package plan maps a logical query onto the physical units each layout
// must scan. It is pure computation: boundaries are derived from two
// configured integers and plans never touch the database.
package plan

import (
	"fmt"

	"github.com/xtxerr/tickvault/internal/errors"
	"github.com/xtxerr/tickvault/internal/storage/types"
)

// Table names for the single-table layouts.
const (
	PlainTable   = "bars_plain"
	IndexedTable = "bars_indexed"

	// partitionPrefix is the common prefix of per-year tables.
	partitionPrefix = "bars_p"

	// CatchAllTable holds every row beyond the configured end year.
	CatchAllTable = partitionPrefix + "max"
)

// Partition is one physical segment of the partitioned layout.
type Partition struct {
	// Table is the backing table name, e.g. "bars_p2015".
	Table string

	// Year is the calendar year this partition covers. The first
	// partition additionally absorbs any earlier years; the catch-all
	// absorbs any later ones.
	Year int

	// First marks the partition that also holds dates before the
	// configured start year.
	First bool

	// CatchAll marks the partition that holds dates beyond the
	// configured end year.
	CatchAll bool
}

// Boundaries is the ordered, contiguous, exhaustive list of partitions
// derived from a configured (start_year, end_year) pair: one partition
// per year plus a single catch-all above end_year.
type Boundaries struct {
	startYear int
	endYear   int
	parts     []Partition
}

// NewBoundaries derives the partition list from the configured years.
func NewBoundaries(startYear, endYear int) (*Boundaries, error) {
	if startYear <= 0 || endYear <= 0 {
		return nil, errors.Wrapf(errors.ErrNoPartition, "years %d..%d", startYear, endYear)
	}
	if endYear < startYear {
		return nil, errors.Wrapf(errors.ErrInvalidRange,
			"end year %d before start year %d", endYear, startYear)
	}

	parts := make([]Partition, 0, endYear-startYear+2)
	for year := startYear; year <= endYear; year++ {
		parts = append(parts, Partition{
			Table: fmt.Sprintf("%s%d", partitionPrefix, year),
			Year:  year,
			First: year == startYear,
		})
	}
	parts = append(parts, Partition{
		Table:    CatchAllTable,
		Year:     endYear + 1,
		CatchAll: true,
	})

	return &Boundaries{
		startYear: startYear,
		endYear:   endYear,
		parts:     parts,
	}, nil
}

// StartYear returns the first partitioned calendar year.
func (b *Boundaries) StartYear() int { return b.startYear }

// EndYear returns the last partitioned calendar year.
func (b *Boundaries) EndYear() int { return b.endYear }

// All returns every partition in ascending year order, catch-all last.
func (b *Boundaries) All() []Partition {
	out := make([]Partition, len(b.parts))
	copy(out, b.parts)
	return out
}

// ForYear returns the partition a row with the given calendar year is
// routed to. Years before the start year fall into the first partition;
// years beyond the end year fall into the catch-all. Routing is total:
// every year has exactly one home.
func (b *Boundaries) ForYear(year int) Partition {
	switch {
	case year <= b.startYear:
		return b.parts[0]
	case year > b.endYear:
		return b.parts[len(b.parts)-1]
	default:
		return b.parts[year-b.startYear]
	}
}

// Overlapping returns the minimal contiguous set of partitions whose year
// range intersects [minYear, maxYear]. It never omits a partition that
// could hold a matching row: the query range is clamped onto the
// configured range, so ranges below the start year still reach the first
// partition and ranges beyond the end year reach the catch-all.
func (b *Boundaries) Overlapping(minYear, maxYear int) []Partition {
	if maxYear < minYear {
		return nil
	}

	first := b.ForYear(minYear)
	last := b.ForYear(maxYear)

	lo := first.Year - b.startYear
	hi := last.Year - b.startYear
	return b.All()[lo : hi+1]
}

// UnitKind classifies how a physical unit is accessed.
type UnitKind int

const (
	// UnitFullScan reads the whole table with no access path.
	UnitFullScan UnitKind = iota

	// UnitIndexSeek seeks the composite (ticker, date) index.
	UnitIndexSeek

	// UnitPartition scans one year partition through its index.
	UnitPartition
)

// String returns the string representation of the unit kind.
func (k UnitKind) String() string {
	switch k {
	case UnitFullScan:
		return "full-scan"
	case UnitIndexSeek:
		return "index-seek"
	case UnitPartition:
		return "partition"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Unit is one physical unit the executor must scan.
type Unit struct {
	Kind  UnitKind
	Table string
}

// ScanPlan describes exactly which physical units answer one logical
// query under one layout.
type ScanPlan struct {
	Layout types.Layout
	Ticker string
	Range  types.DateRange
	Units  []Unit
}

// String renders a compact summary for logs.
func (p *ScanPlan) String() string {
	return fmt.Sprintf("%s %s %s (%d units)", p.Layout, p.Ticker, p.Range, len(p.Units))
}

// Planner builds scan plans against a fixed set of boundaries.
type Planner struct {
	bounds *Boundaries
}

// NewPlanner creates a planner for the given boundaries.
func NewPlanner(bounds *Boundaries) *Planner {
	return &Planner{bounds: bounds}
}

// Boundaries returns the partition boundaries the planner routes against.
func (p *Planner) Boundaries() *Boundaries {
	return p.bounds
}

// Plan maps (layout, ticker, dateRange) to the physical units to scan.
//
//   - Plain: one full scan of the heap table; no pruning is possible.
//   - Indexed: one index seek on the composite (ticker, date) key.
//   - Partitioned: the minimal contiguous set of partitions overlapping
//     the query's year range, at most one of them the catch-all.
func (p *Planner) Plan(layout types.Layout, ticker string, r types.DateRange) (*ScanPlan, error) {
	if !layout.Valid() {
		return nil, errors.Wrapf(errors.ErrUnknownLayout, "%d", layout)
	}

	plan := &ScanPlan{Layout: layout, Ticker: ticker, Range: r}

	switch layout {
	case types.LayoutPlain:
		plan.Units = []Unit{{Kind: UnitFullScan, Table: PlainTable}}

	case types.LayoutIndexed:
		plan.Units = []Unit{{Kind: UnitIndexSeek, Table: IndexedTable}}

	case types.LayoutPartitioned:
		if p.bounds == nil {
			return nil, errors.ErrNoPartition
		}
		minYear, maxYear := r.Years()
		parts := p.bounds.Overlapping(minYear, maxYear)
		plan.Units = make([]Unit, len(parts))
		for i, part := range parts {
			plan.Units[i] = Unit{Kind: UnitPartition, Table: part.Table}
		}
	}

	return plan, nil
}
