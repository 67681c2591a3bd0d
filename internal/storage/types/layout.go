package types

import (
	"fmt"
	"strings"

	"github.com/xtxerr/tickvault/internal/errors"
)

// Layout identifies one of the physical organizations of the bars data.
// All layouts hold logically identical data; they differ only in how the
// engine reaches rows for a (ticker, date range) query.
type Layout int

const (
	// LayoutPlain is a single heap table with no secondary access path.
	// Every query is answered by a full table scan.
	LayoutPlain Layout = iota

	// LayoutIndexed is a single table with a composite (ticker, date)
	// index. Queries seek into the index instead of scanning.
	LayoutIndexed

	// LayoutPartitioned splits the data into one table per calendar
	// year plus a catch-all for years beyond the configured boundary.
	// Queries scan only the partitions overlapping the requested range.
	LayoutPartitioned
)

// String returns the string representation of the layout.
func (l Layout) String() string {
	switch l {
	case LayoutPlain:
		return "plain"
	case LayoutIndexed:
		return "indexed"
	case LayoutPartitioned:
		return "partitioned"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// Description returns a human-readable summary for reports and CLI help.
func (l Layout) Description() string {
	switch l {
	case LayoutPlain:
		return "single table, full scan"
	case LayoutIndexed:
		return "single table, composite (ticker, date) index"
	case LayoutPartitioned:
		return "one table per year plus catch-all"
	default:
		return "unknown"
	}
}

// Indexed reports whether the layout carries a secondary index.
func (l Layout) Indexed() bool {
	return l == LayoutIndexed
}

// Partitioned reports whether the layout splits rows across tables.
func (l Layout) Partitioned() bool {
	return l == LayoutPartitioned
}

// Valid reports whether the layout is one of the known values.
func (l Layout) Valid() bool {
	return l >= LayoutPlain && l <= LayoutPartitioned
}

// ParseLayout parses a string into a Layout.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain":
		return LayoutPlain, nil
	case "indexed":
		return LayoutIndexed, nil
	case "partitioned":
		return LayoutPartitioned, nil
	default:
		return LayoutPlain, errors.Wrapf(errors.ErrUnknownLayout, "%q", s)
	}
}

// ParseLayouts parses a comma-separated list of layout names.
func ParseLayouts(s string) ([]Layout, error) {
	parts := strings.Split(s, ",")
	layouts := make([]Layout, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		l, err := ParseLayout(p)
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, l)
	}
	return layouts, nil
}

// AllLayouts returns all layouts in declaration order.
func AllLayouts() []Layout {
	return []Layout{LayoutPlain, LayoutIndexed, LayoutPartitioned}
}
