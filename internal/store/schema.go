package store

import (
	"context"
	"fmt"

	"github.com/xtxerr/tickvault/internal/storage/plan"
)

// barColumns is the shared column list of every bars table. Prices are
// DECIMAL(10,2); seq is the store-assigned insert sequence that makes
// the duplicate policy deterministic.
const barColumns = `
	ticker    VARCHAR(10) NOT NULL,
	date      DATE        NOT NULL,
	open      DECIMAL(10,2),
	high      DECIMAL(10,2),
	low       DECIMAL(10,2),
	"close"   DECIMAL(10,2),
	adj_close DECIMAL(10,2),
	volume    BIGINT,
	seq       BIGINT      NOT NULL
`

// initSchema creates the per-layout tables and indexes. The plain table
// deliberately has no index; the indexed table and every partition carry
// the composite (ticker, date) ordering key. None of the indexes is
// unique: duplicates are accepted at ingest under all three layouts and
// resolved at read time.
func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", plan.PlainTable, barColumns),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", plan.IndexedTable, barColumns),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_key ON %s (ticker, date)",
			plan.IndexedTable, plan.IndexedTable),
	}

	for _, p := range s.bounds.All() {
		stmts = append(stmts,
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", p.Table, barColumns),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_key ON %s (ticker, date)",
				p.Table, p.Table),
		)
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}

	return nil
}
