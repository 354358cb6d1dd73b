package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hearthkeep/hearth/pkg/types"
)

// Collector scans the tracked tables and the deletion log for everything
// modified after a watermark, producing the outgoing change batch.
type Collector struct {
	store  types.Store
	logger *log.Logger
}

// NewCollector wires a collector over a store. A nil logger falls back to
// the package default.
func NewCollector(store types.Store, logger *log.Logger) *Collector {
	if logger == nil {
		logger = defaultLogger()
	}
	return &Collector{store: store, logger: logger}
}

// Collect returns one ChangeRecord per row whose effective modification
// time is strictly after since, plus one tombstone per deletion-log entry
// after since. The zero since means everything (full resync).
//
// A table that fails to scan is logged and skipped; its rows are simply
// missing from this batch and picked up on a later cycle. A deletion-log
// failure aborts collection, since silently dropping tombstones would
// desynchronize other devices.
func (c *Collector) Collect(ctx context.Context, since time.Time) ([]types.ChangeRecord, error) {
	var changes []types.ChangeRecord

	for _, kind := range types.TrackedTables {
		tbl, err := c.store.Table(kind)
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", kind, err)
		}
		rows, err := tbl.Scan(ctx)
		if err != nil {
			c.logger.Printf("WARNING: scan of %s failed, skipping table this cycle: %v", kind, err)
			continue
		}
		for _, rec := range rows {
			mod := rec.ModifiedAt()
			if !since.IsZero() && !mod.After(since) {
				continue
			}
			changes = append(changes, types.ChangeRecord{
				Table:     kind,
				ID:        rec.ID(),
				Data:      rec,
				UpdatedAt: mod,
			})
		}
	}

	entries, err := c.store.DeletionLog().Entries(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("collect deletion log: %w", err)
	}
	for _, entry := range entries {
		changes = append(changes, entry.Tombstone())
	}
	return changes, nil
}
