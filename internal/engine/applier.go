package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/hearthkeep/hearth/pkg/types"
)

// Applier merges pulled remote changes into the local store. Conflicts
// are resolved record-by-record: the side with the newer modification
// time wins, and the remote wins exact ties since the hub already
// accepted that write.
type Applier struct {
	store  types.Store
	logger *log.Logger
}

// NewApplier wires an applier over a store. A nil logger falls back to
// the package default.
func NewApplier(store types.Store, logger *log.Logger) *Applier {
	if logger == nil {
		logger = defaultLogger()
	}
	return &Applier{store: store, logger: logger}
}

// Apply merges the batch and reports how many changes were written and
// how many lost a conflict to newer local state. Per-record failures are
// logged and counted as not-applied; they never abort the rest of the
// batch. Unknown tables are skipped.
func (a *Applier) Apply(ctx context.Context, changes []types.ChangeRecord) (applied, conflicts int) {
	for _, change := range changes {
		ok, conflict := a.applyOne(ctx, change)
		if ok {
			applied++
		}
		if conflict {
			conflicts++
		}
	}
	return applied, conflicts
}

func (a *Applier) applyOne(ctx context.Context, change types.ChangeRecord) (applied, conflict bool) {
	tbl, err := a.store.Table(change.Table)
	if err != nil {
		if errors.Is(err, types.ErrTableUnknown) {
			a.logger.Printf("WARNING: skipping change for untracked table %q (id %s)", change.Table, change.ID)
			return false, false
		}
		a.logger.Printf("WARNING: apply %s/%s: %v", change.Table, change.ID, err)
		return false, false
	}

	if change.IsTombstone() {
		return a.applyTombstone(ctx, tbl, change)
	}
	return a.applyUpsert(ctx, tbl, change)
}

// applyTombstone deletes the record unconditionally. The local deletion
// log keeps the remote's deletion time and household so a later, older
// upsert cannot resurrect the record.
func (a *Applier) applyTombstone(ctx context.Context, tbl types.Table, change types.ChangeRecord) (applied, conflict bool) {
	deletedAt := *change.DeletedAt
	if err := tbl.Delete(ctx, change.ID, deletedAt); err != nil {
		a.logger.Printf("WARNING: delete %s/%s: %v", change.Table, change.ID, err)
		return false, false
	}
	err := a.store.DeletionLog().Record(ctx, types.DeletionEntry{
		Table:       change.Table,
		RecordID:    change.ID,
		HouseholdID: change.Data.HouseholdID(),
		DeletedAt:   deletedAt,
	})
	if err != nil {
		a.logger.Printf("WARNING: record remote tombstone %s/%s: %v", change.Table, change.ID, err)
	}
	return true, false
}

func (a *Applier) applyUpsert(ctx context.Context, tbl types.Table, change types.ChangeRecord) (applied, conflict bool) {
	// A known deletion at or after the incoming write means the record
	// is gone; applying the upsert would resurrect it.
	entry, err := a.store.DeletionLog().LatestFor(ctx, change.Table, change.ID)
	if err != nil {
		a.logger.Printf("WARNING: deletion lookup %s/%s: %v", change.Table, change.ID, err)
		return false, false
	}
	if entry != nil && !entry.DeletedAt.Before(change.UpdatedAt) {
		a.logger.Printf("skipping %s/%s: deleted locally at %s", change.Table, change.ID,
			entry.DeletedAt.Format(time.RFC3339))
		return false, true
	}

	local, err := tbl.Get(ctx, change.ID)
	switch {
	case errors.Is(err, types.ErrNotFound):
		// No local row to conflict with.
	case err != nil:
		a.logger.Printf("WARNING: read %s/%s: %v", change.Table, change.ID, err)
		return false, false
	case local.ModifiedAt().After(change.UpdatedAt):
		a.logger.Printf("keeping local %s/%s: modified %s, remote %s", change.Table, change.ID,
			local.ModifiedAt().Format(time.RFC3339), change.UpdatedAt.Format(time.RFC3339))
		return false, true
	}

	if err := tbl.Upsert(ctx, change.Data); err != nil {
		a.logger.Printf("WARNING: upsert %s/%s: %v", change.Table, change.ID, err)
		return false, false
	}
	return true, false
}
