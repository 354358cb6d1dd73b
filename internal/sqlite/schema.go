// Package sqlite implements the on-device Record Store for Hearth on an
// embedded SQLite database. One physical table exists per tracked kind,
// plus the deletion log and the sync_meta key-value table the engine
// persists its watermark in.
package sqlite

import (
	"fmt"

	"github.com/hearthkeep/hearth/pkg/types"
)

// timeLayout is the stored timestamp format. Fixed-width (nanoseconds
// zero-padded, always UTC) so lexicographic comparison in SQL matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// schemaVersion is the schema generation the sync protocol requires.
// Version 1 predates sync and lacks deletion_log and sync_meta; the
// migration gate upgrades such databases before the first cycle.
const schemaVersion = 2

// Tracked tables share one shape: identity, household scope, the full
// JSON payload, and the timestamp columns used as modification markers.
const trackedTableDDL = `CREATE TABLE IF NOT EXISTS %q (
    id TEXT PRIMARY KEY,
    household_id TEXT NOT NULL DEFAULT '',
    payload TEXT NOT NULL,
    created_at TEXT,
    updated_at TEXT
);`

const trackedIndexDDL = `CREATE INDEX IF NOT EXISTS %q ON %q(household_id);`

const createDeletionLog = `CREATE TABLE IF NOT EXISTS deletion_log (
    table_name TEXT NOT NULL,
    record_id TEXT NOT NULL,
    household_id TEXT NOT NULL DEFAULT '',
    deleted_at TEXT NOT NULL,
    PRIMARY KEY (table_name, record_id)
);`

const idxDeletionLogDeleted = `CREATE INDEX IF NOT EXISTS idx_deletion_log_deleted ON deletion_log(deleted_at);`

const createSyncMeta = `CREATE TABLE IF NOT EXISTS sync_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

// trackedDDL returns the CREATE statements for every tracked table.
func trackedDDL() []string {
	ddl := make([]string, 0, len(types.TrackedTables)*2)
	for _, kind := range types.TrackedTables {
		name := string(kind)
		ddl = append(ddl, fmt.Sprintf(trackedTableDDL, name))
		ddl = append(ddl, fmt.Sprintf(trackedIndexDDL, "idx_"+name+"_household", name))
	}
	return ddl
}

// syncDDL returns the CREATE statements for the sync-engine tables.
// These are not tracked tables and are never touched by tracked-table
// migrations.
func syncDDL() []string {
	return []string{
		createDeletionLog,
		idxDeletionLogDeleted,
		createSyncMeta,
	}
}

// fullDDL returns the complete schema in creation order.
func fullDDL() []string {
	return append(trackedDDL(), syncDDL()...)
}
