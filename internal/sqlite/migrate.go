package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrateLocked walks the database from fromVersion up to schemaVersion.
// Each step is idempotent so a crash mid-migration is retried safely on
// the next cycle.
func migrateLocked(ctx context.Context, db *sql.DB, fromVersion int) error {
	for v := fromVersion; v < schemaVersion; v++ {
		step, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no migration path from schema v%d", v)
		}
		if err := step(ctx, db); err != nil {
			return fmt.Errorf("step v%d -> v%d: %w", v, v+1, err)
		}
		if err := setUserVersion(db, v+1); err != nil {
			return err
		}
	}
	return nil
}

// migrations maps a schema version to the step that upgrades it by one.
var migrations = map[int]func(context.Context, *sql.DB) error{
	1: migrateV1ToV2,
}

// migrateV1ToV2 brings a pre-sync database up to the sync protocol:
// the deletion log and sync_meta tables did not exist before v2, and
// tracked tables added since v1 are created empty.
func migrateV1ToV2(ctx context.Context, db *sql.DB) error {
	for _, stmt := range trackedDDL() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure tracked table: %w", err)
		}
	}
	for _, stmt := range syncDDL() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create sync table: %w", err)
		}
	}
	return nil
}
