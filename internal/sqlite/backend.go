package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/hearthkeep/hearth/pkg/types"
)

// dbFileName is the SQLite file created inside the data directory.
const dbFileName = "hearth.db"

// Backend implements types.Store and types.MigrationGate over a single
// SQLite database file.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	tables   map[types.TableKind]*table
	delLog   *deletionLog
	state    *stateStore
}

// NewBackend creates an unattached backend. Call Attach with a Config to
// open the database.
func NewBackend() *Backend {
	return &Backend{
		tables: make(map[types.TableKind]*table),
	}
}

// Attach opens (or creates) the database under config.DataDir and
// prepares table accessors. A fresh database gets the full current
// schema; an existing database is opened as-is and left for the
// migration gate to inspect.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbFileName))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	version, err := userVersion(db)
	if err != nil {
		db.Close()
		return err
	}
	if version == 0 {
		// Fresh database: create everything at the current version.
		for _, stmt := range fullDDL() {
			if _, err := db.Exec(stmt); err != nil {
				db.Close()
				return fmt.Errorf("create schema: %w", err)
			}
		}
		if err := setUserVersion(db, schemaVersion); err != nil {
			db.Close()
			return err
		}
	}

	b.db = db
	b.config = config
	b.attached = true
	b.buildAccessorsLocked()
	return nil
}

// Detach closes the database. Idempotent; after Detach all table
// operations return ErrStoreDetached.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.tables = make(map[types.TableKind]*table)
	b.delLog = nil
	b.state = nil
	return nil
}

// Table returns the accessor for a tracked kind.
func (b *Backend) Table(kind types.TableKind) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	t, ok := b.tables[kind]
	if !ok {
		return nil, types.ErrTableUnknown
	}
	return t, nil
}

// DeletionLog returns the deletion ledger.
func (b *Backend) DeletionLog() types.DeletionLog {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.delLog
}

// SyncState returns the watermark store.
func (b *Backend) SyncState() types.StateStore {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// NeedsMigration reports whether the database predates the current sync
// schema.
func (b *Backend) NeedsMigration(ctx context.Context) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return false, types.ErrStoreDetached
	}
	version, err := userVersion(b.db)
	if err != nil {
		return false, err
	}
	return version < schemaVersion, nil
}

// Migrate upgrades the schema to the current version and re-initializes
// the database handle, since table shapes may have changed. Must
// complete before any collection runs.
func (b *Backend) Migrate(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}

	version, err := userVersion(b.db)
	if err != nil {
		return err
	}
	if version >= schemaVersion {
		return nil
	}

	if err := migrateLocked(ctx, b.db, version); err != nil {
		return fmt.Errorf("migrate schema from v%d: %w", version, err)
	}

	// Reopen the handle so every accessor sees the upgraded shapes.
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close pre-migration handle: %w", err)
	}
	dataDir := b.config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbFileName))
	if err != nil {
		return fmt.Errorf("reopen database: %w", err)
	}
	b.db = db
	b.buildAccessorsLocked()
	return nil
}

// buildAccessorsLocked rebuilds table, deletion-log, and state accessors
// against the current handle. The caller must hold b.mu.
func (b *Backend) buildAccessorsLocked() {
	b.tables = make(map[types.TableKind]*table, len(types.TrackedTables))
	for _, kind := range types.TrackedTables {
		b.tables[kind] = &table{kind: kind, backend: b}
	}
	b.delLog = &deletionLog{backend: b}
	b.state = &stateStore{backend: b}
}

func userVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

func setUserVersion(db *sql.DB, v int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
