package types

import (
	"context"
	"errors"
	"time"
)

// Store provides access to the tracked tables and the sync-engine ports
// backed by the on-device database. Callers attach to a backend, access
// tables by kind, and detach when done.
type Store interface {
	// Table returns the capability table for a tracked kind.
	// Returns ErrTableUnknown for kinds outside the enumeration.
	Table(kind TableKind) (Table, error)

	// DeletionLog returns the deletion ledger.
	DeletionLog() DeletionLog

	// SyncState returns the watermark store.
	SyncState() StateStore

	// Attach opens the backend described by config, creating the data
	// directory if needed. Returns ErrAlreadyAttached when called twice.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent. After Detach,
	// table operations return ErrStoreDetached.
	Detach() error
}

// Table is the capability interface for one tracked collection.
// The UI layer and the sync engine share these primitives; each call is
// independently atomic so both sides may interleave freely.
type Table interface {
	// Kind returns the tracked kind this table serves.
	Kind() TableKind

	// Scan returns every row in the table.
	Scan(ctx context.Context) ([]Record, error)

	// Get retrieves one row by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (Record, error)

	// Upsert creates or fully replaces the row keyed by the record's id.
	// Returns ErrInvalidRecord when the record has no id.
	Upsert(ctx context.Context, rec Record) error

	// Delete removes the row and appends a deletion-log entry stamped
	// deletedAt in the same transaction; if logging fails the delete is
	// aborted. Deleting an absent row still records the tombstone and
	// is not an error.
	Delete(ctx context.Context, id string, deletedAt time.Time) error
}

// DeletionLog is the append-only ledger of delete operations.
type DeletionLog interface {
	// Record appends (or refreshes, keeping the newest DeletedAt) an
	// entry for one deleted record.
	Record(ctx context.Context, entry DeletionEntry) error

	// Entries returns entries with DeletedAt strictly after since, or
	// all entries when since is the zero time.
	Entries(ctx context.Context, since time.Time) ([]DeletionEntry, error)

	// LatestFor returns the entry for one record, or nil if none exists.
	LatestFor(ctx context.Context, kind TableKind, id string) (*DeletionEntry, error)

	// PurgeUpTo removes entries with DeletedAt <= ts. Only safe after
	// the transport has acknowledged those deletions.
	PurgeUpTo(ctx context.Context, ts time.Time) error
}

// StateStore persists the sync watermark outside the tracked tables so
// it survives their migrations.
type StateStore interface {
	Load(ctx context.Context) (SyncState, error)
	Save(ctx context.Context, state SyncState) error
}

// MigrationGate verifies the local schema is compatible with the sync
// protocol and upgrades it when it is not.
type MigrationGate interface {
	NeedsMigration(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error
}

// Transport moves change batches between this device and the household
// hub. Both operations are idempotent under retry and report failures in
// the result rather than panicking.
type Transport interface {
	// Push sends local changes. Skips the network entirely when the
	// batch is empty.
	Push(ctx context.Context, changes []ChangeRecord) PushResult

	// Pull requests everything the hub accepted after since; the zero
	// time requests everything.
	Pull(ctx context.Context, since time.Time) PullResult
}

// Credentials is the session context attached to outgoing requests.
type Credentials struct {
	Token       string
	HouseholdID string
	UserID      string
	DeviceID    string
}

// SessionProvider is the external identity collaborator. The engine only
// checks Authenticated before a cycle and attaches Credentials to
// requests; rejections surface as transport failures.
type SessionProvider interface {
	Authenticated() bool
	Credentials() (Credentials, error)
}

// Store lifecycle and table operation errors.
var (
	ErrStoreDetached    = errors.New("store is detached")
	ErrAlreadyAttached  = errors.New("store is already attached")
	ErrTableUnknown     = errors.New("unknown table")
	ErrNotFound         = errors.New("record not found")
	ErrInvalidRecord    = errors.New("invalid record")
	ErrSyncInFlight     = errors.New("a sync cycle is already running")
	ErrNotAuthenticated = errors.New("not authenticated")
)
