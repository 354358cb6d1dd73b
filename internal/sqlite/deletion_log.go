package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hearthkeep/hearth/pkg/types"
)

// deletionLog implements types.DeletionLog over the deletion_log table.
// One row exists per deleted record; re-deleting keeps the newest
// timestamp.
type deletionLog struct {
	backend *Backend
}

// execer covers *sql.DB and *sql.Tx so entries can be written inside a
// row-delete transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertDeletionSQL = `
	INSERT INTO deletion_log (table_name, record_id, household_id, deleted_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(table_name, record_id) DO UPDATE SET
		household_id = excluded.household_id,
		deleted_at = excluded.deleted_at
	WHERE excluded.deleted_at >= deletion_log.deleted_at`

// recordDeletionTx writes one entry through the given transaction.
func recordDeletionTx(ctx context.Context, ex execer, entry types.DeletionEntry) error {
	_, err := ex.ExecContext(ctx, upsertDeletionSQL,
		string(entry.Table), entry.RecordID, entry.HouseholdID,
		entry.DeletedAt.UTC().Format(timeLayout))
	return err
}

// Record appends an entry outside any row deletion, used when a remote
// tombstone is applied for a row this device never had.
func (l *deletionLog) Record(ctx context.Context, entry types.DeletionEntry) error {
	l.backend.mu.Lock()
	defer l.backend.mu.Unlock()

	if !l.backend.attached {
		return types.ErrStoreDetached
	}
	if err := recordDeletionTx(ctx, l.backend.db, entry); err != nil {
		return fmt.Errorf("recording deletion of %s/%s: %w", entry.Table, entry.RecordID, err)
	}
	return nil
}

// Entries returns entries deleted strictly after since, or every entry
// when since is the zero time.
func (l *deletionLog) Entries(ctx context.Context, since time.Time) ([]types.DeletionEntry, error) {
	l.backend.mu.RLock()
	defer l.backend.mu.RUnlock()

	if !l.backend.attached {
		return nil, types.ErrStoreDetached
	}

	query := `SELECT table_name, record_id, household_id, deleted_at FROM deletion_log`
	var args []any
	if !since.IsZero() {
		query += ` WHERE deleted_at > ?`
		args = append(args, since.UTC().Format(timeLayout))
	}

	rows, err := l.backend.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading deletion log: %w", err)
	}
	defer rows.Close()

	var entries []types.DeletionEntry
	for rows.Next() {
		entry, err := scanDeletionEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// LatestFor returns the entry for one record, or nil if none exists.
func (l *deletionLog) LatestFor(ctx context.Context, kind types.TableKind, id string) (*types.DeletionEntry, error) {
	l.backend.mu.RLock()
	defer l.backend.mu.RUnlock()

	if !l.backend.attached {
		return nil, types.ErrStoreDetached
	}

	row := l.backend.db.QueryRowContext(ctx,
		`SELECT table_name, record_id, household_id, deleted_at
		 FROM deletion_log WHERE table_name = ? AND record_id = ?`,
		string(kind), id)

	var tableName, recordID, householdID, deletedAt string
	err := row.Scan(&tableName, &recordID, &householdID, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading deletion entry %s/%s: %w", kind, id, err)
	}

	ts, err := time.Parse(time.RFC3339, deletedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing deleted_at for %s/%s: %w", kind, id, err)
	}
	return &types.DeletionEntry{
		Table:       types.TableKind(tableName),
		RecordID:    recordID,
		HouseholdID: householdID,
		DeletedAt:   ts,
	}, nil
}

// PurgeUpTo removes entries with deleted_at <= ts. Only safe once those
// deletions have been durably pushed.
func (l *deletionLog) PurgeUpTo(ctx context.Context, ts time.Time) error {
	l.backend.mu.Lock()
	defer l.backend.mu.Unlock()

	if !l.backend.attached {
		return types.ErrStoreDetached
	}
	_, err := l.backend.db.ExecContext(ctx,
		`DELETE FROM deletion_log WHERE deleted_at <= ?`,
		ts.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("purging deletion log: %w", err)
	}
	return nil
}

func scanDeletionEntry(rows *sql.Rows) (types.DeletionEntry, error) {
	var tableName, recordID, householdID, deletedAt string
	if err := rows.Scan(&tableName, &recordID, &householdID, &deletedAt); err != nil {
		return types.DeletionEntry{}, fmt.Errorf("scanning deletion entry: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, deletedAt)
	if err != nil {
		return types.DeletionEntry{}, fmt.Errorf("parsing deleted_at: %w", err)
	}
	return types.DeletionEntry{
		Table:       types.TableKind(tableName),
		RecordID:    recordID,
		HouseholdID: householdID,
		DeletedAt:   ts,
	}, nil
}
