package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearthkeep/hearth/pkg/types"
)

// table implements types.Table for one tracked kind. All tracked tables
// share the same physical shape, so one implementation serves the whole
// registry.
type table struct {
	kind    types.TableKind
	backend *Backend
}

// Kind returns the tracked kind this table serves.
func (t *table) Kind() types.TableKind {
	return t.kind
}

// Scan returns every row in the table.
func (t *table) Scan(ctx context.Context) ([]types.Record, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()

	if !t.backend.attached {
		return nil, types.ErrStoreDetached
	}

	rows, err := t.backend.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT payload FROM %q`, string(t.kind)))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", t.kind, err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", t.kind, err)
		}
		var rec types.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("parsing %s payload: %w", t.kind, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get retrieves one row by id. Returns ErrNotFound if absent.
func (t *table) Get(ctx context.Context, id string) (types.Record, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()

	if !t.backend.attached {
		return nil, types.ErrStoreDetached
	}
	if id == "" {
		return nil, types.ErrInvalidRecord
	}

	var payload string
	err := t.backend.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT payload FROM %q WHERE id = ?`, string(t.kind)), id).
		Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s/%s: %w", t.kind, id, err)
	}

	var rec types.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("parsing %s payload: %w", t.kind, err)
	}
	return rec, nil
}

// Upsert creates or fully replaces the row keyed by the record's id.
// The payload is stored as given; replace semantics, not a field merge.
func (t *table) Upsert(ctx context.Context, rec types.Record) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()

	if !t.backend.attached {
		return types.ErrStoreDetached
	}
	id := rec.ID()
	if id == "" {
		return types.ErrInvalidRecord
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling %s record: %w", t.kind, err)
	}

	_, err = t.backend.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %q (id, household_id, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			household_id = excluded.household_id,
			payload = excluded.payload,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`, string(t.kind)),
		id, rec.HouseholdID(), string(payload),
		nullableTime(rec.CreatedAt()), nullableTime(rec.UpdatedAt()))
	if err != nil {
		return fmt.Errorf("upserting %s/%s: %w", t.kind, id, err)
	}
	return nil
}

// Delete removes the row and appends the deletion-log entry in one
// transaction, logging first so a row is never deleted untracked. The
// entry is stamped deletedAt; deleting an absent row still records the
// tombstone and succeeds.
func (t *table) Delete(ctx context.Context, id string, deletedAt time.Time) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()

	if !t.backend.attached {
		return types.ErrStoreDetached
	}
	if id == "" {
		return types.ErrInvalidRecord
	}

	tx, err := t.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete of %s/%s: %w", t.kind, id, err)
	}
	defer tx.Rollback()

	var householdID string
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT household_id FROM %q WHERE id = ?`, string(t.kind)), id).
		Scan(&householdID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("reading %s/%s household: %w", t.kind, id, err)
	}

	if err := recordDeletionTx(ctx, tx, types.DeletionEntry{
		Table:       t.kind,
		RecordID:    id,
		HouseholdID: householdID,
		DeletedAt:   deletedAt,
	}); err != nil {
		return fmt.Errorf("logging deletion of %s/%s: %w", t.kind, id, err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, string(t.kind)), id); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", t.kind, id, err)
	}

	return tx.Commit()
}

// nullableTime converts a timestamp to its stored column value, NULL for
// the zero time.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
