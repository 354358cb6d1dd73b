package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hearthkeep/hearth/pkg/types"
)

// watermarkKey is the sync_meta key holding the reconciliation boundary.
// Its absence means the device has never synced.
const watermarkKey = "sync.watermark"

// stateStore implements types.StateStore over the sync_meta table, which
// sits outside the tracked tables so the watermark survives their
// migrations.
type stateStore struct {
	backend *Backend
}

// Load reads the persisted sync state. A missing key yields the zero
// watermark (never synced).
func (s *stateStore) Load(ctx context.Context) (types.SyncState, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()

	if !s.backend.attached {
		return types.SyncState{}, types.ErrStoreDetached
	}

	var value string
	err := s.backend.db.QueryRowContext(ctx,
		`SELECT value FROM sync_meta WHERE key = ?`, watermarkKey).Scan(&value)
	if err == sql.ErrNoRows {
		return types.SyncState{}, nil
	}
	if err != nil {
		return types.SyncState{}, fmt.Errorf("loading watermark: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return types.SyncState{}, fmt.Errorf("parsing watermark %q: %w", value, err)
	}
	return types.SyncState{Watermark: ts}, nil
}

// Save persists the sync state. Only the orchestrator calls this, and
// only after a fully successful cycle.
func (s *stateStore) Save(ctx context.Context, state types.SyncState) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	if !s.backend.attached {
		return types.ErrStoreDetached
	}

	_, err := s.backend.db.ExecContext(ctx, `
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		watermarkKey, state.Watermark.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("saving watermark: %w", err)
	}
	return nil
}
