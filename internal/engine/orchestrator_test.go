package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthkeep/hearth/internal/sqlite"
	"github.com/hearthkeep/hearth/pkg/types"
)

type fakeGate struct {
	needed       bool
	migrateCalls int
	failMigrate  bool
}

func (g *fakeGate) NeedsMigration(ctx context.Context) (bool, error) {
	return g.needed, nil
}

func (g *fakeGate) Migrate(ctx context.Context) error {
	g.migrateCalls++
	if g.failMigrate {
		return errors.New("schema upgrade failed")
	}
	g.needed = false
	return nil
}

type fixture struct {
	store     *sqlite.Backend
	transport *fakeTransport
	state     *fakeState
	session   *fakeSession
	gate      *fakeGate
	clock     time.Time
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     setupStore(t),
		transport: &fakeTransport{},
		state:     &fakeState{},
		session:   &fakeSession{},
		gate:      &fakeGate{},
		clock:     time.Date(2026, 5, 3, 12, 0, 0, 0, time.UTC),
	}
	f.orch = NewOrchestrator(f.store, f.gate, f.transport, f.session, f.state, Options{
		Logger: quietLogger(),
		Now:    func() time.Time { return f.clock },
	})
	return f
}

func TestPerformSync(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC)

	t.Run("successful cycle pushes, applies, and advances the watermark", func(t *testing.T) {
		f := newFixture(t)
		tbl, err := f.store.Table(types.TableChores)
		require.NoError(t, err)
		require.NoError(t, tbl.Upsert(ctx, testRecord("c1", t0)))
		f.transport.pullChanges = []types.ChangeRecord{
			upsertChange(types.TableNotes, "n1", t0, map[string]any{"body": "from hub"}),
		}

		result := f.orch.PerformSync(ctx, false)
		require.NoError(t, result.Err)
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.Pushed)
		assert.Equal(t, 1, result.Pulled)
		assert.Equal(t, 1, result.Applied)
		assert.Equal(t, 0, result.Conflicts)

		assert.True(t, f.state.watermark().Equal(f.clock), "watermark is the collection instant")

		pushed := f.transport.pushed()
		require.Len(t, pushed, 1)
		assert.Equal(t, "c1", pushed[0].ID)

		notes, err := f.store.Table(types.TableNotes)
		require.NoError(t, err)
		rec, err := notes.Get(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, "from hub", rec["body"])
	})

	t.Run("push failure leaves the watermark and tombstones untouched", func(t *testing.T) {
		f := newFixture(t)
		before := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		f.state.state = types.SyncState{Watermark: before}

		tbl, err := f.store.Table(types.TableGroceryItems)
		require.NoError(t, err)
		require.NoError(t, tbl.Upsert(ctx, testRecord("g1", t0)))
		require.NoError(t, tbl.Delete(ctx, "g1", t0.Add(time.Minute)))
		f.transport.failPush = true

		result := f.orch.PerformSync(ctx, false)
		assert.False(t, result.Success)
		assert.ErrorContains(t, result.Err, "push failed")
		assert.Equal(t, 0, result.Pushed)
		assert.Equal(t, 0, result.Pulled)
		assert.True(t, f.state.watermark().Equal(before))

		entries, err := f.store.DeletionLog().Entries(ctx, time.Time{})
		require.NoError(t, err)
		assert.Len(t, entries, 1, "unacknowledged tombstones must survive")
	})

	t.Run("acknowledged tombstones are purged after a successful push", func(t *testing.T) {
		f := newFixture(t)
		tbl, err := f.store.Table(types.TableGroceryItems)
		require.NoError(t, err)
		require.NoError(t, tbl.Upsert(ctx, testRecord("g1", t0)))
		require.NoError(t, tbl.Delete(ctx, "g1", t0.Add(time.Minute)))

		result := f.orch.PerformSync(ctx, false)
		require.True(t, result.Success)

		entries, err := f.store.DeletionLog().Entries(ctx, time.Time{})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("pull failure leaves the watermark untouched", func(t *testing.T) {
		f := newFixture(t)
		f.transport.failPull = true

		result := f.orch.PerformSync(ctx, false)
		assert.False(t, result.Success)
		assert.ErrorContains(t, result.Err, "pull failed")
		assert.True(t, f.state.watermark().IsZero())
	})

	t.Run("watermark never decreases across cycles", func(t *testing.T) {
		f := newFixture(t)
		require.True(t, f.orch.PerformSync(ctx, false).Success)
		first := f.state.watermark()

		f.clock = f.clock.Add(time.Hour)
		require.True(t, f.orch.PerformSync(ctx, false).Success)
		second := f.state.watermark()
		assert.True(t, second.After(first))
	})

	t.Run("incremental cycle pulls from the stored watermark", func(t *testing.T) {
		f := newFixture(t)
		mark := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
		f.state.state = types.SyncState{Watermark: mark}

		require.True(t, f.orch.PerformSync(ctx, false).Success)
		require.Len(t, f.transport.pullSince, 1)
		assert.True(t, f.transport.pullSince[0].Equal(mark))
	})

	t.Run("forced full sync ignores the stored watermark", func(t *testing.T) {
		f := newFixture(t)
		f.state.state = types.SyncState{Watermark: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)}
		tbl, err := f.store.Table(types.TableChores)
		require.NoError(t, err)
		old := testRecord("ancient", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, tbl.Upsert(ctx, old))

		result := f.orch.PerformSync(ctx, true)
		require.True(t, result.Success)
		assert.Equal(t, 1, result.Pushed, "rows older than the watermark are still pushed")
		require.Len(t, f.transport.pullSince, 1)
		assert.True(t, f.transport.pullSince[0].IsZero())
	})

	t.Run("unauthenticated session fails before any network call", func(t *testing.T) {
		f := newFixture(t)
		f.session.loggedOut = true

		result := f.orch.PerformSync(ctx, false)
		assert.ErrorIs(t, result.Err, types.ErrNotAuthenticated)
		assert.Equal(t, 0, f.transport.pushCalls)
	})

	t.Run("migration runs before collection when needed", func(t *testing.T) {
		f := newFixture(t)
		f.gate.needed = true

		result := f.orch.PerformSync(ctx, false)
		require.True(t, result.Success)
		assert.Equal(t, 1, f.gate.migrateCalls)
	})

	t.Run("migration failure aborts the cycle", func(t *testing.T) {
		f := newFixture(t)
		f.gate.needed = true
		f.gate.failMigrate = true

		result := f.orch.PerformSync(ctx, false)
		assert.False(t, result.Success)
		assert.ErrorContains(t, result.Err, "migration failed")
		assert.Equal(t, 0, f.transport.pushCalls)
		assert.True(t, f.state.watermark().IsZero())
	})

	t.Run("commit failure surfaces as an unsuccessful cycle", func(t *testing.T) {
		f := newFixture(t)
		f.state.failSave = true

		result := f.orch.PerformSync(ctx, false)
		assert.False(t, result.Success)
		assert.ErrorContains(t, result.Err, "committing watermark")
	})

	t.Run("second cycle while one is running fails fast", func(t *testing.T) {
		f := newFixture(t)
		f.transport.blockPush = make(chan struct{})

		done := make(chan types.SyncResult, 1)
		go func() { done <- f.orch.PerformSync(ctx, false) }()

		require.Eventually(t, func() bool {
			return f.orch.Status().Phase == types.PhasePushing
		}, time.Second, time.Millisecond)

		result := f.orch.PerformSync(ctx, false)
		assert.ErrorIs(t, result.Err, types.ErrSyncInFlight)

		close(f.transport.blockPush)
		first := <-done
		assert.True(t, first.Success)
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("idle before any cycle", func(t *testing.T) {
		f := newFixture(t)
		status := f.orch.Status()
		assert.Equal(t, types.PhaseIdle, status.Phase)
		assert.Nil(t, status.LastResult)
		assert.True(t, status.LastSynced.IsZero())
	})

	t.Run("reflects the last completed cycle", func(t *testing.T) {
		f := newFixture(t)
		require.True(t, f.orch.PerformSync(ctx, false).Success)

		status := f.orch.Status()
		assert.Equal(t, types.PhaseIdle, status.Phase)
		require.NotNil(t, status.LastResult)
		assert.True(t, status.LastResult.Success)
		assert.True(t, status.LastSynced.Equal(f.clock))
	})

	t.Run("failed cycle keeps the previous sync time", func(t *testing.T) {
		f := newFixture(t)
		require.True(t, f.orch.PerformSync(ctx, false).Success)
		syncedAt := f.orch.Status().LastSynced

		f.transport.failPull = true
		f.clock = f.clock.Add(time.Hour)
		result := f.orch.PerformSync(ctx, false)
		require.False(t, result.Success)

		status := f.orch.Status()
		require.NotNil(t, status.LastResult)
		assert.False(t, status.LastResult.Success)
		assert.True(t, status.LastSynced.Equal(syncedAt))
	})
}
