package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthkeep/hearth/internal/sqlite"
	"github.com/hearthkeep/hearth/pkg/types"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// setupStore attaches a SQLite backend on a temp directory.
func setupStore(t *testing.T) *sqlite.Backend {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}))
	t.Cleanup(func() { b.Detach() })
	return b
}

// fakeTransport records pushes and serves canned pulls. Blocking hooks
// let tests hold a cycle open.
type fakeTransport struct {
	mu          sync.Mutex
	pushedBatch []types.ChangeRecord
	pushCalls   int
	pullSince   []time.Time
	pullChanges []types.ChangeRecord
	failPush    bool
	failPull    bool
	blockPush   chan struct{}
}

func (f *fakeTransport) Push(ctx context.Context, changes []types.ChangeRecord) types.PushResult {
	if f.blockPush != nil {
		<-f.blockPush
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushCalls++
	if f.failPush {
		return types.PushResult{Err: errors.New("connection refused")}
	}
	f.pushedBatch = append([]types.ChangeRecord(nil), changes...)
	return types.PushResult{Success: true, Count: len(changes)}
}

func (f *fakeTransport) Pull(ctx context.Context, since time.Time) types.PullResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pullSince = append(f.pullSince, since)
	if f.failPull {
		return types.PullResult{Err: errors.New("connection reset")}
	}
	return types.PullResult{Success: true, Changes: f.pullChanges}
}

func (f *fakeTransport) pushed() []types.ChangeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushedBatch
}

// fakeState is an in-memory watermark store.
type fakeState struct {
	mu       sync.Mutex
	state    types.SyncState
	failSave bool
	saves    int
}

func (f *fakeState) Load(ctx context.Context) (types.SyncState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeState) Save(ctx context.Context, state types.SyncState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("disk full")
	}
	f.state = state
	f.saves++
	return nil
}

func (f *fakeState) watermark() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Watermark
}

// fakeSession is always authenticated unless told otherwise.
type fakeSession struct {
	loggedOut bool
}

func (f *fakeSession) Authenticated() bool { return !f.loggedOut }

func (f *fakeSession) Credentials() (types.Credentials, error) {
	if f.loggedOut {
		return types.Credentials{}, types.ErrNotAuthenticated
	}
	return types.Credentials{Token: "tok", HouseholdID: "h1", UserID: "u1", DeviceID: "d1"}, nil
}

// brokenTableStore passes through to an inner store but fails scans on
// one kind.
type brokenTableStore struct {
	types.Store
	broken types.TableKind
}

func (s *brokenTableStore) Table(kind types.TableKind) (types.Table, error) {
	tbl, err := s.Store.Table(kind)
	if err != nil {
		return nil, err
	}
	if kind == s.broken {
		return &brokenTable{Table: tbl}, nil
	}
	return tbl, nil
}

type brokenTable struct {
	types.Table
}

func (t *brokenTable) Scan(ctx context.Context) ([]types.Record, error) {
	return nil, errors.New("database is locked")
}
