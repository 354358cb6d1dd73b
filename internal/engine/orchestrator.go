package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/hearthkeep/hearth/pkg/types"
)

func defaultLogger() *log.Logger {
	return log.New(os.Stderr, "[sync] ", log.LstdFlags)
}

// Orchestrator owns the end-to-end sync cycle: gate, collect, push,
// pull, apply, commit. At most one cycle runs at a time; a concurrent
// PerformSync fails fast with ErrSyncInFlight.
type Orchestrator struct {
	store     types.Store
	gate      types.MigrationGate
	transport types.Transport
	session   types.SessionProvider
	state     types.StateStore
	collector *Collector
	applier   *Applier
	logger    *log.Logger
	now       func() time.Time

	running sync.Mutex

	statusMu   sync.RWMutex
	phase      types.SyncPhase
	lastResult *types.SyncResult
	lastSynced time.Time
}

// Options tune an Orchestrator. The zero value is usable.
type Options struct {
	// Logger receives cycle progress and per-item warnings. Defaults to
	// stderr with a "[sync] " prefix.
	Logger *log.Logger

	// Now supplies the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewOrchestrator wires the full engine over its ports. The state store
// is injected separately from the record store so tests can substitute a
// fake watermark without a database.
func NewOrchestrator(store types.Store, gate types.MigrationGate, transport types.Transport,
	session types.SessionProvider, state types.StateStore, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:     store,
		gate:      gate,
		transport: transport,
		session:   session,
		state:     state,
		collector: NewCollector(store, logger),
		applier:   NewApplier(store, logger),
		logger:    logger,
		now:       now,
		phase:     types.PhaseIdle,
	}
}

// Status returns a snapshot of the current phase and the last completed
// cycle. Safe to call while a cycle is running.
func (o *Orchestrator) Status() types.SyncStatus {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()

	status := types.SyncStatus{
		Phase:      o.phase,
		LastSynced: o.lastSynced,
	}
	if o.lastResult != nil {
		result := *o.lastResult
		status.LastResult = &result
	}
	return status
}

// PerformSync runs one full cycle and returns its result. The watermark
// advances only when every step succeeds; any failure leaves it
// untouched so the next cycle retries from the same point. With
// forceFullSync the persisted watermark is ignored and every local row
// is pushed and every remote row pulled.
func (o *Orchestrator) PerformSync(ctx context.Context, forceFullSync bool) types.SyncResult {
	if !o.running.TryLock() {
		return types.SyncResult{Err: types.ErrSyncInFlight}
	}
	defer o.running.Unlock()

	if !o.session.Authenticated() {
		return o.finish(types.SyncResult{Err: types.ErrNotAuthenticated})
	}

	o.setPhase(types.PhaseGating)
	needed, err := o.gate.NeedsMigration(ctx)
	if err != nil {
		return o.fail(fmt.Errorf("migration check failed: %w", err))
	}
	if needed {
		o.logger.Printf("schema behind sync protocol, migrating")
		if err := o.gate.Migrate(ctx); err != nil {
			return o.fail(fmt.Errorf("migration failed: %w", err))
		}
	}

	state, err := o.state.Load(ctx)
	if err != nil {
		return o.fail(fmt.Errorf("loading sync state failed: %w", err))
	}
	since := state.Watermark
	if forceFullSync {
		since = time.Time{}
	}

	// Everything modified at or before this instant is in the batch, so
	// this instant becomes the watermark once the cycle commits. Rows
	// written after it are picked up next cycle.
	collectedThrough := o.now().UTC()

	o.setPhase(types.PhaseCollecting)
	changes, err := o.collector.Collect(ctx, since)
	if err != nil {
		return o.fail(fmt.Errorf("collection failed: %w", err))
	}

	o.setPhase(types.PhasePushing)
	pushed := o.transport.Push(ctx, changes)
	if !pushed.Success {
		return o.fail(fmt.Errorf("push failed: %w", pushed.Err))
	}
	if pushed.Count > 0 {
		o.logger.Printf("pushed %d changes", pushed.Count)
	}

	// The hub has durably accepted every tombstone in the batch, so the
	// acknowledged entries can go even if pull or apply fails below.
	if err := o.store.DeletionLog().PurgeUpTo(ctx, collectedThrough); err != nil {
		o.logger.Printf("WARNING: purging deletion log: %v", err)
	}

	o.setPhase(types.PhasePulling)
	pulled := o.transport.Pull(ctx, since)
	if !pulled.Success {
		return o.fail(fmt.Errorf("pull failed: %w", pulled.Err))
	}

	o.setPhase(types.PhaseApplying)
	applied, conflicts := o.applier.Apply(ctx, pulled.Changes)

	o.setPhase(types.PhaseCommitting)
	if err := o.state.Save(ctx, types.SyncState{Watermark: collectedThrough}); err != nil {
		return o.fail(fmt.Errorf("committing watermark failed: %w", err))
	}

	o.logger.Printf("cycle complete: pushed=%d pulled=%d applied=%d conflicts=%d",
		pushed.Count, len(pulled.Changes), applied, conflicts)
	return o.finish(types.SyncResult{
		Success:   true,
		Pushed:    pushed.Count,
		Pulled:    len(pulled.Changes),
		Applied:   applied,
		Conflicts: conflicts,
	})
}

func (o *Orchestrator) setPhase(phase types.SyncPhase) {
	o.statusMu.Lock()
	o.phase = phase
	o.statusMu.Unlock()
}

func (o *Orchestrator) fail(err error) types.SyncResult {
	o.setPhase(types.PhaseError)
	o.logger.Printf("cycle aborted: %v", err)
	return o.finish(types.SyncResult{Err: err})
}

func (o *Orchestrator) finish(result types.SyncResult) types.SyncResult {
	o.statusMu.Lock()
	o.phase = types.PhaseIdle
	o.lastResult = &result
	if result.Success {
		o.lastSynced = o.now()
	}
	o.statusMu.Unlock()
	return result
}
