package types

import "time"

// SyncPhase names one step of the orchestrator's cycle.
type SyncPhase string

const (
	PhaseIdle       SyncPhase = "idle"
	PhaseGating     SyncPhase = "gating"
	PhaseCollecting SyncPhase = "collecting"
	PhasePushing    SyncPhase = "pushing"
	PhasePulling    SyncPhase = "pulling"
	PhaseApplying   SyncPhase = "applying"
	PhaseCommitting SyncPhase = "committing"
	PhaseError      SyncPhase = "error"
)

// SyncState is the persisted reconciliation boundary. A zero Watermark
// means the device has never synced (full resync on the next cycle).
type SyncState struct {
	Watermark time.Time
}

// NeverSynced reports whether no cycle has completed yet.
func (s SyncState) NeverSynced() bool {
	return s.Watermark.IsZero()
}

// SyncResult reports the outcome of one cycle. It is transient; only the
// watermark is persisted, and only on success.
type SyncResult struct {
	Success   bool
	Pushed    int
	Pulled    int
	Applied   int
	Conflicts int
	Err       error
}

// SyncStatus is the snapshot the UI layer polls between cycles.
type SyncStatus struct {
	Phase      SyncPhase
	LastResult *SyncResult
	LastSynced time.Time
}

// PushResult reports a transport push. A failed push fails the whole
// batch; there is no partial acknowledgment.
type PushResult struct {
	Success bool
	Count   int
	Err     error
}

// PullResult reports a transport pull.
type PullResult struct {
	Success bool
	Changes []ChangeRecord
	Err     error
}
