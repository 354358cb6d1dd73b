// Package types defines the storage and synchronization contracts for
// Hearth: the tracked-table enumeration, record and change-record types,
// the Store/Table interfaces the UI layer writes through, and the ports
// (deletion log, state store, transport, session provider) the sync
// engine is assembled from.
package types
