package types

import (
	"time"
)

// Well-known record fields. Every tracked row carries an id and a
// household scope; updatedAt is the preferred modification marker with
// createdAt as the fallback.
const (
	FieldID          = "id"
	FieldHouseholdID = "householdId"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

// Record is one row of a tracked table: identity plus the table-specific
// payload. Timestamps are RFC 3339 strings, matching the wire format.
type Record map[string]any

// ID returns the record identity, or "" if absent.
func (r Record) ID() string {
	return r.stringField(FieldID)
}

// HouseholdID returns the household scope, or "" if absent.
func (r Record) HouseholdID() string {
	return r.stringField(FieldHouseholdID)
}

// CreatedAt returns the creation timestamp, zero if absent or malformed.
func (r Record) CreatedAt() time.Time {
	return r.timeField(FieldCreatedAt)
}

// UpdatedAt returns the last-modification timestamp, zero if absent or
// malformed.
func (r Record) UpdatedAt() time.Time {
	return r.timeField(FieldUpdatedAt)
}

// ModifiedAt returns the effective modification marker: updatedAt when
// present, otherwise createdAt. A record with neither is invisible to
// incremental sync and returns the zero time.
func (r Record) ModifiedAt() time.Time {
	if t := r.UpdatedAt(); !t.IsZero() {
		return t
	}
	return r.CreatedAt()
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	cp := make(Record, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

func (r Record) stringField(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

func (r Record) timeField(key string) time.Time {
	switch v := r[key].(type) {
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t
	case time.Time:
		return v
	default:
		return time.Time{}
	}
}

// ChangeRecord is the uniform representation of one mutation, both on
// the wire and inside the engine. A tombstone carries only identity in
// Data and has DeletedAt set.
type ChangeRecord struct {
	Table     TableKind  `json:"table"`
	ID        string     `json:"id"`
	Data      Record     `json:"data"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt"`
}

// IsTombstone reports whether the change records a deletion. Tombstones
// must not be read for payload beyond identity.
func (c ChangeRecord) IsTombstone() bool {
	return c.DeletedAt != nil
}

// Tombstone builds the ChangeRecord for a deletion: identity-only
// payload, DeletedAt set, and UpdatedAt mirroring the deletion time.
func Tombstone(kind TableKind, id, householdID string, deletedAt time.Time) ChangeRecord {
	return ChangeRecord{
		Table: kind,
		ID:    id,
		Data: Record{
			FieldID:          id,
			FieldHouseholdID: householdID,
		},
		UpdatedAt: deletedAt,
		DeletedAt: &deletedAt,
	}
}

// DeletionEntry is one persisted row of the deletion log. The log exists
// because a physically deleted row cannot carry its own "deleted" signal.
type DeletionEntry struct {
	Table       TableKind
	RecordID    string
	HouseholdID string
	DeletedAt   time.Time
}

// Tombstone converts the entry to its wire representation.
func (e DeletionEntry) Tombstone() ChangeRecord {
	return Tombstone(e.Table, e.RecordID, e.HouseholdID, e.DeletedAt)
}
