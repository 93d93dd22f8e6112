package models

import "time"

// RecordKey is the composite natural key of a storable unit-response record.
// All fields are normalized strings so numeric and textual representations of
// the same incident number compare equal.
type RecordKey struct {
	IncidentID string
	UnitID     string
	Assigned   string
}

// Record is a flattened storable row: composite key plus non-key fields in
// the table's canonical column order. AssignedAt is the typed form of
// Key.Assigned, kept for time-window queries; key equality uses only the
// string form.
type Record struct {
	Source     Source
	Key        RecordKey
	AssignedAt time.Time
	Fields     map[string]string
	Raw        map[string]string
}

// KeyColumns is the composite-key column order, always rendered first.
var KeyColumns = []string{"incident_id", "unit_id", "assigned_at"}

// ValueColumns is the canonical order of the non-key analytics columns. The
// differ, the store and the outbound report all share this order, so the two
// report tables stay stable across runs.
var ValueColumns = []string{
	"enroute_at",
	"staged_at",
	"arrived_at",
	"cleared_at",
	"unit_class",
	"status",
	"turnout_seconds",
	"travel_seconds",
	"response_seconds",
	"scene_seconds",
	"committed_seconds",
	"force_arrival",
	"force_seconds",
	"concurrent_usage",
	"incident_type",
	"address",
}

// FieldChange captures one differing non-key field for audit reporting.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// Update pairs a record with the non-key fields that differ from the store.
type Update struct {
	Record  Record
	Changes []FieldChange
}

// ChangeSet is the output of one reconciliation pass. Unchanged records are
// dropped; the set is consumed by the apply step and then discarded.
type ChangeSet struct {
	Inserts []Record
	Updates []Update
}

// Empty reports whether the pass found nothing to write.
func (cs ChangeSet) Empty() bool {
	return len(cs.Inserts) == 0 && len(cs.Updates) == 0
}
