package models

import "time"

// CanonicalTimeLayout renders timestamps for key comparison and storage so
// both sides of a diff agree on one representation.
const CanonicalTimeLayout = "2006-01-02 15:04:05"

// Source identifies which dispatch feed a record came from.
type Source string

const (
	// SourceFire marks records from the fire CAD export.
	SourceFire Source = "fire"
	// SourceEMS marks records from the EMS CAD export.
	SourceEMS Source = "ems"
)

// UnitStatus is the per-row arrival status code assigned by the classifier.
type UnitStatus string

const (
	// StatusFirstArrival marks the first unit on scene for an incident.
	StatusFirstArrival UnitStatus = "1"
	// StatusSubsequent marks units arriving after the first.
	StatusSubsequent UnitStatus = "0"
	// StatusCancelled marks an incident whose opening unit never arrived.
	StatusCancelled UnitStatus = "C"
	// StatusNoArrival marks later rows of a cancelled or no-show incident.
	StatusNoArrival UnitStatus = "X"
)

// UnitClass buckets apparatus by function.
type UnitClass string

const (
	ClassEngine    UnitClass = "ENGINE"
	ClassLadder    UnitClass = "LADDER"
	ClassBattalion UnitClass = "BATTALION"
	ClassMedic     UnitClass = "MEDIC"
	ClassOther     UnitClass = "OTHER"
)

// Timestamp is a nullable point in time. Absent or unparseable source values
// produce an invalid Timestamp, never a zero time mistaken for midnight 1970.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// TS wraps a concrete time into a valid Timestamp.
func TS(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: true}
}

// Before reports whether ts precedes other; invalid timestamps never precede anything.
func (ts Timestamp) Before(other Timestamp) bool {
	return ts.Valid && other.Valid && ts.Time.Before(other.Time)
}

// Metric is a derived duration in whole seconds. Valid is false when either
// endpoint timestamp was absent; such indeterminate metrics render blank and
// are never coerced to zero.
type Metric struct {
	Seconds int64
	Valid   bool
}

// Indeterminate is the sentinel metric for durations with a missing endpoint.
var Indeterminate = Metric{}

// UnitResponseRow is one unit's involvement in one incident, after column
// normalization and temporal enrichment.
type UnitResponseRow struct {
	Source     Source
	IncidentID string
	UnitID     string
	Class      UnitClass
	Status     UnitStatus

	Assigned Timestamp
	Enroute  Timestamp
	Staged   Timestamp
	Arrived  Timestamp
	Cleared  Timestamp

	// Derived metrics, indeterminate when an endpoint is missing.
	TurnoutTime    Metric // assigned -> enroute
	TravelTime     Metric // enroute -> arrived (staging substitution may apply)
	ResponseTime   Metric // assigned -> arrived
	TimeOnScene    Metric // arrived -> cleared
	TotalCommitted Metric // assigned -> cleared

	// Incident-level CRF aggregate joined back onto every row of the incident.
	// ForceReached distinguishes "threshold never reached" from a merely
	// indeterminate timestamp.
	ForceReached bool
	ForceArrival Timestamp
	ForceSeconds Metric

	// Concurrency values keyed by tracker name.
	Concurrency map[string]int

	// Raw holds the canonical source columns as loaded, keyed by canonical
	// column name. Retained for the raw-table upsert.
	Raw map[string]string
}

// TimeRange is a half-open [Start, End) window.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the range covers any time at all.
func (r TimeRange) Valid() bool {
	return !r.Start.IsZero() && r.End.After(r.Start)
}
