package models

import "time"

// RunState tracks a batch run through the reconciliation lifecycle.
type RunState string

const (
	RunLoaded   RunState = "LOADED"
	RunWindowed RunState = "WINDOWED"
	RunDiffed   RunState = "DIFFED"
	RunApplied  RunState = "APPLIED"
	RunReported RunState = "REPORTED"
)

// SkipReason labels why an apply-step row was skipped.
type SkipReason string

const (
	SkipDuplicateKey  SkipReason = "duplicate_key"
	SkipTruncation    SkipReason = "value_truncation"
	SkipNullViolation SkipReason = "not_null_violation"
	SkipUnknown       SkipReason = "unknown"
)

// RunSummary aggregates one file's outcome for logging and the outbound report.
type RunSummary struct {
	RunID       string
	Source      Source
	File        string
	State       RunState
	Window      TimeRange
	RowsRead    int
	Incidents   int
	Inserted    int
	Updated     int
	Unchanged   int
	Skipped     int
	SkipReasons map[SkipReason]int
	StartedAt   time.Time
	Duration    time.Duration
}

// RecordSkip increments the counters for one skipped row.
func (s *RunSummary) RecordSkip(reason SkipReason) {
	if s.SkipReasons == nil {
		s.SkipReasons = make(map[SkipReason]int)
	}
	s.SkipReasons[reason]++
	s.Skipped++
}
