package reconcile

import (
	"github.com/dispatchstack/dispatch-etl/internal/models"
)

// Diff classifies every incoming record as insert, update or unchanged
// against the stored slice of the same window. Unchanged records are dropped
// from the ChangeSet; their count is returned for the run summary.
//
// Duplicate composite keys inside the incoming batch keep the last
// occurrence, matching the apply step where a later merge overwrites an
// earlier one anyway.
func Diff(incoming, stored []models.Record) (models.ChangeSet, int) {
	existing := make(map[models.RecordKey]models.Record, len(stored))
	for _, rec := range stored {
		existing[rec.Key] = rec
	}

	deduped := make([]models.Record, 0, len(incoming))
	seen := make(map[models.RecordKey]int, len(incoming))
	for _, rec := range incoming {
		if i, ok := seen[rec.Key]; ok {
			deduped[i] = rec
			continue
		}
		seen[rec.Key] = len(deduped)
		deduped = append(deduped, rec)
	}

	var cs models.ChangeSet
	unchanged := 0
	for _, rec := range deduped {
		stored, ok := existing[rec.Key]
		if !ok {
			cs.Inserts = append(cs.Inserts, rec)
			continue
		}
		changes := fieldChanges(stored, rec)
		if len(changes) == 0 {
			unchanged++
			continue
		}
		cs.Updates = append(cs.Updates, models.Update{Record: rec, Changes: changes})
	}
	return cs, unchanged
}

// fieldChanges compares the non-key columns in canonical order. Key fields
// and bookkeeping never participate; absences on either side normalize to
// the empty string, so two differently-represented nulls are not a change.
func fieldChanges(old, new models.Record) []models.FieldChange {
	var changes []models.FieldChange
	for _, col := range models.ValueColumns {
		oldVal := old.Fields[col]
		newVal := new.Fields[col]
		if oldVal != newVal {
			changes = append(changes, models.FieldChange{Field: col, Old: oldVal, New: newVal})
		}
	}
	return changes
}
