package classify

import (
	"sort"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

// Ordered holds unit-response rows in canonical order: grouped by incident,
// and within each incident by arrival time ascending with absent arrivals
// last. Only OrderRows produces this type and only the status classifier
// consumes it, so the ordering contract is carried by the type rather than
// by convention.
type Ordered struct {
	rows []models.UnitResponseRow
}

// OrderRows sorts rows into canonical order.
func OrderRows(rows []models.UnitResponseRow) Ordered {
	sorted := append([]models.UnitResponseRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.IncidentID != b.IncidentID {
			return a.IncidentID < b.IncidentID
		}
		switch {
		case a.Arrived.Valid && b.Arrived.Valid:
			return a.Arrived.Time.Before(b.Arrived.Time)
		case a.Arrived.Valid:
			return true
		case b.Arrived.Valid:
			return false
		default:
			return false
		}
	})
	return Ordered{rows: sorted}
}

// Rows exposes the rows in canonical order.
func (o Ordered) Rows() []models.UnitResponseRow {
	return o.rows
}

// Groups splits the ordered rows into per-incident slices, preserving order.
func (o Ordered) Groups() [][]models.UnitResponseRow {
	var groups [][]models.UnitResponseRow
	start := 0
	for i := 1; i <= len(o.rows); i++ {
		if i == len(o.rows) || o.rows[i].IncidentID != o.rows[start].IncidentID {
			groups = append(groups, o.rows[start:i])
			start = i
		}
	}
	return groups
}

// AssignStatus runs the status state machine over the canonically ordered
// rows and returns them with Status populated. It is a single left-to-right
// pass: each decision depends only on the previous row's incident and its
// computed status, so the scan is streamable.
//
// A row opening a new incident without an arrival time is CANCELLED. Later
// rows of a cancelled or no-show incident stay NO_ARRIVAL rather than
// SUBSEQUENT. A row opening an incident with an arrival time is the group's
// single FIRST_ARRIVAL.
func AssignStatus(o Ordered) []models.UnitResponseRow {
	rows := append([]models.UnitResponseRow(nil), o.rows...)
	var prevIncident string
	var prevStatus models.UnitStatus

	for i := range rows {
		newGroup := i == 0 || rows[i].IncidentID != prevIncident
		switch {
		case newGroup && !rows[i].Arrived.Valid:
			rows[i].Status = models.StatusCancelled
		case !newGroup:
			if prevStatus == models.StatusCancelled || prevStatus == models.StatusNoArrival {
				rows[i].Status = models.StatusNoArrival
			} else {
				rows[i].Status = models.StatusSubsequent
			}
		default:
			rows[i].Status = models.StatusFirstArrival
		}
		prevIncident = rows[i].IncidentID
		prevStatus = rows[i].Status
	}
	return rows
}
