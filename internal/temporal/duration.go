package temporal

import (
	"fmt"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

// Diff returns end-start in whole seconds. If either endpoint is absent the
// result is indeterminate; indeterminacy is contagious through any math built
// on top of it. The reverse flag computes start-end for metrics whose natural
// reading order is inverted.
func Diff(start, end models.Timestamp, reverse bool) models.Metric {
	if !start.Valid || !end.Valid {
		return models.Indeterminate
	}
	seconds := int64(end.Time.Sub(start.Time).Seconds())
	if reverse {
		seconds = -seconds
	}
	return models.Metric{Seconds: seconds, Valid: true}
}

// FormatHMS renders a non-negative second count as HH:MM:SS. Indeterminate
// metrics and negative counts render as the empty string.
func FormatHMS(m models.Metric) string {
	if !m.Valid || m.Seconds < 0 {
		return ""
	}
	h := m.Seconds / 3600
	mm := (m.Seconds % 3600) / 60
	s := m.Seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, mm, s)
}

// stagedFunctionallyArrived reports whether the staging timestamp should stand
// in for arrival: all three of arrival, staging and enroute present, staging
// before arrival, and staging after enroute. In the source data a unit staged
// inside that window was functionally on scene at staging time.
func stagedFunctionallyArrived(row models.UnitResponseRow) bool {
	if !row.Arrived.Valid || !row.Staged.Valid || !row.Enroute.Valid {
		return false
	}
	return row.Staged.Before(row.Arrived) && row.Enroute.Before(row.Staged)
}

// Enrich computes the derived duration metrics for one row. The same rule set
// applies to fire and EMS rows; the column mapping upstream already erased the
// schema differences.
func Enrich(row models.UnitResponseRow) models.UnitResponseRow {
	arrival := row.Arrived
	if stagedFunctionallyArrived(row) {
		arrival = row.Staged
	}

	row.TurnoutTime = Diff(row.Assigned, row.Enroute, false)
	row.TravelTime = Diff(row.Enroute, arrival, false)
	row.ResponseTime = Diff(row.Assigned, arrival, false)
	row.TimeOnScene = Diff(row.Arrived, row.Cleared, false)
	row.TotalCommitted = Diff(row.Assigned, row.Cleared, false)
	return row
}
