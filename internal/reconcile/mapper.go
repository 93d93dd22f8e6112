package reconcile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

// NeverReached is rendered into the force columns when an incident's CRF
// threshold was never crossed. It is deliberately distinct from the empty
// string, which marks an indeterminate value.
const NeverReached = "never_reached"

// BuildRecords flattens enriched rows into storable records keyed by the
// composite (incident, unit, assigned) tuple. Rows without an assigned
// timestamp cannot form a key and are dropped; the count is returned so the
// run summary can surface it.
func BuildRecords(rows []models.UnitResponseRow) ([]models.Record, int) {
	records := make([]models.Record, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		if !row.Assigned.Valid {
			dropped++
			continue
		}
		records = append(records, models.Record{
			Source: row.Source,
			Key: models.RecordKey{
				IncidentID: row.IncidentID,
				UnitID:     row.UnitID,
				Assigned:   renderTimestamp(row.Assigned),
			},
			AssignedAt: row.Assigned.Time.UTC(),
			Fields:     buildFields(row),
			Raw:        row.Raw,
		})
	}
	return records, dropped
}

func buildFields(row models.UnitResponseRow) map[string]string {
	fields := map[string]string{
		"enroute_at":        renderTimestamp(row.Enroute),
		"staged_at":         renderTimestamp(row.Staged),
		"arrived_at":        renderTimestamp(row.Arrived),
		"cleared_at":        renderTimestamp(row.Cleared),
		"unit_class":        string(row.Class),
		"status":            string(row.Status),
		"turnout_seconds":   renderMetric(row.TurnoutTime),
		"travel_seconds":    renderMetric(row.TravelTime),
		"response_seconds":  renderMetric(row.ResponseTime),
		"scene_seconds":     renderMetric(row.TimeOnScene),
		"committed_seconds": renderMetric(row.TotalCommitted),
		"concurrent_usage":  renderConcurrency(row.Concurrency),
		"incident_type":     row.Raw["incident_type"],
		"address":           row.Raw["address"],
	}
	if row.ForceReached {
		fields["force_arrival"] = renderTimestamp(row.ForceArrival)
		fields["force_seconds"] = renderMetric(row.ForceSeconds)
	} else {
		fields["force_arrival"] = NeverReached
		fields["force_seconds"] = NeverReached
	}
	return fields
}

func renderTimestamp(ts models.Timestamp) string {
	if !ts.Valid {
		return ""
	}
	return ts.Time.UTC().Format(models.CanonicalTimeLayout)
}

func renderMetric(m models.Metric) string {
	if !m.Valid {
		return ""
	}
	return strconv.FormatInt(m.Seconds, 10)
}

// renderConcurrency serializes tracker values deterministically so equal
// annotations always compare equal as strings.
func renderConcurrency(values map[string]int) string {
	if len(values) == 0 {
		return ""
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, values[name]))
	}
	return strings.Join(parts, ";")
}
