package engine

import (
	"sort"
	"strings"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

// TrackerConfig selects the unit population and busy window for one
// concurrency measurement, e.g. all units whose identifier contains "ENG2"
// busy from assignment until cleared.
type TrackerConfig struct {
	Name     string `yaml:"name"`
	Contains string `yaml:"contains"`
}

// UsageTracker computes, at the moment each matching unit is dispatched, how
// many other matching units are already engaged. Concurrency is a
// cross-incident resource-contention signal, so the scan runs chronologically
// over the whole filtered population rather than per incident.
type UsageTracker struct {
	cfg TrackerConfig
}

// NewUsageTracker builds a tracker for one filter configuration.
func NewUsageTracker(cfg TrackerConfig) *UsageTracker {
	return &UsageTracker{cfg: cfg}
}

// Name returns the tracker's configured name.
func (t *UsageTracker) Name() string { return t.cfg.Name }

// Annotate records the concurrency value on every matching row with a valid
// busy-start. Rows are matched by identifier substring; the busy window is
// [assigned, cleared]. A unit redispatched before clearing replaces its own
// busy-end entry without counting against itself.
func (t *UsageTracker) Annotate(rows []models.UnitResponseRow) []models.UnitResponseRow {
	out := append([]models.UnitResponseRow(nil), rows...)

	fragment := strings.ToUpper(t.cfg.Contains)
	idx := make([]int, 0, len(out))
	for i, row := range out {
		if !row.Assigned.Valid {
			continue
		}
		if fragment != "" && !strings.Contains(strings.ToUpper(row.UnitID), fragment) {
			continue
		}
		idx = append(idx, i)
	}

	// Chronological by dispatch time across all incidents.
	sort.SliceStable(idx, func(a, b int) bool {
		return out[idx[a]].Assigned.Time.Before(out[idx[b]].Assigned.Time)
	})

	busyUntil := make(map[string]models.Timestamp)
	for _, i := range idx {
		dispatch := out[i].Assigned
		for unit, until := range busyUntil {
			if !until.Valid || !until.Time.After(dispatch.Time) {
				delete(busyUntil, unit)
			}
		}
		// The unit's own previous engagement never counts against it.
		delete(busyUntil, out[i].UnitID)

		if out[i].Concurrency == nil {
			out[i].Concurrency = make(map[string]int)
		}
		out[i].Concurrency[t.cfg.Name] = len(busyUntil)

		busyUntil[out[i].UnitID] = out[i].Cleared
	}
	return out
}
