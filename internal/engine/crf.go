package engine

import (
	"github.com/dispatchstack/dispatch-etl/internal/classify"
	"github.com/dispatchstack/dispatch-etl/internal/models"
	"github.com/dispatchstack/dispatch-etl/internal/temporal"
)

// DefaultForceThreshold is the weighted force total a structure-fire response
// must exceed to count as a complete response force.
const DefaultForceThreshold = 15

// CRFResult reports when an incident's accumulated force crossed the
// threshold. Reached false is the "never reached" sentinel, which is distinct
// from any indeterminate timestamp: an incident with zero arrived units is
// never reached, not an error.
type CRFResult struct {
	Reached bool
	Arrival models.Timestamp
	Seconds models.Metric
}

// CRFCalculator accumulates weighted unit force for one incident at a time.
type CRFCalculator struct {
	table     *classify.Table
	threshold int
}

// NewCRFCalculator builds a calculator using the shared classification table.
// A threshold of zero or less selects the default.
func NewCRFCalculator(table *classify.Table, threshold int) *CRFCalculator {
	if table == nil {
		table = classify.DefaultTable()
	}
	if threshold <= 0 {
		threshold = DefaultForceThreshold
	}
	return &CRFCalculator{table: table, threshold: threshold}
}

// Compute walks one incident's rows in arrival order, restricted to rows with
// a real arrival, adding each unit's force weight until the running total
// exceeds the threshold. It reports the crossing unit's arrival timestamp and
// the elapsed seconds from the incident's first arrival, or never-reached if
// the rows are exhausted first. The incoming group must already be in
// canonical order, which places arrivals ascending with absent ones last.
func (c *CRFCalculator) Compute(group []models.UnitResponseRow) CRFResult {
	total := 0
	var first models.Timestamp
	for _, row := range group {
		if !row.Arrived.Valid {
			continue
		}
		if !first.Valid {
			first = row.Arrived
		}
		total += c.table.Weight(row.UnitID)
		if total > c.threshold {
			return CRFResult{
				Reached: true,
				Arrival: row.Arrived,
				Seconds: temporal.Diff(first, row.Arrived, false),
			}
		}
	}
	return CRFResult{}
}
