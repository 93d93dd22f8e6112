package reconcile

import (
	"github.com/dispatchstack/dispatch-etl/internal/models"
	"github.com/dispatchstack/dispatch-etl/internal/utils"
)

// Window derives the store window from the batch's own assigned-timestamp
// extent, widened to full UTC day boundaries: [floor(min), ceil(max)). The
// second return is false for an empty batch.
func Window(records []models.Record) (models.TimeRange, bool) {
	if len(records) == 0 {
		return models.TimeRange{}, false
	}
	min := records[0].AssignedAt
	max := records[0].AssignedAt
	for _, rec := range records[1:] {
		if rec.AssignedAt.Before(min) {
			min = rec.AssignedAt
		}
		if rec.AssignedAt.After(max) {
			max = rec.AssignedAt
		}
	}
	return models.TimeRange{Start: utils.DayFloor(min), End: utils.DayCeil(max)}, true
}
