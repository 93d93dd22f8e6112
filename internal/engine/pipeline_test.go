package engine

import (
	"testing"
	"time"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

func TestPipelineEnrich(t *testing.T) {
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	stamp := func(min int) models.Timestamp { return models.TS(base.Add(time.Duration(min) * time.Minute)) }

	rows := []models.UnitResponseRow{
		{
			Source: models.SourceFire, IncidentID: "F100", UnitID: "ENG201",
			Assigned: stamp(0), Enroute: stamp(1), Arrived: stamp(5), Cleared: stamp(40),
		},
		{
			Source: models.SourceFire, IncidentID: "F100", UnitID: "BAT1",
			Assigned: stamp(0), Enroute: stamp(2), Arrived: stamp(8), Cleared: stamp(45),
		},
		{
			Source: models.SourceFire, IncidentID: "F200", UnitID: "ENG202",
			Assigned: stamp(3), Enroute: models.Timestamp{}, Arrived: models.Timestamp{}, Cleared: stamp(10),
		},
	}

	pipeline := NewPipeline(nil, nil, nil, []*UsageTracker{
		NewUsageTracker(TrackerConfig{Name: "eng2", Contains: "ENG2"}),
	})
	out := pipeline.Enrich(rows)

	if len(out) != 3 {
		t.Fatalf("enriched rows = %d, want 3", len(out))
	}

	byUnit := make(map[string]models.UnitResponseRow)
	for _, r := range out {
		byUnit[r.UnitID] = r
	}

	eng := byUnit["ENG201"]
	if eng.Class != models.ClassEngine {
		t.Fatalf("ENG201 class = %s, want ENGINE", eng.Class)
	}
	if eng.Status != models.StatusFirstArrival {
		t.Fatalf("ENG201 status = %s, want FIRST_ARRIVAL", eng.Status)
	}
	if !eng.ResponseTime.Valid || eng.ResponseTime.Seconds != 300 {
		t.Fatalf("ENG201 response = %+v, want 300s", eng.ResponseTime)
	}

	if byUnit["BAT1"].Status != models.StatusSubsequent {
		t.Fatalf("BAT1 status = %s, want SUBSEQUENT", byUnit["BAT1"].Status)
	}

	// F100's force totals 7, below threshold: never-reached joined onto both rows.
	for _, id := range []string{"ENG201", "BAT1"} {
		if byUnit[id].ForceReached {
			t.Fatalf("%s ForceReached = true, want never reached", id)
		}
	}

	cancelled := byUnit["ENG202"]
	if cancelled.Status != models.StatusCancelled {
		t.Fatalf("ENG202 status = %s, want CANCELLED", cancelled.Status)
	}
	// "ENG2" is a substring of ENG201, so at ENG202's dispatch ENG201 is
	// already out and counts toward the tracker.
	if c := cancelled.Concurrency["eng2"]; c != 1 {
		t.Fatalf("ENG202 concurrency = %d, want 1", c)
	}
}

func TestPipelineCRFJoinBack(t *testing.T) {
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	stamp := func(min int) models.Timestamp { return models.TS(base.Add(time.Duration(min) * time.Minute)) }

	var rows []models.UnitResponseRow
	for i, id := range []string{"ENG1", "ENG2", "ENG3", "ENG4"} {
		rows = append(rows, models.UnitResponseRow{
			IncidentID: "F1", UnitID: id,
			Assigned: stamp(0), Arrived: stamp(i + 1),
		})
	}

	out := NewPipeline(nil, nil, nil, nil).Enrich(rows)
	for _, r := range out {
		if !r.ForceReached {
			t.Fatalf("%s ForceReached = false, want reached (4 engines = 16)", r.UnitID)
		}
		if !r.ForceArrival.Time.Equal(stamp(4).Time) {
			t.Fatalf("%s ForceArrival = %v, want fourth engine's arrival", r.UnitID, r.ForceArrival.Time)
		}
	}
}
