package reconcile

import (
	"testing"
	"time"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

func enrichedRow() models.UnitResponseRow {
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	return models.UnitResponseRow{
		Source:     models.SourceFire,
		IncidentID: "F100",
		UnitID:     "ENG201",
		Class:      models.ClassEngine,
		Status:     models.StatusFirstArrival,
		Assigned:   models.TS(base),
		Arrived:    models.TS(base.Add(5 * time.Minute)),
		ResponseTime: models.Metric{Seconds: 300, Valid: true},
		Concurrency:  map[string]int{"eng2": 1, "all": 3},
		Raw:          map[string]string{"incident_type": "Structure Fire", "address": "12 Oak St"},
	}
}

func TestBuildRecordsKeyAndFields(t *testing.T) {
	records, dropped := BuildRecords([]models.UnitResponseRow{enrichedRow()})
	if dropped != 0 || len(records) != 1 {
		t.Fatalf("records = %d dropped = %d", len(records), dropped)
	}

	rec := records[0]
	if rec.Key != (models.RecordKey{IncidentID: "F100", UnitID: "ENG201", Assigned: "2024-05-10 09:00:00"}) {
		t.Fatalf("key = %+v", rec.Key)
	}
	if rec.Fields["response_seconds"] != "300" {
		t.Fatalf("response_seconds = %q", rec.Fields["response_seconds"])
	}
	if rec.Fields["travel_seconds"] != "" {
		t.Fatalf("indeterminate metric must render blank, got %q", rec.Fields["travel_seconds"])
	}
	if rec.Fields["incident_type"] != "Structure Fire" {
		t.Fatalf("passthrough lost: %+v", rec.Fields)
	}
	// Deterministic concurrency rendering, sorted by tracker name.
	if rec.Fields["concurrent_usage"] != "all=3;eng2=1" {
		t.Fatalf("concurrent_usage = %q", rec.Fields["concurrent_usage"])
	}
}

func TestBuildRecordsNeverReachedSentinel(t *testing.T) {
	row := enrichedRow()
	row.ForceReached = false
	records, _ := BuildRecords([]models.UnitResponseRow{row})
	if records[0].Fields["force_arrival"] != NeverReached {
		t.Fatalf("force_arrival = %q, want sentinel", records[0].Fields["force_arrival"])
	}

	row.ForceReached = true
	row.ForceArrival = row.Arrived
	row.ForceSeconds = models.Metric{Seconds: 300, Valid: true}
	records, _ = BuildRecords([]models.UnitResponseRow{row})
	if records[0].Fields["force_arrival"] != "2024-05-10 09:05:00" {
		t.Fatalf("force_arrival = %q, want timestamp", records[0].Fields["force_arrival"])
	}
	if records[0].Fields["force_seconds"] != "300" {
		t.Fatalf("force_seconds = %q", records[0].Fields["force_seconds"])
	}
}

func TestBuildRecordsDropsRowsWithoutKey(t *testing.T) {
	row := enrichedRow()
	row.Assigned = models.Timestamp{}
	records, dropped := BuildRecords([]models.UnitResponseRow{row})
	if len(records) != 0 || dropped != 1 {
		t.Fatalf("records = %d dropped = %d, want 0/1", len(records), dropped)
	}
}
