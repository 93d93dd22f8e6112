package classify

import (
	"testing"
	"time"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

func arrived(minute int) models.Timestamp {
	return models.TS(time.Date(2024, 5, 10, 8, minute, 0, 0, time.UTC))
}

func row(incident, unit string, arrival models.Timestamp) models.UnitResponseRow {
	return models.UnitResponseRow{IncidentID: incident, UnitID: unit, Arrived: arrival}
}

func statusesByUnit(rows []models.UnitResponseRow) map[string]models.UnitStatus {
	out := make(map[string]models.UnitStatus, len(rows))
	for _, r := range rows {
		out[r.IncidentID+"/"+r.UnitID] = r.Status
	}
	return out
}

func TestOrderRowsNullsLast(t *testing.T) {
	ordered := OrderRows([]models.UnitResponseRow{
		row("I1", "U3", models.Timestamp{}),
		row("I1", "U2", arrived(5)),
		row("I1", "U1", arrived(2)),
	})
	rows := ordered.Rows()
	if rows[0].UnitID != "U1" || rows[1].UnitID != "U2" || rows[2].UnitID != "U3" {
		t.Fatalf("canonical order wrong: %s %s %s", rows[0].UnitID, rows[1].UnitID, rows[2].UnitID)
	}
}

func TestAssignStatusFirstAndSubsequent(t *testing.T) {
	ordered := OrderRows([]models.UnitResponseRow{
		row("I1", "ENG1", arrived(1)),
		row("I1", "ENG2", arrived(3)),
		row("I1", "MED1", models.Timestamp{}),
		row("I2", "ENG3", arrived(2)),
	})
	got := statusesByUnit(AssignStatus(ordered))

	if got["I1/ENG1"] != models.StatusFirstArrival {
		t.Fatalf("I1/ENG1 = %s, want FIRST_ARRIVAL", got["I1/ENG1"])
	}
	if got["I1/ENG2"] != models.StatusSubsequent {
		t.Fatalf("I1/ENG2 = %s, want SUBSEQUENT", got["I1/ENG2"])
	}
	// A non-arriving unit after an arrived one is still a subsequent response.
	if got["I1/MED1"] != models.StatusSubsequent {
		t.Fatalf("I1/MED1 = %s, want SUBSEQUENT", got["I1/MED1"])
	}
	if got["I2/ENG3"] != models.StatusFirstArrival {
		t.Fatalf("I2/ENG3 = %s, want FIRST_ARRIVAL", got["I2/ENG3"])
	}
}

func TestAssignStatusCancelledPropagates(t *testing.T) {
	// Incident where no unit ever arrived: opener CANCELLED, the rest NO_ARRIVAL.
	ordered := OrderRows([]models.UnitResponseRow{
		row("I9", "ENG1", models.Timestamp{}),
		row("I9", "ENG2", models.Timestamp{}),
		row("I9", "BAT1", models.Timestamp{}),
	})
	rows := AssignStatus(ordered)

	if rows[0].Status != models.StatusCancelled {
		t.Fatalf("opener = %s, want CANCELLED", rows[0].Status)
	}
	for _, r := range rows[1:] {
		if r.Status != models.StatusNoArrival {
			t.Fatalf("%s = %s, want NO_ARRIVAL", r.UnitID, r.Status)
		}
	}
}

func TestAssignStatusTotalityAndSingleFirst(t *testing.T) {
	ordered := OrderRows([]models.UnitResponseRow{
		row("A", "U1", arrived(1)),
		row("A", "U2", arrived(2)),
		row("A", "U3", models.Timestamp{}),
		row("B", "U4", models.Timestamp{}),
		row("B", "U5", models.Timestamp{}),
		row("C", "U6", arrived(4)),
	})
	rows := AssignStatus(ordered)

	valid := map[models.UnitStatus]bool{
		models.StatusFirstArrival: true,
		models.StatusSubsequent:   true,
		models.StatusCancelled:    true,
		models.StatusNoArrival:    true,
	}
	firsts := make(map[string]int)
	for _, r := range rows {
		if !valid[r.Status] {
			t.Fatalf("row %s/%s has no status", r.IncidentID, r.UnitID)
		}
		if r.Status == models.StatusFirstArrival {
			firsts[r.IncidentID]++
		}
	}
	for incident, n := range firsts {
		if n > 1 {
			t.Fatalf("incident %s has %d FIRST_ARRIVAL rows", incident, n)
		}
	}
}

func TestGroupsSplitsByIncident(t *testing.T) {
	ordered := OrderRows([]models.UnitResponseRow{
		row("A", "U1", arrived(1)),
		row("B", "U2", arrived(2)),
		row("A", "U3", arrived(3)),
	})
	groups := ordered.Groups()
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][0].IncidentID != "A" {
		t.Fatalf("group A wrong: %+v", groups[0])
	}
}
