package engine

import (
	"testing"
	"time"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

func at(minute int) models.Timestamp {
	return models.TS(time.Date(2024, 5, 10, 9, minute, 0, 0, time.UTC))
}

func unit(id string, arrival models.Timestamp) models.UnitResponseRow {
	return models.UnitResponseRow{IncidentID: "I1", UnitID: id, Arrived: arrival}
}

func TestCRFNeverReachedBelowThreshold(t *testing.T) {
	calc := NewCRFCalculator(nil, 0)
	// ENG1(4) ENG2(4) BAT1(3) MED1(2) -> running totals 4, 8, 11, 13: 13 <= 15.
	group := []models.UnitResponseRow{
		unit("ENG1", at(0)),
		unit("ENG2", at(1)),
		unit("BAT1", at(2)),
		unit("MED1", at(3)),
	}
	if got := calc.Compute(group); got.Reached {
		t.Fatalf("total 13 must not reach threshold, got %+v", got)
	}
}

func TestCRFReachedAtCrossingUnit(t *testing.T) {
	calc := NewCRFCalculator(nil, 0)
	// Adding ENG3(4) pushes the total to 17 > 15 at ENG3's arrival.
	group := []models.UnitResponseRow{
		unit("ENG1", at(0)),
		unit("ENG2", at(1)),
		unit("BAT1", at(2)),
		unit("MED1", at(3)),
		unit("ENG3", at(4)),
	}
	got := calc.Compute(group)
	if !got.Reached {
		t.Fatalf("total 17 must reach threshold")
	}
	if !got.Arrival.Time.Equal(at(4).Time) {
		t.Fatalf("threshold arrival = %v, want ENG3's arrival %v", got.Arrival.Time, at(4).Time)
	}
	if !got.Seconds.Valid || got.Seconds.Seconds != 240 {
		t.Fatalf("elapsed = %+v, want 240s", got.Seconds)
	}
}

func TestCRFExactThresholdNotEnough(t *testing.T) {
	// Threshold is strict: 16 > 15 reaches, 15 does not. Four engines total 16.
	calc := NewCRFCalculator(nil, 0)
	group := []models.UnitResponseRow{
		unit("ENG1", at(0)),
		unit("ENG2", at(1)),
		unit("ENG3", at(2)),
	}
	if got := calc.Compute(group); got.Reached {
		t.Fatalf("total 12 must not reach, got %+v", got)
	}
	group = append(group, unit("ENG4", at(3)))
	got := calc.Compute(group)
	if !got.Reached || !got.Arrival.Time.Equal(at(3).Time) {
		t.Fatalf("total 16 must reach at fourth engine, got %+v", got)
	}
}

func TestCRFMonotonicity(t *testing.T) {
	calc := NewCRFCalculator(nil, 0)
	group := []models.UnitResponseRow{
		unit("ENG1", at(0)),
		unit("ENG2", at(1)),
		unit("ENG3", at(2)),
		unit("ENG4", at(3)),
	}
	before := calc.Compute(group)

	// Appending a later unit cannot move an already-reached threshold.
	later := append(append([]models.UnitResponseRow(nil), group...), unit("MED9", at(30)))
	after := calc.Compute(later)
	if !after.Reached || !after.Arrival.Time.Equal(before.Arrival.Time) {
		t.Fatalf("appending a unit moved the threshold: %+v vs %+v", before, after)
	}
}

func TestCRFIgnoresRowsWithoutArrival(t *testing.T) {
	calc := NewCRFCalculator(nil, 0)
	group := []models.UnitResponseRow{
		unit("ENG1", at(0)),
		unit("ENG2", models.Timestamp{}), // dispatched, never arrived
	}
	if got := calc.Compute(group); got.Reached {
		t.Fatalf("non-arriving units must not add force, got %+v", got)
	}
}

func TestCRFEmptyIncidentNeverReached(t *testing.T) {
	calc := NewCRFCalculator(nil, 0)
	got := calc.Compute(nil)
	if got.Reached || got.Arrival.Valid || got.Seconds.Valid {
		t.Fatalf("zero arrived units must be the never-reached sentinel, got %+v", got)
	}
}
