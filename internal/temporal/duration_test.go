package temporal

import (
	"testing"
	"time"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

func ts(minute, second int) models.Timestamp {
	return models.TS(time.Date(2024, 5, 10, 8, minute, second, 0, time.UTC))
}

func TestDiffSeconds(t *testing.T) {
	got := Diff(ts(0, 0), ts(2, 30), false)
	if !got.Valid || got.Seconds != 150 {
		t.Fatalf("Diff = %+v, want 150s", got)
	}

	rev := Diff(ts(0, 0), ts(2, 30), true)
	if !rev.Valid || rev.Seconds != -150 {
		t.Fatalf("reverse Diff = %+v, want -150s", rev)
	}
}

func TestDiffIndeterminateIsContagious(t *testing.T) {
	absent := models.Timestamp{}

	if got := Diff(ts(0, 0), absent, false); got.Valid {
		t.Fatalf("missing end must be indeterminate, got %+v", got)
	}
	if got := Diff(absent, ts(0, 0), false); got.Valid {
		t.Fatalf("missing start must be indeterminate, got %+v", got)
	}
	// Missing end stays indeterminate regardless of start validity.
	if got := Diff(absent, absent, false); got.Valid {
		t.Fatalf("both missing must be indeterminate, got %+v", got)
	}
}

func TestFormatHMS(t *testing.T) {
	cases := []struct {
		in   models.Metric
		want string
	}{
		{models.Metric{Seconds: 0, Valid: true}, "00:00:00"},
		{models.Metric{Seconds: 3661, Valid: true}, "01:01:01"},
		{models.Metric{Seconds: 45296, Valid: true}, "12:34:56"},
		{models.Metric{Seconds: -5, Valid: true}, ""},
		{models.Indeterminate, ""},
	}
	for _, tc := range cases {
		if got := FormatHMS(tc.in); got != tc.want {
			t.Fatalf("FormatHMS(%+v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEnrichPlainMetrics(t *testing.T) {
	row := models.UnitResponseRow{
		Assigned: ts(0, 0),
		Enroute:  ts(1, 0),
		Arrived:  ts(5, 0),
		Cleared:  ts(20, 0),
	}
	got := Enrich(row)

	if got.TurnoutTime.Seconds != 60 || !got.TurnoutTime.Valid {
		t.Fatalf("turnout = %+v, want 60s", got.TurnoutTime)
	}
	if got.TravelTime.Seconds != 240 {
		t.Fatalf("travel = %+v, want 240s", got.TravelTime)
	}
	if got.ResponseTime.Seconds != 300 {
		t.Fatalf("response = %+v, want 300s", got.ResponseTime)
	}
	if got.TimeOnScene.Seconds != 900 {
		t.Fatalf("on scene = %+v, want 900s", got.TimeOnScene)
	}
	if got.TotalCommitted.Seconds != 1200 {
		t.Fatalf("committed = %+v, want 1200s", got.TotalCommitted)
	}
}

func TestEnrichStagingSubstitution(t *testing.T) {
	// Staged between enroute and arrival: staging stands in for arrival in
	// travel and response, but not in on-scene or committed time.
	row := models.UnitResponseRow{
		Assigned: ts(0, 0),
		Enroute:  ts(1, 0),
		Staged:   ts(3, 0),
		Arrived:  ts(5, 0),
		Cleared:  ts(20, 0),
	}
	got := Enrich(row)

	if got.TravelTime.Seconds != 120 {
		t.Fatalf("travel = %+v, want 120s (to staging)", got.TravelTime)
	}
	if got.ResponseTime.Seconds != 180 {
		t.Fatalf("response = %+v, want 180s (to staging)", got.ResponseTime)
	}
	if got.TimeOnScene.Seconds != 900 {
		t.Fatalf("on scene = %+v, want 900s (actual arrival)", got.TimeOnScene)
	}
}

func TestEnrichNoSubstitutionOutsideWindow(t *testing.T) {
	// Staged before enroute: substitution must not apply.
	row := models.UnitResponseRow{
		Assigned: ts(0, 0),
		Enroute:  ts(2, 0),
		Staged:   ts(1, 0),
		Arrived:  ts(5, 0),
	}
	if got := Enrich(row); got.TravelTime.Seconds != 180 {
		t.Fatalf("travel = %+v, want 180s (no substitution)", got.TravelTime)
	}

	// Staged missing entirely: plain arrival math.
	row.Staged = models.Timestamp{}
	if got := Enrich(row); got.ResponseTime.Seconds != 300 {
		t.Fatalf("response = %+v, want 300s", got.ResponseTime)
	}
}

func TestEnrichMissingEndpointsStayIndeterminate(t *testing.T) {
	row := models.UnitResponseRow{
		Assigned: ts(0, 0),
		// no enroute, no arrival, no cleared
	}
	got := Enrich(row)
	for name, m := range map[string]models.Metric{
		"turnout":   got.TurnoutTime,
		"travel":    got.TravelTime,
		"response":  got.ResponseTime,
		"on_scene":  got.TimeOnScene,
		"committed": got.TotalCommitted,
	} {
		if m.Valid {
			t.Fatalf("%s = %+v, want indeterminate", name, m)
		}
	}
}
