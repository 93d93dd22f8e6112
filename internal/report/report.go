package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

// Table is one tabular attachment of the outbound report. Column order is
// fixed so the mailer renders identical layouts run after run.
type Table struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Summary mirrors the run counters in wire form.
type Summary struct {
	State       string         `json:"state"`
	WindowStart time.Time      `json:"window_start"`
	WindowEnd   time.Time      `json:"window_end"`
	RowsRead    int            `json:"rows_read"`
	Incidents   int            `json:"incidents"`
	Inserted    int            `json:"inserted"`
	Updated     int            `json:"updated"`
	Unchanged   int            `json:"unchanged"`
	Skipped     int            `json:"skipped"`
	SkipReasons map[string]int `json:"skip_reasons,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
}

// Report is the JSON document published after a batch run. The external
// mailer consumes it verbatim.
type Report struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	File        string    `json:"file"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`
	Inserts     Table     `json:"inserts"`
	Updates     Table     `json:"updates"`
}

// Build assembles the outbound report from a run summary and the applied
// change set. Key columns lead every row; value columns follow in canonical
// order, and update rows end with a rendering of the fields that changed.
func Build(summary models.RunSummary, cs models.ChangeSet) Report {
	return Report{
		RunID:       summary.RunID,
		Source:      string(summary.Source),
		File:        summary.File,
		GeneratedAt: time.Now().UTC(),
		Summary:     buildSummary(summary),
		Inserts:     insertTable(cs.Inserts),
		Updates:     updateTable(cs.Updates),
	}
}

func buildSummary(s models.RunSummary) Summary {
	out := Summary{
		State:      string(s.State),
		RowsRead:   s.RowsRead,
		Incidents:  s.Incidents,
		Inserted:   s.Inserted,
		Updated:    s.Updated,
		Unchanged:  s.Unchanged,
		Skipped:    s.Skipped,
		DurationMS: s.Duration.Milliseconds(),
	}
	if s.Window.Valid() {
		out.WindowStart = s.Window.Start
		out.WindowEnd = s.Window.End
	}
	if len(s.SkipReasons) > 0 {
		out.SkipReasons = make(map[string]int, len(s.SkipReasons))
		for reason, n := range s.SkipReasons {
			out.SkipReasons[string(reason)] = n
		}
	}
	return out
}

func insertTable(inserts []models.Record) Table {
	t := Table{
		Title:   "Inserted records",
		Columns: recordColumns(),
		Rows:    make([][]string, 0, len(inserts)),
	}
	for _, rec := range inserts {
		t.Rows = append(t.Rows, recordRow(rec))
	}
	return t
}

func updateTable(updates []models.Update) Table {
	t := Table{
		Title:   "Updated records",
		Columns: append(recordColumns(), "changes"),
		Rows:    make([][]string, 0, len(updates)),
	}
	for _, upd := range updates {
		row := append(recordRow(upd.Record), renderChanges(upd.Changes))
		t.Rows = append(t.Rows, row)
	}
	return t
}

func recordColumns() []string {
	cols := make([]string, 0, len(models.KeyColumns)+len(models.ValueColumns))
	cols = append(cols, models.KeyColumns...)
	cols = append(cols, models.ValueColumns...)
	return cols
}

func recordRow(rec models.Record) []string {
	row := make([]string, 0, len(models.KeyColumns)+len(models.ValueColumns))
	row = append(row, rec.Key.IncidentID, rec.Key.UnitID, rec.Key.Assigned)
	for _, col := range models.ValueColumns {
		row = append(row, rec.Fields[col])
	}
	return row
}

func renderChanges(changes []models.FieldChange) string {
	parts := make([]string, 0, len(changes))
	for _, ch := range changes {
		parts = append(parts, fmt.Sprintf("%s: %q -> %q", ch.Field, ch.Old, ch.New))
	}
	return strings.Join(parts, "; ")
}
