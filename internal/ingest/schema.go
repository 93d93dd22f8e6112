package ingest

import (
	"fmt"
	"strings"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

// Canonical column names every source is mapped onto before the core runs.
const (
	ColIncidentID = "incident_id"
	ColUnitID     = "unit_id"
	ColAssigned   = "assigned"
	ColEnroute    = "enroute"
	ColStaged     = "staged"
	ColArrived    = "arrived"
	ColCleared    = "cleared"
)

// Schema maps one source's spreadsheet headers onto the canonical column set.
// Extra carries passthrough columns (canonical name -> source header) that are
// stored on the raw table but not interpreted by the core.
type Schema struct {
	IncidentID string            `yaml:"incident_id"`
	UnitID     string            `yaml:"unit_id"`
	Assigned   string            `yaml:"assigned"`
	Enroute    string            `yaml:"enroute"`
	Staged     string            `yaml:"staged"`
	Arrived    string            `yaml:"arrived"`
	Cleared    string            `yaml:"cleared"`
	Extra      map[string]string `yaml:"extra"`
}

// DefaultSchema returns the header mapping shipped for a source's CAD export.
func DefaultSchema(source models.Source) Schema {
	switch source {
	case models.SourceFire:
		return Schema{
			IncidentID: "inci_id",
			UnitID:     "unit",
			Assigned:   "dispatch",
			Enroute:    "enroute",
			Staged:     "staged",
			Arrived:    "arrived",
			Cleared:    "available",
			Extra: map[string]string{
				"incident_type": "inci_type",
				"address":       "address",
			},
		}
	default:
		return Schema{
			IncidentID: "Incident_Number",
			UnitID:     "Unit",
			Assigned:   "Unit_Assigned",
			Enroute:    "Unit_Enroute",
			Staged:     "Unit_Staged",
			Arrived:    "Unit_Arrived",
			Cleared:    "Unit_Cleared",
			Extra: map[string]string{
				"incident_type": "Run_Type",
				"address":       "Scene_Address",
			},
		}
	}
}

// required lists the canonical columns that must resolve to a source header.
func (s Schema) required() map[string]string {
	return map[string]string{
		ColIncidentID: s.IncidentID,
		ColUnitID:     s.UnitID,
		ColAssigned:   s.Assigned,
	}
}

// columns returns every canonical->source header pair the schema defines.
func (s Schema) columns() map[string]string {
	out := map[string]string{
		ColIncidentID: s.IncidentID,
		ColUnitID:     s.UnitID,
		ColAssigned:   s.Assigned,
		ColEnroute:    s.Enroute,
		ColStaged:     s.Staged,
		ColArrived:    s.Arrived,
		ColCleared:    s.Cleared,
	}
	for canonical, header := range s.Extra {
		out[canonical] = header
	}
	return out
}

// Validate checks that the schema names at least the key columns.
func (s Schema) Validate() error {
	for canonical, header := range s.required() {
		if strings.TrimSpace(header) == "" {
			return fmt.Errorf("schema missing source header for %s", canonical)
		}
	}
	return nil
}

// NormalizeID canonicalizes an identifier for key comparison: surrounding
// whitespace is dropped and a trailing ".0" (a spreadsheet artifact on
// numeric incident numbers) is stripped, so "2024001.0" and "2024001"
// compare equal.
func NormalizeID(value string) string {
	v := strings.TrimSpace(value)
	if strings.HasSuffix(v, ".0") {
		trimmed := strings.TrimSuffix(v, ".0")
		if trimmed != "" && strings.IndexFunc(trimmed, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
			v = trimmed
		}
	}
	return v
}
