package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dispatchstack/dispatch-etl/internal/models"
	"github.com/dispatchstack/dispatch-etl/internal/temporal"
	"github.com/dispatchstack/dispatch-etl/internal/utils"
)

// Loader turns one source-specific CSV export into canonical unit-response
// rows. Column renaming and timestamp coercion happen here in one pass, so
// everything downstream sees only the canonical column set.
type Loader struct {
	logger *slog.Logger
	loc    *time.Location
}

// NewLoader constructs a loader; timestamps without zone information are
// interpreted in loc.
func NewLoader(logger *slog.Logger, loc *time.Location) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Loader{logger: logger, loc: loc}
}

// LoadFile opens path and loads it with the given source schema.
func (l *Loader) LoadFile(path string, source models.Source, schema Schema, rejects *temporal.RejectLog) ([]models.UnitResponseRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.NewAppError("ingest.LoadFile", "open batch file", err)
	}
	defer f.Close()
	return l.Load(f, source, schema, rejects)
}

// Load reads a CSV batch from r. The first record is the header row; headers
// are matched case-insensitively after trimming. Rows missing an incident or
// unit identifier are dropped and counted, not fatal.
func (l *Loader) Load(r io.Reader, source models.Source, schema Schema, rejects *temporal.RejectLog) ([]models.UnitResponseRow, error) {
	if err := schema.Validate(); err != nil {
		return nil, utils.NewAppError("ingest.Load", "invalid source schema", err)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, utils.NewAppError("ingest.Load", "read header row", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	resolve := make(map[string]int)
	for canonical, sourceHeader := range schema.columns() {
		if sourceHeader == "" {
			continue
		}
		if i, ok := index[strings.ToLower(strings.TrimSpace(sourceHeader))]; ok {
			resolve[canonical] = i
		}
	}
	for canonical := range schema.required() {
		if _, ok := resolve[canonical]; !ok {
			return nil, utils.NewAppError("ingest.Load",
				fmt.Sprintf("batch is missing required column %q", canonical), nil)
		}
	}

	var rows []models.UnitResponseRow
	dropped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, utils.NewAppError("ingest.Load", "read data row", err)
		}

		field := func(canonical string) string {
			i, ok := resolve[canonical]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		incident := NormalizeID(field(ColIncidentID))
		unitID := strings.TrimSpace(field(ColUnitID))
		if incident == "" || unitID == "" {
			dropped++
			continue
		}

		raw := make(map[string]string, len(resolve))
		for canonical := range resolve {
			raw[canonical] = field(canonical)
		}
		raw[ColIncidentID] = incident

		rows = append(rows, models.UnitResponseRow{
			Source:     source,
			IncidentID: incident,
			UnitID:     unitID,
			Assigned:   temporal.ParseTimestamp(field(ColAssigned), l.loc, rejects),
			Enroute:    temporal.ParseTimestamp(field(ColEnroute), l.loc, rejects),
			Staged:     temporal.ParseTimestamp(field(ColStaged), l.loc, rejects),
			Arrived:    temporal.ParseTimestamp(field(ColArrived), l.loc, rejects),
			Cleared:    temporal.ParseTimestamp(field(ColCleared), l.loc, rejects),
			Raw:        raw,
		})
	}

	if dropped > 0 {
		l.logger.Warn("dropped rows without incident or unit identifier",
			slog.Int("count", dropped), slog.String("source", string(source)))
	}
	return rows, nil
}
