package engine

import (
	"log/slog"

	"github.com/dispatchstack/dispatch-etl/internal/classify"
	"github.com/dispatchstack/dispatch-etl/internal/models"
	"github.com/dispatchstack/dispatch-etl/internal/temporal"
)

// Pipeline derives the enriched incident dataset from normalized rows: it
// computes duration metrics, assigns unit classes and statuses, joins the
// per-incident CRF aggregate back onto every row, and annotates concurrency.
type Pipeline struct {
	logger   *slog.Logger
	table    *classify.Table
	crf      *CRFCalculator
	trackers []*UsageTracker
}

// NewPipeline constructs the enrichment pipeline.
func NewPipeline(logger *slog.Logger, table *classify.Table, crf *CRFCalculator, trackers []*UsageTracker) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if table == nil {
		table = classify.DefaultTable()
	}
	if crf == nil {
		crf = NewCRFCalculator(table, 0)
	}
	return &Pipeline{logger: logger, table: table, crf: crf, trackers: trackers}
}

// Enrich runs the full derivation over one batch of rows and returns the
// rows in canonical order with every derived field populated.
func (p *Pipeline) Enrich(rows []models.UnitResponseRow) []models.UnitResponseRow {
	enriched := make([]models.UnitResponseRow, 0, len(rows))
	for _, row := range rows {
		row.Class, _ = p.table.Classify(row.UnitID)
		enriched = append(enriched, temporal.Enrich(row))
	}

	ordered := classify.OrderRows(enriched)
	withStatus := classify.AssignStatus(ordered)

	// CRF is an incident-level aggregate; compute it once per group and join
	// it back onto each row. AssignStatus preserves canonical order, so the
	// re-grouping here sees arrivals ascending within each incident.
	out := make([]models.UnitResponseRow, 0, len(withStatus))
	for _, group := range classify.OrderRows(withStatus).Groups() {
		result := p.crf.Compute(group)
		for _, row := range group {
			row.ForceReached = result.Reached
			row.ForceArrival = result.Arrival
			row.ForceSeconds = result.Seconds
			out = append(out, row)
		}
	}

	for _, tracker := range p.trackers {
		out = tracker.Annotate(out)
	}

	p.logger.Debug("batch enriched",
		slog.Int("rows", len(out)),
		slog.Int("trackers", len(p.trackers)))
	return out
}
