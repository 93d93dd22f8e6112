package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dispatchstack/dispatch-etl/internal/models"
	"github.com/dispatchstack/dispatch-etl/internal/repo"
)

// Storage is the store surface the reconciliation engine needs.
type Storage interface {
	FetchWindow(ctx context.Context, source models.Source, window models.TimeRange) ([]models.Record, error)
	MergeRecord(ctx context.Context, rec models.Record) error
	UpsertRaw(ctx context.Context, rec models.Record) error
}

// Engine walks one batch through LOADED -> WINDOWED -> DIFFED -> APPLIED.
// The apply step is not transactional across the batch: every record is
// attempted independently, recoverable store errors skip the row, and only
// connection loss aborts the remainder.
type Engine struct {
	logger *slog.Logger
	store  Storage
}

// NewEngine constructs a reconciliation engine over the given store.
func NewEngine(logger *slog.Logger, store Storage) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, store: store}
}

// Reconcile diffs the incoming records against the stored window and applies
// the resulting ChangeSet, updating summary in place. The returned ChangeSet
// is what the caller hands to the report publisher.
func (e *Engine) Reconcile(ctx context.Context, source models.Source, incoming []models.Record, summary *models.RunSummary) (models.ChangeSet, error) {
	summary.State = models.RunLoaded

	window, ok := Window(incoming)
	if !ok {
		e.logger.Info("empty batch, nothing to reconcile", slog.String("source", string(source)))
		summary.State = models.RunApplied
		return models.ChangeSet{}, nil
	}
	summary.Window = window
	summary.State = models.RunWindowed

	stored, err := e.store.FetchWindow(ctx, source, window)
	if err != nil {
		return models.ChangeSet{}, err
	}

	cs, unchanged := Diff(incoming, stored)
	summary.Unchanged = unchanged
	summary.State = models.RunDiffed
	e.logger.Info("batch diffed",
		slog.String("source", string(source)),
		slog.Int("inserts", len(cs.Inserts)),
		slog.Int("updates", len(cs.Updates)),
		slog.Int("unchanged", unchanged))

	for _, rec := range cs.Inserts {
		switch err := e.applyOne(ctx, rec, summary); {
		case errors.Is(err, errSkipped):
		case err != nil:
			return cs, err
		default:
			summary.Inserted++
		}
	}
	for _, upd := range cs.Updates {
		switch err := e.applyOne(ctx, upd.Record, summary); {
		case errors.Is(err, errSkipped):
		case err != nil:
			return cs, err
		default:
			summary.Updated++
		}
	}
	summary.State = models.RunApplied
	return cs, nil
}

// errSkipped marks a row that was counted and skipped so the loop continues
// without tallying it as applied.
var errSkipped = errors.New("row skipped")

// applyOne merges a record into the analytics table and upserts its raw
// companion. A recoverable failure is counted against the summary and
// surfaced as errSkipped; anything else is terminal for the batch.
func (e *Engine) applyOne(ctx context.Context, rec models.Record, summary *models.RunSummary) error {
	if err := e.store.MergeRecord(ctx, rec); err != nil {
		return e.recordFailure(rec, err, summary)
	}
	if err := e.store.UpsertRaw(ctx, rec); err != nil {
		return e.recordFailure(rec, err, summary)
	}
	return nil
}

func (e *Engine) recordFailure(rec models.Record, err error, summary *models.RunSummary) error {
	var se *repo.StoreError
	if errors.As(err, &se) && se.Recoverable() {
		summary.RecordSkip(skipReason(se.Category))
		e.logger.Warn("row skipped",
			slog.String("incident", rec.Key.IncidentID),
			slog.String("unit", rec.Key.UnitID),
			slog.String("assigned", rec.Key.Assigned),
			slog.String("reason", string(se.Category)),
			slog.String("table", se.Table),
			slog.String("detail", se.Detail))
		return errSkipped
	}
	return err
}

func skipReason(cat repo.Category) models.SkipReason {
	switch cat {
	case repo.CategoryDuplicateKey:
		return models.SkipDuplicateKey
	case repo.CategoryTruncation:
		return models.SkipTruncation
	case repo.CategoryNotNull:
		return models.SkipNullViolation
	default:
		return models.SkipUnknown
	}
}
