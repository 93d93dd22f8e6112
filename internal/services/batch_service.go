package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchstack/dispatch-etl/internal/cache"
	"github.com/dispatchstack/dispatch-etl/internal/engine"
	"github.com/dispatchstack/dispatch-etl/internal/ingest"
	"github.com/dispatchstack/dispatch-etl/internal/metrics"
	"github.com/dispatchstack/dispatch-etl/internal/models"
	"github.com/dispatchstack/dispatch-etl/internal/reconcile"
	"github.com/dispatchstack/dispatch-etl/internal/report"
	"github.com/dispatchstack/dispatch-etl/internal/temporal"
	"github.com/dispatchstack/dispatch-etl/internal/utils"
)

// Reconciler is the reconciliation surface the service drives.
type Reconciler interface {
	Reconcile(ctx context.Context, source models.Source, incoming []models.Record, summary *models.RunSummary) (models.ChangeSet, error)
}

// Options wires a BatchService. Cache, Publisher and the file routing dirs
// are optional; everything else is required.
type Options struct {
	Logger     *slog.Logger
	Loader     *ingest.Loader
	Pipeline   *engine.Pipeline
	Reconciler Reconciler
	Cache      cache.Provider
	Publisher  report.Publisher
	Schemas    map[models.Source]ingest.Schema
	LockTTL    time.Duration
	ArchiveDir string
	FailureDir string
}

// BatchService runs one CSV export end to end: load, enrich, reconcile,
// report, then route the input file to the archive or failure directory.
type BatchService struct {
	opts    Options
	latency *utils.LatencyTracker
}

// NewBatchService constructs the service.
func NewBatchService(opts Options) *BatchService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopProvider{}
	}
	if opts.Publisher == nil {
		opts.Publisher = report.NewLogPublisher(opts.Logger)
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	return &BatchService{opts: opts, latency: utils.NewLatencyTracker(256)}
}

// ProcessFile runs the full pipeline over one export file. The returned
// summary is populated even when the run fails partway.
func (s *BatchService) ProcessFile(ctx context.Context, path string, source models.Source) (models.RunSummary, error) {
	summary := models.RunSummary{
		RunID:     uuid.NewString(),
		Source:    source,
		File:      filepath.Base(path),
		StartedAt: time.Now().UTC(),
	}
	logger := s.opts.Logger.With(
		slog.String("run_id", summary.RunID),
		slog.String("source", string(source)),
		slog.String("file", summary.File))

	err := s.run(ctx, logger, path, source, &summary)
	summary.Duration = time.Since(summary.StartedAt)
	s.latency.Observe(summary.Duration)

	if err != nil {
		metrics.ObserveRun(summary, metrics.OutcomeError)
		s.route(logger, path, s.opts.FailureDir)
		logger.Error("batch run failed",
			slog.String("state", string(summary.State)),
			slog.Any("error", err))
		return summary, err
	}

	metrics.ObserveRun(summary, metrics.OutcomeSuccess)
	s.route(logger, path, s.opts.ArchiveDir)
	logger.Info("batch run complete",
		slog.Int("rows", summary.RowsRead),
		slog.Int("inserted", summary.Inserted),
		slog.Int("updated", summary.Updated),
		slog.Int("unchanged", summary.Unchanged),
		slog.Int("skipped", summary.Skipped),
		slog.Duration("took", summary.Duration),
		slog.Duration("p95", s.latency.Percentile(95)))
	return summary, nil
}

func (s *BatchService) run(ctx context.Context, logger *slog.Logger, path string, source models.Source, summary *models.RunSummary) error {
	schema, ok := s.opts.Schemas[source]
	if !ok {
		schema = ingest.DefaultSchema(source)
	}

	rejects := temporal.NewRejectLog(10)
	rows, err := s.opts.Loader.LoadFile(path, source, schema, rejects)
	if err != nil {
		return err
	}
	summary.RowsRead = len(rows)
	summary.Incidents = countIncidents(rows)

	enriched := s.opts.Pipeline.Enrich(rows)
	records, dropped := reconcile.BuildRecords(enriched)
	if dropped > 0 {
		logger.Warn("rows without assignment time dropped", slog.Int("count", dropped))
	}
	rejects.Emit(logger)

	unlock, err := s.acquireLock(ctx, logger, source, records, summary.RunID)
	if err != nil {
		return err
	}
	defer unlock()

	cs, err := s.opts.Reconciler.Reconcile(ctx, source, records, summary)
	if err != nil {
		return err
	}

	if err := s.opts.Publisher.Publish(ctx, report.Build(*summary, cs)); err != nil {
		return err
	}
	summary.State = models.RunReported
	return nil
}

// acquireLock takes a best-effort advisory lock on the batch's day window so
// two concurrent runs never reconcile overlapping extents. An empty batch
// needs no lock.
func (s *BatchService) acquireLock(ctx context.Context, logger *slog.Logger, source models.Source, records []models.Record, runID string) (func(), error) {
	window, ok := reconcile.Window(records)
	if !ok {
		return func() {}, nil
	}

	key := fmt.Sprintf("dispatch-etl:lock:%s:%s:%s",
		source,
		window.Start.UTC().Format("20060102"),
		window.End.UTC().Format("20060102"))
	won, err := s.opts.Cache.SetNX(ctx, key, []byte(runID), s.opts.LockTTL)
	if err != nil {
		return nil, utils.NewAppError("services.ProcessFile", "acquire run-window lock", err)
	}
	if !won {
		return nil, utils.NewAppError("services.ProcessFile", fmt.Sprintf("window %s already locked by another run", key), nil)
	}

	return func() {
		if err := s.opts.Cache.Del(context.WithoutCancel(ctx), key); err != nil {
			logger.Warn("release run-window lock", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

// ProcessDir runs every CSV file in dir in name order. A failing file does
// not stop the rest; the first error is returned after all files ran.
func (s *BatchService) ProcessDir(ctx context.Context, dir string, source models.Source) ([]models.RunSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, utils.NewAppError("services.ProcessDir", "read batch directory", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	var summaries []models.RunSummary
	var firstErr error
	for _, file := range files {
		if ctx.Err() != nil {
			return summaries, ctx.Err()
		}
		summary, err := s.ProcessFile(ctx, file, source)
		summaries = append(summaries, summary)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return summaries, firstErr
}

// route moves a processed file into dest. Routing failures are logged, not
// fatal; an empty dest disables routing.
func (s *BatchService) route(logger *slog.Logger, path, dest string) {
	if dest == "" {
		return
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		logger.Warn("create routing directory", slog.String("dir", dest), slog.Any("error", err))
		return
	}
	target := filepath.Join(dest, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		logger.Warn("route batch file", slog.String("target", target), slog.Any("error", err))
	}
}

func countIncidents(rows []models.UnitResponseRow) int {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		seen[row.IncidentID] = struct{}{}
	}
	return len(seen)
}
