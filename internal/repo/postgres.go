package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

// Store persists analytics and raw unit-response records in Postgres. The
// core only ever asks it two things: read everything in a time window, and
// match-or-insert one record by composite key.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore opens a pgx pool against databaseURL and verifies connectivity.
// maxConns <= 0 keeps the pool default.
func NewStore(ctx context.Context, databaseURL string, maxConns int32, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// AnalyticsTable returns the analytics table name for a source.
func AnalyticsTable(source models.Source) string {
	if source == models.SourceFire {
		return "fire_incident_units"
	}
	return "ems_incident_units"
}

// RawTable returns the raw companion table name for a source.
func RawTable(source models.Source) string {
	if source == models.SourceFire {
		return "raw_fire"
	}
	return "raw_ems"
}

// FetchWindow returns every analytics record whose assigned timestamp falls
// in the half-open window, in store order.
func (s *Store) FetchWindow(ctx context.Context, source models.Source, window models.TimeRange) ([]models.Record, error) {
	table := AnalyticsTable(source)
	query := fmt.Sprintf(
		"SELECT incident_id, unit_id, assigned_at, %s FROM %s WHERE assigned_at >= $1 AND assigned_at < $2",
		strings.Join(models.ValueColumns, ", "), table)

	rows, err := s.pool.Query(ctx, query, window.Start, window.End)
	if err != nil {
		return nil, classify(table, err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var (
			incidentID string
			unitID     string
			assignedAt time.Time
		)
		values := make([]*string, len(models.ValueColumns))
		dest := []any{&incidentID, &unitID, &assignedAt}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, classify(table, err)
		}

		fields := make(map[string]string, len(models.ValueColumns))
		for i, col := range models.ValueColumns {
			if values[i] != nil {
				fields[col] = *values[i]
			} else {
				fields[col] = ""
			}
		}
		records = append(records, models.Record{
			Source:     source,
			Key:        models.RecordKey{IncidentID: incidentID, UnitID: unitID, Assigned: assignedAt.UTC().Format(models.CanonicalTimeLayout)},
			AssignedAt: assignedAt.UTC(),
			Fields:     fields,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(table, err)
	}
	return records, nil
}

// MergeRecord applies one record with an explicit match-or-insert: update
// every non-key column when the full composite key matches, insert the full
// row otherwise. Failures carry a typed category for the apply loop.
func (s *Store) MergeRecord(ctx context.Context, rec models.Record) error {
	table := AnalyticsTable(rec.Source)

	set := make([]string, len(models.ValueColumns))
	args := []any{rec.Key.IncidentID, rec.Key.UnitID, rec.AssignedAt}
	for i, col := range models.ValueColumns {
		set[i] = fmt.Sprintf("%s = $%d", col, i+4)
		args = append(args, nullable(rec.Fields[col]))
	}
	update := fmt.Sprintf(
		"UPDATE %s SET %s WHERE incident_id = $1 AND unit_id = $2 AND assigned_at = $3",
		table, strings.Join(set, ", "))

	tag, err := s.pool.Exec(ctx, update, args...)
	if err != nil {
		return classify(table, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	placeholders := make([]string, 0, len(args))
	for i := range args {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}
	insert := fmt.Sprintf("INSERT INTO %s (incident_id, unit_id, assigned_at, %s) VALUES (%s)",
		table, strings.Join(models.ValueColumns, ", "), strings.Join(placeholders, ", "))

	if _, err := s.pool.Exec(ctx, insert, args...); err != nil {
		return classify(table, err)
	}
	return nil
}

// UpsertRaw match-or-inserts the companion raw row for a record, keyed by the
// same source-specific composite key so the two tables stay joinable.
func (s *Store) UpsertRaw(ctx context.Context, rec models.Record) error {
	table := RawTable(rec.Source)

	payload, err := json.Marshal(rec.Raw)
	if err != nil {
		return &StoreError{Category: CategoryUnknown, Table: table, Err: err}
	}

	update := fmt.Sprintf(
		"UPDATE %s SET payload = $4 WHERE incident_id = $1 AND unit_id = $2 AND assigned_at = $3", table)
	tag, err := s.pool.Exec(ctx, update, rec.Key.IncidentID, rec.Key.UnitID, rec.AssignedAt, payload)
	if err != nil {
		return classify(table, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (incident_id, unit_id, assigned_at, payload) VALUES ($1, $2, $3, $4)", table)
	if _, err := s.pool.Exec(ctx, insert, rec.Key.IncidentID, rec.Key.UnitID, rec.AssignedAt, payload); err != nil {
		return classify(table, err)
	}
	return nil
}

// nullable maps the empty string back to SQL NULL so absences round-trip.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
