package report

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dispatchstack/dispatch-etl/internal/utils"
)

// Publisher delivers a finished report to whoever sends it onward.
type Publisher interface {
	Publish(ctx context.Context, rep Report) error
}

// QueuePublisher pushes reports onto a Redis list. The external mailer pops
// from the same list, so delivery survives mailer restarts.
type QueuePublisher struct {
	client *redis.Client
	queue  string
	logger *slog.Logger
}

// NewQueuePublisher wires a publisher to an existing Redis connection.
func NewQueuePublisher(client *redis.Client, queue string, logger *slog.Logger) *QueuePublisher {
	if queue == "" {
		queue = "dispatch-etl:reports"
	}
	return &QueuePublisher{client: client, queue: queue, logger: logger}
}

// Publish serializes the report and enqueues it.
func (p *QueuePublisher) Publish(ctx context.Context, rep Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return &utils.AppError{Op: "report.publish", Msg: "marshal report", Err: err}
	}
	if err := p.client.LPush(ctx, p.queue, payload).Err(); err != nil {
		return &utils.AppError{Op: "report.publish", Msg: "enqueue report", Err: err}
	}
	p.logger.Info("report published",
		"queue", p.queue,
		"run_id", rep.RunID,
		"inserts", len(rep.Inserts.Rows),
		"updates", len(rep.Updates.Rows))
	return nil
}

// LogPublisher writes the report summary to the log instead of a queue. Used
// when no Redis endpoint is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a publisher that only logs.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the report counters and discards the document.
func (p *LogPublisher) Publish(_ context.Context, rep Report) error {
	p.logger.Info("report (queue disabled)",
		"run_id", rep.RunID,
		"source", rep.Source,
		"file", rep.File,
		"inserted", rep.Summary.Inserted,
		"updated", rep.Summary.Updated,
		"unchanged", rep.Summary.Unchanged,
		"skipped", rep.Summary.Skipped)
	return nil
}
