package temporal

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

// Layouts accepted by ParseTimestamp, tried in order. CAD exports are not
// consistent about separators or 12/24-hour clocks, so the list is broad.
var layouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05.999999",
	"01/02/2006 15:04:05",
	"01/02/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"2006-01-02",
	"01/02/2006",
}

// nullMarkers are source values treated as an absent timestamp rather than a
// parse failure.
var nullMarkers = map[string]struct{}{
	"":     {},
	"null": {},
	"-":    {},
	"n/a":  {},
	"na":   {},
}

// RejectLog collects samples of timestamp inputs the parser could not handle.
// It is scoped to one batch run and emitted once at the end, replacing any
// process-wide debug state.
type RejectLog struct {
	mu      sync.Mutex
	max     int
	total   int
	samples []string
}

// NewRejectLog creates a log keeping at most max distinct samples.
func NewRejectLog(max int) *RejectLog {
	if max <= 0 {
		max = 25
	}
	return &RejectLog{max: max}
}

func (r *RejectLog) add(value string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	for _, s := range r.samples {
		if s == value {
			return
		}
	}
	if len(r.samples) < r.max {
		r.samples = append(r.samples, value)
	}
}

// Total returns the number of rejected inputs seen so far.
func (r *RejectLog) Total() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Emit logs the collected samples, if any, and resets the log.
func (r *RejectLog) Emit(logger *slog.Logger) {
	if r == nil {
		return
	}
	r.mu.Lock()
	total := r.total
	samples := r.samples
	r.total = 0
	r.samples = nil
	r.mu.Unlock()

	if total == 0 || logger == nil {
		return
	}
	logger.Warn("unparseable timestamp values in batch",
		slog.Int("count", total),
		slog.Any("samples", samples))
}

// ParseTimestamp converts one source value into a nullable timestamp.
// Empty strings and explicit null markers are absent; unparseable values are
// also absent but get recorded in the reject log. Times are interpreted in
// loc when the layout carries no zone.
func ParseTimestamp(value string, loc *time.Location, rejects *RejectLog) models.Timestamp {
	trimmed := strings.TrimSpace(value)
	if _, ok := nullMarkers[strings.ToLower(trimmed)]; ok {
		return models.Timestamp{}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return models.TS(t)
		}
	}
	rejects.add(trimmed)
	return models.Timestamp{}
}
