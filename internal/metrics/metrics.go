package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dispatchstack/dispatch-etl/internal/models"
)

const (
	// OutcomeSuccess labels batch runs that reached the REPORTED state.
	OutcomeSuccess = "success"
	// OutcomeError labels batch runs aborted by a fatal error.
	OutcomeError = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch_etl",
			Name:      "runs_total",
			Help:      "Total number of batch runs, partitioned by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dispatch_etl",
			Name:      "run_seconds",
			Help:      "Batch run latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	rowsReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch_etl",
			Name:      "rows_read_total",
			Help:      "CSV rows read from source files, partitioned by source.",
		},
		[]string{"source"},
	)

	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch_etl",
			Name:      "records_total",
			Help:      "Reconciled records, partitioned by source and disposition.",
		},
		[]string{"source", "disposition"},
	)

	skipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch_etl",
			Name:      "skips_total",
			Help:      "Rows skipped during apply, partitioned by source and reason.",
		},
		[]string{"source", "reason"},
	)
)

// Register attaches dispatch-etl collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		rowsReadTotal,
		recordsTotal,
		skipsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records the counters for one finished batch run.
func ObserveRun(summary models.RunSummary, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	source := string(summary.Source)

	runsTotal.WithLabelValues(source, label).Inc()
	if summary.Duration > 0 {
		runDurationSeconds.Observe(summary.Duration.Seconds())
	}

	rowsReadTotal.WithLabelValues(source).Add(float64(summary.RowsRead))
	recordsTotal.WithLabelValues(source, "inserted").Add(float64(summary.Inserted))
	recordsTotal.WithLabelValues(source, "updated").Add(float64(summary.Updated))
	recordsTotal.WithLabelValues(source, "unchanged").Add(float64(summary.Unchanged))
	for reason, n := range summary.SkipReasons {
		skipsTotal.WithLabelValues(source, string(reason)).Add(float64(n))
	}
}
