package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/registry-ingest/internal/model"
)

const metricsNamespace = "ingest"

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Ingestion runs by terminal status.",
		},
		[]string{"status"},
	)

	columnsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "columns_created_total",
			Help:      "Columns promoted by schema evolution, by table.",
		},
		[]string{"table"},
	)

	unmappedCodesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unmapped_codes_total",
			Help:      "Line-item codes counted as missing from the legend.",
		},
	)

	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one document ingestion.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(columnsCreatedTotal)
	prometheus.MustRegister(unmappedCodesTotal)
	prometheus.MustRegister(runDuration)
}

func observeRun(s model.RunSummary, unmapped int, elapsed time.Duration) {
	runsTotal.WithLabelValues(string(s.Status)).Inc()
	for _, c := range s.CreatedColumns {
		columnsCreatedTotal.WithLabelValues(c.Table).Inc()
	}
	unmappedCodesTotal.Add(float64(unmapped))
	runDuration.Observe(elapsed.Seconds())
}
