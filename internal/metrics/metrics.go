package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"careanalytics/internal/deprivation"
)

// Metrics provides observability for report building and deprivation imports.
type Metrics struct {
	// Report build latency by report kind
	ReportDuration *prometheus.HistogramVec

	// Postcode classification outcomes
	Classifications *prometheus.CounterVec

	// Loader row counts by outcome
	LoaderRows *prometheus.CounterVec

	// Loader batch retries after unprocessed records
	LoaderRetries prometheus.Counter
}

var (
	_ deprivation.LoaderMetrics     = (*Metrics)(nil)
	_ deprivation.ClassifierMetrics = (*Metrics)(nil)
)

// New creates a Metrics instance registered with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ReportDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "careanalytics_report_duration_seconds",
			Help:    "Duration of report builds by report kind",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"kind"}), // kind: "requests", "packages", "attendance_allowance", "snapshot"

		Classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careanalytics_postcode_classifications_total",
			Help: "Total postcode classifications by outcome",
		}, []string{"outcome"}), // outcome: "matched", "unmatched"

		LoaderRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "careanalytics_deprivation_rows_total",
			Help: "Deprivation import rows by outcome",
		}, []string{"outcome"}), // outcome: "read", "skipped", "written"

		LoaderRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "careanalytics_deprivation_batch_retries_total",
			Help: "Batch write retries caused by unprocessed records",
		}),
	}
}

// ObserveReport records how long a report of the given kind took to build.
func (m *Metrics) ObserveReport(kind string, d time.Duration) {
	if m != nil {
		m.ReportDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// IncClassification records a classification outcome.
func (m *Metrics) IncClassification(outcome string) {
	if m != nil {
		m.Classifications.WithLabelValues(outcome).Inc()
	}
}

// AddRows adds n loader rows with the given outcome.
func (m *Metrics) AddRows(outcome string, n int) {
	if m != nil && n > 0 {
		m.LoaderRows.WithLabelValues(outcome).Add(float64(n))
	}
}

// IncRetries records one batch retry.
func (m *Metrics) IncRetries() {
	if m != nil {
		m.LoaderRetries.Inc()
	}
}
