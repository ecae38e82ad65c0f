package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "ingest"

// Metrics groups the ingest collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	fetchDurationMetric      *prometheus.SummaryVec
	fetchRetriesMetric       prometheus.Counter
	fetchFailuresMetric      prometheus.Counter
	validationFailuresMetric *prometheus.CounterVec
	ledgersEmittedMetric     *prometheus.CounterVec
	latestLedgerMetric       prometheus.Gauge
	parseErrorsMetric        prometheus.Counter
	gapsMetric               prometheus.Counter
}

// NewMetrics builds the collectors and registers them with registry when it
// is not nil.
func NewMetrics(namespace string, registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchDurationMetric: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: namespace, Subsystem: metricsSubsystem, Name: "ledger_fetch_duration_seconds",
			Help:       "ledger fetch durations, sliding window = 10m",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"result"}),
		fetchRetriesMetric: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: metricsSubsystem, Name: "fetch_retries_total",
			Help: "ledger fetch attempts that were retried",
		}),
		fetchFailuresMetric: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: metricsSubsystem, Name: "fetch_failures_total",
			Help: "ledger fetches that failed after all attempts",
		}),
		validationFailuresMetric: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: metricsSubsystem, Name: "validation_failures_total",
			Help: "ledgers rejected by validation, by reason",
		}, []string{"reason"}),
		ledgersEmittedMetric: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: metricsSubsystem, Name: "ledgers_emitted_total",
			Help: "ledgers handed to the sink, by origin",
		}, []string{"origin"}),
		latestLedgerMetric: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: metricsSubsystem, Name: "latest_ledger",
			Help: "sequence of the latest validated ledger seen on the live stream",
		}),
		parseErrorsMetric: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: metricsSubsystem, Name: "parse_errors_total",
			Help: "transactions skipped by the parser",
		}),
		gapsMetric: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: metricsSubsystem, Name: "gaps_found_total",
			Help: "gaps found in stored history",
		}),
	}
	if registry != nil {
		registry.MustRegister(
			m.fetchDurationMetric,
			m.fetchRetriesMetric,
			m.fetchFailuresMetric,
			m.validationFailuresMetric,
			m.ledgersEmittedMetric,
			m.latestLedgerMetric,
			m.parseErrorsMetric,
			m.gapsMetric,
		)
	}
	return m
}

func (m *Metrics) observeFetch(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetchDurationMetric.With(prometheus.Labels{"result": result}).Observe(time.Since(start).Seconds())
}

func (m *Metrics) retry() {
	if m != nil {
		m.fetchRetriesMetric.Inc()
	}
}

func (m *Metrics) fetchFailed() {
	if m != nil {
		m.fetchFailuresMetric.Inc()
	}
}

func (m *Metrics) rejected(reason string) {
	if m != nil {
		m.validationFailuresMetric.With(prometheus.Labels{"reason": reason}).Inc()
	}
}

func (m *Metrics) emitted(origin string) {
	if m != nil {
		m.ledgersEmittedMetric.With(prometheus.Labels{"origin": origin}).Inc()
	}
}

func (m *Metrics) setLatest(index uint32) {
	if m != nil {
		m.latestLedgerMetric.Set(float64(index))
	}
}

func (m *Metrics) parseErrors(n int) {
	if m != nil && n > 0 {
		m.parseErrorsMetric.Add(float64(n))
	}
}

func (m *Metrics) gapFound() {
	if m != nil {
		m.gapsMetric.Inc()
	}
}
