package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A
// nil *Metrics disables reporting, which tests rely on.
type Metrics struct {
	Generations          *prometheus.CounterVec
	QuotaRejections      prometheus.Counter
	SynthesisRequests    *prometheus.CounterVec
	SynthesisLatency     prometheus.Histogram
	LedgerCommitFailures prometheus.Counter
	WordsCommitted       prometheus.Counter
	ActiveGenerations    prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Generations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Speech generations by outcome.",
		}, []string{"outcome"}),
		QuotaRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Generations rejected by the monthly word quota.",
		}),
		SynthesisRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_requests_total",
			Help:      "Upstream synthesis calls by result.",
		}, []string{"result"}),
		SynthesisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_latency_ms",
			Help:      "Latency of one upstream synthesis call in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}),
		LedgerCommitFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_commit_failures_total",
			Help:      "Usage commits that failed after the artifact was persisted.",
		}),
		WordsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_committed_total",
			Help:      "Words committed to the quota ledger.",
		}),
		ActiveGenerations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_generations",
			Help:      "Generation runs currently in flight.",
		}),
	}
}

func (m *Metrics) ObserveGeneration(outcome string) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveQuotaRejection() {
	if m == nil {
		return
	}
	m.QuotaRejections.Inc()
}

func (m *Metrics) ObserveSynthesis(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.SynthesisRequests.WithLabelValues(result).Inc()
	m.SynthesisLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveLedgerCommitFailure() {
	if m == nil {
		return
	}
	m.LedgerCommitFailures.Inc()
}

func (m *Metrics) ObserveWordsCommitted(n int) {
	if m == nil {
		return
	}
	m.WordsCommitted.Add(float64(n))
}

func (m *Metrics) GenerationStarted() {
	if m == nil {
		return
	}
	m.ActiveGenerations.Inc()
}

func (m *Metrics) GenerationFinished() {
	if m == nil {
		return
	}
	m.ActiveGenerations.Dec()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
