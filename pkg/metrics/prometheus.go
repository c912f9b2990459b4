package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsIngested *prometheus.CounterVec
	evaluations  *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	lever        *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpull_bars_ingested_total",
				Help: "Total number of bars routed to a storage backend",
			},
			[]string{"backend", "instrument"},
		),
		evaluations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpull_evaluations_total",
				Help: "Total number of completed engine evaluations",
			},
			[]string{"instrument", "tf", "state"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendpull_last_price",
				Help: "Last recorded close price for an instrument",
			},
			[]string{"instrument"},
		),
		lever: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendpull_lever",
				Help: "Latest lever output per instrument and side (A or E)",
			},
			[]string{"instrument", "side"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordBarIngested records a bar routed to a backend.
func (r *Recorder) RecordBarIngested(backend, instrument string) {
	r.barsIngested.WithLabelValues(backend, instrument).Inc()
}

// RecordEvaluation records one completed evaluation and its final state.
func (r *Recorder) RecordEvaluation(instrument, tf, state string) {
	r.evaluations.WithLabelValues(instrument, tf, state).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last close for an instrument.
func (r *Recorder) RecordLastPrice(instrument string, price float64) {
	r.lastPrice.WithLabelValues(instrument).Set(price)
}

// RecordLever records the latest bounded lever pair for an instrument.
func (r *Recorder) RecordLever(instrument string, a, e float64) {
	r.lever.WithLabelValues(instrument, "A").Set(a)
	r.lever.WithLabelValues(instrument, "E").Set(e)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
