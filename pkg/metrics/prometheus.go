package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"TrendWatch/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	outcomes      *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	notifications *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered with the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendwatch_cycles_total",
				Help: "Evaluation cycles by final status code",
			},
			[]string{"status"},
		),
		cycleDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trendwatch_cycle_duration_seconds",
				Help:    "Wall time of an evaluation cycle",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendwatch_symbol_outcomes_total",
				Help: "Per-symbol cycle outcomes",
			},
			[]string{"symbol", "outcome"},
		),
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendwatch_fetch_attempts_total",
				Help: "Price fetch attempts by provider and result",
			},
			[]string{"provider", "result"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendwatch_decisions_total",
				Help: "Decisions by symbol and condition",
			},
			[]string{"symbol", "condition"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendwatch_last_decision_price",
				Help: "Price at the most recent decision for a symbol",
			},
			[]string{"symbol"},
		),
		notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendwatch_notifications_total",
				Help: "Notification deliveries by channel and result",
			},
			[]string{"channel", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendwatch_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendwatch_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// RecordCycle records a finished cycle.
func (r *Recorder) RecordCycle(status int, seconds float64) {
	r.cycles.WithLabelValues(strconv.Itoa(status)).Inc()
	r.cycleDuration.Observe(seconds)
}

// RecordSymbolOutcome records what happened to a symbol in a cycle.
func (r *Recorder) RecordSymbolOutcome(symbol, outcome string) {
	r.outcomes.WithLabelValues(symbol, outcome).Inc()
}

// RecordFetchAttempt records a single provider request.
func (r *Recorder) RecordFetchAttempt(provider string, ok bool) {
	r.fetches.WithLabelValues(provider, result(ok)).Inc()
}

// RecordDecision records a decision and its price.
func (r *Recorder) RecordDecision(symbol string, condition models.Condition, price float64) {
	r.decisions.WithLabelValues(symbol, string(condition)).Inc()
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordNotification records a delivery attempt.
func (r *Recorder) RecordNotification(channel string, ok bool) {
	r.notifications.WithLabelValues(channel, result(ok)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
