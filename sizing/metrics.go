package sizing

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "gate_sizer"

// Metrics exports run progress to Prometheus. A nil *Metrics is valid and records nothing.
type Metrics struct {
	iterations   *prometheus.CounterVec
	oracleCalls  *prometheus.CounterVec
	trials       *prometheus.CounterVec
	mutations    prometheus.Histogram
	evalDuration prometheus.Histogram
	temperature  prometheus.Gauge
	currentCost  prometheus.Gauge
	bestCost     prometheus.Gauge
}

// NewMetrics registers the run metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		iterations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "iterations_total",
			Help:      "Annealing iterations by decision.",
		}, []string{"decision"}),
		oracleCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "oracle_calls_total",
			Help:      "Timing oracle calls by outcome.",
		}, []string{"outcome"}),
		trials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "trials_total",
			Help:      "Monte Carlo trials by timing result.",
		}, []string{"result"}),
		mutations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "mutations_per_candidate",
			Help:      "Resized instances per generated candidate.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		evalDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of one Monte Carlo cost evaluation.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		temperature: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "temperature",
			Help:      "Current annealing temperature.",
		}),
		currentCost: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "current_cost",
			Help:      "Cost of the current netlist.",
		}),
		bestCost: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "best_cost",
			Help:      "Cost of the best netlist found so far.",
		}),
	}
}

// ObserveIteration counts one annealing iteration and updates the state gauges.
func (m *Metrics) ObserveIteration(decision Decision, temperature, current, best float64) {
	if m == nil {
		return
	}
	m.iterations.WithLabelValues(string(decision)).Inc()
	m.temperature.Set(temperature)
	m.currentCost.Set(current)
	m.bestCost.Set(best)
}

// ObserveOracleCall counts one oracle call; err is the call's error, if any.
func (m *Metrics) ObserveOracleCall(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	var failure *OracleFailure
	switch {
	case err == nil:
	case errors.As(err, &failure):
		outcome = string(failure.Reason)
	default:
		outcome = "error"
	}
	m.oracleCalls.WithLabelValues(outcome).Inc()
}

// ObserveTrial counts one completed trial as pass or fail.
func (m *Metrics) ObserveTrial(passed bool) {
	if m == nil {
		return
	}
	result := "fail"
	if passed {
		result = "pass"
	}
	m.trials.WithLabelValues(result).Inc()
}

// ObserveMutations records the number of resizes in one candidate.
func (m *Metrics) ObserveMutations(n int) {
	if m == nil {
		return
	}
	m.mutations.Observe(float64(n))
}

// ObserveEvaluation records the duration of one cost evaluation.
func (m *Metrics) ObserveEvaluation(d time.Duration) {
	if m == nil {
		return
	}
	m.evalDuration.Observe(d.Seconds())
}
