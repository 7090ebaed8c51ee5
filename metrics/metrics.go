// Package metrics records gate decisions, executions and regimes for
// Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var regimeLabels = []string{"BULLISH", "BEARISH", "VOLATILE", "NEUTRAL", "CRASH_IMMINENT"}

// Recorder owns its registry so tests and multiple engines do not collide
// on the default one.
type Recorder struct {
	reg *prometheus.Registry

	decisions  *prometheus.CounterVec
	executions *prometheus.CounterVec
	blocked    *prometheus.CounterVec
	regime     *prometheus.GaugeVec
	volatility *prometheus.GaugeVec
	drawdown   prometheus.Gauge
	duration   *prometheus.HistogramVec
	errors     *prometheus.CounterVec
}

// New creates a Recorder with metrics under namespace.
func New(namespace string) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Gate decisions by outcome",
			},
			[]string{"asset", "mode", "execute", "reason"},
		),
		executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Journaled trades",
			},
			[]string{"asset", "mode", "action"},
		),
		blocked: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blocked_total",
				Help:      "Risk gate violations",
			},
			[]string{"asset", "code"},
		),
		regime: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "regime",
				Help:      "Current market regime (1 for the active regime)",
			},
			[]string{"asset", "regime"},
		),
		volatility: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "regime_volatility",
				Help:      "Realized volatility of the last regime snapshot",
			},
			[]string{"asset"},
		),
		drawdown: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "portfolio_drawdown",
				Help:      "Portfolio drawdown from the latest risk snapshot",
			},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of engine cycle stages",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Errors by cycle stage",
			},
			[]string{"stage"},
		),
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Recorder) RecordDecision(asset, mode string, execute bool, reason string) {
	r.decisions.WithLabelValues(asset, mode, strconv.FormatBool(execute), reason).Inc()
}

func (r *Recorder) RecordExecution(asset, mode, action string) {
	r.executions.WithLabelValues(asset, mode, action).Inc()
}

func (r *Recorder) RecordBlocked(asset, code string) {
	r.blocked.WithLabelValues(asset, code).Inc()
}

// RecordRegime sets the active regime gauge to 1 and the others to 0.
func (r *Recorder) RecordRegime(asset, regime string, volatility float64) {
	for _, l := range regimeLabels {
		v := 0.0
		if l == regime {
			v = 1
		}
		r.regime.WithLabelValues(asset, l).Set(v)
	}
	r.volatility.WithLabelValues(asset).Set(volatility)
}

func (r *Recorder) RecordDrawdown(dd float64) {
	r.drawdown.Set(dd)
}

func (r *Recorder) RecordDuration(stage string, seconds float64) {
	r.duration.WithLabelValues(stage).Observe(seconds)
}

func (r *Recorder) RecordError(stage string) {
	r.errors.WithLabelValues(stage).Inc()
}
