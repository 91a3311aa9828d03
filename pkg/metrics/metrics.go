// Package metrics exposes engine counters to prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crossbook"

// Engine holds the engine instruments. A nil *Engine is valid and records
// nothing.
type Engine struct {
	registry *prometheus.Registry

	accepted  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	trades    *prometheus.CounterVec
	volume    *prometheus.CounterVec
	cancels   *prometheus.CounterVec
	triggers  *prometheus.CounterVec
	matchTime *prometheus.HistogramVec
}

// New registers the engine instruments on a fresh registry.
func New() *Engine {
	e := &Engine{
		registry: prometheus.NewRegistry(),
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "accepted_total",
			Help:      "Orders accepted, by symbol and kind",
		}, []string{"symbol", "kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "rejected_total",
			Help:      "Orders rejected, by reason",
		}, []string{"reason"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "executed_total",
			Help:      "Trades executed",
		}, []string{"symbol"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "volume_total",
			Help:      "Lots traded",
		}, []string{"symbol"}),
		cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "cancelled_total",
			Help:      "Orders cancelled, by reason",
		}, []string{"symbol", "reason"}),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "stop_triggered_total",
			Help:      "Stop-limit orders activated",
		}, []string{"symbol"}),
		matchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "match_seconds",
			Help:      "Time spent under the symbol lock per insert and match pass",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"symbol"}),
	}
	e.registry.MustRegister(e.accepted, e.rejected, e.trades, e.volume, e.cancels, e.triggers, e.matchTime)
	return e
}

// Handler serves the registry in the prometheus text format.
func (e *Engine) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func (e *Engine) Registry() *prometheus.Registry { return e.registry }

func (e *Engine) ObserveAccepted(symbol, kind string) {
	if e == nil {
		return
	}
	e.accepted.WithLabelValues(symbol, kind).Inc()
}

func (e *Engine) ObserveRejected(reason string) {
	if e == nil {
		return
	}
	e.rejected.WithLabelValues(reason).Inc()
}

func (e *Engine) ObserveTrade(symbol string, qty int64) {
	if e == nil {
		return
	}
	e.trades.WithLabelValues(symbol).Inc()
	e.volume.WithLabelValues(symbol).Add(float64(qty))
}

func (e *Engine) ObserveCancel(symbol, reason string) {
	if e == nil {
		return
	}
	e.cancels.WithLabelValues(symbol, reason).Inc()
}

func (e *Engine) ObserveTrigger(symbol string) {
	if e == nil {
		return
	}
	e.triggers.WithLabelValues(symbol).Inc()
}

func (e *Engine) ObserveMatch(symbol string, d time.Duration) {
	if e == nil {
		return
	}
	e.matchTime.WithLabelValues(symbol).Observe(d.Seconds())
}
