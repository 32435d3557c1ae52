// Package metrics exposes Prometheus collectors for auto-saves,
// recalculations and live connections.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements autosave.Observer and app.RecalculationRecorder.
type Metrics struct {
	registry *prometheus.Registry

	saves         *prometheus.CounterVec
	saveDuration  prometheus.Histogram
	debounced     prometheus.Counter
	recalcs       *prometheus.CounterVec
	recalcSize    prometheus.Histogram
	recalcLatency prometheus.Histogram
	connections   prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "league",
			Name:      "autosave_saves_total",
			Help:      "Auto-save write attempts by outcome.",
		}, []string{"outcome"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "league",
			Name:      "autosave_save_duration_seconds",
			Help:      "Duration of auto-save writes.",
			Buckets:   prometheus.DefBuckets,
		}),
		debounced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "league",
			Name:      "autosave_debounced_total",
			Help:      "Edits that superseded a pending or in-flight save.",
		}),
		recalcs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "league",
			Name:      "recalculations_total",
			Help:      "Bulk score recalculations by outcome.",
		}, []string{"outcome"}),
		recalcSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "league",
			Name:      "recalculation_participants",
			Help:      "Participants rescored per recalculation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		recalcLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "league",
			Name:      "recalculation_duration_seconds",
			Help:      "Duration of bulk score recalculations.",
			Buckets:   prometheus.DefBuckets,
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "league",
			Name:      "websocket_connections",
			Help:      "Open participant websocket sessions.",
		}),
	}
	m.registry.MustRegister(
		m.saves, m.saveDuration, m.debounced,
		m.recalcs, m.recalcSize, m.recalcLatency,
		m.connections,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Debounced(string) {
	m.debounced.Inc()
}

func (m *Metrics) SaveStarted(string) {}

func (m *Metrics) SaveSettled(_ string, err error, elapsed time.Duration) {
	m.saves.WithLabelValues(outcome(err)).Inc()
	m.saveDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRecalculation(participants int, elapsed time.Duration, err error) {
	m.recalcs.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.recalcSize.Observe(float64(participants))
		m.recalcLatency.Observe(elapsed.Seconds())
	}
}

// ConnectionOpened and ConnectionClosed track websocket sessions.
func (m *Metrics) ConnectionOpened() { m.connections.Inc() }

func (m *Metrics) ConnectionClosed() { m.connections.Dec() }

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
