// Package metrics exposes pipeline counters on a private Prometheus registry.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "visionbridge"

// Cycle outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
	OutcomeDiscard  = "discarded"
	ReasonInFlight  = "in_flight"
	ReasonNoCamera  = "camera_inactive"
	ProbeConnection = "connection"
	ProbeStatus     = "status"
	ProbeTest       = "test"
)

type Metrics struct {
	registry *prometheus.Registry

	cycles           *prometheus.CounterVec
	droppedTriggers  *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	cameraActive     prometheus.Gauge
	autoMode         prometheus.Gauge
	probes           *prometheus.CounterVec
	viewers          prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Detection cycles by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		droppedTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_triggers_total",
				Help:      "Triggers refused by the admission gate",
			},
			[]string{"trigger", "reason"},
		),
		analysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Duration of analysis round trips in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_in_flight",
			Help:      "1 while a detection cycle is in flight",
		}),
		cameraActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "camera_active",
			Help:      "1 while a camera session is live",
		}),
		autoMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "auto_mode_enabled",
			Help:      "1 while auto mode is on",
		}),
		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probes_total",
				Help:      "Service probes by kind and outcome",
			},
			[]string{"probe", "outcome"},
		),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers",
			Help:      "Connected snapshot viewers",
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.droppedTriggers,
		m.analysisDuration,
		m.inFlight,
		m.cameraActive,
		m.autoMode,
		m.probes,
		m.viewers,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CycleFinished(trigger, outcome string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) TriggerDropped(trigger, reason string) {
	if m == nil {
		return
	}
	m.droppedTriggers.WithLabelValues(trigger, reason).Inc()
}

func (m *Metrics) ObserveAnalysis(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.analysisDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) SetInFlight(v bool) {
	if m == nil {
		return
	}
	m.inFlight.Set(boolToFloat(v))
}

func (m *Metrics) SetCameraActive(v bool) {
	if m == nil {
		return
	}
	m.cameraActive.Set(boolToFloat(v))
}

func (m *Metrics) SetAutoMode(v bool) {
	if m == nil {
		return
	}
	m.autoMode.Set(boolToFloat(v))
}

func (m *Metrics) Probe(probe string, ok bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeError
	}
	m.probes.WithLabelValues(probe, outcome).Inc()
}

func (m *Metrics) SetViewers(n int) {
	if m == nil {
		return
	}
	m.viewers.Set(float64(n))
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
