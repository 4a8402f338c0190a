// Package metrics exposes collaboration counters through prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/projection"
)

const namespace = "collab"

type Metrics struct {
	registry      *prometheus.Registry
	applied       *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	wsConnections prometheus.Gauge
	hubDropped    prometheus.Counter
}

// New registers the collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "Events applied to the projection.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events rejected by validation, authorization or the reducer.",
		}, []string{"event", "reason"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
		hubDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_dropped_total",
			Help:      "Envelopes dropped because a hub queue was full.",
		}),
	}

	m.registry.MustRegister(
		m.applied,
		m.dropped,
		m.wsConnections,
		m.hubDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) EventApplied(name events.Name) {
	m.applied.WithLabelValues(string(name)).Inc()
}

// EventDropped counts a rejected event under the reason derived from err.
func (m *Metrics) EventDropped(name events.Name, err error) {
	m.dropped.WithLabelValues(string(name), Reason(err)).Inc()
}

func (m *Metrics) ConnectionOpened() { m.wsConnections.Inc() }
func (m *Metrics) ConnectionClosed() { m.wsConnections.Dec() }

func (m *Metrics) HubDropped(events.Envelope) {
	m.hubDropped.Inc()
}

// Reason maps an apply error to a low-cardinality label value.
func Reason(err error) string {
	switch {
	case errors.Is(err, events.ErrUnknownEvent):
		return "unknown_event"
	case errors.Is(err, events.ErrInvalidPayload):
		return "invalid_payload"
	case projection.IsUnknownEntity(err):
		return "unknown_entity"
	case errors.Is(err, projection.ErrDuplicateEntity):
		return "duplicate"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrSessionFull),
		errors.Is(err, domain.ErrGuestsNotAllowed),
		errors.Is(err, domain.ErrHostRequired),
		errors.Is(err, projection.ErrSessionEnded):
		return "rule_violation"
	default:
		return "other"
	}
}
