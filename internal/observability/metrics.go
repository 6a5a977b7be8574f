package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions     prometheus.Gauge
	SignalConnections  prometheus.Gauge
	SessionTransitions *prometheus.CounterVec
	SummonOutcomes     *prometheus.CounterVec
	PresencePolls      *prometheus.CounterVec
	DownstreamErrors   *prometheus.CounterVec
	WSMessages         *prometheus.CounterVec
	SummonLatency      prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_interviews",
			Help:      "Interview sessions currently in the active state.",
		}),
		SignalConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signaling_connections",
			Help:      "Open signaling websocket connections.",
		}),
		SessionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Applied session status transitions.",
		}, []string{"from", "to"}),
		SummonOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_notifications_total",
			Help:      "Agent backend notifications by operation and outcome.",
		}, []string{"operation", "outcome"}),
		PresencePolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_polls_total",
			Help:      "Presence reconciliations by result.",
		}, []string{"result"}),
		DownstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downstream_errors_total",
			Help:      "Errors from external collaborators by service and code.",
		}, []string{"service", "code"}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		SummonLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_summon_latency_ms",
			Help:      "Latency of agent join requests in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 3500, 5000},
		}),
	}
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(from, to).Inc()
	switch {
	case to == "active":
		m.ActiveSessions.Inc()
	case from == "active":
		m.ActiveSessions.Dec()
	}
}

func (m *Metrics) ObserveNotification(operation, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.SummonOutcomes.WithLabelValues(operation, outcome).Inc()
	if operation == "join" {
		m.SummonLatency.Observe(float64(latency.Milliseconds()))
	}
}

func (m *Metrics) ObservePresencePoll(result string) {
	if m == nil {
		return
	}
	m.PresencePolls.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDownstreamError(service, code string) {
	if m == nil {
		return
	}
	m.DownstreamErrors.WithLabelValues(service, code).Inc()
}

func (m *Metrics) ObserveWSMessage(direction, messageType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, messageType).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.SignalConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.SignalConnections.Dec()
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
