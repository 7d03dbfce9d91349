package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for incident processing.
type Metrics struct {
	IncidentsTotal     *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	PersistTotal       *prometheus.CounterVec
	StatusWebhookTotal *prometheus.CounterVec
}

// NewMetrics registers and returns incident metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IncidentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incidentbot_incidents_total",
			Help: "Total incident requests by terminal state.",
		}, []string{"state"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "incidentbot_generation_duration_seconds",
			Help:    "Duration of AI message generation calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s .. 32s
		}, []string{"result"}),
		PersistTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incidentbot_persist_total",
			Help: "Total incident record writes by backend and result.",
		}, []string{"backend", "result"}),
		StatusWebhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incidentbot_status_webhook_total",
			Help: "Total status webhook deliveries by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.IncidentsTotal,
		m.GenerationDuration,
		m.PersistTotal,
		m.StatusWebhookTotal,
	)
	return m
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (m *Metrics) observeIncident(state string) {
	if m == nil {
		return
	}
	m.IncidentsTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) observeGeneration(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationDuration.WithLabelValues(resultLabel(ok)).Observe(d.Seconds())
}

func (m *Metrics) observePersist(backend string, ok bool) {
	if m == nil {
		return
	}
	m.PersistTotal.WithLabelValues(backend, resultLabel(ok)).Inc()
}

func (m *Metrics) observeStatusWebhook(ok bool) {
	if m == nil {
		return
	}
	m.StatusWebhookTotal.WithLabelValues(resultLabel(ok)).Inc()
}
