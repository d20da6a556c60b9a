package relay

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Relayed         prometheus.Counter
	PublishFailures *prometheus.CounterVec
	PublishLatency  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Relayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merit_events_relayed_total",
			Help: "Total number of outbox events marked published",
		}),
		PublishFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "merit_event_publish_failures_total",
			Help: "Total number of failed publish attempts by publisher",
		}, []string{"publisher"}),
		PublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "merit_event_publish_duration_seconds",
			Help:    "Latency of publishing one outbox batch",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"publisher"}),
	}
}

func (m *Metrics) AddRelayed(n int) {
	m.Relayed.Add(float64(n))
}

func (m *Metrics) IncPublishFailures(publisher string) {
	m.PublishFailures.WithLabelValues(publisher).Inc()
}

func (m *Metrics) ObservePublish(publisher string, start time.Time) {
	m.PublishLatency.WithLabelValues(publisher).Observe(time.Since(start).Seconds())
}
