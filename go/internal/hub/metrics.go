package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects hub counters. A nil *Metrics records nothing.
type Metrics struct {
	publishedTotal prometheus.Counter
	deliveredTotal prometheus.Counter
	evictedTotal   prometheus.Counter
	relayedTotal   *prometheus.CounterVec
	subscribers    prometheus.Gauge
	topics         prometheus.Gauge
}

// NewMetrics registers the hub collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		publishedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "focusflow",
			Subsystem: "hub",
			Name:      "published_total",
			Help:      "Messages published to the hub.",
		}),
		deliveredTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "focusflow",
			Subsystem: "hub",
			Name:      "delivered_total",
			Help:      "Messages enqueued to subscribers.",
		}),
		evictedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "focusflow",
			Subsystem: "hub",
			Name:      "evicted_total",
			Help:      "Subscribers evicted because their buffer was full.",
		}),
		relayedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "focusflow",
			Subsystem: "hub",
			Name:      "relayed_total",
			Help:      "Messages exchanged with other instances over NATS.",
		}, []string{"direction", "result"}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "focusflow",
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Currently registered subscribers.",
		}),
		topics: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "focusflow",
			Subsystem: "hub",
			Name:      "topics",
			Help:      "Topics with at least one subscriber.",
		}),
	}
}

func (m *Metrics) published() {
	if m == nil {
		return
	}
	m.publishedTotal.Inc()
}

func (m *Metrics) delivered(n int) {
	if m == nil || n == 0 {
		return
	}
	m.deliveredTotal.Add(float64(n))
}

func (m *Metrics) evicted() {
	if m == nil {
		return
	}
	m.evictedTotal.Inc()
}

func (m *Metrics) relayed(direction string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.relayedTotal.WithLabelValues(direction, result).Inc()
}

func (m *Metrics) setSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

func (m *Metrics) setTopics(n int) {
	if m == nil {
		return
	}
	m.topics.Set(float64(n))
}
