package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking published ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paco",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of committed events published to subscribers, by type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paco",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Count of events a subscriber could not accept, by subscriber.",
			}, []string{"subscriber"}),
		}
		prometheus.MustRegister(eventRegistry.published, eventRegistry.dropped)
	})
	return eventRegistry
}

// RecordPublished increments the counter for the supplied event type.
func (m *eventMetrics) RecordPublished(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.published.WithLabelValues(normalized).Inc()
}

// RecordDropped increments the drop counter for a slow subscriber.
func (m *eventMetrics) RecordDropped(subscriber string) {
	if m == nil {
		return
	}
	if subscriber == "" {
		subscriber = "unknown"
	}
	m.dropped.WithLabelValues(subscriber).Inc()
}
