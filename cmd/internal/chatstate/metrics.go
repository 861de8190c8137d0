package chatstate

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the store's Prometheus instruments.
type Metrics struct {
	MessagesSent  prometheus.Counter
	SendFailures  prometheus.Counter
	EventsApplied *prometheus.CounterVec
	UnreadTotal   prometheus.Gauge
}

// NewMetrics constructs and registers the store metrics.
// A nil registerer yields unregistered (but usable) instruments, which keeps
// tests independent of the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nestchat",
			Subsystem: "store",
			Name:      "messages_sent_total",
			Help:      "Messages confirmed by the chat service via a send operation.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nestchat",
			Subsystem: "store",
			Name:      "send_failures_total",
			Help:      "Send operations that resolved with an error.",
		}),
		EventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nestchat",
			Subsystem: "store",
			Name:      "realtime_events_applied_total",
			Help:      "Realtime events applied to the store, by event type.",
		}, []string{"type"}),
		UnreadTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nestchat",
			Subsystem: "store",
			Name:      "unread_total",
			Help:      "Current global unread count as known to the client.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.MessagesSent, m.SendFailures, m.EventsApplied, m.UnreadTotal)
	}
	return m
}
