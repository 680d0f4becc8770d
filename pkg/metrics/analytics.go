package metrics

import "github.com/prometheus/client_golang/prometheus"

// Analytics worker message outcomes.
const (
	AnalyticsHandled   = "handled"
	AnalyticsDuplicate = "duplicate"
	AnalyticsDropped   = "dropped"
	AnalyticsRetried   = "retried"
)

// AnalyticsMetrics counts Pub/Sub messages consumed by the analytics worker.
type AnalyticsMetrics struct {
	messages *prometheus.CounterVec
}

func NewAnalyticsMetrics(reg prometheus.Registerer) *AnalyticsMetrics {
	if reg == nil {
		return nil
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_messages_total",
		Help: "Analytics messages consumed by outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(messages)
	return &AnalyticsMetrics{messages: messages}
}

func (a *AnalyticsMetrics) Inc(eventType, outcome string) {
	if a == nil {
		return
	}
	a.messages.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}
