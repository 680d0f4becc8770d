package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Add-to-cart outcomes used as the outcome label.
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeOutOfStock  = "out_of_stock"
	OutcomeInvalid     = "invalid"
	OutcomeConflict    = "conflict"
	OutcomePersistence = "persistence"
)

// CartMetrics tracks the add-to-cart coordinator.
type CartMetrics struct {
	addItem  *prometheus.CounterVec
	retries  prometheus.Counter
	duration prometheus.Histogram
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	addItem := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_add_item_total",
		Help: "Add-to-cart attempts by outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_tx_retries_total",
		Help: "Add-to-cart transactions retried after a conflict.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_add_item_duration_seconds",
		Help:    "Latency of add-to-cart including retries.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(addItem, retries, duration)
	return &CartMetrics{addItem: addItem, retries: retries, duration: duration}
}

func (c *CartMetrics) IncOutcome(outcome string) {
	if c == nil || c.addItem == nil {
		return
	}
	c.addItem.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (c *CartMetrics) IncRetry() {
	if c == nil || c.retries == nil {
		return
	}
	c.retries.Inc()
}

func (c *CartMetrics) ObserveDuration(d time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.Observe(d.Seconds())
}
