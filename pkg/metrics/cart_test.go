package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartMetricsExportsOutcomesAndRetries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCartMetrics(reg)

	m.IncOutcome(OutcomeSuccess)
	m.IncOutcome(OutcomeSuccess)
	m.IncOutcome(OutcomeOutOfStock)
	m.IncRetry()
	m.ObserveDuration(15 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.addItem.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.addItem.WithLabelValues(OutcomeOutOfStock)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries))

	count, err := testutil.GatherAndCount(reg, "cart_add_item_total", "cart_tx_retries_total", "cart_add_item_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestCartMetricsNilSafe(t *testing.T) {
	m := NewCartMetrics(nil)
	m.IncOutcome(OutcomeSuccess)
	m.IncRetry()
	m.ObserveDuration(time.Second)
}

func TestOutboxMetricsLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.IncPublished("product_added_to_cart")
	m.IncFailed("product_added_to_cart")
	m.IncDLQ("cart_abandoned", "max_attempts")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.published.WithLabelValues("product_added_to_cart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failed.WithLabelValues("product_added_to_cart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dlq.WithLabelValues("cart_abandoned", "max_attempts")))
}
