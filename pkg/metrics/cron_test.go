package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.Observe("cart-abandonment", 250*time.Millisecond, nil)
	m.Observe("cart-abandonment", time.Second, errors.New("db down"))
	m.Observe("", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("cart-abandonment", cronOutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("cart-abandonment", cronOutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", cronOutcomeSuccess)))
	assert.Greater(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("cart-abandonment")), 0.0)

	count, err := testutil.GatherAndCount(reg, "cron_job_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.Observe("x", time.Second, nil)
	assert.Nil(t, NewCronJobMetrics(nil))
}
