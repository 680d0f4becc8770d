package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartStatusParse(t *testing.T) {
	for _, raw := range []string{"active", "abandoned", "converted"} {
		status, err := ParseCartStatus(raw)
		require.NoError(t, err, raw)
		assert.True(t, status.IsValid())
		assert.Equal(t, raw, status.String())
	}

	_, err := ParseCartStatus("checked_out")
	assert.EqualError(t, err, `invalid cart status "checked_out"`)

	_, err = ParseCartStatus("Active")
	assert.Error(t, err, "parsing is case sensitive")
}

func TestOutboxEnums(t *testing.T) {
	_, err := ParseOutboxEventType("product_added_to_cart")
	assert.NoError(t, err)
	assert.False(t, OutboxEventType("order_created").IsValid())

	_, err = ParseOutboxAggregateType("cart")
	assert.NoError(t, err)
	_, err = ParseOutboxAggregateType("vendor_order")
	assert.Error(t, err)

	assert.True(t, OutboxDLQReasonNonRetryable.IsValid())
	assert.False(t, OutboxDLQErrorReason("timeout").IsValid())
}

func TestEveryOutboxEventHasAnalyticsTwin(t *testing.T) {
	for _, e := range outboxEventTypes {
		a, ok := e.Analytics()
		require.True(t, ok, "outbox event %q has no analytics counterpart", e)
		parsed, err := ParseAnalyticsEventType(string(e))
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}

	_, ok := OutboxEventType("order_created").Analytics()
	assert.False(t, ok)
}
