// Package enums mirrors the Postgres enum types. Every type parses only the
// exact lowercase values the database accepts.
package enums

import (
	"fmt"
	"slices"
)

type members[T ~string] []T

func (m members[T]) contains(v T) bool {
	return slices.Contains(m, v)
}

func (m members[T]) parse(kind, raw string) (T, error) {
	if v := T(raw); m.contains(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}

// CartStatus is the cart lifecycle. Only active carts accept lines.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusAbandoned CartStatus = "abandoned"
	CartStatusConverted CartStatus = "converted"
)

var cartStatuses = members[CartStatus]{CartStatusActive, CartStatusAbandoned, CartStatusConverted}

func (c CartStatus) String() string { return string(c) }
func (c CartStatus) IsValid() bool  { return cartStatuses.contains(c) }

func ParseCartStatus(raw string) (CartStatus, error) {
	return cartStatuses.parse("cart status", raw)
}

type OutboxAggregateType string

const (
	AggregateCart    OutboxAggregateType = "cart"
	AggregateProduct OutboxAggregateType = "product"
)

var aggregateTypes = members[OutboxAggregateType]{AggregateCart, AggregateProduct}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.contains(a) }

func ParseOutboxAggregateType(raw string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", raw)
}

// OutboxEventType is what the cart core records. Each value has an
// AnalyticsEventType twin with the same spelling.
type OutboxEventType string

const (
	EventProductAddedToCart OutboxEventType = "product_added_to_cart"
	EventCartAbandoned      OutboxEventType = "cart_abandoned"
)

var outboxEventTypes = members[OutboxEventType]{EventProductAddedToCart, EventCartAbandoned}

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.contains(e) }

func ParseOutboxEventType(raw string) (OutboxEventType, error) {
	return outboxEventTypes.parse("event type", raw)
}

// Analytics maps the recorded event to the type the analytics worker routes on.
func (e OutboxEventType) Analytics() (AnalyticsEventType, bool) {
	a := AnalyticsEventType(e)
	return a, analyticsEventTypes.contains(a)
}

type AnalyticsEventType string

const (
	AnalyticsEventProductAddedToCart AnalyticsEventType = "product_added_to_cart"
	AnalyticsEventCartAbandoned      AnalyticsEventType = "cart_abandoned"
)

var analyticsEventTypes = members[AnalyticsEventType]{AnalyticsEventProductAddedToCart, AnalyticsEventCartAbandoned}

func (a AnalyticsEventType) IsValid() bool { return analyticsEventTypes.contains(a) }

func ParseAnalyticsEventType(raw string) (AnalyticsEventType, error) {
	return analyticsEventTypes.parse("analytics event type", raw)
}

// OutboxDLQErrorReason records why an event left the publish loop.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = members[OutboxDLQErrorReason]{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.contains(r) }
