// Package registry knows every event the outbox carries: which aggregate
// emits it and which payload struct each schema version decodes into. The
// publisher resolves rows against it and the analytics worker decodes
// messages with it, so both sides agree on the same table.
package registry

import (
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const defaultVersion = 1

type eventKind struct {
	aggregate enums.OutboxAggregateType
	versions  map[int]func() any
}

var catalog = map[enums.OutboxEventType]eventKind{
	enums.EventProductAddedToCart: {
		aggregate: enums.AggregateCart,
		versions:  map[int]func() any{1: newPayload[payloads.CartItemAddedEvent]},
	},
	enums.EventCartAbandoned: {
		aggregate: enums.AggregateCart,
		versions:  map[int]func() any{1: newPayload[payloads.CartAbandonedEvent]},
	},
}

func newPayload[T any]() any { return new(T) }

func decodePayload(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	if version <= 0 {
		version = defaultVersion
	}
	kind, ok := catalog[eventType]
	if !ok {
		return nil, fmt.Errorf("unsupported event type %s", eventType)
	}
	factory, ok := kind.versions[version]
	if !ok {
		return nil, fmt.Errorf("no decoder for %s@v%d", eventType, version)
	}
	payload := factory()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("decode %s@v%d: %w", eventType, version, err)
	}
	return payload, nil
}

// NonRetryableError marks a row the publisher must dead-letter instead of
// retrying.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
