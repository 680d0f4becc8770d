package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

var (
	ErrUnsupportedEventType = errors.New("unsupported analytics event type")
	ErrInvalidPayload       = errors.New("invalid analytics payload")
)

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertCartEvent(ctx context.Context, row types.CartEventRow) error
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// Router decodes each envelope with the payload type registered for its
// event type and version, then hands it to that event's handler.
type Router struct {
	handlers map[enums.AnalyticsEventType]Handler
	decoders *registry.DecoderRegistry
	logg     *logger.Logger
}

func NewRouter(writer Writer, decoders *registry.DecoderRegistry, logg *logger.Logger, overrides map[enums.AnalyticsEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if decoders == nil {
		return nil, errors.New("decoder registry is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	handlers := map[enums.AnalyticsEventType]Handler{
		enums.AnalyticsEventProductAddedToCart: newRowHandler(writer, logg, cartItemAddedRow),
		enums.AnalyticsEventCartAbandoned:      newRowHandler(writer, logg, cartAbandonedRow),
	}

	// Overrides may replace a built-in handler but never add event types.
	for event, custom := range overrides {
		if _, known := handlers[event]; known && custom != nil {
			handlers[event] = custom
		}
	}

	return &Router{
		handlers: handlers,
		decoders: decoders,
		logg:     logg,
	}, nil
}

// Handle decodes the envelope payload for its version and dispatches it.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("%w: empty payload for %s", ErrInvalidPayload, envelope.EventType)
	}

	payload, err := r.decoders.Decode(envelope.EventType, envelope.Version, envelope.Payload)
	if err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidPayload, envelope.EventType, err)
	}

	return handler.Handle(ctx, envelope, payload)
}
