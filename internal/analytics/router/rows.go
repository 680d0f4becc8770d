package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// rowHandler turns one decoded payload type into a cart_events row.
type rowHandler[T any] struct {
	writer Writer
	logg   *logger.Logger
	build  func(types.Envelope, *T) types.CartEventRow
}

func newRowHandler[T any](w Writer, logg *logger.Logger, build func(types.Envelope, *T) types.CartEventRow) Handler {
	return rowHandler[T]{writer: w, logg: logg, build: build}
}

func (h rowHandler[T]) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*T)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", payload, envelope.EventType)
	}
	row := h.build(envelope, event)

	var err error
	if row.Payload, err = types.JSONColumn(envelope.Payload); err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := h.writer.InsertCartEvent(ctx, row); err != nil {
		return err
	}

	h.logg.Info(h.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": envelope.EventType,
		"cart_id":    row.CartID,
	}), "analytics row recorded")
	return nil
}

func cartItemAddedRow(env types.Envelope, e *payloads.CartItemAddedEvent) types.CartEventRow {
	return types.CartEventRow{
		EventID:       env.EventID,
		EventType:     string(env.EventType),
		OccurredAt:    occurredAt(env, e.Timestamp),
		Identity:      e.Identity,
		UserID:        trimmed(e.UserID),
		SessionID:     trimmed(e.SessionID),
		CartID:        e.CartID.String(),
		ProductID:     nonEmpty(e.ProductID.String()),
		VariantID:     uuidString(e.Metadata.VariantID),
		Quantity:      ptr(int64(e.Quantity)),
		Source:        nonEmpty(e.Metadata.Source),
		ProductName:   nonEmpty(e.Metadata.ProductName),
		OriginalInput: nonEmpty(e.Metadata.OriginalInput),
	}
}

func cartAbandonedRow(env types.Envelope, e *payloads.CartAbandonedEvent) types.CartEventRow {
	return types.CartEventRow{
		EventID:    env.EventID,
		EventType:  string(env.EventType),
		OccurredAt: occurredAt(env, e.AbandonedAt),
		Identity:   e.Identity,
		UserID:     trimmed(e.UserID),
		SessionID:  trimmed(e.SessionID),
		CartID:     e.CartID.String(),
		LineCount:  ptr(int64(e.LineCount)),
		TotalItems: ptr(int64(e.TotalItems)),
	}
}

// occurredAt prefers the envelope timestamp and falls back to the payload's.
func occurredAt(env types.Envelope, fallback time.Time) time.Time {
	if !env.OccurredAt.IsZero() {
		return env.OccurredAt.UTC()
	}
	return fallback.UTC()
}

func ptr[T any](v T) *T { return &v }

// nonEmpty maps blank strings to NULL.
func nonEmpty(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return nonEmpty(*s)
}

func uuidString(id *uuid.UUID) *string {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return ptr(id.String())
}
