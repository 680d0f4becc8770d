package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/analytics/router"
	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// Handler turns one decoded envelope into BigQuery rows.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type claimer interface {
	Claim(ctx context.Context, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, eventID uuid.UUID) error
}

type ServiceParams struct {
	Subscription receiver
	Handler      Handler
	Dedupe       claimer
	Metrics      *metrics.AnalyticsMetrics
	Logger       *logger.Logger
}

// Service consumes the analytics subscription. Poison messages are acked and
// logged; only transient failures are nacked for redelivery.
type Service struct {
	sub     receiver
	handler Handler
	dedupe  claimer
	metrics *metrics.AnalyticsMetrics
	logg    *logger.Logger
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case p.Handler == nil:
		return nil, errors.New("analytics handler is required")
	case p.Dedupe == nil:
		return nil, errors.New("deduper is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		sub:     p.Subscription,
		handler: p.Handler,
		dedupe:  p.Dedupe,
		metrics: p.Metrics,
		logg:    p.Logger,
	}, nil
}

type verdict bool

const (
	ack  verdict = false
	nack verdict = true
)

// Run blocks in Receive until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.sub.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.process(msgCtx, msg) == nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) verdict {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	env, err := decodeMessage(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "invalid analytics envelope")
		s.metrics.Inc(msg.Attributes["event_type"], metrics.AnalyticsDropped)
		return ack
	}
	eventType := string(env.EventType)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       env.EventID,
		"event_type":     eventType,
		"aggregate_type": env.AggregateType,
		"aggregate_id":   env.AggregateID,
		"occurred_at":    env.OccurredAt.Format(time.RFC3339Nano),
	})

	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		s.logg.Warn(ctx, "analytics event id is not a uuid")
		s.metrics.Inc(eventType, metrics.AnalyticsDropped)
		return ack
	}

	won, err := s.dedupe.Claim(ctx, eventID)
	if err != nil {
		s.logg.Error(ctx, "dedupe claim failed", err)
		s.metrics.Inc(eventType, metrics.AnalyticsRetried)
		return nack
	}
	if !won {
		s.logg.Info(ctx, "analytics event already handled")
		s.metrics.Inc(eventType, metrics.AnalyticsDuplicate)
		return ack
	}

	err = s.handler.Handle(ctx, env)
	switch {
	case err == nil:
		s.logg.Info(ctx, "analytics event handled")
		s.metrics.Inc(eventType, metrics.AnalyticsHandled)
		return ack
	case errors.Is(err, router.ErrUnsupportedEventType), errors.Is(err, router.ErrInvalidPayload),
		errors.Is(err, types.ErrRowRejected):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping analytics event")
		s.metrics.Inc(eventType, metrics.AnalyticsDropped)
		return ack
	}

	s.logg.Error(ctx, "analytics handler failed", err)
	if relErr := s.dedupe.Release(context.WithoutCancel(ctx), eventID); relErr != nil {
		s.logg.Error(ctx, "dedupe release failed", relErr)
	}
	s.metrics.Inc(eventType, metrics.AnalyticsRetried)
	return nack
}

// decodeMessage combines the stored outbox envelope in msg.Data with the
// routing attributes set by the outbox publisher.
func decodeMessage(msg *gcppubsub.Message) (types.Envelope, error) {
	stored, err := outbox.ParseEnvelope(msg.Data)
	if err != nil {
		return types.Envelope{}, err
	}
	attr := func(name string) string { return strings.TrimSpace(msg.Attributes[name]) }

	eventType, err := enums.ParseAnalyticsEventType(attr("event_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return types.Envelope{}, errors.New("aggregate_id missing")
	}
	eventID := firstNonEmpty(strings.TrimSpace(stored.EventID), attr("event_id"))
	if eventID == "" {
		return types.Envelope{}, errors.New("event_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		occurredAt, _ = time.Parse(time.RFC3339Nano, attr("created_at"))
	}
	return types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Version:       stored.Version,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
