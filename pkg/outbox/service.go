package outbox

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultVersion = 1

var errTxRequired = errors.New("transaction required")

// DomainEvent is what business code hands to Emit. Data is marshalled into
// the envelope's data field.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit writes the event into outbox_events on the caller's transaction, so
// the row commits or rolls back with the business write.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	return s.write(ctx, tx, event, false)
}

// EmitIfNotExists writes at most one row per (event type, aggregate) for the
// event types covered by a unique index. A duplicate is silently skipped.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	return s.write(ctx, tx, event, true)
}

func (s *Service) write(ctx context.Context, tx *gorm.DB, event DomainEvent, once bool) error {
	if tx == nil {
		return errTxRequired
	}
	row, envelope, err := encode(event)
	if err != nil {
		return err
	}

	inserted := true
	if once {
		inserted, err = s.repo.InsertIfAbsent(tx, row)
	} else {
		err = s.repo.Insert(tx, row)
	}
	if err != nil {
		return fmt.Errorf("insert outbox %s: %w", row.EventType, err)
	}

	if s.logg != nil {
		msg := "outbox event queued"
		if !inserted {
			msg = "outbox event already queued"
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":       envelope.EventID,
			"event_type":     row.EventType,
			"aggregate_type": row.AggregateType,
			"aggregate_id":   row.AggregateID.String(),
		}), msg)
	}
	return nil
}

// encode wraps the domain payload in the stored envelope. The row id doubles
// as the envelope event id so consumers can dedupe on either.
func encode(event DomainEvent) (models.OutboxEvent, PayloadEnvelope, error) {
	if !event.EventType.IsValid() {
		return models.OutboxEvent{}, PayloadEnvelope{}, fmt.Errorf("unknown outbox event type %q", event.EventType)
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, fmt.Errorf("marshal %s data: %w", event.EventType, err)
	}

	id := uuid.New()
	envelope := PayloadEnvelope{
		Version:    cmp.Or(event.Version, defaultVersion),
		EventID:    id.String(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, err
	}

	return models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
		CreatedAt:     envelope.OccurredAt,
	}, envelope, nil
}
