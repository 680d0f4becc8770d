package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ConsumerName scopes dedupe keys so another subscriber of the same topic
// keeps its own processed set.
const ConsumerName = "analytics-worker"

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Deduper claims event ids in Redis. Pub/Sub delivers at least once and the
// outbox may publish a row twice after a crash, so each event id is handled
// at most once per TTL.
type Deduper struct {
	store    dedupeStore
	consumer string
	ttl      time.Duration
}

func NewDeduper(store dedupeStore, consumer string, ttl time.Duration) (*Deduper, error) {
	switch {
	case store == nil:
		return nil, errors.New("dedupe store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Deduper{store: store, consumer: consumer, ttl: ttl}, nil
}

// Claim reports whether the caller won the right to handle eventID.
func (d *Deduper) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	return d.store.SetNX(ctx, d.key(eventID), "1", d.ttl)
}

// Release gives up a claim so a redelivery can retry the event.
func (d *Deduper) Release(ctx context.Context, eventID uuid.UUID) error {
	return d.store.Del(ctx, d.key(eventID))
}

func (d *Deduper) key(eventID uuid.UUID) string {
	return d.store.IdempotencyKey("evt:"+d.consumer, eventID.String())
}
