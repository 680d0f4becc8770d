package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const (
	defaultAbandonAfter = 72 * time.Hour
	defaultAbandonBatch = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type idleCartReader interface {
	FindIdleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error)
}

type abandonmentRepo interface {
	MarkAbandoned(ctx context.Context, cartID uuid.UUID, cutoff, at time.Time) (bool, error)
	Stats(ctx context.Context, cartID uuid.UUID) (cart.LineStats, error)
}

type abandonmentRepoFactory func(tx *gorm.DB) abandonmentRepo

func defaultAbandonmentRepo(tx *gorm.DB) abandonmentRepo {
	return cart.NewRepository(tx)
}

// CartAbandonmentJobParams configure the idle cart sweep.
type CartAbandonmentJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Reader       idleCartReader
	Outbox       outboxEmitter
	RepoFactory  abandonmentRepoFactory
	AbandonAfter time.Duration
	BatchSize    int
}

// NewCartAbandonmentJob builds the job that closes carts idle for longer than AbandonAfter.
func NewCartAbandonmentJob(params CartAbandonmentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("idle cart reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	factory := params.RepoFactory
	if factory == nil {
		factory = defaultAbandonmentRepo
	}
	after := params.AbandonAfter
	if after <= 0 {
		after = defaultAbandonAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultAbandonBatch
	}
	return &cartAbandonmentJob{
		logg:         params.Logger,
		db:           params.DB,
		reader:       params.Reader,
		outbox:       params.Outbox,
		repoFactory:  factory,
		abandonAfter: after,
		batchSize:    batch,
		now:          time.Now,
	}, nil
}

type cartAbandonmentJob struct {
	logg         *logger.Logger
	db           txRunner
	reader       idleCartReader
	outbox       outboxEmitter
	repoFactory  abandonmentRepoFactory
	abandonAfter time.Duration
	batchSize    int
	now          func() time.Time
}

func (j *cartAbandonmentJob) Name() string { return "cart-abandonment" }

func (j *cartAbandonmentJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.abandonAfter)
	carts, err := j.reader.FindIdleActive(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query idle carts: %w", err)
	}

	var errs error
	abandoned := 0
	for _, c := range carts {
		changed, err := j.abandon(ctx, c, cutoff, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("abandon cart %s: %w", c.ID, err))
			continue
		}
		if changed {
			abandoned++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(carts),
		"abandoned":  abandoned,
		"failed":     len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "cart abandonment sweep complete")
	return errs
}

func (j *cartAbandonmentJob) abandon(ctx context.Context, c models.Cart, cutoff, at time.Time) (bool, error) {
	changed := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		ok, err := repo.MarkAbandoned(ctx, c.ID, cutoff, at)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		stats, err := repo.Stats(ctx, c.ID)
		if err != nil {
			return err
		}
		if err := j.outbox.EmitIfNotExists(ctx, tx, abandonedEvent(c, stats, at)); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

func abandonedEvent(c models.Cart, stats cart.LineStats, at time.Time) outbox.DomainEvent {
	identity := cart.IdentityOf(c)
	payload := payloads.CartAbandonedEvent{
		Event:          string(enums.EventCartAbandoned),
		Identity:       identity.AnalyticsIdentity(),
		CartID:         c.ID,
		LastActivityAt: c.UpdatedAt.UTC(),
		AbandonedAt:    at,
		LineCount:      stats.LineCount,
		TotalItems:     stats.TotalItems,
	}
	actor := &outbox.ActorRef{Source: "cron"}
	if identity.IsGuest() {
		payload.SessionID = &identity.SessionID
		actor.SessionID = identity.SessionID
	} else {
		payload.UserID = &identity.UserID
		actor.UserID = identity.UserID
	}
	return outbox.DomainEvent{
		EventType:     enums.EventCartAbandoned,
		AggregateType: enums.AggregateCart,
		AggregateID:   c.ID,
		Actor:         actor,
		Data:          payload,
		OccurredAt:    at,
	}
}
