package main

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func main() {
	bootstrap.Main("cron-worker", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	cfg := p.Config

	dbClient, err := p.OpenDB(ctx)
	if err != nil {
		return err
	}
	redisClient, err := p.OpenRedis(ctx)
	if err != nil {
		return err
	}

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+env), 2*cfg.Cron.Interval)
	if err != nil {
		return err
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	abandonment, err := cron.NewCartAbandonmentJob(cron.CartAbandonmentJobParams{
		Logger:       p.Logger,
		DB:           dbClient,
		Reader:       cart.NewRepository(dbClient.DB()),
		Outbox:       outbox.NewService(outboxRepo, p.Logger),
		AbandonAfter: cfg.Cart.AbandonAfter,
		BatchSize:    cfg.Cart.AbandonBatch,
	})
	if err != nil {
		return err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     p.Logger,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetention,
		BatchSize:  cfg.Cron.OutboxDeleteBatch,
	})
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   p.Logger,
		Registry: cron.NewRegistry(abandonment, retention),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(p.Registry),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	ctx = p.Logger.WithField(ctx, "interval", cfg.Cron.Interval.String())
	return p.Run(ctx, service.Run, p.MetricsListener())
}
