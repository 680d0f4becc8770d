package main

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/analytics/router"
	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/internal/analytics/worker"
	"github.com/angelmondragon/storefront-backend/internal/analytics/writer"
	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

const flushTimeout = 10 * time.Second

func main() {
	bootstrap.Main("analytics-worker", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	cfg := p.Config

	redisClient, err := p.OpenRedis(ctx)
	if err != nil {
		return err
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, p.Logger, pubsub.RequireSubscription(cfg.PubSub.AnalyticsSubscription))
	if err != nil {
		return err
	}
	p.OnClose("pubsub", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, p.Logger)
	if err != nil {
		return err
	}
	p.OnClose("bigquery", bqClient.Close)

	subscription := pubsubClient.Subscriber(cfg.PubSub.AnalyticsSubscription)
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}
	err = bqClient.EnsureTable(ctx, bigquery.TableSpec{
		Name:           cfg.BigQuery.CartEventsTable,
		Schema:         types.CartEventSchema(),
		PartitionField: types.CartEventsPartitionField,
	})
	if err != nil {
		return err
	}

	dedupe, err := worker.NewDeduper(redisClient, worker.ConsumerName, cfg.Outbox.IdempotencyTTL)
	if err != nil {
		return err
	}
	cartWriter, err := writer.New(bqClient, writer.Config{CartEventsTable: cfg.BigQuery.CartEventsTable})
	if err != nil {
		return err
	}
	routing, err := router.NewRouter(cartWriter, registry.NewCartDecoderRegistry(), p.Logger, nil)
	if err != nil {
		return err
	}
	service, err := worker.NewService(worker.ServiceParams{
		Subscription: subscription,
		Handler:      routing,
		Dedupe:       dedupe,
		Metrics:      metrics.NewAnalyticsMetrics(p.Registry),
		Logger:       p.Logger,
	})
	if err != nil {
		return err
	}

	runErr := p.Run(ctx, service.Run, p.MetricsListener())

	// Rows still buffered after the receive loop stops were acked already.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	if err := cartWriter.Flush(flushCtx); err != nil {
		p.Logger.Error(ctx, "failed to flush buffered analytics rows", err)
	}
	return runErr
}
