package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	bootstrap.Main("api", run)
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
	tokens, err := auth.NewTokens(cfg.JWT)
	if err != nil {
		return err
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	resolver := catalog.NewResolver(catalogRepo)
	catalogService, err := catalog.NewService(catalogRepo, resolver)
	if err != nil {
		return err
	}
	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:     cart.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Resolver: resolver,
		Outbox:   outbox.NewService(outbox.NewRepository(dbClient.DB()), p.Logger),
		Metrics:  metrics.NewCartMetrics(p.Registry),
		Logger:   p.Logger,
		Config:   cfg.Cart,
	})
	if err != nil {
		return err
	}

	// PORT is set by the hosting platform and wins over the configured port.
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr: net.JoinHostPort("", port),
		Handler: routes.NewRouter(cfg, p.Logger, routes.Deps{
			DB:       dbClient,
			Redis:    redisClient,
			Catalog:  catalogService,
			Cart:     cartService,
			Tokens:   tokens,
			Gatherer: p.Registry,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return p.Run(p.Logger.WithField(ctx, "addr", server.Addr), func(ctx context.Context) error {
		return serve(ctx, server)
	})
}

// serve runs srv until ctx ends, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
