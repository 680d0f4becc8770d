// Package bootstrap wires the pieces every storefront binary starts with:
// .env loading, config, the structured logger, a Prometheus registry, shared
// infrastructure clients and signal-driven shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Worker is one long-running loop of a process. It returns when ctx ends.
type Worker func(ctx context.Context) error

// Process holds what a binary has opened so far. Resources registered with
// OnClose are released in reverse order by Close.
type Process struct {
	Name     string
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Boot loads configuration for the named service and builds its logger.
func Boot(name string) (*Process, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = name

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Process{
		Name:   name,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: name,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			Format:      cfg.App.LogFormat,
			WarnStack:   cfg.App.LogWarnStack,
		}),
		Registry: reg,
	}, nil
}

// Main boots the named process, runs fn under a context cancelled by SIGINT
// or SIGTERM, releases everything fn opened and exits non-zero on failure.
func Main(name string, fn func(ctx context.Context, p *Process) error) {
	p, err := Boot(name)
	if err != nil {
		logger.New(logger.Options{ServiceName: name}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":         p.Config.App.Env,
		"instance":    instance.GetID(),
		"serviceKind": name,
	})

	err = fn(ctx, p)
	stop()
	p.Close(ctx)
	if err != nil {
		p.Logger.Error(ctx, name+" stopped unexpectedly", err)
		os.Exit(1)
	}
	p.Logger.Info(ctx, name+" shut down gracefully")
}

// OnClose registers fn to run during Close.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

// Close releases registered resources, newest first. Failures are logged.
func (p *Process) Close(ctx context.Context) {
	for _, c := range slices.Backward(p.closers) {
		if err := c.fn(); err != nil {
			p.Logger.Error(p.Logger.WithField(ctx, "resource", c.name), "failed to close resource", err)
		}
	}
	p.closers = nil
}

// OpenDB connects to Postgres and, in dev with auto-migrate on, applies
// pending migrations.
func (p *Process) OpenDB(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	p.OnClose("database", client.Close)
	if err := migrate.MaybeRunDev(ctx, p.Config, p.Logger, client); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return client, nil
}

func (p *Process) OpenRedis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	p.OnClose("redis", client.Close)
	return client, nil
}

// MetricsListener serves the process registry on STOREFRONT_METRICS_ADDR.
func (p *Process) MetricsListener() Worker {
	return func(ctx context.Context) error {
		return metrics.Serve(ctx, p.Config.Metrics.Addr, p.Registry, p.Logger)
	}
}

// Run starts workers together and waits for all of them. The first failure
// cancels the rest. Cancellation of ctx itself is a clean stop.
func (p *Process) Run(ctx context.Context, workers ...Worker) error {
	p.Logger.Info(p.Logger.WithField(ctx, "workers", len(workers)), "starting "+p.Name)
	group, groupCtx := errgroup.WithContext(ctx)
	for _, w := range workers {
		group.Go(func() error { return w(groupCtx) })
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
