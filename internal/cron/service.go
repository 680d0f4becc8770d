package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const defaultInterval = time.Hour

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Locker
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval under a distributed lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Locker
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

// JobResult is the outcome of one job within a cycle.
type JobResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// CycleReport summarizes one cycle. Skipped is set when another worker held the lock.
type CycleReport struct {
	Skipped bool
	Results []JobResult
}

// Failed counts jobs that returned an error.
func (r CycleReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Run executes a cycle immediately, then once per interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunOnce takes the lock and runs each job in order. A failing job does not
// stop the ones after it.
func (s *Service) RunOnce(ctx context.Context) (CycleReport, error) {
	lease, err := s.lock.Acquire(ctx)
	if errors.Is(err, ErrLockHeld) {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return CycleReport{Skipped: true}, nil
	}
	if err != nil {
		return CycleReport{}, err
	}
	defer func() {
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	jobs := s.registry.Jobs()
	report := CycleReport{Results: make([]JobResult, 0, len(jobs))}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Results = append(report.Results, s.runJob(ctx, job))
	}

	cycleCtx := s.logg.WithFields(ctx, map[string]any{"jobs": len(report.Results), "failed": report.Failed()})
	s.logg.Info(cycleCtx, "cron cycle complete")
	return report, nil
}

func (s *Service) runJob(ctx context.Context, job Job) JobResult {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	start := s.now()
	err := job.Run(jobCtx)
	elapsed := s.now().Sub(start)

	s.metrics.Observe(name, elapsed, err)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
	} else {
		s.logg.Info(jobCtx, "job completed")
	}
	return JobResult{Name: name, Duration: elapsed, Err: err}
}
