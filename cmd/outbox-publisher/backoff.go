package main

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// pollSchedule decides how long Run sleeps after each batch: not at all
// after a productive batch, one jittered interval when the queue is empty,
// and exponentially longer after consecutive failures.
type pollSchedule struct {
	interval time.Duration
	failing  retry.Backoff
}

func newPollSchedule(interval time.Duration) *pollSchedule {
	s := &pollSchedule{interval: interval}
	s.reset()
	return s
}

func (s *pollSchedule) reset() {
	s.failing = retry.WithJitter(jitterWindow,
		retry.WithCappedDuration(maxBackoff, retry.NewExponential(2*s.interval)))
}

func (s *pollSchedule) afterFailure() time.Duration {
	d, _ := s.failing.Next()
	return d
}

func (s *pollSchedule) afterBatch(claimed bool) time.Duration {
	s.reset()
	if claimed {
		return 0
	}
	d, _ := retry.WithJitter(jitterWindow, retry.NewConstant(s.interval)).Next()
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
