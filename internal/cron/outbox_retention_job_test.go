package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func TestOutboxRetentionJobDrainsInBatches(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	pruner := &fakePruner{remaining: 5}
	job := newRetentionJob(t, pruner, 7*24*time.Hour, 2)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, pruner.calls, "2 + 2 + 1")
	assert.Equal(t, now.Add(-7*24*time.Hour), pruner.cutoff)
	assert.Zero(t, pruner.remaining)
}

func TestOutboxRetentionJobDefaults(t *testing.T) {
	pruner := &fakePruner{}
	job := newRetentionJob(t, pruner, 0, 0)

	assert.Equal(t, defaultOutboxRetention, job.retention)
	assert.Equal(t, defaultOutboxDeleteBatch, job.batch)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, pruner.calls)
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job := newRetentionJob(t, &fakePruner{err: errors.New("boom")}, time.Hour, 10)
	assert.ErrorContains(t, job.Run(context.Background()), "boom")
}

func TestOutboxRetentionJobStopsOnCancel(t *testing.T) {
	pruner := &fakePruner{remaining: 100}
	job := newRetentionJob(t, pruner, time.Hour, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Zero(t, pruner.calls)
}

func TestOutboxRetentionJobAgainstSQLite(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Now().UTC()
	seedPublished := func(at *time.Time) {
		require.NoError(t, conn.Create(&models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventProductAddedToCart,
			AggregateType: enums.AggregateCart,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{}`),
			PublishedAt:   at,
			CreatedAt:     now,
		}).Error)
	}
	old := now.Add(-60 * 24 * time.Hour)
	recent := now.Add(-time.Hour)
	for range 3 {
		seedPublished(&old)
	}
	seedPublished(&recent)
	seedPublished(nil)

	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.Nop(),
		DB:         gormTx{conn},
		Repository: outbox.NewRepository(conn),
		BatchSize:  2,
	})
	require.NoError(t, err)
	require.NoError(t, jobIface.Run(context.Background()))

	var left int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&left).Error)
	assert.EqualValues(t, 2, left)
}

func newRetentionJob(t *testing.T, pruner publishedPruner, retention time.Duration, batch int) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.Nop(),
		DB:         gormTx{},
		Repository: pruner,
		Retention:  retention,
		BatchSize:  batch,
	})
	require.NoError(t, err)
	job, ok := jobIface.(*outboxRetentionJob)
	require.True(t, ok, "unexpected job type %T", jobIface)
	return job
}

type fakePruner struct {
	remaining int
	calls     int
	cutoff    time.Time
	err       error
}

func (f *fakePruner) DeletePublishedBefore(_ *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	n := min(limit, f.remaining)
	f.remaining -= n
	return int64(n), nil
}

// gormTx runs fn in a real transaction when conn is set, else with a nil tx.
type gormTx struct{ conn *gorm.DB }

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if g.conn == nil {
		return fn(nil)
	}
	return g.conn.WithContext(ctx).Transaction(fn)
}
