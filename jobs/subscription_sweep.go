package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/lokapos/lokapos/internal/jobs"
	"github.com/lokapos/lokapos/internal/tenancy"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SubscriptionSweepJob expires tenants whose trial or latest paid
// subscription has lapsed. Requests already expire tenants lazily on
// access; the sweep catches the dormant ones nobody visits.
type SubscriptionSweepJob struct {
	Tenants *tenancy.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSubscriptionSweepJob wires dependencies for the sweep handler.
func NewSubscriptionSweepJob(tenants *tenancy.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *SubscriptionSweepJob {
	return &SubscriptionSweepJob{
		Tenants: tenants,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes one sweep run.
func (j *SubscriptionSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Tenants == nil {
		return errors.New("subscription sweep: handler not configured")
	}

	tracker := j.metrics().Track(TaskSubscriptionSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	expired, err := j.Tenants.ExpireOverdue(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("subscription sweep", slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddExpired(len(expired))
	for _, subdomain := range expired {
		j.logger().Info("tenant expired", slog.String("tenant", subdomain))
	}
	j.logger().Info("subscription sweep done",
		slog.Int("expired", len(expired)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *SubscriptionSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSubscriptionSweep))
	}
	return slog.Default().With(slog.String("job", TaskSubscriptionSweep))
}

func (j *SubscriptionSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SubscriptionSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
