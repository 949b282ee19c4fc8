package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/lokapos/lokapos/internal/jobs"
	"github.com/lokapos/lokapos/internal/reporting"
	"github.com/lokapos/lokapos/internal/tenancy"
)

const (
	warmupTenantTimeout = 20 * time.Second
	warmupPageSize      = 100
)

// ReportWarmupJob precomputes the report caches tenants open their day
// with. Scoped to one tenant by payload, or every transactable tenant
// when the payload is empty.
type ReportWarmupJob struct {
	Tenants *tenancy.Service
	Manager *tenancy.Manager
	Reports *reporting.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(tenants *tenancy.Service, manager *tenancy.Manager, reports *reporting.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Tenants: tenants,
		Manager: manager,
		Reports: reports,
		Logger:  logger,
		Metrics: metrics,
	}
}

// Handle processes one warmup run.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Tenants == nil || j.Manager == nil || j.Reports == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskReportWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if payload.Subdomain != "" {
		tenant, err := j.Tenants.Get(ctx, payload.Subdomain)
		if err != nil {
			resultErr = err
			return resultErr
		}
		resultErr = j.warmTenant(ctx, tenant)
		return resultErr
	}

	start := time.Now()
	warmed := 0
	for page := 1; ; page++ {
		tenants, _, err := j.Tenants.List(ctx, page, warmupPageSize)
		if err != nil {
			resultErr = err
			return resultErr
		}
		if len(tenants) == 0 {
			break
		}
		for i := range tenants {
			tenant := &tenants[i]
			if !tenant.Status.CanTransact() {
				continue
			}
			// One broken tenant must not starve the rest of the fleet.
			if err := j.warmTenant(ctx, tenant); err != nil {
				resultErr = err
				j.logger().Error("warm tenant",
					slog.String("tenant", tenant.Subdomain),
					slog.Any("error", err))
				continue
			}
			warmed++
		}
		if len(tenants) < warmupPageSize {
			break
		}
	}

	j.logger().Info("report warmup done",
		slog.Int("warmed", warmed),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *ReportWarmupJob) warmTenant(ctx context.Context, tenant *tenancy.Tenant) error {
	tenantCtx, cancel := context.WithTimeout(ctx, warmupTenantTimeout)
	defer cancel()

	bound, err := j.Manager.Bind(tenantCtx, tenant)
	if err != nil {
		return err
	}
	if err := j.Reports.Warmup(bound); err != nil {
		return err
	}
	j.metrics().AddWarmed(tenant.Subdomain)
	return nil
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
