package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/lokapos/lokapos/internal/jobs"
	"github.com/lokapos/lokapos/internal/shared"
	"github.com/lokapos/lokapos/internal/tenancy"
	"github.com/lokapos/lokapos/jobs"
)

// directoryStub keeps the tenant directory in memory so the sweep can
// run through the real service layer.
type directoryStub struct {
	tenants []tenancy.Tenant
}

func (d *directoryStub) Create(ctx context.Context, t *tenancy.Tenant) error {
	d.tenants = append(d.tenants, *t)
	return nil
}

func (d *directoryStub) GetBySubdomain(ctx context.Context, subdomain string) (*tenancy.Tenant, error) {
	for i := range d.tenants {
		if d.tenants[i].Subdomain == subdomain {
			t := d.tenants[i]
			return &t, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (d *directoryStub) GetByID(ctx context.Context, id int64) (*tenancy.Tenant, error) {
	for i := range d.tenants {
		if d.tenants[i].ID == id {
			t := d.tenants[i]
			return &t, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (d *directoryStub) List(ctx context.Context, limit, offset int) ([]tenancy.Tenant, int, error) {
	return append([]tenancy.Tenant(nil), d.tenants...), len(d.tenants), nil
}

func (d *directoryStub) UpdateStatus(ctx context.Context, id int64, status tenancy.Status) error {
	for i := range d.tenants {
		if d.tenants[i].ID == id {
			d.tenants[i].Status = status
			return nil
		}
	}
	return shared.ErrNotFound
}

func (d *directoryStub) UpdateSettings(ctx context.Context, id int64, settings tenancy.Settings) error {
	return nil
}

func (d *directoryStub) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	var flipped []string
	for i := range d.tenants {
		t := &d.tenants[i]
		if t.Status == tenancy.StatusTrial && t.TrialEndsAt != nil && t.TrialEndsAt.Before(now) {
			t.Status = tenancy.StatusExpired
			flipped = append(flipped, t.Subdomain)
		}
	}
	return flipped, nil
}

func (d *directoryStub) CreateSubscription(ctx context.Context, sub *tenancy.Subscription) error {
	return nil
}

func (d *directoryStub) LatestPaidSubscription(ctx context.Context, tenantID int64) (*tenancy.Subscription, error) {
	return nil, shared.ErrNotFound
}

func TestSubscriptionSweepJobFlow(t *testing.T) {
	now := time.Date(2026, time.August, 21, 17, 5, 0, 0, time.UTC)
	lapsed := now.Add(-48 * time.Hour)
	current := now.Add(72 * time.Hour)
	dir := &directoryStub{
		tenants: []tenancy.Tenant{
			{ID: 1, Subdomain: "kopikita", Status: tenancy.StatusTrial, TrialEndsAt: &lapsed},
			{ID: 2, Subdomain: "servispro", Status: tenancy.StatusTrial, TrialEndsAt: &current},
			{ID: 3, Subdomain: "tokobaru", Status: tenancy.StatusTrial, TrialEndsAt: &lapsed},
		},
	}

	service := tenancy.NewService(nil, dir, nil, 14)
	service.WithNow(func() time.Time { return now })

	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	job := jobs.NewSubscriptionSweepJob(service, nil, metrics)
	if err := job.Handle(context.Background(), jobs.NewSubscriptionSweepTask()); err != nil {
		t.Fatalf("job handle: %v", err)
	}

	if got := dir.tenants[0].Status; got != tenancy.StatusExpired {
		t.Fatalf("expected kopikita expired, got %s", got)
	}
	if got := dir.tenants[1].Status; got != tenancy.StatusTrial {
		t.Fatalf("expected servispro still on trial, got %s", got)
	}
	if got := dir.tenants[2].Status; got != tenancy.StatusExpired {
		t.Fatalf("expected tokobaru expired, got %s", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if !assertCounter(t, families, "lokapos_jobs_total", map[string]string{"job": jobs.TaskSubscriptionSweep, "status": "success"}, 1) {
		t.Fatalf("expected lokapos_jobs_total increment for the sweep")
	}
	if !assertCounter(t, families, "lokapos_tenants_expired_total", nil, 2) {
		t.Fatalf("expected two tenants counted as expired")
	}
	if !metricExists(families, "lokapos_job_duration_seconds") {
		t.Fatalf("expected lokapos_job_duration_seconds to be recorded")
	}
}

func assertCounter(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string, expected float64) bool {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) {
				if metric.GetCounter() == nil {
					return false
				}
				if metric.GetCounter().GetValue() == expected {
					return true
				}
			}
		}
	}
	return false
}

func metricExists(families []*dto.MetricFamily, name string) bool {
	for _, fam := range families {
		if fam.GetName() == name {
			return true
		}
	}
	return false
}

func matchLabels(pairs []*dto.LabelPair, expected map[string]string) bool {
	if len(expected) == 0 {
		return true
	}
	seen := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range expected {
		if seen[k] != v {
			return false
		}
	}
	return true
}
