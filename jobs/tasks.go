// Package jobs runs the background work: the subscription sweep that
// expires overdue tenants and the report cache warmup. It wraps the
// asynq server, scheduler, and enqueue client.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue every task runs on.
	QueueDefault = "default"

	// TaskSubscriptionSweep flips trial and lapsed tenants to expired.
	TaskSubscriptionSweep = "tenancy:subscription_sweep"
	// TaskReportWarmup precomputes report caches, for one tenant or all.
	TaskReportWarmup = "reporting:warmup"
)

// ReportWarmupPayload scopes a warmup run. An empty Subdomain warms
// every tenant that can transact.
type ReportWarmupPayload struct {
	Subdomain string `json:"subdomain,omitempty"`
}

// NewSubscriptionSweepTask constructs the sweep task.
func NewSubscriptionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSubscriptionSweep, nil)
}

// NewReportWarmupTask constructs a warmup task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}
