// Package tenancy owns the tenant directory, per-tenant database
// provisioning, and the request-scoped binding that routes every other
// package to the right database.
package tenancy

import "time"

// Status is the tenant lifecycle state.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusExpired   Status = "expired"
	StatusPending   Status = "pending"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusSuspended, StatusExpired, StatusPending:
		return true
	}
	return false
}

// CanTransact reports whether a tenant in this state may use the API.
func (s Status) CanTransact() bool {
	return s == StatusTrial || s == StatusActive
}

// Tenant is one customer organization. Business data lives in the
// tenant's own database; this row only carries identity, lifecycle and
// connection overrides.
type Tenant struct {
	ID                int64
	Subdomain         string
	Name              string
	Status            Status
	Settings          Settings
	OwnerEmail        string
	OwnerPasswordHash string
	TrialEndsAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PaymentStatus tracks how a subscription invoice ended up.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Subscription is one billing period for a tenant. History is kept; the
// latest paid row decides whether an active tenant stays active.
type Subscription struct {
	ID            int64
	TenantID      int64
	Plan          string
	Amount        float64
	PaymentStatus PaymentStatus
	StartsAt      time.Time
	EndsAt        time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
