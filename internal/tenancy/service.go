package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lokapos/lokapos/internal/shared"
)

// subdomainPattern allows 3 to 32 chars of lowercase letters, digits
// and inner hyphens.
var subdomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,30}[a-z0-9]$`)

// reservedSubdomains can never be claimed by a tenant because they
// collide with platform hosts.
var reservedSubdomains = map[string]bool{
	"www": true, "api": true, "app": true, "admin": true,
	"mail": true, "metrics": true, "status": true,
}

// Service coordinates the tenant lifecycle: signup, subscription
// activation, lazy expiry and database provisioning.
type Service struct {
	logger      *slog.Logger
	repo        Repository
	provisioner *Provisioner
	trialDays   int
	now         func() time.Time
}

// NewService constructs the tenant lifecycle service.
func NewService(logger *slog.Logger, repo Repository, provisioner *Provisioner, trialDays int) *Service {
	if trialDays <= 0 {
		trialDays = 14
	}
	return &Service{
		logger:      logger,
		repo:        repo,
		provisioner: provisioner,
		trialDays:   trialDays,
		now:         time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SignupInput is the data needed to open a new tenant.
type SignupInput struct {
	Name          string
	Subdomain     string
	OwnerEmail    string
	OwnerPassword string
}

// Signup registers a tenant on a trial and provisions its database
// eagerly so the first real request does not pay the cost. A failed
// eager provision is not fatal; the next request retries it.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Tenant, error) {
	subdomain := strings.ToLower(strings.TrimSpace(in.Subdomain))
	if !subdomainPattern.MatchString(subdomain) {
		return nil, fmt.Errorf("subdomain %q must be lowercase letters, digits or hyphens: %w", subdomain, shared.ErrValidation)
	}
	if reservedSubdomains[subdomain] {
		return nil, fmt.Errorf("subdomain %q is reserved: %w", subdomain, shared.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.OwnerPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash owner password: %w", err)
	}

	trialEnd := s.now().AddDate(0, 0, s.trialDays)
	t := &Tenant{
		Subdomain:         subdomain,
		Name:              strings.TrimSpace(in.Name),
		Status:            StatusTrial,
		Settings:          Settings{},
		OwnerEmail:        strings.ToLower(strings.TrimSpace(in.OwnerEmail)),
		OwnerPasswordHash: string(hash),
		TrialEndsAt:       &trialEnd,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	if s.provisioner != nil {
		if _, err := s.provisioner.Ensure(ctx, t.Subdomain); err != nil {
			s.logger.Warn("eager provision after signup failed",
				slog.String("tenant", t.Subdomain), slog.Any("error", err))
		}
	}
	return t, nil
}

// Get looks a tenant up by subdomain.
func (s *Service) Get(ctx context.Context, subdomain string) (*Tenant, error) {
	return s.repo.GetBySubdomain(ctx, strings.ToLower(subdomain))
}

// List pages through the directory.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Tenant, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	tenants, total, err := s.repo.List(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return tenants, shared.NewPagination(page, perPage, total), nil
}

// Activate records a paid subscription and moves the tenant to active.
func (s *Service) Activate(ctx context.Context, subdomain, plan string, amount float64, months int) (*Subscription, error) {
	if months <= 0 {
		months = 1
	}
	t, err := s.repo.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub := &Subscription{
		TenantID:      t.ID,
		Plan:          plan,
		Amount:        amount,
		PaymentStatus: PaymentPaid,
		StartsAt:      now,
		EndsAt:        now.AddDate(0, months, 0),
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, t.ID, StatusActive); err != nil {
		return nil, err
	}
	s.logger.Info("tenant activated", slog.String("tenant", t.Subdomain), slog.String("plan", plan))
	return sub, nil
}

// Suspend blocks a tenant from transacting without touching its data.
func (s *Service) Suspend(ctx context.Context, subdomain string) error {
	t, err := s.repo.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return err
	}
	return s.repo.UpdateStatus(ctx, t.ID, StatusSuspended)
}

// EnsureCurrent applies lazy expiry: a trial past its end or an active
// tenant whose latest paid subscription lapsed flips to expired. The
// returned tenant reflects the flip.
func (s *Service) EnsureCurrent(ctx context.Context, t *Tenant) (*Tenant, error) {
	now := s.now()
	switch t.Status {
	case StatusTrial:
		if t.TrialEndsAt != nil && t.TrialEndsAt.Before(now) {
			if err := s.repo.UpdateStatus(ctx, t.ID, StatusExpired); err != nil {
				return nil, err
			}
			t.Status = StatusExpired
		}
	case StatusActive:
		sub, err := s.repo.LatestPaidSubscription(ctx, t.ID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			// Active with no paid subscription is an operator override.
		case err != nil:
			return nil, err
		case sub.EndsAt.Before(now):
			if err := s.repo.UpdateStatus(ctx, t.ID, StatusExpired); err != nil {
				return nil, err
			}
			t.Status = StatusExpired
		}
	}
	return t, nil
}

// CheckAccess rejects tenants that may not transact.
func (s *Service) CheckAccess(t *Tenant) error {
	if t == nil {
		return shared.ErrTenantRequired
	}
	if !t.Status.CanTransact() {
		return fmt.Errorf("tenant %s is %s: %w", t.Subdomain, t.Status, shared.ErrTenantSuspended)
	}
	return nil
}

// ExpireOverdue is the sweep counterpart to EnsureCurrent, used by the
// background job so dormant tenants expire too.
func (s *Service) ExpireOverdue(ctx context.Context) ([]string, error) {
	return s.repo.ExpireOverdue(ctx, s.now())
}

// Provision forces a fresh provisioning pass for a tenant.
func (s *Service) Provision(ctx context.Context, subdomain string) (ProvisionResult, error) {
	t, err := s.repo.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return ProvisionResult{}, err
	}
	s.provisioner.Reset(t.Subdomain)
	return s.provisioner.Ensure(ctx, t.Subdomain)
}

// StatusView is the operator-facing snapshot of one tenant.
type StatusView struct {
	Subdomain    string     `json:"subdomain"`
	Name         string     `json:"name"`
	Status       Status     `json:"status"`
	DatabaseName string     `json:"databaseName"`
	Provisioned  bool       `json:"provisioned"`
	TrialEndsAt  *time.Time `json:"trialEndsAt,omitempty"`
}

// Status reports a tenant's lifecycle and provisioning state.
func (s *Service) Status(ctx context.Context, subdomain string) (*StatusView, error) {
	t, err := s.repo.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	t, err = s.EnsureCurrent(ctx, t)
	if err != nil {
		return nil, err
	}
	_, provisioned := s.provisioner.Cached(t.Subdomain)
	return &StatusView{
		Subdomain:    t.Subdomain,
		Name:         t.Name,
		Status:       t.Status,
		DatabaseName: DatabaseName(t.Subdomain),
		Provisioned:  provisioned,
		TrialEndsAt:  t.TrialEndsAt,
	}, nil
}
