package tenancy

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lokapos/lokapos/internal/shared"
)

type memoryRepo struct {
	nextID  int64
	tenants map[string]*Tenant
	subs    []Subscription
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{tenants: make(map[string]*Tenant)}
}

func (m *memoryRepo) Create(_ context.Context, t *Tenant) error {
	if _, ok := m.tenants[t.Subdomain]; ok {
		return fmt.Errorf("subdomain %s: %w", t.Subdomain, shared.ErrDuplicate)
	}
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	clone := *t
	m.tenants[t.Subdomain] = &clone
	return nil
}

func (m *memoryRepo) GetBySubdomain(_ context.Context, subdomain string) (*Tenant, error) {
	t, ok := m.tenants[subdomain]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id int64) (*Tenant, error) {
	for _, t := range m.tenants {
		if t.ID == id {
			clone := *t
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryRepo) List(_ context.Context, limit, offset int) ([]Tenant, int, error) {
	var out []Tenant
	for _, t := range m.tenants {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	for _, t := range m.tenants {
		if t.ID == id {
			t.Status = status
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memoryRepo) UpdateSettings(_ context.Context, id int64, settings Settings) error {
	for _, t := range m.tenants {
		if t.ID == id {
			t.Settings = settings
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memoryRepo) ExpireOverdue(_ context.Context, now time.Time) ([]string, error) {
	var flipped []string
	for _, t := range m.tenants {
		if t.Status == StatusTrial && t.TrialEndsAt != nil && t.TrialEndsAt.Before(now) {
			t.Status = StatusExpired
			flipped = append(flipped, t.Subdomain)
		}
	}
	return flipped, nil
}

func (m *memoryRepo) CreateSubscription(_ context.Context, sub *Subscription) error {
	m.nextID++
	sub.ID = m.nextID
	m.subs = append(m.subs, *sub)
	return nil
}

func (m *memoryRepo) LatestPaidSubscription(_ context.Context, tenantID int64) (*Subscription, error) {
	var best *Subscription
	for i := range m.subs {
		sub := m.subs[i]
		if sub.TenantID != tenantID || sub.PaymentStatus != PaymentPaid {
			continue
		}
		if best == nil || sub.EndsAt.After(best.EndsAt) {
			best = &m.subs[i]
		}
	}
	if best == nil {
		return nil, shared.ErrNotFound
	}
	clone := *best
	return &clone, nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, nil))
}

func TestSignupCreatesTrialTenant(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(testLogger(t), repo, nil, 14)
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return now })

	tenant, err := svc.Signup(context.Background(), SignupInput{
		Name:          "Kopi Kita",
		Subdomain:     "Kopi-Kita",
		OwnerEmail:    "Owner@KopiKita.id",
		OwnerPassword: "rahasia-banget",
	})
	require.NoError(t, err)
	require.Equal(t, "kopi-kita", tenant.Subdomain)
	require.Equal(t, StatusTrial, tenant.Status)
	require.Equal(t, "owner@kopikita.id", tenant.OwnerEmail)
	require.NotNil(t, tenant.TrialEndsAt)
	require.Equal(t, now.AddDate(0, 0, 14), *tenant.TrialEndsAt)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(tenant.OwnerPasswordHash), []byte("rahasia-banget")))
}

func TestSignupRejectsBadSubdomains(t *testing.T) {
	svc := NewService(testLogger(t), newMemoryRepo(), nil, 14)

	for _, subdomain := range []string{"", "a", "-leading", "trailing-", "has space", "www", "UPPER CASE!"} {
		_, err := svc.Signup(context.Background(), SignupInput{
			Name: "X", Subdomain: subdomain, OwnerEmail: "x@y.id", OwnerPassword: "12345678",
		})
		require.ErrorIs(t, err, shared.ErrValidation, "subdomain %q", subdomain)
	}
}

func TestSignupDuplicateSubdomain(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(testLogger(t), repo, nil, 14)

	in := SignupInput{Name: "X", Subdomain: "kopikita", OwnerEmail: "x@y.id", OwnerPassword: "12345678"}
	_, err := svc.Signup(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestEnsureCurrentFlipsLapsedTrial(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(testLogger(t), repo, nil, 14)

	signupAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return signupAt })
	tenant, err := svc.Signup(context.Background(), SignupInput{
		Name: "X", Subdomain: "kopikita", OwnerEmail: "x@y.id", OwnerPassword: "12345678",
	})
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return signupAt.AddDate(0, 0, 15) })
	tenant, err = svc.EnsureCurrent(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, tenant.Status)

	stored, err := repo.GetBySubdomain(context.Background(), "kopikita")
	require.NoError(t, err)
	require.Equal(t, StatusExpired, stored.Status)
	require.ErrorIs(t, svc.CheckAccess(stored), shared.ErrTenantSuspended)
}

func TestEnsureCurrentFlipsLapsedSubscription(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(testLogger(t), repo, nil, 14)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return start })

	_, err := svc.Signup(context.Background(), SignupInput{
		Name: "X", Subdomain: "kopikita", OwnerEmail: "x@y.id", OwnerPassword: "12345678",
	})
	require.NoError(t, err)

	_, err = svc.Activate(context.Background(), "kopikita", "pro", 99000, 1)
	require.NoError(t, err)

	tenant, err := repo.GetBySubdomain(context.Background(), "kopikita")
	require.NoError(t, err)
	require.Equal(t, StatusActive, tenant.Status)

	// One day before the period ends the tenant stays active.
	svc.WithNow(func() time.Time { return start.AddDate(0, 1, -1) })
	tenant, err = svc.EnsureCurrent(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, StatusActive, tenant.Status)

	svc.WithNow(func() time.Time { return start.AddDate(0, 1, 1) })
	tenant, err = svc.EnsureCurrent(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, tenant.Status)
}

func TestCheckAccessPerStatus(t *testing.T) {
	svc := NewService(testLogger(t), newMemoryRepo(), nil, 14)

	require.NoError(t, svc.CheckAccess(&Tenant{Status: StatusTrial}))
	require.NoError(t, svc.CheckAccess(&Tenant{Status: StatusActive}))
	require.ErrorIs(t, svc.CheckAccess(&Tenant{Status: StatusSuspended}), shared.ErrTenantSuspended)
	require.ErrorIs(t, svc.CheckAccess(&Tenant{Status: StatusExpired}), shared.ErrTenantSuspended)
	require.ErrorIs(t, svc.CheckAccess(&Tenant{Status: StatusPending}), shared.ErrTenantSuspended)
	require.ErrorIs(t, svc.CheckAccess(nil), shared.ErrTenantRequired)
}
