package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokapos/lokapos/internal/shared"
)

// Repository stores the tenant directory. It always talks to the
// primary database; tenant business data never lives here.
type Repository interface {
	Create(ctx context.Context, t *Tenant) error
	GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
	GetByID(ctx context.Context, id int64) (*Tenant, error)
	List(ctx context.Context, limit, offset int) ([]Tenant, int, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	UpdateSettings(ctx context.Context, id int64, settings Settings) error
	ExpireOverdue(ctx context.Context, now time.Time) ([]string, error)
	CreateSubscription(ctx context.Context, sub *Subscription) error
	LatestPaidSubscription(ctx context.Context, tenantID int64) (*Subscription, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed tenant directory.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const tenantColumns = `id, subdomain, name, status, settings, owner_email, owner_password_hash, trial_ends_at, created_at, updated_at`

func (r *repository) Create(ctx context.Context, t *Tenant) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO tenants (subdomain, name, status, settings, owner_email, owner_password_hash, trial_ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		t.Subdomain, t.Name, t.Status, t.Settings, t.OwnerEmail, t.OwnerPasswordHash, t.TrialEndsAt,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("subdomain %s: %w", t.Subdomain, shared.ErrDuplicate)
		}
		return err
	}
	return nil
}

func (r *repository) GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error) {
	return r.scanTenant(r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE subdomain = $1`, subdomain))
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Tenant, error) {
	return r.scanTenant(r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

func (r *repository) scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Subdomain, &t.Name, &t.Status, &t.Settings, &t.OwnerEmail, &t.OwnerPasswordHash, &t.TrialEndsAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Tenant, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Subdomain, &t.Name, &t.Status, &t.Settings, &t.OwnerEmail, &t.OwnerPasswordHash, &t.TrialEndsAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, t)
	}
	return tenants, total, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE tenants SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateSettings(ctx context.Context, id int64, settings Settings) error {
	tag, err := r.db.Exec(ctx, `UPDATE tenants SET settings = $2, updated_at = NOW() WHERE id = $1`, id, settings)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ExpireOverdue flips tenants whose trial or latest paid subscription
// has lapsed and returns the affected subdomains.
func (r *repository) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE tenants SET status = $2, updated_at = NOW()
		WHERE (status = $3 AND trial_ends_at IS NOT NULL AND trial_ends_at < $1)
		   OR (status = $4 AND NOT EXISTS (
				SELECT 1 FROM subscriptions s
				WHERE s.tenant_id = tenants.id AND s.payment_status = $5 AND s.ends_at >= $1))
		RETURNING subdomain`,
		now, StatusExpired, StatusTrial, StatusActive, PaymentPaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subdomains []string
	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return nil, err
		}
		subdomains = append(subdomains, sub)
	}
	return subdomains, rows.Err()
}

func (r *repository) CreateSubscription(ctx context.Context, sub *Subscription) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO subscriptions (tenant_id, plan, amount, payment_status, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		sub.TenantID, sub.Plan, sub.Amount, sub.PaymentStatus, sub.StartsAt, sub.EndsAt,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
}

func (r *repository) LatestPaidSubscription(ctx context.Context, tenantID int64) (*Subscription, error) {
	var sub Subscription
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, plan, amount, payment_status, starts_at, ends_at, created_at, updated_at
		FROM subscriptions
		WHERE tenant_id = $1 AND payment_status = $2
		ORDER BY ends_at DESC
		LIMIT 1`,
		tenantID, PaymentPaid,
	).Scan(&sub.ID, &sub.TenantID, &sub.Plan, &sub.Amount, &sub.PaymentStatus, &sub.StartsAt, &sub.EndsAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}
