package tenancy

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokapos/lokapos/internal/observability"
	"github.com/lokapos/lokapos/internal/platform/db"
)

// Manager resolves tenants to live connection pools and implements
// db.Source for the rest of the application. Pools are cached by
// connection string and never shared across tenants.
type Manager struct {
	logger        *slog.Logger
	primary       *pgxpool.Pool
	resolver      *Resolver
	provisioner   *Provisioner
	autoProvision bool
	maxConns      int32
	metrics       *observability.Metrics

	mu    sync.RWMutex
	pools map[string]*pgxpool.Pool

	open func(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error)
}

// NewManager constructs a Manager.
func NewManager(logger *slog.Logger, primary *pgxpool.Pool, resolver *Resolver, provisioner *Provisioner, autoProvision bool, maxConns int32, metrics *observability.Metrics) *Manager {
	return &Manager{
		logger:        logger,
		primary:       primary,
		resolver:      resolver,
		provisioner:   provisioner,
		autoProvision: autoProvision,
		maxConns:      maxConns,
		metrics:       metrics,
		pools:         make(map[string]*pgxpool.Pool),
		open:          db.NewWithMaxConns,
	}
}

// Connect resolves the tenant's connection string and returns a live
// pool for it, provisioning the database first when nothing resolves
// and auto-provisioning is enabled.
func (m *Manager) Connect(ctx context.Context, t *Tenant) (*pgxpool.Pool, string, error) {
	cs, ok := m.resolver.Resolve(t)
	if !ok {
		if !m.autoProvision {
			return nil, "", newProvisionError(t.Subdomain, CodeUnresolvable, nil)
		}
		res, err := m.provisioner.Ensure(ctx, t.Subdomain)
		if err != nil {
			return nil, "", err
		}
		cs = res.ConnectionString
	}

	pool, err := m.poolFor(ctx, t.Subdomain, cs)
	if err != nil {
		return nil, "", err
	}
	return pool, cs, nil
}

// Bind resolves the tenant and returns a context carrying its binding.
func (m *Manager) Bind(ctx context.Context, t *Tenant) (context.Context, error) {
	pool, cs, err := m.Connect(ctx, t)
	if err != nil {
		return ctx, err
	}
	return WithTenant(ctx, &TenantContext{Tenant: t, Pool: pool, ConnectionString: cs}), nil
}

func (m *Manager) poolFor(ctx context.Context, subdomain, cs string) (*pgxpool.Pool, error) {
	m.mu.RLock()
	pool, ok := m.pools[cs]
	m.mu.RUnlock()
	if ok {
		if err := pool.Ping(ctx); err == nil {
			return pool, nil
		}
		// Stale pool, e.g. the server restarted. Drop and redial.
		m.mu.Lock()
		if m.pools[cs] == pool {
			delete(m.pools, cs)
			pool.Close()
		}
		m.mu.Unlock()
		m.logger.Warn("tenant pool went stale, reopening", slog.String("tenant", subdomain))
	}

	fresh, err := m.open(ctx, cs, m.maxConns)
	if err != nil {
		return nil, newProvisionError(subdomain, CodeConnectionFailed, err)
	}

	m.mu.Lock()
	if existing, ok := m.pools[cs]; ok {
		m.mu.Unlock()
		fresh.Close()
		return existing, nil
	}
	m.pools[cs] = fresh
	size := len(m.pools)
	m.mu.Unlock()

	m.metrics.SetActivePools(size)
	return fresh, nil
}

// Pool implements db.Source: the bound tenant's pool, or the primary
// pool when no tenant is bound.
func (m *Manager) Pool(ctx context.Context) *pgxpool.Pool {
	if tc, ok := FromContext(ctx); ok {
		return tc.Pool
	}
	return m.primary
}

// Primary exposes the shared directory pool.
func (m *Manager) Primary() *pgxpool.Pool {
	return m.primary
}

// Close shuts down all cached tenant pools. The primary pool is owned
// by the caller and left open.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for cs, pool := range m.pools {
		pool.Close()
		delete(m.pools, cs)
	}
	m.metrics.SetActivePools(0)
}

var _ db.Source = (*Manager)(nil)
