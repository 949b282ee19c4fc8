package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/singleflight"

	"github.com/lokapos/lokapos/internal/observability"
	"github.com/lokapos/lokapos/internal/platform/db"
)

// ProvisionResult describes a tenant database that is ready for use.
type ProvisionResult struct {
	ConnectionString string
	DatabaseName     string
	Created          bool
}

type provisionFailure struct {
	err *ProvisionError
	at  time.Time
}

// Provisioner creates tenant databases on first use. Successful results
// are cached per subdomain so repeated requests skip provisioning
// entirely; failures are cached with a timestamp and replayed until the
// retry backoff window has passed. Concurrent requests for the same
// tenant collapse into one provisioning attempt.
type Provisioner struct {
	logger  *slog.Logger
	// adminURL is only used for CREATE DATABASE and is dialed per call,
	// never pooled.
	adminURL string
	// appURL is the non-admin DSN whose database gets swapped out to
	// reach the tenant database.
	appURL  string
	backoff time.Duration
	timeout time.Duration
	metrics *observability.Metrics

	group singleflight.Group

	mu          sync.Mutex
	provisioned map[string]ProvisionResult
	failures    map[string]provisionFailure

	now        func() time.Time
	createDB   func(ctx context.Context, subdomain, dbName string) (bool, error)
	syncSchema func(ctx context.Context, dsn string) error
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(logger *slog.Logger, adminURL, appURL string, backoff time.Duration, metrics *observability.Metrics) *Provisioner {
	if backoff <= 0 {
		backoff = time.Minute
	}
	p := &Provisioner{
		logger:      logger,
		adminURL:    adminURL,
		appURL:      appURL,
		backoff:     backoff,
		timeout:     2 * time.Minute,
		metrics:     metrics,
		provisioned: make(map[string]ProvisionResult),
		failures:    make(map[string]provisionFailure),
		now:         time.Now,
	}
	p.createDB = p.adminCreateDatabase
	p.syncSchema = p.runSchemaSync
	return p
}

// WithNow overrides the clock for deterministic tests.
func (p *Provisioner) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Ensure returns a ready tenant database, provisioning it when needed.
// Within the backoff window after a failure it fails fast with the
// cached error instead of touching the database server again.
func (p *Provisioner) Ensure(ctx context.Context, subdomain string) (ProvisionResult, error) {
	p.mu.Lock()
	if res, ok := p.provisioned[subdomain]; ok {
		p.mu.Unlock()
		return res, nil
	}
	if fail, ok := p.failures[subdomain]; ok && p.now().Sub(fail.at) < p.backoff {
		p.mu.Unlock()
		return ProvisionResult{}, fail.err
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do(subdomain, func() (any, error) {
		return p.provision(ctx, subdomain)
	})
	if err != nil {
		return ProvisionResult{}, err
	}
	return v.(ProvisionResult), nil
}

// Reset drops the cached result and failure for a tenant so the next
// Ensure re-checks the server. Used by the force-provision endpoint.
func (p *Provisioner) Reset(subdomain string) {
	p.mu.Lock()
	delete(p.provisioned, subdomain)
	delete(p.failures, subdomain)
	p.mu.Unlock()
}

// Cached returns the in-process provisioning result for a tenant.
func (p *Provisioner) Cached(subdomain string) (ProvisionResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.provisioned[subdomain]
	return res, ok
}

func (p *Provisioner) provision(ctx context.Context, subdomain string) (ProvisionResult, error) {
	// A caller that waited out a concurrent flight lands on the cache here.
	p.mu.Lock()
	if res, ok := p.provisioned[subdomain]; ok {
		p.mu.Unlock()
		return res, nil
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	dbName := DatabaseName(subdomain)

	created, err := p.createDB(ctx, subdomain, dbName)
	if err != nil {
		return ProvisionResult{}, p.fail(subdomain, err)
	}

	dsn, err := db.WithDatabase(p.appURL, dbName)
	if err != nil {
		return ProvisionResult{}, p.fail(subdomain, newProvisionError(subdomain, CodeCreateFailed, err))
	}

	if err := p.syncSchema(ctx, dsn); err != nil {
		return ProvisionResult{}, p.fail(subdomain, newProvisionError(subdomain, CodeMigrationFailed, err))
	}

	res := ProvisionResult{ConnectionString: dsn, DatabaseName: dbName, Created: created}
	p.mu.Lock()
	p.provisioned[subdomain] = res
	delete(p.failures, subdomain)
	p.mu.Unlock()

	outcome := "exists"
	if created {
		outcome = "created"
	}
	p.metrics.TenantProvisioned(outcome)
	p.logger.Info("tenant database ready",
		slog.String("tenant", subdomain),
		slog.String("database", dbName),
		slog.Bool("created", created),
		slog.Duration("took", time.Since(start)))
	return res, nil
}

func (p *Provisioner) fail(subdomain string, err error) error {
	var perr *ProvisionError
	if !errors.As(err, &perr) {
		perr = newProvisionError(subdomain, CodeCreateFailed, err)
	}
	p.mu.Lock()
	p.failures[subdomain] = provisionFailure{err: perr, at: p.now()}
	p.mu.Unlock()
	p.metrics.TenantProvisioned("failed")
	p.logger.Error("provision tenant database failed",
		slog.String("tenant", subdomain),
		slog.String("code", perr.Code),
		slog.Any("error", perr.Err))
	return perr
}

// adminCreateDatabase dials the admin DSN, checks for the database and
// creates it when absent. The connection is closed before returning.
func (p *Provisioner) adminCreateDatabase(ctx context.Context, subdomain, dbName string) (bool, error) {
	conn, err := pgx.Connect(ctx, p.adminURL)
	if err != nil {
		return false, newProvisionError(subdomain, CodeConnectionFailed, err)
	}
	defer func() {
		_ = conn.Close(ctx)
	}()

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, dbName).Scan(&exists); err != nil {
		return false, newProvisionError(subdomain, CodeConnectionFailed, err)
	}
	if exists {
		return false, nil
	}

	// CREATE DATABASE cannot run inside a transaction or take bind
	// parameters, hence the sanitized identifier interpolation.
	if _, err := conn.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %s`, pgx.Identifier{dbName}.Sanitize())); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "42501":
				return false, newProvisionError(subdomain, CodePermissionDenied, err)
			case "42P04":
				// Lost a cross-process race; the database is there.
				return false, nil
			}
		}
		return false, newProvisionError(subdomain, CodeCreateFailed, err)
	}
	return true, nil
}

func (p *Provisioner) runSchemaSync(ctx context.Context, dsn string) error {
	pool, err := db.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	return db.Sync(ctx, pool, db.TenantMigrations())
}
