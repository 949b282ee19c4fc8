package tenancy

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/lokapos/lokapos/internal/platform/httpx"
)

// Middleware binds the tenant matching the request host. Requests to
// the bare base domain (signup, health, admin) pass through unbound and
// fall back to the primary database.
type Middleware struct {
	logger     *slog.Logger
	baseDomain string
	service    *Service
	manager    *Manager
}

// NewMiddleware constructs the tenant binding middleware.
func NewMiddleware(logger *slog.Logger, baseDomain string, service *Service, manager *Manager) *Middleware {
	return &Middleware{
		logger:     logger,
		baseDomain: strings.ToLower(baseDomain),
		service:    service,
		manager:    manager,
	}
}

// Handler resolves the subdomain, applies lazy expiry, checks access
// and binds the tenant's database to the request context.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subdomain := SubdomainFromHost(r.Host, m.baseDomain)
		if subdomain == "" {
			subdomain = strings.ToLower(strings.TrimSpace(r.Header.Get("X-Tenant")))
		}
		if subdomain == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		tenant, err := m.service.Get(ctx, subdomain)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		tenant, err = m.service.EnsureCurrent(ctx, tenant)
		if err != nil {
			m.logger.Error("refresh tenant status", slog.String("tenant", subdomain), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if err := m.service.CheckAccess(tenant); err != nil {
			httpx.RespondError(w, err)
			return
		}

		ctx, err = m.manager.Bind(ctx, tenant)
		if err != nil {
			m.logger.Error("bind tenant database", slog.String("tenant", subdomain), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubdomainFromHost extracts the tenant label from a request host.
// "kopikita.lokapos.id" with base domain "lokapos.id" yields
// "kopikita"; the bare base domain, nested labels and unrelated hosts
// yield "".
func SubdomainFromHost(host, baseDomain string) string {
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == baseDomain || baseDomain == "" {
		return ""
	}
	label, found := strings.CutSuffix(host, "."+baseDomain)
	if !found || label == "" || strings.Contains(label, ".") {
		return ""
	}
	return label
}
