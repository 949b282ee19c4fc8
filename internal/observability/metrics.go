package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	tenantProvisions  *prometheus.CounterVec
	tenantPools       prometheus.Gauge
	journalsPosted    *prometheus.CounterVec
	balanceViolations prometheus.Counter
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lokapos_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lokapos_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	provisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lokapos_tenant_databases_provisioned_total",
		Help: "Hasil provisioning database tenant per outcome.",
	}, []string{"outcome"})
	pools := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lokapos_tenant_pools_active",
		Help: "Jumlah connection pool tenant yang sedang terbuka.",
	})
	journals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lokapos_journal_entries_posted_total",
		Help: "Jumlah jurnal yang berhasil diposting per tipe.",
	}, []string{"entry_type"})
	violations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lokapos_journal_balance_violations_total",
		Help: "Jumlah jurnal yang ditolak karena debit dan kredit tidak seimbang.",
	})
	registry.MustRegister(requests, duration, provisions, pools, journals, violations)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		tenantProvisions:  provisions,
		tenantPools:       pools,
		journalsPosted:    journals,
		balanceViolations: violations,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// TenantProvisioned mencatat hasil provisioning: created, exists, atau failed.
func (m *Metrics) TenantProvisioned(outcome string) {
	if m == nil {
		return
	}
	m.tenantProvisions.WithLabelValues(outcome).Inc()
}

// SetActivePools memperbarui gauge jumlah pool tenant terbuka.
func (m *Metrics) SetActivePools(n int) {
	if m == nil {
		return
	}
	m.tenantPools.Set(float64(n))
}

// JournalPosted mencatat jurnal yang berhasil dibuat.
func (m *Metrics) JournalPosted(entryType string) {
	if m == nil {
		return
	}
	m.journalsPosted.WithLabelValues(entryType).Inc()
}

// BalanceViolation mencatat jurnal yang ditolak karena tidak seimbang.
func (m *Metrics) BalanceViolation() {
	if m == nil {
		return
	}
	m.balanceViolations.Inc()
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
