package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lokapos/lokapos/internal/hr"
	"github.com/lokapos/lokapos/internal/inventory"
	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/masterdata"
	"github.com/lokapos/lokapos/internal/observability"
	"github.com/lokapos/lokapos/internal/pos"
	"github.com/lokapos/lokapos/internal/procurement"
	"github.com/lokapos/lokapos/internal/reporting"
	"github.com/lokapos/lokapos/internal/servicedesk"
	"github.com/lokapos/lokapos/internal/tenancy"
	"github.com/lokapos/lokapos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	TenancyHandler     *tenancy.Handler
	LedgerHandler      *ledger.Handler
	MasterDataHandler  *masterdata.Handler
	InventoryHandler   *inventory.Handler
	POSHandler         *pos.Handler
	ServiceHandler     *servicedesk.Handler
	ProcurementHandler *procurement.Handler
	HRHandler          *hr.Handler
	ReportsHandler     *reporting.Handler
	JobHandler         *jobs.Handler

	TenantMiddleware func(http.Handler) http.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with LokaPOS defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Tenant:  params.TenantMiddleware,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		if params.TenancyHandler != nil {
			api.Route("/tenants", params.TenancyHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			api.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.MasterDataHandler != nil {
			params.MasterDataHandler.MountRoutes(api)
		}
		if params.InventoryHandler != nil {
			api.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.POSHandler != nil {
			api.Route("/pos", params.POSHandler.MountRoutes)
		}
		if params.ServiceHandler != nil {
			api.Route("/service", params.ServiceHandler.MountRoutes)
		}
		if params.ProcurementHandler != nil {
			api.Route("/purchases", params.ProcurementHandler.MountRoutes)
		}
		if params.HRHandler != nil {
			api.Route("/hr", params.HRHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(api)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
