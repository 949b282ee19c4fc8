package reporting

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lokapos/lokapos/internal/platform/httpx"
	"github.com/lokapos/lokapos/internal/shared"
)

// Handler serves the report endpoints. All of them are GETs; the window
// comes from start_date/end_date query params and defaults to the
// current month.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the reporting HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the report endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Get("/reports/sales", h.sales)
	r.Get("/reports/service", h.serviceDesk)
	r.Get("/reports/financial", h.financial)
	r.Get("/reports/inventory-value", h.inventoryValue)
}

func (h *Handler) window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := now
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		t, err := shared.ParseDate(raw, false)
		if err != nil {
			httpx.RespondError(w, err)
			return time.Time{}, time.Time{}, false
		}
		from = t
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		t, err := shared.ParseDate(raw, true)
		if err != nil {
			httpx.RespondError(w, err)
			return time.Time{}, time.Time{}, false
		}
		to = t
	}
	return from, to, true
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dash)
}

func (h *Handler) sales(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	report, err := h.service.SalesReport(r.Context(), from, to)
	if err != nil {
		h.logger.Error("sales report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) serviceDesk(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	report, err := h.service.ServiceReport(r.Context(), from, to)
	if err != nil {
		h.logger.Error("service report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) financial(w http.ResponseWriter, r *http.Request) {
	if period := r.URL.Query().Get("period"); period != "" {
		report, err := h.service.MonthlyFinancial(r.Context(), period)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, report)
		return
	}

	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	report, err := h.service.Financial(r.Context(), from, to)
	if err != nil {
		h.logger.Error("financial report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) inventoryValue(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.InventoryValue(r.Context())
	if err != nil {
		h.logger.Error("inventory value", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
