package tenancy

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lokapos/lokapos/internal/platform/httpx"
	"github.com/lokapos/lokapos/internal/shared"
)

// Handler wires HTTP endpoints for tenant signup and administration.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers tenant routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.signup)
	r.Get("/", h.list)
	r.Get("/current", h.current)
	r.Get("/{subdomain}/status", h.status)
	r.Post("/{subdomain}/provision", h.provision)
	r.Post("/{subdomain}/activate", h.activate)
	r.Post("/{subdomain}/suspend", h.suspend)
}

type signupRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=80"`
	Subdomain     string `json:"subdomain" validate:"required,min=3,max=32,hostname_rfc1123"`
	OwnerEmail    string `json:"ownerEmail" validate:"required,email"`
	OwnerPassword string `json:"ownerPassword" validate:"required,min=8"`
}

type tenantResponse struct {
	ID          int64      `json:"id"`
	Subdomain   string     `json:"subdomain"`
	Name        string     `json:"name"`
	Status      Status     `json:"status"`
	OwnerEmail  string     `json:"ownerEmail"`
	TrialEndsAt *time.Time `json:"trialEndsAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toTenantResponse(t *Tenant) tenantResponse {
	return tenantResponse{
		ID:          t.ID,
		Subdomain:   t.Subdomain,
		Name:        t.Name,
		Status:      t.Status,
		OwnerEmail:  t.OwnerEmail,
		TrialEndsAt: t.TrialEndsAt,
		CreatedAt:   t.CreatedAt,
	}
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	tenant, err := h.service.Signup(r.Context(), SignupInput{
		Name:          req.Name,
		Subdomain:     req.Subdomain,
		OwnerEmail:    req.OwnerEmail,
		OwnerPassword: req.OwnerPassword,
	})
	if err != nil {
		if !errors.Is(err, shared.ErrDuplicate) && !errors.Is(err, shared.ErrValidation) {
			h.logger.Error("tenant signup", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTenantResponse(tenant))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromQuery(r)
	tenants, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list tenants", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	items := make([]tenantResponse, 0, len(tenants))
	for i := range tenants {
		items = append(items, toTenantResponse(&tenants[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items": items,
		"pagination": map[string]int{
			"page":       pagination.Page,
			"perPage":    pagination.PerPage,
			"total":      pagination.Total,
			"totalPages": pagination.TotalPages,
		},
	})
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	tenant := TenantFromContext(r.Context())
	if tenant == nil {
		httpx.RespondError(w, shared.ErrTenantRequired)
		return
	}
	httpx.JSON(w, http.StatusOK, toTenantResponse(tenant))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Status(r.Context(), chi.URLParam(r, "subdomain"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) provision(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Provision(r.Context(), chi.URLParam(r, "subdomain"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"databaseName": res.DatabaseName,
		"created":      res.Created,
	})
}

type activateRequest struct {
	Plan   string  `json:"plan" validate:"required,min=2,max=40"`
	Amount float64 `json:"amount" validate:"gte=0"`
	Months int     `json:"months" validate:"gte=1,lte=36"`
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	sub, err := h.service.Activate(r.Context(), chi.URLParam(r, "subdomain"), req.Plan, req.Amount, req.Months)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"plan":    sub.Plan,
		"endsAt":  sub.EndsAt,
		"status":  string(sub.PaymentStatus),
		"tenant":  chi.URLParam(r, "subdomain"),
		"startAt": sub.StartsAt,
	})
}

func (h *Handler) suspend(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Suspend(r.Context(), chi.URLParam(r, "subdomain")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "suspended"})
}
