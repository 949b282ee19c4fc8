package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lokapos/lokapos/internal/platform/httpx"
	"github.com/lokapos/lokapos/internal/shared"
)

// Handler exposes the movement log, valuation and adjustments over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the inventory HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers inventory endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/movements", h.listMovements)
	r.Get("/valuation", h.valuation)
	r.Post("/adjustments", h.createAdjustment)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	f := MovementFilter{
		MovementType:  MovementType(r.URL.Query().Get("type")),
		ReferenceType: r.URL.Query().Get("reference_type"),
	}
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid product", "product_id must be numeric")
			return
		}
		f.ProductID = id
	}
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		t, err := shared.ParseDate(raw, false)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		f.From = &t
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		t, err := shared.ParseDate(raw, true)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		f.To = &t
	}
	page, perPage := shared.PageFromQuery(r)
	f.Page = shared.NewPagination(page, perPage, 0)

	movements, pagination, err := h.service.Movements(r.Context(), f)
	if err != nil {
		h.logger.Error("list stock movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements, "pagination": pagination})
}

func (h *Handler) valuation(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Valuation(r.Context())
	if err != nil {
		h.logger.Error("stock valuation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

type adjustmentRequest struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Delta     float64 `json:"delta" validate:"required"`
	UnitCost  float64 `json:"unitCost" validate:"gte=0"`
	Note      string  `json:"note" validate:"max=500"`
}

func (h *Handler) createAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	mv, err := h.service.Adjust(r.Context(), AdjustmentInput{
		ProductID: req.ProductID,
		Delta:     req.Delta,
		UnitCost:  req.UnitCost,
		Note:      req.Note,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mv)
}
