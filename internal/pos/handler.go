package pos

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lokapos/lokapos/internal/platform/httpx"
	"github.com/lokapos/lokapos/internal/shared"
)

// Handler exposes the sales counter over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the POS HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers POS endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/checkout", h.checkout)
	r.Get("/sales", h.listSales)
	r.Get("/sales/{id}", h.getSale)
}

type checkoutItemRequest struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unitPrice" validate:"gte=0"`
}

type checkoutRequest struct {
	CustomerID    *int64                `json:"customerId"`
	PaymentMethod string                `json:"paymentMethod" validate:"omitempty,oneof=cash bank bank_transfer credit_card accounts_receivable credit"`
	Discount      float64               `json:"discount" validate:"gte=0"`
	PaidAmount    float64               `json:"paidAmount" validate:"gte=0"`
	Cashier       string                `json:"cashier" validate:"max=100"`
	Items         []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	in := CheckoutInput{
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		Discount:      req.Discount,
		PaidAmount:    req.PaidAmount,
		Cashier:       req.Cashier,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, CheckoutItem{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
		})
	}

	sale, err := h.service.Checkout(r.Context(), in)
	if err != nil {
		h.logger.Error("checkout failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	f := SaleFilter{
		PaymentMethod: r.URL.Query().Get("payment_method"),
		Cashier:       r.URL.Query().Get("cashier"),
	}
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid customer", "customer_id must be numeric")
			return
		}
		f.CustomerID = id
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

	sales, pagination, err := h.service.Sales(r.Context(), f)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": sales, "pagination": pagination})
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	sale, err := h.service.Sale(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}
