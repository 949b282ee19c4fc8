package procurement

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lokapos/lokapos/internal/platform/httpx"
	"github.com/lokapos/lokapos/internal/shared"
)

// Handler exposes purchasing over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the procurement HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers purchase endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchases", h.receive)
	r.Get("/purchases", h.listPurchases)
	r.Get("/purchases/{id}", h.getPurchase)
}

type receiveItemRequest struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitCost  float64 `json:"unitCost" validate:"gte=0"`
}

type receiveRequest struct {
	SupplierID    *int64               `json:"supplierId"`
	PaymentMethod string               `json:"paymentMethod" validate:"omitempty,oneof=cash bank bank_transfer credit_card accounts_receivable credit"`
	Note          string               `json:"note" validate:"max=500"`
	ReceivedAt    string               `json:"receivedAt"`
	Items         []receiveItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	in := ReceiveInput{
		SupplierID:    req.SupplierID,
		PaymentMethod: req.PaymentMethod,
		Note:          req.Note,
	}
	if req.ReceivedAt != "" {
		t, err := shared.ParseDate(req.ReceivedAt, false)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.ReceivedAt = &t
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, ReceiveItem{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			UnitCost:  item.UnitCost,
		})
	}

	purchase, err := h.service.Receive(r.Context(), in)
	if err != nil {
		h.logger.Error("receive purchase", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, purchase)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	f := PurchaseFilter{
		PaymentMethod: r.URL.Query().Get("payment_method"),
	}
	if raw := r.URL.Query().Get("supplier_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid supplier", "supplier_id must be numeric")
			return
		}
		f.SupplierID = id
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

	purchases, pagination, err := h.service.Purchases(r.Context(), f)
	if err != nil {
		h.logger.Error("list purchases", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": purchases, "pagination": pagination})
}

func (h *Handler) getPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "purchase id must be numeric")
		return
	}
	purchase, err := h.service.Purchase(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
}
