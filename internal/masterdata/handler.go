package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lokapos/lokapos/internal/platform/httpx"
	"github.com/lokapos/lokapos/internal/shared"
)

// Handler exposes the catalog over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the catalog HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers catalog endpoints directly on the API router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deactivateProduct)
	})
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Get("/{id}", h.getCustomer)
		r.Put("/{id}", h.updateCustomer)
	})
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.listSuppliers)
		r.Post("/", h.createSupplier)
		r.Get("/{id}", h.getSupplier)
		r.Put("/{id}", h.updateSupplier)
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ProductFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		SortBy:   q.Get("sort_by"),
		SortDir:  q.Get("sort_dir"),
		LowStock: q.Get("low_stock") == "true",
	}
	if raw := q.Get("is_active"); raw != "" {
		active := raw == "true"
		f.IsActive = &active
	}
	page, perPage := shared.PageFromQuery(r)
	f.Page = shared.NewPagination(page, perPage, 0)

	products, pagination, err := h.service.Products(r.Context(), f)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products, "pagination": pagination})
}

type productRequest struct {
	Code     string  `json:"code" validate:"required,max=50"`
	Name     string  `json:"name" validate:"required,max=200"`
	Category string  `json:"category" validate:"max=100"`
	Unit     string  `json:"unit" validate:"max=20"`
	Price    float64 `json:"price" validate:"gte=0"`
	Cost     float64 `json:"cost" validate:"gte=0"`
	Stock    float64 `json:"stock" validate:"gte=0"`
	MinStock float64 `json:"minStock" validate:"gte=0"`
	IsActive *bool   `json:"isActive"`
}

func (req productRequest) toProduct() Product {
	p := Product{
		Code:     req.Code,
		Name:     req.Name,
		Category: req.Category,
		Unit:     req.Unit,
		Price:    req.Price,
		Cost:     req.Cost,
		Stock:    req.Stock,
		MinStock: req.MinStock,
		IsActive: true,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return p
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	p := req.toProduct()
	if err := h.service.CreateProduct(r.Context(), &p); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := h.service.Product(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	p := req.toProduct()
	p.ID = id
	if err := h.service.UpdateProduct(r.Context(), &p); err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.Product(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeactivateProduct(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type customerRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"max=30"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"max=500"`
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromQuery(r)
	customers, pagination, err := h.service.Customers(r.Context(), r.URL.Query().Get("search"), shared.NewPagination(page, perPage, 0))
	if err != nil {
		h.logger.Error("list customers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": customers, "pagination": pagination})
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	c := Customer{Name: req.Name, Phone: req.Phone, Email: req.Email, Address: req.Address}
	if err := h.service.CreateCustomer(r.Context(), &c); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, err := h.service.Customer(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req customerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	c := Customer{ID: id, Name: req.Name, Phone: req.Phone, Email: req.Email, Address: req.Address}
	if err := h.service.UpdateCustomer(r.Context(), &c); err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.Customer(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

type supplierRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Contact string `json:"contact" validate:"max=100"`
	Phone   string `json:"phone" validate:"max=30"`
	Address string `json:"address" validate:"max=500"`
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromQuery(r)
	suppliers, pagination, err := h.service.Suppliers(r.Context(), r.URL.Query().Get("search"), shared.NewPagination(page, perPage, 0))
	if err != nil {
		h.logger.Error("list suppliers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": suppliers, "pagination": pagination})
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	s := Supplier{Name: req.Name, Contact: req.Contact, Phone: req.Phone, Address: req.Address}
	if err := h.service.CreateSupplier(r.Context(), &s); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, s)
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s, err := h.service.Supplier(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	s := Supplier{ID: id, Name: req.Name, Contact: req.Contact, Phone: req.Phone, Address: req.Address}
	if err := h.service.UpdateSupplier(r.Context(), &s); err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.Supplier(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
