package servicedesk

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lokapos/lokapos/internal/platform/httpx"
	"github.com/lokapos/lokapos/internal/shared"
)

// Handler exposes the service desk over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the service desk HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers ticket endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/tickets", h.openTicket)
	r.Get("/tickets", h.listTickets)
	r.Get("/tickets/{id}", h.getTicket)
	r.Patch("/tickets/{id}", h.updateTicket)
	r.Post("/tickets/{id}/parts", h.addPart)
	r.Delete("/tickets/{id}/parts/{partID}", h.removePart)
	r.Post("/tickets/{id}/start", h.startTicket)
	r.Post("/tickets/{id}/complete", h.completeTicket)
	r.Post("/tickets/{id}/deliver", h.deliverTicket)
	r.Post("/tickets/{id}/cancel", h.cancelTicket)
}

type openTicketRequest struct {
	CustomerID    *int64  `json:"customerId"`
	Device        string  `json:"device" validate:"required,max=200"`
	Complaint     string  `json:"complaint" validate:"required,max=1000"`
	Technician    string  `json:"technician" validate:"max=100"`
	LaborCharge   float64 `json:"laborCharge" validate:"gte=0"`
	PaymentMethod string  `json:"paymentMethod" validate:"omitempty,oneof=cash bank bank_transfer credit_card accounts_receivable credit"`
}

type updateTicketRequest struct {
	Device        *string  `json:"device" validate:"omitempty,max=200"`
	Complaint     *string  `json:"complaint" validate:"omitempty,max=1000"`
	Diagnosis     *string  `json:"diagnosis" validate:"omitempty,max=1000"`
	Technician    *string  `json:"technician" validate:"omitempty,max=100"`
	LaborCharge   *float64 `json:"laborCharge" validate:"omitempty,gte=0"`
	PaymentMethod *string  `json:"paymentMethod" validate:"omitempty,oneof=cash bank bank_transfer credit_card accounts_receivable credit"`
}

type addPartRequest struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unitPrice" validate:"gte=0"`
}

type startTicketRequest struct {
	Technician string `json:"technician" validate:"max=100"`
}

type completeTicketRequest struct {
	LaborCharge   *float64 `json:"laborCharge" validate:"omitempty,gte=0"`
	PaymentMethod string   `json:"paymentMethod" validate:"omitempty,oneof=cash bank bank_transfer credit_card accounts_receivable credit"`
	Diagnosis     string   `json:"diagnosis" validate:"max=1000"`
}

func (h *Handler) openTicket(w http.ResponseWriter, r *http.Request) {
	var req openTicketRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	ticket, err := h.service.Open(r.Context(), OpenInput{
		CustomerID:    req.CustomerID,
		Device:        req.Device,
		Complaint:     req.Complaint,
		Technician:    req.Technician,
		LaborCharge:   req.LaborCharge,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.logger.Error("open ticket", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ticket)
}

func (h *Handler) listTickets(w http.ResponseWriter, r *http.Request) {
	f := TicketFilter{
		Technician: r.URL.Query().Get("technician"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := Status(raw)
		if !st.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid status", "unknown ticket status "+raw)
			return
		}
		f.Status = st
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

	tickets, pagination, err := h.service.Tickets(r.Context(), f)
	if err != nil {
		h.logger.Error("list tickets", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tickets": tickets, "pagination": pagination})
}

func (h *Handler) getTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	ticket, err := h.service.Ticket(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func (h *Handler) updateTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	var req updateTicketRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	ticket, err := h.service.Update(r.Context(), id, UpdateInput{
		Device:        req.Device,
		Complaint:     req.Complaint,
		Diagnosis:     req.Diagnosis,
		Technician:    req.Technician,
		LaborCharge:   req.LaborCharge,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func (h *Handler) addPart(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	var req addPartRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	ticket, err := h.service.AddPart(r.Context(), id, PartInput{
		ProductID: req.ProductID,
		Qty:       req.Qty,
		UnitPrice: req.UnitPrice,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func (h *Handler) removePart(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	partID, err := strconv.ParseInt(chi.URLParam(r, "partID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "part id must be numeric")
		return
	}
	ticket, err := h.service.RemovePart(r.Context(), id, partID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func (h *Handler) startTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	var req startTicketRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.ValidationProblem(w, err)
			return
		}
	}

	ticket, err := h.service.Start(r.Context(), id, req.Technician)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func (h *Handler) completeTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	var req completeTicketRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.ValidationProblem(w, err)
			return
		}
	}

	ticket, err := h.service.Complete(r.Context(), id, CompleteInput{
		LaborCharge:   req.LaborCharge,
		PaymentMethod: req.PaymentMethod,
		Diagnosis:     req.Diagnosis,
	})
	if err != nil {
		h.logger.Error("complete ticket", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func (h *Handler) deliverTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	ticket, err := h.service.Deliver(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func (h *Handler) cancelTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ticketID(w, r)
	if !ok {
		return
	}
	ticket, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func (h *Handler) ticketID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "ticket id must be numeric")
		return 0, false
	}
	return id, true
}
