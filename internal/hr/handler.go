package hr

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lokapos/lokapos/internal/platform/httpx"
	"github.com/lokapos/lokapos/internal/shared"
)

// Handler exposes employees, attendance, and payroll over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the HR HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers HR endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/employees", h.createEmployee)
	r.Get("/employees", h.listEmployees)
	r.Get("/employees/{id}", h.getEmployee)
	r.Put("/employees/{id}", h.updateEmployee)
	r.Delete("/employees/{id}", h.deactivateEmployee)

	r.Post("/attendance", h.markAttendance)
	r.Get("/attendance", h.listAttendance)

	r.Post("/payrolls", h.createPayroll)
	r.Post("/payrolls/generate", h.generateDrafts)
	r.Get("/payrolls", h.listPayrolls)
	r.Get("/payrolls/{id}", h.getPayroll)
	r.Patch("/payrolls/{id}", h.updatePayroll)
	r.Post("/payrolls/{id}/approve", h.approvePayroll)
	r.Post("/payrolls/{id}/pay", h.payPayroll)
}

type employeeRequest struct {
	Name       string  `json:"name" validate:"required,max=150"`
	Position   string  `json:"position" validate:"max=100"`
	Phone      string  `json:"phone" validate:"max=30"`
	BaseSalary float64 `json:"baseSalary" validate:"gte=0"`
	JoinedAt   string  `json:"joinedAt" validate:"omitempty,datetime=2006-01-02"`
}

type attendanceRequest struct {
	EmployeeID int64  `json:"employeeId" validate:"required,gt=0"`
	WorkDate   string `json:"workDate" validate:"required,datetime=2006-01-02"`
	Status     string `json:"status" validate:"required,oneof=present sick leave absent"`
	CheckIn    string `json:"checkIn" validate:"omitempty,datetime=15:04"`
	CheckOut   string `json:"checkOut" validate:"omitempty,datetime=15:04"`
	Note       string `json:"note" validate:"max=500"`
}

type createPayrollRequest struct {
	EmployeeID    int64    `json:"employeeId" validate:"required,gt=0"`
	Period        string   `json:"period" validate:"required,datetime=2006-01"`
	BaseSalary    *float64 `json:"baseSalary" validate:"omitempty,gte=0"`
	Allowance     float64  `json:"allowance" validate:"gte=0"`
	Deduction     float64  `json:"deduction" validate:"gte=0"`
	PaymentMethod string   `json:"paymentMethod" validate:"omitempty,oneof=cash bank bank_transfer"`
}

type generateDraftsRequest struct {
	Period string `json:"period" validate:"required,datetime=2006-01"`
}

type updatePayrollRequest struct {
	BaseSalary    *float64 `json:"baseSalary" validate:"omitempty,gte=0"`
	Allowance     *float64 `json:"allowance" validate:"omitempty,gte=0"`
	Deduction     *float64 `json:"deduction" validate:"omitempty,gte=0"`
	PaymentMethod string   `json:"paymentMethod" validate:"omitempty,oneof=cash bank bank_transfer"`
}

type payPayrollRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,oneof=cash bank bank_transfer"`
	PaidAt        string `json:"paidAt" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) createEmployee(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	employee, err := h.service.CreateEmployee(r.Context(), in)
	if err != nil {
		h.logger.Error("create employee", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, employee)
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	f := EmployeeFilter{
		IncludeInactive: r.URL.Query().Get("include_inactive") == "true",
		Search:          r.URL.Query().Get("search"),
	}
	page, perPage := shared.PageFromQuery(r)
	f.Page = shared.NewPagination(page, perPage, 0)

	employees, pagination, err := h.service.Employees(r.Context(), f)
	if err != nil {
		h.logger.Error("list employees", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"employees": employees, "pagination": pagination})
}

func (h *Handler) getEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "employee")
	if !ok {
		return
	}
	employee, err := h.service.Employee(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employee)
}

func (h *Handler) updateEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "employee")
	if !ok {
		return
	}
	var req employeeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	employee, err := h.service.UpdateEmployee(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employee)
}

func (h *Handler) deactivateEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "employee")
	if !ok {
		return
	}
	if err := h.service.DeactivateEmployee(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markAttendance(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	workDate, err := shared.ParseDate(req.WorkDate, false)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := AttendanceInput{
		EmployeeID: req.EmployeeID,
		WorkDate:   workDate,
		Status:     req.Status,
		Note:       req.Note,
	}
	if req.CheckIn != "" {
		t := atTime(workDate, req.CheckIn)
		in.CheckIn = &t
	}
	if req.CheckOut != "" {
		t := atTime(workDate, req.CheckOut)
		in.CheckOut = &t
	}

	record, err := h.service.MarkAttendance(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) listAttendance(w http.ResponseWriter, r *http.Request) {
	var f AttendanceFilter
	if raw := r.URL.Query().Get("employee_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid employee", "employee_id must be numeric")
			return
		}
		f.EmployeeID = id
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

	records, pagination, err := h.service.Attendance(r.Context(), f)
	if err != nil {
		h.logger.Error("list attendance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"attendance": records, "pagination": pagination})
}

func (h *Handler) createPayroll(w http.ResponseWriter, r *http.Request) {
	var req createPayrollRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	payroll, err := h.service.CreatePayroll(r.Context(), PayrollInput{
		EmployeeID:    req.EmployeeID,
		Period:        req.Period,
		BaseSalary:    req.BaseSalary,
		Allowance:     req.Allowance,
		Deduction:     req.Deduction,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.logger.Error("create payroll", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payroll)
}

func (h *Handler) generateDrafts(w http.ResponseWriter, r *http.Request) {
	var req generateDraftsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	created, err := h.service.GenerateDrafts(r.Context(), req.Period)
	if err != nil {
		h.logger.Error("generate payroll drafts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"period": req.Period, "created": created})
}

func (h *Handler) listPayrolls(w http.ResponseWriter, r *http.Request) {
	f := PayrollFilter{
		Period: r.URL.Query().Get("period"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := PayrollStatus(raw)
		if !st.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid status", "unknown payroll status "+raw)
			return
		}
		f.Status = st
	}
	if raw := r.URL.Query().Get("employee_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid employee", "employee_id must be numeric")
			return
		}
		f.EmployeeID = id
	}
	page, perPage := shared.PageFromQuery(r)
	f.Page = shared.NewPagination(page, perPage, 0)

	payrolls, pagination, err := h.service.Payrolls(r.Context(), f)
	if err != nil {
		h.logger.Error("list payrolls", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payrolls": payrolls, "pagination": pagination})
}

func (h *Handler) getPayroll(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "payroll")
	if !ok {
		return
	}
	payroll, err := h.service.Payroll(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payroll)
}

func (h *Handler) updatePayroll(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "payroll")
	if !ok {
		return
	}
	var req updatePayrollRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	payroll, err := h.service.UpdatePayroll(r.Context(), id, PayrollAmounts{
		BaseSalary:    req.BaseSalary,
		Allowance:     req.Allowance,
		Deduction:     req.Deduction,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payroll)
}

func (h *Handler) approvePayroll(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "payroll")
	if !ok {
		return
	}
	payroll, err := h.service.ApprovePayroll(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payroll)
}

func (h *Handler) payPayroll(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "payroll")
	if !ok {
		return
	}
	var req payPayrollRequest
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

	in := PayInput{PaymentMethod: req.PaymentMethod}
	if req.PaidAt != "" {
		t, err := shared.ParseDate(req.PaidAt, false)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.PaidAt = &t
	}

	payroll, err := h.service.PayPayroll(r.Context(), id, in)
	if err != nil {
		h.logger.Error("pay payroll", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payroll)
}

func (req employeeRequest) toInput() (EmployeeInput, error) {
	in := EmployeeInput{
		Name:       req.Name,
		Position:   req.Position,
		Phone:      req.Phone,
		BaseSalary: req.BaseSalary,
	}
	if req.JoinedAt != "" {
		t, err := shared.ParseDate(req.JoinedAt, false)
		if err != nil {
			return EmployeeInput{}, err
		}
		in.JoinedAt = &t
	}
	return in, nil
}

// atTime anchors a clock-only value like "08:30" on the given work date.
func atTime(day time.Time, clock string) time.Time {
	t, _ := time.Parse("15:04", clock)
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
}

func pathID(w http.ResponseWriter, r *http.Request, subject string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", subject+" id must be numeric")
		return 0, false
	}
	return id, true
}
