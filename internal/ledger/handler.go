package ledger

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

// Handler exposes the ledger over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the ledger HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers ledger endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.listAccounts)
	r.Post("/accounts/bootstrap", h.bootstrapAccounts)
	r.Get("/journals", h.listJournals)
	r.Post("/journals", h.createJournal)
	r.Get("/journals/{id}", h.getJournal)
	r.Get("/records", h.listRecords)
	r.Post("/records", h.createRecord)
	r.Get("/summary", h.summary)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.Accounts(r.Context())
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) bootstrapAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.BootstrapAccounts(r.Context())
	if err != nil {
		h.logger.Error("bootstrap accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

type journalLineRequest struct {
	AccountCode string  `json:"accountCode" validate:"required"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Memo        string  `json:"memo"`
}

type journalRequest struct {
	EntryType     string               `json:"entryType" validate:"required,oneof=sale service purchase payroll manual"`
	Description   string               `json:"description" validate:"max=500"`
	Reference     string               `json:"reference" validate:"max=100"`
	ReferenceType string               `json:"referenceType" validate:"max=50"`
	EntryDate     *time.Time           `json:"entryDate"`
	Lines         []journalLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) createJournal(w http.ResponseWriter, r *http.Request) {
	var req journalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	in := JournalInput{
		EntryType:     EntryType(req.EntryType),
		Description:   req.Description,
		Reference:     req.Reference,
		ReferenceType: req.ReferenceType,
	}
	if req.EntryDate != nil {
		in.EntryDate = *req.EntryDate
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, JournalLineInput{
			AccountCode: line.AccountCode,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Memo:        line.Memo,
		})
	}

	entry, err := h.service.CreateJournalEntry(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) listJournals(w http.ResponseWriter, r *http.Request) {
	f := JournalFilter{
		EntryType:     EntryType(r.URL.Query().Get("type")),
		Reference:     r.URL.Query().Get("reference"),
		ReferenceType: r.URL.Query().Get("reference_type"),
	}
	var err error
	if f.From, f.To, err = dateWindow(r); err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, perPage := shared.PageFromQuery(r)
	f.Page = shared.NewPagination(page, perPage, 0)

	entries, pagination, err := h.service.Journals(r.Context(), f)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": entries, "pagination": pagination})
}

func (h *Handler) getJournal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "journal id must be numeric")
		return
	}
	entry, err := h.service.Journal(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

type recordRequest struct {
	RecordType    string     `json:"recordType" validate:"required,oneof=income expense transfer asset"`
	Category      string     `json:"category" validate:"required,max=100"`
	Subcategory   string     `json:"subcategory" validate:"max=100"`
	Amount        float64    `json:"amount" validate:"required,gt=0"`
	Description   string     `json:"description" validate:"max=500"`
	PaymentMethod string     `json:"paymentMethod" validate:"omitempty,oneof=cash bank bank_transfer credit_card accounts_receivable credit"`
	Reference     string     `json:"reference" validate:"max=100"`
	ReferenceType string     `json:"referenceType" validate:"max=50"`
	Tags          []string   `json:"tags" validate:"max=20,dive,max=50"`
	OccurredAt    *time.Time `json:"occurredAt"`
}

func (h *Handler) createRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	in := RecordInput{
		RecordType:    RecordType(req.RecordType),
		Category:      req.Category,
		Subcategory:   req.Subcategory,
		Amount:        req.Amount,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		Reference:     req.Reference,
		ReferenceType: req.ReferenceType,
		Tags:          req.Tags,
	}
	if req.OccurredAt != nil {
		in.OccurredAt = *req.OccurredAt
	}

	rec, err := h.service.RecordEvent(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	f := RecordFilter{
		RecordType:    RecordType(r.URL.Query().Get("type")),
		Category:      r.URL.Query().Get("category"),
		PaymentMethod: r.URL.Query().Get("payment_method"),
		ReferenceType: r.URL.Query().Get("reference_type"),
	}
	var err error
	if f.From, f.To, err = dateWindow(r); err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, perPage := shared.PageFromQuery(r)
	f.Page = shared.NewPagination(page, perPage, 0)

	records, pagination, err := h.service.Records(r.Context(), f)
	if err != nil {
		h.logger.Error("list records", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": records, "pagination": pagination})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateWindow(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.GetSummary(r.Context(), from, to)
	if err != nil {
		h.logger.Error("ledger summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

// dateWindow reads the optional start_date and end_date query params.
// A bare end date covers its whole day.
func dateWindow(r *http.Request) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		t, err := shared.ParseDate(raw, false)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		t, err := shared.ParseDate(raw, true)
		if err != nil {
			return nil, nil, err
		}
		to = &t
	}
	return from, to, nil
}
