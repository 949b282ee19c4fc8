package servicedesk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lokapos/lokapos/internal/integration"
	"github.com/lokapos/lokapos/internal/inventory"
	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/masterdata"
	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// OpenInput creates a new repair ticket.
type OpenInput struct {
	CustomerID    *int64
	Device        string
	Complaint     string
	Technician    string
	LaborCharge   float64
	PaymentMethod string
}

func (in OpenInput) validate() error {
	if strings.TrimSpace(in.Device) == "" {
		return fmt.Errorf("servicedesk: device is required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(in.Complaint) == "" {
		return fmt.Errorf("servicedesk: complaint is required: %w", shared.ErrValidation)
	}
	if in.LaborCharge < 0 {
		return fmt.Errorf("servicedesk: labor charge cannot be negative: %w", shared.ErrValidation)
	}
	return nil
}

// UpdateInput changes ticket fields while the ticket is still editable.
// Nil fields keep their current value.
type UpdateInput struct {
	Device        *string
	Complaint     *string
	Diagnosis     *string
	Technician    *string
	LaborCharge   *float64
	PaymentMethod *string
}

// PartInput reserves a spare part for a ticket.
type PartInput struct {
	ProductID int64
	Qty       float64
	// UnitPrice of zero bills the part at the catalog price.
	UnitPrice float64
}

// CompleteInput finalizes a ticket. Zero values keep what the ticket
// already carries.
type CompleteInput struct {
	LaborCharge   *float64
	PaymentMethod string
	Diagnosis     string
}

type stockMutator interface {
	Outbound(ctx context.Context, q db.Querier, m inventory.Movement) (inventory.StockMovement, masterdata.Product, error)
}

type ticketBooker interface {
	TicketCompleted(ctx context.Context, tx ledger.TxRepository, ev integration.TicketEvent) error
}

// Service drives the ticket lifecycle.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	stock    stockMutator
	booker   ticketBooker
	ledgerTx func(db.Querier) ledger.TxRepository
	audit    *shared.AuditLogger
	now      func() time.Time
}

// NewService wires the ticket workflow to stock and the ledger.
func NewService(logger *slog.Logger, repo Repository, stock inventory.Store, ledgerSvc *ledger.Service, hooks *integration.Hooks, audit *shared.AuditLogger) *Service {
	return &Service{
		logger: logger.With(slog.String("component", "servicedesk")),
		repo:   repo,
		stock:  stock,
		booker: hooks,
		ledgerTx: func(q db.Querier) ledger.TxRepository {
			return ledgerSvc.Repo().RunIn(q)
		},
		audit: audit,
		now:   time.Now,
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Open registers a new ticket with a fresh SRV number.
func (s *Service) Open(ctx context.Context, in OpenInput) (*Ticket, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = "cash"
	}

	openedAt := s.now()
	var ticket Ticket
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, openedAt)
		if err != nil {
			return err
		}
		ticket = Ticket{
			Number:        number,
			CustomerID:    in.CustomerID,
			Device:        strings.TrimSpace(in.Device),
			Complaint:     strings.TrimSpace(in.Complaint),
			Status:        StatusOpen,
			Technician:    strings.TrimSpace(in.Technician),
			LaborCharge:   in.LaborCharge,
			PaymentMethod: in.PaymentMethod,
		}
		return tx.InsertTicket(ctx, &ticket)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket opened", slog.String("number", ticket.Number), slog.String("device", ticket.Device))
	return &ticket, nil
}

// Update changes editable ticket fields.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Ticket, error) {
	if in.LaborCharge != nil && *in.LaborCharge < 0 {
		return nil, fmt.Errorf("servicedesk: labor charge cannot be negative: %w", shared.ErrValidation)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.TicketForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !t.Status.CanEdit() {
			return fmt.Errorf("servicedesk: ticket %s is %s and can no longer change: %w", t.Number, t.Status, shared.ErrValidation)
		}
		if in.Device != nil {
			t.Device = strings.TrimSpace(*in.Device)
		}
		if in.Complaint != nil {
			t.Complaint = strings.TrimSpace(*in.Complaint)
		}
		if in.Diagnosis != nil {
			t.Diagnosis = strings.TrimSpace(*in.Diagnosis)
		}
		if in.Technician != nil {
			t.Technician = strings.TrimSpace(*in.Technician)
		}
		if in.LaborCharge != nil {
			t.LaborCharge = *in.LaborCharge
		}
		if in.PaymentMethod != nil && *in.PaymentMethod != "" {
			t.PaymentMethod = *in.PaymentMethod
		}
		return tx.UpdateTicket(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Ticket(ctx, id)
}

// AddPart reserves a spare part for the repair. Stock only moves when
// the ticket completes.
func (s *Service) AddPart(ctx context.Context, ticketID int64, in PartInput) (*Ticket, error) {
	if in.ProductID <= 0 {
		return nil, fmt.Errorf("servicedesk: part needs a product: %w", shared.ErrValidation)
	}
	if in.Qty <= 0 {
		return nil, fmt.Errorf("servicedesk: part qty must be positive: %w", shared.ErrValidation)
	}
	if in.UnitPrice < 0 {
		return nil, fmt.Errorf("servicedesk: part price cannot be negative: %w", shared.ErrValidation)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.TicketForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if !t.Status.CanEdit() {
			return fmt.Errorf("servicedesk: ticket %s is %s and can no longer change: %w", t.Number, t.Status, shared.ErrValidation)
		}
		p, err := tx.ProductForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		if !p.IsActive {
			return fmt.Errorf("servicedesk: product %s is inactive: %w", p.Code, shared.ErrValidation)
		}
		price := in.UnitPrice
		if price == 0 {
			price = p.Price
		}
		part := TicketPart{
			TicketID:  t.ID,
			ProductID: p.ID,
			Qty:       in.Qty,
			UnitPrice: price,
			UnitCost:  p.UnitCost(),
		}
		return tx.InsertPart(ctx, &part)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Ticket(ctx, ticketID)
}

// RemovePart drops a reserved part from an editable ticket.
func (s *Service) RemovePart(ctx context.Context, ticketID, partID int64) (*Ticket, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.TicketForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if !t.Status.CanEdit() {
			return fmt.Errorf("servicedesk: ticket %s is %s and can no longer change: %w", t.Number, t.Status, shared.ErrValidation)
		}
		return tx.DeletePart(ctx, ticketID, partID)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Ticket(ctx, ticketID)
}

// Start moves an open ticket onto the bench.
func (s *Service) Start(ctx context.Context, id int64, technician string) (*Ticket, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.TicketForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !t.Status.CanStart() {
			return fmt.Errorf("servicedesk: ticket %s is %s and cannot start: %w", t.Number, t.Status, shared.ErrValidation)
		}
		t.Status = StatusInProgress
		if technician = strings.TrimSpace(technician); technician != "" {
			t.Technician = technician
		}
		return tx.UpdateTicket(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Ticket(ctx, id)
}

// Complete finishes the repair: reserved parts leave stock at their
// recorded cost and labor plus parts revenue is booked to the ledger,
// all in the transaction that flips the status. The row lock on the
// ticket makes concurrent completions serialize, so the second caller
// sees the completed status and fails the transition check.
func (s *Service) Complete(ctx context.Context, id int64, in CompleteInput) (*Ticket, error) {
	if in.LaborCharge != nil && *in.LaborCharge < 0 {
		return nil, fmt.Errorf("servicedesk: labor charge cannot be negative: %w", shared.ErrValidation)
	}

	completedAt := s.now()
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.TicketForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !t.Status.CanComplete() {
			return fmt.Errorf("servicedesk: ticket %s is %s and cannot complete: %w", t.Number, t.Status, shared.ErrValidation)
		}
		if in.LaborCharge != nil {
			t.LaborCharge = *in.LaborCharge
		}
		if in.PaymentMethod != "" {
			t.PaymentMethod = in.PaymentMethod
		}
		if in.Diagnosis != "" {
			t.Diagnosis = strings.TrimSpace(in.Diagnosis)
		}

		parts, err := tx.Parts(ctx, t.ID)
		if err != nil {
			return err
		}
		if t.LaborCharge <= 0 && len(parts) == 0 {
			return fmt.Errorf("servicedesk: ticket %s has nothing to bill: %w", t.Number, shared.ErrValidation)
		}

		evParts := make([]integration.TicketPart, 0, len(parts))
		for i := range parts {
			mv, p, err := s.stock.Outbound(ctx, tx.Querier(), inventory.Movement{
				ProductID:     parts[i].ProductID,
				Qty:           parts[i].Qty,
				Reference:     t.Number,
				ReferenceType: "service_ticket",
				MovedAt:       completedAt,
			})
			if err != nil {
				return err
			}
			if err := tx.UpdatePartCost(ctx, parts[i].ID, mv.UnitCost); err != nil {
				return err
			}
			evParts = append(evParts, integration.TicketPart{
				ProductID: p.ID,
				Name:      p.Name,
				Qty:       parts[i].Qty,
				UnitPrice: parts[i].UnitPrice,
				UnitCost:  mv.UnitCost,
			})
		}

		t.Status = StatusCompleted
		t.CompletedAt = &completedAt
		if err := tx.UpdateTicket(ctx, t); err != nil {
			return err
		}

		number = t.Number
		return s.booker.TicketCompleted(ctx, s.ledgerTx(tx.Querier()), integration.TicketEvent{
			TicketID:      t.ID,
			Number:        t.Number,
			PaymentMethod: t.PaymentMethod,
			LaborCharge:   t.LaborCharge,
			OccurredAt:    completedAt,
			Parts:         evParts,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   "servicedesk.complete",
		Entity:   "service_ticket",
		EntityID: number,
		At:       completedAt,
	}); err != nil {
		s.logger.Warn("audit ticket completion", slog.Any("error", err))
	}
	s.logger.Info("ticket completed", slog.String("number", number))
	return s.repo.Ticket(ctx, id)
}

// Deliver hands the finished device back to the customer.
func (s *Service) Deliver(ctx context.Context, id int64) (*Ticket, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.TicketForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !t.Status.CanDeliver() {
			return fmt.Errorf("servicedesk: ticket %s is %s and cannot be delivered: %w", t.Number, t.Status, shared.ErrValidation)
		}
		t.Status = StatusDelivered
		return tx.UpdateTicket(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Ticket(ctx, id)
}

// Cancel closes a ticket that never reached completion.
func (s *Service) Cancel(ctx context.Context, id int64) (*Ticket, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.TicketForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !t.Status.CanCancel() {
			return fmt.Errorf("servicedesk: ticket %s is %s and cannot be cancelled: %w", t.Number, t.Status, shared.ErrValidation)
		}
		t.Status = StatusCancelled
		return tx.UpdateTicket(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Ticket(ctx, id)
}

// Tickets lists tickets with pagination metadata.
func (s *Service) Tickets(ctx context.Context, f TicketFilter) ([]Ticket, shared.Pagination, error) {
	tickets, total, err := s.repo.Tickets(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return tickets, shared.NewPagination(f.Page.Page, f.Page.PerPage, total), nil
}

// Ticket fetches one ticket with its parts.
func (s *Service) Ticket(ctx context.Context, id int64) (*Ticket, error) {
	return s.repo.Ticket(ctx, id)
}
