package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lokapos/lokapos/internal/integration"
	"github.com/lokapos/lokapos/internal/inventory"
	"github.com/lokapos/lokapos/internal/ledger"
	"github.com/lokapos/lokapos/internal/masterdata"
	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// ReceiveItem is one product line of a supplier delivery.
type ReceiveItem struct {
	ProductID int64
	Qty       float64
	// UnitCost of zero is allowed for bonus stock; it dilutes the
	// moving average without touching the ledger.
	UnitCost float64
}

// ReceiveInput records a supplier delivery.
type ReceiveInput struct {
	SupplierID    *int64
	PaymentMethod string
	Note          string
	// ReceivedAt allows backdating a delivery logged after the fact.
	ReceivedAt *time.Time
	Items      []ReceiveItem
}

func (in ReceiveInput) validate() error {
	if len(in.Items) == 0 {
		return fmt.Errorf("procurement: purchase needs at least one item: %w", shared.ErrValidation)
	}
	for i, item := range in.Items {
		if item.ProductID <= 0 {
			return fmt.Errorf("procurement: item %d needs a product: %w", i+1, shared.ErrValidation)
		}
		if item.Qty <= 0 {
			return fmt.Errorf("procurement: item %d qty must be positive: %w", i+1, shared.ErrValidation)
		}
		if item.UnitCost < 0 {
			return fmt.Errorf("procurement: item %d cost cannot be negative: %w", i+1, shared.ErrValidation)
		}
	}
	return nil
}

type stockMutator interface {
	Inbound(ctx context.Context, q db.Querier, m inventory.Movement) (inventory.StockMovement, masterdata.Product, error)
}

type purchaseBooker interface {
	PurchaseReceived(ctx context.Context, tx ledger.TxRepository, ev integration.PurchaseEvent) error
}

// Service records purchases against stock and the ledger.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	stock    stockMutator
	booker   purchaseBooker
	ledgerTx func(db.Querier) ledger.TxRepository
	audit    *shared.AuditLogger
	now      func() time.Time
}

// NewService wires purchasing to stock and the ledger.
func NewService(logger *slog.Logger, repo Repository, stock inventory.Store, ledgerSvc *ledger.Service, hooks *integration.Hooks, audit *shared.AuditLogger) *Service {
	return &Service{
		logger: logger.With(slog.String("component", "procurement")),
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

// Receive records a supplier delivery in one transaction: every line
// enters stock at its cost, the moving average and last purchase price
// move, and the total is booked as an inventory asset. A zero-value
// delivery only moves stock.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (*Purchase, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	method := in.PaymentMethod
	if method == "" {
		method = "cash"
	}
	receivedAt := s.now()
	if in.ReceivedAt != nil && !in.ReceivedAt.IsZero() {
		receivedAt = *in.ReceivedAt
	}

	var purchase Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, receivedAt)
		if err != nil {
			return err
		}

		items := make([]PurchaseItem, 0, len(in.Items))
		var total float64
		for _, item := range in.Items {
			_, p, err := s.stock.Inbound(ctx, tx.Querier(), inventory.Movement{
				ProductID:     item.ProductID,
				Qty:           item.Qty,
				UnitCost:      item.UnitCost,
				Reference:     number,
				ReferenceType: "purchase",
				MovedAt:       receivedAt,
			})
			if err != nil {
				return err
			}
			lineTotal := round2(item.Qty * item.UnitCost)
			total = round2(total + lineTotal)
			items = append(items, PurchaseItem{
				ProductID:   p.ID,
				ProductCode: p.Code,
				ProductName: p.Name,
				Qty:         item.Qty,
				UnitCost:    item.UnitCost,
				LineTotal:   lineTotal,
			})
		}

		var supplierName string
		if in.SupplierID != nil {
			supplierName, err = tx.SupplierName(ctx, *in.SupplierID)
			if err != nil {
				return err
			}
		}

		purchase = Purchase{
			Number:        number,
			SupplierID:    in.SupplierID,
			SupplierName:  supplierName,
			Status:        StatusReceived,
			PaymentMethod: method,
			Total:         total,
			Note:          in.Note,
			ReceivedAt:    receivedAt,
		}
		if err := tx.InsertPurchase(ctx, &purchase); err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, purchase.ID, items); err != nil {
			return err
		}
		purchase.Items = items

		if total <= 0 {
			return nil
		}
		return s.booker.PurchaseReceived(ctx, s.ledgerTx(tx.Querier()), integration.PurchaseEvent{
			PurchaseID:    purchase.ID,
			Number:        number,
			SupplierName:  supplierName,
			PaymentMethod: method,
			Total:         total,
			OccurredAt:    receivedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   "procurement.receive",
		Entity:   "purchase",
		EntityID: purchase.Number,
		Meta:     map[string]any{"total": purchase.Total, "items": len(purchase.Items)},
		At:       receivedAt,
	}); err != nil {
		s.logger.Warn("audit purchase", slog.Any("error", err))
	}
	s.logger.Info("purchase received",
		slog.String("number", purchase.Number),
		slog.Float64("total", purchase.Total),
		slog.Int("items", len(purchase.Items)))
	return &purchase, nil
}

// Purchases lists purchases with pagination metadata.
func (s *Service) Purchases(ctx context.Context, f PurchaseFilter) ([]Purchase, shared.Pagination, error) {
	purchases, total, err := s.repo.Purchases(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return purchases, shared.NewPagination(f.Page.Page, f.Page.PerPage, total), nil
}

// Purchase fetches one purchase with its items.
func (s *Service) Purchase(ctx context.Context, id int64) (*Purchase, error) {
	return s.repo.Purchase(ctx, id)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
