package pos

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

// CheckoutItem is one requested receipt line. A zero UnitPrice means
// "charge the catalog price".
type CheckoutItem struct {
	ProductID int64
	Qty       float64
	UnitPrice float64
}

// CheckoutInput is a sale to ring up.
type CheckoutInput struct {
	CustomerID    *int64
	PaymentMethod string
	Discount      float64
	PaidAmount    float64
	Cashier       string
	Items         []CheckoutItem
}

func (in CheckoutInput) validate() error {
	if len(in.Items) == 0 {
		return fmt.Errorf("sale needs at least one item: %w", shared.ErrValidation)
	}
	for i, item := range in.Items {
		if item.ProductID <= 0 {
			return fmt.Errorf("item %d: product id required: %w", i, shared.ErrValidation)
		}
		if item.Qty <= 0 {
			return fmt.Errorf("item %d: qty must be positive: %w", i, shared.ErrValidation)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("item %d: price cannot be negative: %w", i, shared.ErrValidation)
		}
	}
	if in.Discount < 0 {
		return fmt.Errorf("discount cannot be negative: %w", shared.ErrValidation)
	}
	if in.PaidAmount < 0 {
		return fmt.Errorf("paid amount cannot be negative: %w", shared.ErrValidation)
	}
	return nil
}

type stockMutator interface {
	Outbound(ctx context.Context, q db.Querier, m inventory.Movement) (inventory.StockMovement, masterdata.Product, error)
}

type saleBooker interface {
	SaleCompleted(ctx context.Context, tx ledger.TxRepository, ev integration.SaleEvent) error
}

// Service runs checkouts and serves sale reads.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	stock    stockMutator
	booker   saleBooker
	ledgerTx func(db.Querier) ledger.TxRepository
	audit    *shared.AuditLogger
	now      func() time.Time
}

// NewService constructs the POS service.
func NewService(logger *slog.Logger, repo Repository, stock inventory.Store, ledgerSvc *ledger.Service, hooks *integration.Hooks, audit *shared.AuditLogger) *Service {
	return &Service{
		logger:   logger.With(slog.String("component", "pos")),
		repo:     repo,
		stock:    stock,
		booker:   hooks,
		ledgerTx: func(q db.Querier) ledger.TxRepository { return ledgerSvc.Repo().RunIn(q) },
		audit:    audit,
		now:      time.Now,
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Checkout rings up a sale: stock leaves inventory at its recorded cost, the
// receipt is persisted, and the sale is booked into the ledger. Everything
// commits or rolls back together.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*Sale, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	paymentMethod := in.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = "cash"
	}

	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		soldAt := s.now()
		number, err := tx.NextNumber(ctx, soldAt)
		if err != nil {
			return fmt.Errorf("sale number: %w", err)
		}

		q := tx.Querier()
		var subtotal float64
		items := make([]SaleItem, 0, len(in.Items))
		eventLines := make([]integration.SaleLine, 0, len(in.Items))
		for _, item := range in.Items {
			mv, product, err := s.stock.Outbound(ctx, q, inventory.Movement{
				ProductID:     item.ProductID,
				Qty:           item.Qty,
				Reference:     number,
				ReferenceType: "pos_sale",
				MovedAt:       soldAt,
			})
			if err != nil {
				return err
			}
			if !product.IsActive {
				return fmt.Errorf("product %s is inactive: %w", product.Code, shared.ErrValidation)
			}

			unitPrice := item.UnitPrice
			if unitPrice == 0 {
				unitPrice = product.Price
			}
			lineTotal := round2(item.Qty * unitPrice)
			subtotal += lineTotal
			items = append(items, SaleItem{
				ProductID:   product.ID,
				ProductCode: product.Code,
				ProductName: product.Name,
				Qty:         item.Qty,
				UnitPrice:   unitPrice,
				UnitCost:    mv.UnitCost,
				LineTotal:   lineTotal,
			})
			eventLines = append(eventLines, integration.SaleLine{
				ProductID: product.ID,
				Name:      product.Name,
				Qty:       item.Qty,
				UnitPrice: unitPrice,
				UnitCost:  mv.UnitCost,
			})
		}

		subtotal = round2(subtotal)
		total := round2(subtotal - in.Discount)
		if total < 0 {
			return fmt.Errorf("discount exceeds subtotal: %w", shared.ErrValidation)
		}
		paid := in.PaidAmount
		if paid == 0 {
			paid = total
		}
		if paid < total {
			return fmt.Errorf("paid %.2f is less than total %.2f: %w", paid, total, shared.ErrValidation)
		}

		sale = Sale{
			Number:        number,
			CustomerID:    in.CustomerID,
			Status:        StatusCompleted,
			PaymentMethod: paymentMethod,
			Subtotal:      subtotal,
			Discount:      round2(in.Discount),
			Total:         total,
			PaidAmount:    round2(paid),
			ChangeAmount:  round2(paid - total),
			Cashier:       in.Cashier,
			SoldAt:        soldAt,
		}
		if err := tx.InsertSale(ctx, &sale); err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, sale.ID, items); err != nil {
			return err
		}
		sale.Items = items

		return s.booker.SaleCompleted(ctx, s.ledgerTx(q), integration.SaleEvent{
			SaleID:        sale.ID,
			Number:        number,
			PaymentMethod: paymentMethod,
			Discount:      sale.Discount,
			OccurredAt:    soldAt,
			Lines:         eventLines,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Action:   "pos.checkout",
			Entity:   "sale",
			EntityID: sale.Number,
			Meta:     map[string]any{"total": sale.Total, "items": len(sale.Items)},
		}); err != nil {
			s.logger.Warn("audit write failed", slog.Any("error", err))
		}
	}

	s.logger.Info("sale completed",
		slog.String("number", sale.Number),
		slog.Float64("total", sale.Total),
		slog.String("payment_method", sale.PaymentMethod))
	return &sale, nil
}

// Sales lists checkouts, newest first.
func (s *Service) Sales(ctx context.Context, f SaleFilter) ([]Sale, shared.Pagination, error) {
	sales, total, err := s.repo.Sales(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return sales, shared.NewPagination(f.Page.Page, f.Page.PerPage, total), nil
}

// Sale loads one checkout with its items.
func (s *Service) Sale(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.Sale(ctx, id)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
