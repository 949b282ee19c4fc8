package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lokapos/lokapos/internal/masterdata"
	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// AdjustmentInput is a manual stock correction.
type AdjustmentInput struct {
	ProductID int64
	Delta     float64
	UnitCost  float64
	Note      string
}

// Service exposes the stock movement log, valuation and manual adjustments.
type Service struct {
	logger *slog.Logger
	repo   Repository
	store  Store
	source db.Source
	now    func() time.Time
}

// NewService constructs the inventory service.
func NewService(logger *slog.Logger, repo Repository, store Store, source db.Source) *Service {
	return &Service{
		logger: logger.With(slog.String("component", "inventory")),
		repo:   repo,
		store:  store,
		source: source,
		now:    time.Now,
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Store returns the movement store for callers that compose stock changes
// into their own transactions.
func (s *Service) Store() Store {
	return s.store
}

// Movements lists the stock movement log, newest first.
func (s *Service) Movements(ctx context.Context, f MovementFilter) ([]StockMovement, shared.Pagination, error) {
	movements, total, err := s.repo.Movements(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return movements, shared.NewPagination(f.Page.Page, f.Page.PerPage, total), nil
}

// Valuation reports the stock value of active products at average cost.
func (s *Service) Valuation(ctx context.Context) (*Valuation, error) {
	return s.repo.Valuation(ctx)
}

// Adjust applies a manual stock correction in its own transaction.
func (s *Service) Adjust(ctx context.Context, in AdjustmentInput) (*StockMovement, error) {
	if in.ProductID <= 0 {
		return nil, fmt.Errorf("product id is required: %w", shared.ErrValidation)
	}
	if in.Delta == 0 {
		return nil, fmt.Errorf("adjustment delta cannot be zero: %w", shared.ErrValidation)
	}

	var mv StockMovement
	var product masterdata.Product
	err := db.WithTx(ctx, s.source.Pool(ctx), func(tx pgx.Tx) error {
		var err error
		mv, product, err = s.store.Adjust(ctx, tx, Movement{
			ProductID:     in.ProductID,
			Qty:           in.Delta,
			UnitCost:      in.UnitCost,
			ReferenceType: "adjustment",
			Note:          in.Note,
			MovedAt:       s.now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock adjusted",
		slog.Int64("product_id", product.ID),
		slog.String("product_code", product.Code),
		slog.Float64("delta", in.Delta),
		slog.Float64("balance", mv.BalanceQty))
	return &mv, nil
}
