package inventory

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/lokapos/lokapos/internal/masterdata"
	"github.com/lokapos/lokapos/internal/platform/db"
	"github.com/lokapos/lokapos/internal/shared"
)

// qtyEpsilon absorbs float drift when stock is compared against zero.
const qtyEpsilon = 0.0001

// StockError reports an outbound movement that would push a product's stock
// below zero while negative stock is disabled.
type StockError struct {
	ProductID int64
	Have      float64
	Want      float64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("inventory: product %d has %.3f in stock, movement needs %.3f", e.ProductID, e.Have, e.Want)
}

func (e *StockError) Unwrap() error { return shared.ErrValidation }

// Store applies stock movements inside a caller's transaction. POS checkout,
// purchase receipt and service completion all mutate stock through it so the
// movement log, the product columns and the journal commit or roll back
// together.
type Store struct {
	allowNegative bool
}

// NewStore builds a Store. allowNegative lets outbound movements drive stock
// below zero, which happens on real counters when goods move before the
// purchase is typed in.
func NewStore(allowNegative bool) Store {
	return Store{allowNegative: allowNegative}
}

// Inbound receives m.Qty units at m.UnitCost. The product is repriced with a
// moving average and the cost is remembered as the last purchase price. The
// returned product reflects the state after the movement.
func (s Store) Inbound(ctx context.Context, q db.Querier, m Movement) (StockMovement, masterdata.Product, error) {
	if m.Qty <= 0 {
		return StockMovement{}, masterdata.Product{}, fmt.Errorf("inbound qty must be positive: %w", shared.ErrValidation)
	}
	if m.UnitCost < 0 {
		return StockMovement{}, masterdata.Product{}, fmt.Errorf("unit cost cannot be negative: %w", shared.ErrValidation)
	}

	p, err := masterdata.ProductForUpdate(ctx, q, m.ProductID)
	if err != nil {
		return StockMovement{}, masterdata.Product{}, err
	}

	newQty := p.Stock + m.Qty
	newAvg := nextAverage(p.Stock, p.AvgCost, m.Qty, m.UnitCost)
	if _, err := q.Exec(ctx, `UPDATE products
SET stock = $2, avg_cost = $3, last_purchase_price = $4, updated_at = NOW() WHERE id = $1`,
		p.ID, numeric(newQty, 3), numeric(newAvg, 2), numeric(m.UnitCost, 2)); err != nil {
		return StockMovement{}, masterdata.Product{}, fmt.Errorf("reprice product %d: %w", p.ID, err)
	}
	p.Stock = newQty
	p.AvgCost = newAvg
	p.LastPurchasePrice = m.UnitCost

	mv, err := insertMovement(ctx, q, MovementIn, m, m.Qty, m.UnitCost, newQty)
	return mv, p, err
}

// Outbound issues m.Qty units at the product's recorded cost. The average
// cost never moves on the way out, only inbound movements reprice.
func (s Store) Outbound(ctx context.Context, q db.Querier, m Movement) (StockMovement, masterdata.Product, error) {
	if m.Qty <= 0 {
		return StockMovement{}, masterdata.Product{}, fmt.Errorf("outbound qty must be positive: %w", shared.ErrValidation)
	}

	p, err := masterdata.ProductForUpdate(ctx, q, m.ProductID)
	if err != nil {
		return StockMovement{}, masterdata.Product{}, err
	}

	newQty := p.Stock - m.Qty
	if newQty < -qtyEpsilon && !s.allowNegative {
		return StockMovement{}, masterdata.Product{}, &StockError{ProductID: p.ID, Have: p.Stock, Want: m.Qty}
	}
	if math.Abs(newQty) < qtyEpsilon {
		newQty = 0
	}

	unitCost := p.UnitCost()
	if _, err := q.Exec(ctx, `UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1`,
		p.ID, numeric(newQty, 3)); err != nil {
		return StockMovement{}, masterdata.Product{}, fmt.Errorf("decrement product %d: %w", p.ID, err)
	}
	p.Stock = newQty

	mv, err := insertMovement(ctx, q, MovementOut, m, m.Qty, unitCost, newQty)
	return mv, p, err
}

// Adjust corrects stock by the signed delta in m.Qty, typically after an
// opname count. Positive deltas enter at m.UnitCost, or at the product's
// recorded cost when none is given, and reprice the average like a receipt.
// Negative deltas leave at the recorded cost.
func (s Store) Adjust(ctx context.Context, q db.Querier, m Movement) (StockMovement, masterdata.Product, error) {
	if m.Qty == 0 {
		return StockMovement{}, masterdata.Product{}, fmt.Errorf("adjustment delta cannot be zero: %w", shared.ErrValidation)
	}

	p, err := masterdata.ProductForUpdate(ctx, q, m.ProductID)
	if err != nil {
		return StockMovement{}, masterdata.Product{}, err
	}

	newQty := p.Stock + m.Qty
	if newQty < -qtyEpsilon && !s.allowNegative {
		return StockMovement{}, masterdata.Product{}, &StockError{ProductID: p.ID, Have: p.Stock, Want: -m.Qty}
	}
	if math.Abs(newQty) < qtyEpsilon {
		newQty = 0
	}

	unitCost := p.UnitCost()
	newAvg := p.AvgCost
	if m.Qty > 0 {
		if m.UnitCost > 0 {
			unitCost = m.UnitCost
		}
		newAvg = nextAverage(p.Stock, p.AvgCost, m.Qty, unitCost)
	}

	if _, err := q.Exec(ctx, `UPDATE products SET stock = $2, avg_cost = $3, updated_at = NOW() WHERE id = $1`,
		p.ID, numeric(newQty, 3), numeric(newAvg, 2)); err != nil {
		return StockMovement{}, masterdata.Product{}, fmt.Errorf("adjust product %d: %w", p.ID, err)
	}
	p.Stock = newQty
	p.AvgCost = newAvg

	mv, err := insertMovement(ctx, q, MovementAdjust, m, m.Qty, unitCost, newQty)
	return mv, p, err
}

func insertMovement(ctx context.Context, q db.Querier, typ MovementType, m Movement, qty, unitCost, balance float64) (StockMovement, error) {
	movedAt := m.MovedAt
	if movedAt.IsZero() {
		movedAt = time.Now()
	}
	mv := StockMovement{
		ProductID:     m.ProductID,
		MovementType:  typ,
		Qty:           qty,
		UnitCost:      unitCost,
		BalanceQty:    balance,
		Reference:     m.Reference,
		ReferenceType: m.ReferenceType,
		Note:          m.Note,
	}
	err := q.QueryRow(ctx, `INSERT INTO stock_movements
(product_id, movement_type, qty, unit_cost, balance_qty, reference, reference_type, note, moved_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, moved_at`,
		m.ProductID, string(typ), numeric(qty, 3), numeric(unitCost, 2), numeric(balance, 3),
		m.Reference, m.ReferenceType, m.Note, movedAt).
		Scan(&mv.ID, &mv.MovedAt)
	if err != nil {
		return StockMovement{}, fmt.Errorf("insert stock movement: %w", err)
	}
	return mv, nil
}

// nextAverage reprices stock after receiving qty units at unitCost. A
// negative opening balance carries no cost into the new average.
func nextAverage(stock, avg, qty, unitCost float64) float64 {
	if stock < 0 {
		stock = 0
	}
	newQty := stock + qty
	if newQty <= 0 {
		return unitCost
	}
	return (stock*avg + qty*unitCost) / newQty
}

// numeric renders a float for a NUMERIC column at the given scale.
func numeric(v float64, scale int) string {
	return strconv.FormatFloat(v, 'f', scale, 64)
}
